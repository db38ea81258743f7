package usecase

import (
	"context"
	"testing"
	"time"

	"flat-crawler-service/internal/core/crawltrack"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCrawlLog struct {
	days map[time.Time]struct{}
}

func newFakeCrawlLog() *fakeCrawlLog {
	return &fakeCrawlLog{days: make(map[time.Time]struct{})}
}

func (l *fakeCrawlLog) ListCrawledDays(ctx context.Context, source domain.Source, crawlID string, since time.Time) (map[time.Time]struct{}, error) {
	out := make(map[time.Time]struct{})
	for day := range l.days {
		if !day.Before(since) {
			out[day] = struct{}{}
		}
	}
	return out, nil
}

func (l *fakeCrawlLog) MarkDayCrawled(ctx context.Context, source domain.Source, crawlID string, day time.Time) error {
	l.days[day] = struct{}{}
	return nil
}

type fakeFetcher struct {
	source      domain.Source
	pages       []*port.ListingPage
	detailsErr  error
	detailCalls int
}

func (f *fakeFetcher) Source() domain.Source { return f.source }

func (f *fakeFetcher) FetchListingPage(ctx context.Context, query domain.CrawlQuery, page int) (*port.ListingPage, error) {
	if page > len(f.pages) {
		return &port.ListingPage{}, nil
	}
	return f.pages[page-1], nil
}

func (f *fakeFetcher) FetchDetails(ctx context.Context, post *domain.Post) error {
	f.detailCalls++
	if f.detailsErr != nil {
		return f.detailsErr
	}
	post.Desc = "pelny opis z detalnej strony"
	return nil
}

func dayOffset(offset int) time.Time {
	return crawltrack.Midnight(time.Now()).AddDate(0, 0, offset)
}

func listedPost(url string, price int, postedOffset int) *domain.Post {
	post := makePost(url, price)
	post.ID = uuid.Nil
	post.FlatID = nil
	posted := dayOffset(postedOffset).Add(10 * time.Hour)
	post.PostedAt = &posted
	return post
}

func crawlQuery() domain.CrawlQuery {
	return domain.CrawlQuery{
		Name:         "krakow-all",
		Source:       domain.SourceGumtree,
		LookbackDays: 7,
	}
}

func newCrawlUC(fetcher *fakeFetcher, posts *fakePosts, crawlLog *fakeCrawlLog, reporter *fakeReporter) *CrawlSourceUseCase {
	fetchers := map[domain.Source]port.PostFetcherPort{fetcher.source: fetcher}
	return NewCrawlSourceUseCase(fetchers, posts, crawlLog, reporter)
}

func TestCrawlWalksUntilCoveredDate(t *testing.T) {
	fetcher := &fakeFetcher{
		source: domain.SourceGumtree,
		pages: []*port.ListingPage{
			{
				Posts: []*domain.Post{
					listedPost("https://example.com/a", 400000, 0),
					listedPost("https://example.com/b", 410000, -1),
				},
				HasNext: true,
			},
			{
				// Старше окна: обход должен остановиться после этой страницы
				Posts:   []*domain.Post{listedPost("https://example.com/c", 390000, -8)},
				HasNext: true,
			},
			{
				Posts:   []*domain.Post{listedPost("https://example.com/d", 380000, -9)},
				HasNext: false,
			},
		},
	}
	posts := newFakePosts()
	crawlLog := newFakeCrawlLog()

	uc := newCrawlUC(fetcher, posts, crawlLog, &fakeReporter{})
	report, err := uc.Execute(testContext(), crawlQuery(), uuid.Nil)
	require.NoError(t, err)

	assert.Equal(t, 2, report.PagesFetched, "third page lies past the covered date")
	assert.Equal(t, 3, report.NewPosts)
	assert.Len(t, posts.posts, 3)

	// Покрытие: строго между -8 и сегодня, границы не отмечаются
	assert.Len(t, crawlLog.days, 7)
	assert.Contains(t, crawlLog.days, dayOffset(-7))
	assert.Contains(t, crawlLog.days, dayOffset(-1))
	assert.NotContains(t, crawlLog.days, dayOffset(-8))
	assert.NotContains(t, crawlLog.days, dayOffset(0))

	for _, post := range posts.posts {
		assert.True(t, post.DetailsAdded)
		assert.NotEmpty(t, post.PostHash)
		assert.False(t, post.Created.IsZero())
	}
}

func TestCrawlSkipsKnownHashes(t *testing.T) {
	known := makePost("https://example.com/old-url", 400000)
	known.PostHash = known.ComputeHash()

	dup := listedPost("https://example.com/new-url", 400000, 0)
	dup.Heading = known.Heading

	fetcher := &fakeFetcher{
		source: domain.SourceGumtree,
		pages: []*port.ListingPage{
			{Posts: []*domain.Post{dup, listedPost("https://example.com/fresh", 500000, 0)}},
		},
	}
	posts := newFakePosts()
	require.NoError(t, posts.SavePost(testContext(), known))

	uc := newCrawlUC(fetcher, posts, newFakeCrawlLog(), &fakeReporter{})
	report, err := uc.Execute(testContext(), crawlQuery(), uuid.Nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.SkippedKnown)
	assert.Equal(t, 1, report.NewPosts)
	assert.Equal(t, 1, fetcher.detailCalls, "known posts must not hit the details page")
}

func TestCrawlDetailsFailureIsNotFatal(t *testing.T) {
	fetcher := &fakeFetcher{
		source:     domain.SourceGumtree,
		detailsErr: assert.AnError,
		pages: []*port.ListingPage{
			{Posts: []*domain.Post{listedPost("https://example.com/a", 400000, 0)}},
		},
	}
	posts := newFakePosts()

	uc := newCrawlUC(fetcher, posts, newFakeCrawlLog(), &fakeReporter{})
	report, err := uc.Execute(testContext(), crawlQuery(), uuid.Nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.NewPosts, "post keeps its listing data")
	assert.Equal(t, 1, report.FailedDetails)
	for _, post := range posts.posts {
		assert.False(t, post.DetailsAdded)
	}
}

func TestCrawlPageWithoutTimestampsAborts(t *testing.T) {
	undated := makePost("https://example.com/undated", 400000)
	fetcher := &fakeFetcher{
		source: domain.SourceGumtree,
		pages:  []*port.ListingPage{{Posts: []*domain.Post{undated}}},
	}

	uc := newCrawlUC(fetcher, newFakePosts(), newFakeCrawlLog(), &fakeReporter{})
	report, err := uc.Execute(testContext(), crawlQuery(), uuid.Nil)
	require.ErrorIs(t, err, domain.ErrCrawlDateGap)
	require.NotNil(t, report, "partial report survives the abort")
	assert.Equal(t, 1, report.PagesFetched)
}

func TestCrawlFiltersForeignDistricts(t *testing.T) {
	foreign := listedPost("https://example.com/a", 400000, 0)
	district := "Nowa Huta"
	foreign.District = &district

	local := listedPost("https://example.com/b", 410000, 0)
	localDistrict := "krowodrza"
	local.District = &localDistrict

	fetcher := &fakeFetcher{
		source: domain.SourceGumtree,
		pages:  []*port.ListingPage{{Posts: []*domain.Post{foreign, local}}},
	}
	posts := newFakePosts()

	query := crawlQuery()
	query.District = "Krowodrza"

	uc := newCrawlUC(fetcher, posts, newFakeCrawlLog(), &fakeReporter{})
	report, err := uc.Execute(testContext(), query, uuid.Nil)
	require.NoError(t, err)

	// Сравнение районов регистронезависимое
	assert.Equal(t, 1, report.NewPosts)
	assert.Len(t, posts.posts, 1)
}

func TestCrawlUnknownSource(t *testing.T) {
	fetcher := &fakeFetcher{source: domain.SourceGumtree}
	uc := newCrawlUC(fetcher, newFakePosts(), newFakeCrawlLog(), &fakeReporter{})

	query := crawlQuery()
	query.Source = domain.Source("olx")
	_, err := uc.Execute(testContext(), query, uuid.Nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fetcher registered")
}

func TestCrawlReportsForTask(t *testing.T) {
	fetcher := &fakeFetcher{
		source: domain.SourceGumtree,
		pages: []*port.ListingPage{
			{Posts: []*domain.Post{listedPost("https://example.com/a", 400000, 0)}},
		},
	}
	reporter := &fakeReporter{}

	uc := newCrawlUC(fetcher, newFakePosts(), newFakeCrawlLog(), reporter)
	taskID := uuid.New()
	_, err := uc.Execute(testContext(), crawlQuery(), taskID)
	require.NoError(t, err)

	require.Len(t, reporter.crawlReports, 1)
	assert.Equal(t, taskID, reporter.crawlReports[0])
}
