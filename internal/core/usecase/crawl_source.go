package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/crawltrack"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"
	"flat-crawler-service/internal/core/textextract"

	"github.com/google/uuid"
)

type CrawlSourceUseCase struct {
	fetchers map[domain.Source]port.PostFetcherPort
	posts    port.PostStoragePort
	crawlLog port.CrawlLogPort
	reporter port.TaskReporterPort
}

func NewCrawlSourceUseCase(fetchers map[domain.Source]port.PostFetcherPort,
	posts port.PostStoragePort,
	crawlLog port.CrawlLogPort,
	reporter port.TaskReporterPort) *CrawlSourceUseCase {
	return &CrawlSourceUseCase{
		fetchers: fetchers,
		posts:    posts,
		crawlLog: crawlLog,
		reporter: reporter,
	}
}

// Execute обходит выдачу источника от новых постов к старым, пока не
// дойдет до уже покрытой даты, лимита страниц или конца выдачи.
// Прогресс по датам фиксируется после каждой страницы: упавший посередине
// обход не теряет пройденное.
func (uc *CrawlSourceUseCase) Execute(ctx context.Context, query domain.CrawlQuery, taskID uuid.UUID) (*domain.CrawlReport, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case": "CrawlSource",
		"task_id":  taskID.String(),
		"source":   string(query.Source),
		"crawl_id": query.Name,
	})

	fetcher, ok := uc.fetchers[query.Source]
	if !ok {
		return nil, fmt.Errorf("no fetcher registered for source %q", query.Source)
	}

	tracker := crawltrack.NewTracker(uc.crawlLog, query.Source, query.Name)
	startDate, err := tracker.NextStartDate(ctx, query.LookbackDays, time.Now())
	if err != nil {
		ucLogger.Error("Could not resolve crawl start date", err, nil)
		return nil, fmt.Errorf("resolving start date: %w", err)
	}
	ucLogger.Info("Starting crawl", port.Fields{"start_date": startDate.Format("2006-01-02")})

	knownHashes, err := uc.posts.GetKnownHashes(ctx, query.Source)
	if err != nil {
		ucLogger.Error("Could not load known post hashes", err, nil)
		return nil, fmt.Errorf("loading known hashes: %w", err)
	}

	report := &domain.CrawlReport{
		Source:    query.Source,
		CrawlID:   query.Name,
		StartDate: startDate,
	}

	// Скользящие границы дат текущего обхода, для учета покрытия
	var oldestSeen, newestSeen time.Time

	for page := 1; query.PageLimit <= 0 || page <= query.PageLimit; page++ {
		listing, err := fetcher.FetchListingPage(ctx, query, page)
		if err != nil {
			ucLogger.Error("Listing page fetch failed", err, port.Fields{"page": page})
			return report, fmt.Errorf("fetching page %d: %w", page, err)
		}
		report.PagesFetched++

		pageOldest, pageNewest, hasTimestamps := timestampBounds(listing.Posts)
		if len(listing.Posts) > 0 && !hasTimestamps {
			// Без дат нельзя безопасно продвигать покрытие
			ucLogger.Error("Crawl page carries no timestamps", domain.ErrCrawlDateGap, port.Fields{"page": page})
			return report, fmt.Errorf("page %d: %w", page, domain.ErrCrawlDateGap)
		}

		for _, post := range listing.Posts {
			uc.ingestPost(ctx, ucLogger, fetcher, query, post, knownHashes, report)
		}

		if hasTimestamps {
			if oldestSeen.IsZero() || pageOldest.Before(oldestSeen) {
				oldestSeen = pageOldest
			}
			if newestSeen.IsZero() || pageNewest.After(newestSeen) {
				newestSeen = pageNewest
			}
			if err := tracker.RecordProgress(ctx, oldestSeen, newestSeen); err != nil {
				ucLogger.Error("Could not record crawl progress", err, nil)
				return report, fmt.Errorf("recording crawl progress: %w", err)
			}
		}

		if !listing.HasNext {
			break
		}
		// Выдача отсортирована от новых к старым: дойдя до покрытой
		// даты, дальше идти незачем
		if hasTimestamps && pageOldest.Before(startDate) {
			break
		}
	}

	ucLogger.Info("Crawl finished", port.Fields{
		"pages":          report.PagesFetched,
		"new_posts":      report.NewPosts,
		"skipped_known":  report.SkippedKnown,
		"failed_details": report.FailedDetails,
	})

	if taskID != uuid.Nil {
		if err := uc.reporter.ReportCrawlResult(ctx, taskID, report); err != nil {
			ucLogger.Error("Failed to report crawl result", err, nil)
		}
	}
	return report, nil
}

func (uc *CrawlSourceUseCase) ingestPost(ctx context.Context, logger port.LoggerPort,
	fetcher port.PostFetcherPort, query domain.CrawlQuery, post *domain.Post,
	knownHashes map[string]struct{}, report *domain.CrawlReport) {

	if !districtAllowed(query, post) {
		return
	}

	post.PostHash = post.ComputeHash()
	if _, known := knownHashes[post.PostHash]; known {
		report.SkippedKnown++
		return
	}

	if err := fetcher.FetchDetails(ctx, post); err != nil {
		// Детали не фатальны: пост сохраняется с данными списочной страницы
		logger.Warn("Details fetch failed, saving partial post", port.Fields{
			"url":   post.URL,
			"error": err.Error(),
		})
		report.FailedDetails++
	} else {
		post.DetailsAdded = true
	}

	if post.SizeM2 == nil {
		post.SizeM2 = textextract.DeduceSizeM2(post.Heading+" "+post.Desc, post.Price)
	}

	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	post.Created = time.Now().UTC()

	if err := uc.posts.SavePost(ctx, post); err != nil {
		logger.Error("Could not save post", err, port.Fields{"url": post.URL})
		return
	}
	knownHashes[post.PostHash] = struct{}{}
	report.NewPosts++
}

// districtAllowed отбрасывает посты чужих районов, когда запрос скоуплен
// районом, а источник не умеет фильтровать сам
func districtAllowed(query domain.CrawlQuery, post *domain.Post) bool {
	if query.District == "" || post.District == nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(*post.District), strings.TrimSpace(query.District))
}

// timestampBounds — старейшая и новейшая даты публикации на странице.
// Посты без даты игнорируются.
func timestampBounds(posts []*domain.Post) (oldest, newest time.Time, ok bool) {
	for _, post := range posts {
		if !post.HasTimestamp() {
			continue
		}
		ts := *post.PostedAt
		if !ok {
			oldest, newest, ok = ts, ts, true
			continue
		}
		if ts.Before(oldest) {
			oldest = ts
		}
		if ts.After(newest) {
			newest = ts
		}
	}
	return oldest, newest, ok
}
