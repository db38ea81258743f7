package matching

import (
	"context"
	"fmt"
	"testing"
	"time"

	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (l nopLogger) Info(msg string, fields port.Fields)             {}
func (l nopLogger) Warn(msg string, fields port.Fields)             {}
func (l nopLogger) Error(msg string, err error, fields port.Fields) {}
func (l nopLogger) Debug(msg string, fields port.Fields)            {}
func (l nopLogger) WithFields(fields port.Fields) port.LoggerPort   { return l }

// fakePostStorage — хранилище постов в памяти для тестов движка
type fakePostStorage struct {
	posts map[uuid.UUID]*domain.Post
}

func newFakePostStorage() *fakePostStorage {
	return &fakePostStorage{posts: make(map[uuid.UUID]*domain.Post)}
}

func (s *fakePostStorage) SavePost(ctx context.Context, post *domain.Post) error {
	s.posts[post.ID] = post
	return nil
}

func (s *fakePostStorage) UpdateMatchState(ctx context.Context, post *domain.Post) error {
	if _, ok := s.posts[post.ID]; !ok {
		return fmt.Errorf("post %s not found", post.ID)
	}
	s.posts[post.ID] = post
	return nil
}

func (s *fakePostStorage) GetPostByID(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	post, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s not found", id)
	}
	return post, nil
}

func (s *fakePostStorage) GetPostsByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Post, error) {
	var out []*domain.Post
	for _, id := range ids {
		if post, ok := s.posts[id]; ok {
			out = append(out, post)
		}
	}
	return out, nil
}

func (s *fakePostStorage) GetUnmatchedPosts(ctx context.Context, includeBroken bool) ([]*domain.Post, error) {
	var out []*domain.Post
	for _, post := range s.posts {
		if post.FlatID == nil && (includeBroken || !post.IsBroken) {
			out = append(out, post)
		}
	}
	return out, nil
}

func (s *fakePostStorage) GetPostsByFlat(ctx context.Context, flatID uuid.UUID) ([]*domain.Post, error) {
	var out []*domain.Post
	for _, post := range s.posts {
		if post.FlatID != nil && *post.FlatID == flatID {
			out = append(out, post)
		}
	}
	return out, nil
}

func (s *fakePostStorage) GetOriginalCandidates(ctx context.Context, window port.CandidateWindow) ([]*domain.Post, error) {
	var out []*domain.Post
	for _, post := range s.posts {
		if !post.IsOriginalPost {
			continue
		}
		if post.Price < window.MinPrice || post.Price > window.MaxPrice {
			continue
		}
		out = append(out, post)
	}
	return out, nil
}

func (s *fakePostStorage) GetKnownHashes(ctx context.Context, source domain.Source) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, post := range s.posts {
		if post.Source == source && post.PostHash != "" {
			out[post.PostHash] = struct{}{}
		}
	}
	return out, nil
}

func (s *fakePostStorage) ClearMatchState(ctx context.Context) error {
	for _, post := range s.posts {
		post.FlatID = nil
		post.IsOriginalPost = false
		post.MatchedBy = nil
		post.IsBroken = false
		post.ExceptionStr = nil
	}
	return nil
}

// fakeFlatStorage — хранилище квартир в памяти
type fakeFlatStorage struct {
	flats map[uuid.UUID]*domain.Flat

	getErr error
}

func newFakeFlatStorage() *fakeFlatStorage {
	return &fakeFlatStorage{flats: make(map[uuid.UUID]*domain.Flat)}
}

func (s *fakeFlatStorage) CreateFlat(ctx context.Context, flat *domain.Flat) error {
	s.flats[flat.ID] = flat
	return nil
}

func (s *fakeFlatStorage) GetFlat(ctx context.Context, id uuid.UUID) (*domain.Flat, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	flat, ok := s.flats[id]
	if !ok {
		return nil, fmt.Errorf("flat %s not found", id)
	}
	copied := *flat
	return &copied, nil
}

func (s *fakeFlatStorage) UpdateFlat(ctx context.Context, flat *domain.Flat) error {
	if _, ok := s.flats[flat.ID]; !ok {
		return fmt.Errorf("flat %s not found", flat.ID)
	}
	s.flats[flat.ID] = flat
	return nil
}

func (s *fakeFlatStorage) DeleteFlat(ctx context.Context, id uuid.UUID) error {
	delete(s.flats, id)
	return nil
}

func (s *fakeFlatStorage) DeleteAllFlats(ctx context.Context) error {
	s.flats = make(map[uuid.UUID]*domain.Flat)
	return nil
}

func (s *fakeFlatStorage) ListFlats(ctx context.Context, filters domain.FlatFilters, limit, offset int) ([]*domain.FlatListItem, error) {
	return nil, nil
}

func newTestEngine(posts *fakePostStorage, flats *fakeFlatStorage) *Engine {
	return NewEngine([]Matcher{NewBaseInfoMatcher()}, posts, flats, nopLogger{})
}

func newPost(url string, price int) *domain.Post {
	return &domain.Post{
		ID:      uuid.New(),
		Source:  domain.SourceGumtree,
		URL:     url,
		Heading: "Mieszkanie " + url,
		Price:   price,
		Created: time.Now().UTC(),
	}
}

// seedFlat заводит квартиру с оригинальным постом
func seedFlat(t *testing.T, posts *fakePostStorage, flats *fakeFlatStorage, post *domain.Post, created time.Time) *domain.Flat {
	t.Helper()
	flat := &domain.Flat{
		ID:             uuid.New(),
		OriginalPostID: post.ID,
		MinPrice:       post.Price,
		Created:        created,
	}
	require.NoError(t, flats.CreateFlat(context.Background(), flat))

	matchedBy := domain.MatchedByOriginalPost
	post.FlatID = &flat.ID
	post.IsOriginalPost = true
	post.MatchedBy = &matchedBy
	require.NoError(t, posts.SavePost(context.Background(), post))
	return flat
}

func TestResolvePostCreatesFlat(t *testing.T) {
	posts := newFakePostStorage()
	flats := newFakeFlatStorage()
	engine := newTestEngine(posts, flats)

	post := newPost("https://example.com/a", 450000)
	require.NoError(t, posts.SavePost(context.Background(), post))

	outcome, err := engine.ResolvePost(context.Background(), post, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	require.NotNil(t, post.FlatID)
	assert.True(t, post.IsOriginalPost)
	require.NotNil(t, post.MatchedBy)
	assert.Equal(t, domain.MatchedByOriginalPost, *post.MatchedBy)

	flat := flats.flats[*post.FlatID]
	require.NotNil(t, flat)
	assert.Equal(t, post.ID, flat.OriginalPostID)
	assert.Equal(t, 450000, flat.MinPrice)
}

func TestResolvePostAttachesAndLowersPrice(t *testing.T) {
	posts := newFakePostStorage()
	flats := newFakeFlatStorage()
	engine := newTestEngine(posts, flats)

	original := newPost("https://example.com/same", 500000)
	flat := seedFlat(t, posts, flats, original, time.Now().UTC())

	// Тот же URL и более низкая цена
	post := newPost("https://example.com/same", 480000)
	require.NoError(t, posts.SavePost(context.Background(), post))

	outcome, err := engine.ResolvePost(context.Background(), post, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAttached, outcome)

	require.NotNil(t, post.FlatID)
	assert.Equal(t, flat.ID, *post.FlatID)
	assert.False(t, post.IsOriginalPost)
	require.NotNil(t, post.MatchedBy)
	assert.Equal(t, "base_info", *post.MatchedBy)

	assert.Equal(t, 480000, flats.flats[flat.ID].MinPrice, "min price must drop")
}

func TestResolvePostMergesFlats(t *testing.T) {
	posts := newFakePostStorage()
	flats := newFakeFlatStorage()
	engine := newTestEngine(posts, flats)

	older := time.Now().UTC().Add(-48 * time.Hour)
	newer := time.Now().UTC().Add(-1 * time.Hour)

	origA := newPost("https://example.com/dup", 500000)
	flatA := seedFlat(t, posts, flats, origA, older)
	flats.flats[flatA.ID].Starred = true

	origB := newPost("https://example.com/dup", 470000)
	flatB := seedFlat(t, posts, flats, origB, newer)
	flats.flats[flatB.ID].Hearted = true

	post := newPost("https://example.com/dup", 460000)
	require.NoError(t, posts.SavePost(context.Background(), post))

	outcome, err := engine.ResolvePost(context.Background(), post, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMerged, outcome)

	// Выживает более ранняя квартира
	require.Contains(t, flats.flats, flatA.ID)
	assert.NotContains(t, flats.flats, flatB.ID)

	survivor := flats.flats[flatA.ID]
	assert.Equal(t, 460000, survivor.MinPrice)
	// heart приоритетнее star при комбинировании оценок
	assert.True(t, survivor.Hearted)
	assert.False(t, survivor.Starred)

	// Оригинал поглощенной квартиры теряет роль и перепривязывается
	absorbed := posts.posts[origB.ID]
	assert.False(t, absorbed.IsOriginalPost)
	require.NotNil(t, absorbed.FlatID)
	assert.Equal(t, flatA.ID, *absorbed.FlatID)
	require.NotNil(t, absorbed.MatchedBy)
	assert.Equal(t, "base_info", *absorbed.MatchedBy)

	// Оригинал выжившей квартиры роль сохраняет
	assert.True(t, posts.posts[origA.ID].IsOriginalPost)

	require.NotNil(t, post.FlatID)
	assert.Equal(t, flatA.ID, *post.FlatID)
}

func TestFindMatchesRejectsMatchedPost(t *testing.T) {
	posts := newFakePostStorage()
	flats := newFakeFlatStorage()
	engine := newTestEngine(posts, flats)

	post := newPost("https://example.com/x", 400000)
	seedFlat(t, posts, flats, post, time.Now().UTC())

	_, err := engine.FindMatches(context.Background(), post, false)
	require.ErrorIs(t, err, domain.ErrPostAlreadyMatched)
}

func TestFindMatchesRematchRequiresFlat(t *testing.T) {
	posts := newFakePostStorage()
	flats := newFakeFlatStorage()
	engine := newTestEngine(posts, flats)

	post := newPost("https://example.com/x", 400000)
	require.NoError(t, posts.SavePost(context.Background(), post))

	_, err := engine.FindMatches(context.Background(), post, true)
	require.ErrorIs(t, err, domain.ErrPostNotMatched)
}

func TestCandidateWithoutFlatAborts(t *testing.T) {
	posts := newFakePostStorage()
	flats := newFakeFlatStorage()
	engine := newTestEngine(posts, flats)

	// Оригинал без квартиры: инвариант хранилища сломан
	broken := newPost("https://example.com/broken", 400000)
	broken.IsOriginalPost = true
	require.NoError(t, posts.SavePost(context.Background(), broken))

	post := newPost("https://example.com/y", 410000)
	require.NoError(t, posts.SavePost(context.Background(), post))

	_, err := engine.ResolvePost(context.Background(), post, false)
	require.ErrorIs(t, err, domain.ErrCandidateWithoutFlat)
}

func TestRematchNoMatchKeepsFlat(t *testing.T) {
	posts := newFakePostStorage()
	flats := newFakeFlatStorage()
	engine := newTestEngine(posts, flats)

	post := newPost("https://example.com/solo", 400000)
	flat := seedFlat(t, posts, flats, post, time.Now().UTC())

	outcome, err := engine.ResolvePost(context.Background(), post, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAttached, outcome)
	require.NotNil(t, post.FlatID)
	assert.Equal(t, flat.ID, *post.FlatID)
	assert.Contains(t, flats.flats, flat.ID)
}

func TestRematchSingleMatchMerges(t *testing.T) {
	posts := newFakePostStorage()
	flats := newFakeFlatStorage()
	engine := newTestEngine(posts, flats)

	older := time.Now().UTC().Add(-24 * time.Hour)

	origA := newPost("https://example.com/re", 400000)
	flatA := seedFlat(t, posts, flats, origA, older)

	post := newPost("https://example.com/re", 390000)
	flatB := seedFlat(t, posts, flats, post, time.Now().UTC())

	outcome, err := engine.ResolvePost(context.Background(), post, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMerged, outcome)

	assert.Contains(t, flats.flats, flatA.ID)
	assert.NotContains(t, flats.flats, flatB.ID)
	require.NotNil(t, post.FlatID)
	assert.Equal(t, flatA.ID, *post.FlatID)
	assert.Equal(t, 390000, flats.flats[flatA.ID].MinPrice)
}

func TestCandidateWindowFiltersByPrice(t *testing.T) {
	posts := newFakePostStorage()
	flats := newFakeFlatStorage()
	engine := newTestEngine(posts, flats).WithCandidateWindow(10000, 1.0)

	// Совпадающий URL, но цена далеко за пределами окна
	far := newPost("https://example.com/window", 900000)
	seedFlat(t, posts, flats, far, time.Now().UTC())

	post := newPost("https://example.com/window", 400000)
	require.NoError(t, posts.SavePost(context.Background(), post))

	outcome, err := engine.ResolvePost(context.Background(), post, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome, "candidate outside the price window must be invisible")
}
