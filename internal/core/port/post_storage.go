package port

import (
	"context"
	"time"

	"flat-crawler-service/internal/core/domain"

	"github.com/google/uuid"
)

// CandidateWindow — грубый дешевый префильтр кандидатов перед дорогими матчерами.
type CandidateWindow struct {
	SizeM2        float64
	SizeTolerance float64
	MinPrice      int
	MaxPrice      int
}

// PostStoragePort — хранилище постов
type PostStoragePort interface {
	SavePost(ctx context.Context, post *domain.Post) error

	// UpdateMatchState пишет только поля, которые мутирует матчер:
	// flat_id, is_original_post, matched_by, is_broken, exception_str.
	UpdateMatchState(ctx context.Context, post *domain.Post) error

	GetPostByID(ctx context.Context, id uuid.UUID) (*domain.Post, error)
	GetPostsByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Post, error)

	// GetUnmatchedPosts возвращает посты без квартиры.
	// includeBroken=false отбрасывает посты с is_broken=true.
	GetUnmatchedPosts(ctx context.Context, includeBroken bool) ([]*domain.Post, error)

	GetPostsByFlat(ctx context.Context, flatID uuid.UUID) ([]*domain.Post, error)

	// GetOriginalCandidates возвращает оригинальные посты (is_original_post=true)
	// в окне по площади и цене.
	GetOriginalCandidates(ctx context.Context, window CandidateWindow) ([]*domain.Post, error)

	// GetKnownHashes возвращает content-хэши всех постов источника —
	// для подавления точных дублей в рамках одного источника.
	GetKnownHashes(ctx context.Context, source domain.Source) (map[string]struct{}, error)

	// ClearMatchState сбрасывает flat_id/is_original_post/matched_by/is_broken
	// у всех постов (административный reset).
	ClearMatchState(ctx context.Context) error
}

// FlatStoragePort — хранилище квартир
type FlatStoragePort interface {
	CreateFlat(ctx context.Context, flat *domain.Flat) error
	GetFlat(ctx context.Context, id uuid.UUID) (*domain.Flat, error)
	UpdateFlat(ctx context.Context, flat *domain.Flat) error
	DeleteFlat(ctx context.Context, id uuid.UUID) error
	DeleteAllFlats(ctx context.Context) error

	ListFlats(ctx context.Context, filters domain.FlatFilters, limit, offset int) ([]*domain.FlatListItem, error)
}

// ImageMatchStoragePort — идемпотентный кэш вердиктов сравнения пар изображений
type ImageMatchStoragePort interface {
	// FindByPair ищет записи для канонически упорядоченной пары.
	// Больше одной записи — нарушение инварианта, решает вызывающий.
	FindByPair(ctx context.Context, post1 uuid.UUID, pos1 *int, post2 uuid.UUID, pos2 *int) ([]*domain.ImageMatch, error)

	SaveImageMatch(ctx context.Context, match *domain.ImageMatch) error

	DeleteAllImageMatches(ctx context.Context) error
}

// CrawlLogPort — учет полностью обойденных календарных дат на пару (source, crawl id)
type CrawlLogPort interface {
	// ListCrawledDays возвращает отмеченные даты начиная с since (включительно).
	// Даты нормализованы к полуночи UTC.
	ListCrawledDays(ctx context.Context, source domain.Source, crawlID string, since time.Time) (map[time.Time]struct{}, error)

	// MarkDayCrawled отмечает дату как полностью обойденную.
	// Повторная отметка — no-op, не ошибка.
	MarkDayCrawled(ctx context.Context, source domain.Source, crawlID string, day time.Time) error
}

// LocationLookupPort — газетир, опциональное обогащение. Ядро никогда
// не требует его данных.
type LocationLookupPort interface {
	LocationsForDistrict(ctx context.Context, district string) ([]*domain.Location, error)
}
