package port

import (
	"context"

	"flat-crawler-service/internal/core/domain"
)

// ListingPage — результат обхода одной страницы выдачи источника.
// Посты частично заполнены (поля списочной страницы), без деталей.
type ListingPage struct {
	Posts   []*domain.Post
	HasNext bool
}

// PostFetcherPort — внешний коллаборатор-скрейпер. Ядро никогда не
// разбирает HTML само: вся хрупкая site-specific логика за этим портом.
type PostFetcherPort interface {
	Source() domain.Source

	// FetchListingPage загружает одну страницу выдачи (нумерация с 1).
	FetchListingPage(ctx context.Context, query domain.CrawlQuery, page int) (*ListingPage, error)

	// FetchDetails дозагружает страницу деталей: полное описание,
	// полноразмерные фотографии. Ошибка не фатальна для поста.
	FetchDetails(ctx context.Context, post *domain.Post) error
}
