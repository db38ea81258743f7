package usecases_port

import (
	"context"

	"flat-crawler-service/internal/core/domain"

	"github.com/google/uuid"
)

// CrawlSourcePort — обход одного источника по одной параметризации запроса
type CrawlSourcePort interface {
	Execute(ctx context.Context, query domain.CrawlQuery, taskID uuid.UUID) (*domain.CrawlReport, error)
}

// CrawlAllPort — обход всех сконфигурированных запросов подряд
type CrawlAllPort interface {
	Execute(ctx context.Context, taskID uuid.UUID) ([]*domain.CrawlReport, error)
}
