package port

import (
	"context"

	"flat-crawler-service/internal/core/domain"

	"github.com/google/uuid"
)

// TaskReporterPort публикует итоги выполнения задач (crawl / matching)
// во внешнюю шину для оркестратора.
type TaskReporterPort interface {
	ReportMatchSummary(ctx context.Context, taskID uuid.UUID, summary *domain.MatchSummary) error
	ReportCrawlResult(ctx context.Context, taskID uuid.UUID, report *domain.CrawlReport) error
}

// EventListenerPort — входящий слушатель событий (очередь задач)
type EventListenerPort interface {
	Start(ctx context.Context) error
	Close() error
}
