package usecase

import (
	"context"
	"fmt"

	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"
	"flat-crawler-service/internal/core/port/usecases_port"

	"github.com/google/uuid"
)

// CrawlAllUseCase прогоняет все сконфигурированные запросы обхода подряд.
// Ошибка одного запроса не останавливает остальные.
type CrawlAllUseCase struct {
	queries []domain.CrawlQuery
	crawl   usecases_port.CrawlSourcePort
}

func NewCrawlAllUseCase(queries []domain.CrawlQuery, crawl usecases_port.CrawlSourcePort) *CrawlAllUseCase {
	return &CrawlAllUseCase{
		queries: queries,
		crawl:   crawl,
	}
}

func (uc *CrawlAllUseCase) Execute(ctx context.Context, taskID uuid.UUID) ([]*domain.CrawlReport, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case": "CrawlAll",
		"task_id":  taskID.String(),
	})

	if len(uc.queries) == 0 {
		return nil, fmt.Errorf("no crawl queries configured")
	}
	ucLogger.Info("Starting full crawl", port.Fields{"queries": len(uc.queries)})

	var reports []*domain.CrawlReport
	var failed int
	for _, query := range uc.queries {
		report, err := uc.crawl.Execute(ctx, query, taskID)
		if err != nil {
			ucLogger.Error("Crawl query failed, continuing with the rest", err, port.Fields{
				"crawl_id": query.Name,
			})
			failed++
		}
		// Частичный отчет полезен и при ошибке
		if report != nil {
			reports = append(reports, report)
		}
	}

	ucLogger.Info("Full crawl finished", port.Fields{
		"queries": len(uc.queries),
		"failed":  failed,
	})

	if failed == len(uc.queries) {
		return reports, fmt.Errorf("all %d crawl queries failed", failed)
	}
	return reports, nil
}
