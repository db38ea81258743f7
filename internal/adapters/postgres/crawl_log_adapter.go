package postgres_adapter

import (
	"context"
	"fmt"
	"time"

	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCrawlLogAdapter - реализация CrawlLogPort для PostgreSQL.
type PostgresCrawlLogAdapter struct {
	pool *pgxpool.Pool
}

// NewPostgresCrawlLogAdapter - конструктор.
func NewPostgresCrawlLogAdapter(pool *pgxpool.Pool) (*PostgresCrawlLogAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresCrawlLogAdapter{pool: pool}, nil
}

// ListCrawledDays возвращает отмеченные даты начиная с since, полночь UTC.
func (r *PostgresCrawlLogAdapter) ListCrawledDays(ctx context.Context, source domain.Source, crawlID string, since time.Time) (map[time.Time]struct{}, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresCrawlLogAdapter",
		"method":    "ListCrawledDays",
		"source":    string(source),
		"crawl_id":  crawlID,
	})

	query := `SELECT day FROM crawl_log
		WHERE source = $1 AND crawl_id = $2 AND day >= $3`

	rows, err := r.pool.Query(ctx, query, source, crawlID, since)
	if err != nil {
		repoLogger.Error("Failed to query crawled days", err, nil)
		return nil, fmt.Errorf("failed to query crawled days: %w", err)
	}
	defer rows.Close()

	days := make(map[time.Time]struct{})
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("failed to scan crawled day: %w", err)
		}
		// Нормализация к полуночи UTC независимо от типа колонки
		y, m, d := day.UTC().Date()
		days[time.Date(y, m, d, 0, 0, 0, 0, time.UTC)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during crawled days iteration: %w", err)
	}
	return days, nil
}

// MarkDayCrawled отмечает дату. Повторная отметка — no-op благодаря
// ON CONFLICT DO NOTHING.
func (r *PostgresCrawlLogAdapter) MarkDayCrawled(ctx context.Context, source domain.Source, crawlID string, day time.Time) error {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresCrawlLogAdapter",
		"method":    "MarkDayCrawled",
		"source":    string(source),
		"crawl_id":  crawlID,
	})

	query := `
		INSERT INTO crawl_log (source, crawl_id, day)
		VALUES ($1, $2, $3)
		ON CONFLICT (source, crawl_id, day) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, source, crawlID, day); err != nil {
		repoLogger.Error("Failed to mark day crawled", err, port.Fields{"day": day.Format("2006-01-02")})
		return fmt.Errorf("failed to mark day crawled: %w", err)
	}
	return nil
}

// CREATE TABLE crawl_log (
// 	source TEXT NOT NULL,
// 	crawl_id TEXT NOT NULL,
// 	day DATE NOT NULL,
// 	created TIMESTAMPTZ NOT NULL DEFAULT now(),
// 	PRIMARY KEY (source, crawl_id, day)
// );
