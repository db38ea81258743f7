package postgres_adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresImageMatchStorageAdapter - реализация ImageMatchStoragePort для PostgreSQL.
type PostgresImageMatchStorageAdapter struct {
	pool *pgxpool.Pool
}

// NewPostgresImageMatchStorageAdapter - конструктор.
func NewPostgresImageMatchStorageAdapter(pool *pgxpool.Pool) (*PostgresImageMatchStorageAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresImageMatchStorageAdapter{pool: pool}, nil
}

// FindByPair ищет записи для канонически упорядоченной пары.
// Позиции сравниваются через IS NOT DISTINCT FROM: NULL (миниатюра) — тоже значение.
func (r *PostgresImageMatchStorageAdapter) FindByPair(ctx context.Context, post1 uuid.UUID, pos1 *int, post2 uuid.UUID, pos2 *int) ([]*domain.ImageMatch, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresImageMatchStorageAdapter",
		"method":    "FindByPair",
	})

	query := `
		SELECT id, post_1_id, img_pos_1, post_2_id, img_pos_2,
			num_confirmed, num_maybe, avg_score, details, created
		FROM image_matches
		WHERE post_1_id = $1 AND img_pos_1 IS NOT DISTINCT FROM $2
		  AND post_2_id = $3 AND img_pos_2 IS NOT DISTINCT FROM $4`

	rows, err := r.pool.Query(ctx, query, post1, pos1, post2, pos2)
	if err != nil {
		repoLogger.Error("Failed to query image matches", err, nil)
		return nil, fmt.Errorf("failed to query image matches: %w", err)
	}
	defer rows.Close()

	var matches []*domain.ImageMatch
	for rows.Next() {
		var m domain.ImageMatch
		var detailsJSON []byte
		err := rows.Scan(&m.ID, &m.Post1ID, &m.ImgPos1, &m.Post2ID, &m.ImgPos2,
			&m.NumConfirmed, &m.NumMaybe, &m.AvgScore, &detailsJSON, &m.Created)
		if err != nil {
			repoLogger.Error("Failed to scan image match row", err, nil)
			return nil, fmt.Errorf("failed to scan image match: %w", err)
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &m.Details); err != nil {
				return nil, fmt.Errorf("failed to decode image match details: %w", err)
			}
		}
		matches = append(matches, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during image matches iteration: %w", err)
	}
	return matches, nil
}

func (r *PostgresImageMatchStorageAdapter) SaveImageMatch(ctx context.Context, match *domain.ImageMatch) error {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresImageMatchStorageAdapter",
		"method":    "SaveImageMatch",
	})

	detailsJSON, err := json.Marshal(match.Details)
	if err != nil {
		return fmt.Errorf("failed to encode image match details: %w", err)
	}

	query := `
		INSERT INTO image_matches (id, post_1_id, img_pos_1, post_2_id, img_pos_2,
			num_confirmed, num_maybe, avg_score, details, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.pool.Exec(ctx, query,
		match.ID, match.Post1ID, match.ImgPos1, match.Post2ID, match.ImgPos2,
		match.NumConfirmed, match.NumMaybe, match.AvgScore, detailsJSON, match.Created)
	if err != nil {
		repoLogger.Error("Failed to save image match", err, nil)
		return fmt.Errorf("failed to save image match: %w", err)
	}
	return nil
}

func (r *PostgresImageMatchStorageAdapter) DeleteAllImageMatches(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM image_matches`); err != nil {
		return fmt.Errorf("failed to delete all image matches: %w", err)
	}
	return nil
}

// CREATE TABLE image_matches (
// 	id UUID PRIMARY KEY,
// 	post_1_id UUID NOT NULL,
// 	img_pos_1 INTEGER,
// 	post_2_id UUID NOT NULL,
// 	img_pos_2 INTEGER,
// 	num_confirmed INTEGER NOT NULL,
// 	num_maybe INTEGER NOT NULL,
// 	avg_score DOUBLE PRECISION NOT NULL,
// 	details JSONB,
// 	created TIMESTAMPTZ NOT NULL DEFAULT now()
// );
// CREATE INDEX idx_image_matches_pair ON image_matches (post_1_id, post_2_id);
