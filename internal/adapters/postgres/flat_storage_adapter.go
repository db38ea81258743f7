package postgres_adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresFlatStorageAdapter - реализация FlatStoragePort для PostgreSQL.
type PostgresFlatStorageAdapter struct {
	pool *pgxpool.Pool
}

// NewPostgresFlatStorageAdapter - конструктор.
func NewPostgresFlatStorageAdapter(pool *pgxpool.Pool) (*PostgresFlatStorageAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresFlatStorageAdapter{pool: pool}, nil
}

func (r *PostgresFlatStorageAdapter) CreateFlat(ctx context.Context, flat *domain.Flat) error {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresFlatStorageAdapter",
		"method":    "CreateFlat",
		"flat_id":   flat.ID.String(),
	})

	query := `
		INSERT INTO flats (id, original_post_id, min_price, hearted, starred, rejected, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		flat.ID, flat.OriginalPostID, flat.MinPrice, flat.Hearted, flat.Starred, flat.Rejected, flat.Created)
	if err != nil {
		repoLogger.Error("Failed to create flat", err, nil)
		return fmt.Errorf("failed to create flat: %w", err)
	}
	return nil
}

func (r *PostgresFlatStorageAdapter) GetFlat(ctx context.Context, id uuid.UUID) (*domain.Flat, error) {
	query := `SELECT id, original_post_id, min_price, hearted, starred, rejected, created
		FROM flats WHERE id = $1`

	var flat domain.Flat
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&flat.ID, &flat.OriginalPostID, &flat.MinPrice,
		&flat.Hearted, &flat.Starred, &flat.Rejected, &flat.Created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("flat %s not found", id)
		}
		return nil, fmt.Errorf("failed to get flat: %w", err)
	}
	return &flat, nil
}

func (r *PostgresFlatStorageAdapter) UpdateFlat(ctx context.Context, flat *domain.Flat) error {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresFlatStorageAdapter",
		"method":    "UpdateFlat",
		"flat_id":   flat.ID.String(),
	})

	query := `
		UPDATE flats SET
			min_price = $2, hearted = $3, starred = $4, rejected = $5
		WHERE id = $1`

	cmdTag, err := r.pool.Exec(ctx, query,
		flat.ID, flat.MinPrice, flat.Hearted, flat.Starred, flat.Rejected)
	if err != nil {
		repoLogger.Error("Failed to update flat", err, nil)
		return fmt.Errorf("failed to update flat: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("flat %s not found", flat.ID)
	}
	return nil
}

func (r *PostgresFlatStorageAdapter) DeleteFlat(ctx context.Context, id uuid.UUID) error {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresFlatStorageAdapter",
		"method":    "DeleteFlat",
		"flat_id":   id.String(),
	})

	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM flats WHERE id = $1`, id)
	if err != nil {
		repoLogger.Error("Failed to delete flat", err, nil)
		return fmt.Errorf("failed to delete flat: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		repoLogger.Warn("Attempted to delete a flat that did not exist.", nil)
	}
	return nil
}

func (r *PostgresFlatStorageAdapter) DeleteAllFlats(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM flats`); err != nil {
		return fmt.Errorf("failed to delete all flats: %w", err)
	}
	return nil
}

// ListFlats возвращает страницу квартир с данными оригинального поста.
func (r *PostgresFlatStorageAdapter) ListFlats(ctx context.Context, filters domain.FlatFilters, limit, offset int) ([]*domain.FlatListItem, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresFlatStorageAdapter",
		"method":    "ListFlats",
	})

	var conditions []string
	var args []any

	addArg := func(cond string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filters.MinPrice != nil {
		addArg("f.min_price >= $%d", *filters.MinPrice)
	}
	if filters.MaxPrice != nil {
		addArg("f.min_price <= $%d", *filters.MaxPrice)
	}
	if filters.District != nil {
		addArg("p.district = $%d", *filters.District)
	}
	if filters.Rated != nil {
		if *filters.Rated {
			conditions = append(conditions, "(f.hearted OR f.starred OR f.rejected)")
		} else {
			conditions = append(conditions, "NOT (f.hearted OR f.starred OR f.rejected)")
		}
	}
	if filters.ExcludeRejected {
		conditions = append(conditions, "NOT f.rejected")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT f.id, f.original_post_id, f.min_price, f.hearted, f.starred, f.rejected, f.created,
			p.heading, p.url, p.size_m2, p.district,
			(SELECT COUNT(*) FROM posts pc WHERE pc.flat_id = f.id) AS posts_count,
			(SELECT MAX(pl.posted_at) FROM posts pl WHERE pl.flat_id = f.id) AS last_posted_at
		FROM flats f
		JOIN posts p ON p.id = f.original_post_id
		%s
		ORDER BY last_posted_at DESC NULLS LAST, f.created DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		repoLogger.Error("Failed to query flats", err, port.Fields{"query": query})
		return nil, fmt.Errorf("failed to query flats: %w", err)
	}
	defer rows.Close()

	items := make([]*domain.FlatListItem, 0, limit)
	for rows.Next() {
		var item domain.FlatListItem
		err := rows.Scan(
			&item.Flat.ID, &item.Flat.OriginalPostID, &item.Flat.MinPrice,
			&item.Flat.Hearted, &item.Flat.Starred, &item.Flat.Rejected, &item.Flat.Created,
			&item.Heading, &item.URL, &item.SizeM2, &item.District,
			&item.PostsCount, &item.LastPostedAt)
		if err != nil {
			repoLogger.Error("Failed to scan flat row", err, nil)
			return nil, fmt.Errorf("failed to scan flat: %w", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during flats iteration: %w", err)
	}
	return items, nil
}

// CREATE TABLE flats (
// 	id UUID PRIMARY KEY,
// 	original_post_id UUID NOT NULL,
// 	min_price INTEGER NOT NULL,
// 	hearted BOOLEAN NOT NULL DEFAULT FALSE,
// 	starred BOOLEAN NOT NULL DEFAULT FALSE,
// 	rejected BOOLEAN NOT NULL DEFAULT FALSE,
// 	created TIMESTAMPTZ NOT NULL DEFAULT now()
// );
