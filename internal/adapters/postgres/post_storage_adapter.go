package postgres_adapter

import (
	"context"
	"errors"
	"fmt"

	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postColumns = `id, source, url, heading, description, price, size_m2,
		district, sub_district, street, thumbnail, photos_blob, post_hash,
		posted_at, details_added, is_broken, exception_str,
		flat_id, is_original_post, matched_by, created`

// PostgresPostStorageAdapter - реализация PostStoragePort для PostgreSQL.
type PostgresPostStorageAdapter struct {
	pool *pgxpool.Pool
}

// NewPostgresPostStorageAdapter - конструктор.
func NewPostgresPostStorageAdapter(pool *pgxpool.Pool) (*PostgresPostStorageAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresPostStorageAdapter{pool: pool}, nil
}

// SavePost сохраняет пост. Повторная вставка того же (source, post_hash)
// молча игнорируется: подавление дублей работает и на уровне БД.
func (r *PostgresPostStorageAdapter) SavePost(ctx context.Context, post *domain.Post) error {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresPostStorageAdapter",
		"method":    "SavePost",
		"post_id":   post.ID.String(),
	})

	query := `
		INSERT INTO posts (` + postColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (source, post_hash) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		post.ID, post.Source, post.URL, post.Heading, post.Desc, post.Price, post.SizeM2,
		post.District, post.SubDistrict, post.Street, post.Thumbnail, post.PhotosBlob, post.PostHash,
		post.PostedAt, post.DetailsAdded, post.IsBroken, post.ExceptionStr,
		post.FlatID, post.IsOriginalPost, post.MatchedBy, post.Created)
	if err != nil {
		repoLogger.Error("Failed to save post", err, nil)
		return fmt.Errorf("failed to save post: %w", err)
	}
	return nil
}

// UpdateMatchState пишет только поля, которые мутирует матчер.
func (r *PostgresPostStorageAdapter) UpdateMatchState(ctx context.Context, post *domain.Post) error {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresPostStorageAdapter",
		"method":    "UpdateMatchState",
		"post_id":   post.ID.String(),
	})

	query := `
		UPDATE posts SET
			flat_id = $2,
			is_original_post = $3,
			matched_by = $4,
			is_broken = $5,
			exception_str = $6
		WHERE id = $1`

	cmdTag, err := r.pool.Exec(ctx, query,
		post.ID, post.FlatID, post.IsOriginalPost, post.MatchedBy, post.IsBroken, post.ExceptionStr)
	if err != nil {
		repoLogger.Error("Failed to update post match state", err, nil)
		return fmt.Errorf("failed to update post match state: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("post %s not found", post.ID)
	}
	return nil
}

func (r *PostgresPostStorageAdapter) GetPostByID(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("post %s not found", id)
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

func (r *PostgresPostStorageAdapter) GetPostsByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = ANY($1)`
	return r.queryPosts(ctx, "GetPostsByIDs", query, ids)
}

// GetUnmatchedPosts возвращает посты без квартиры, старые раньше.
func (r *PostgresPostStorageAdapter) GetUnmatchedPosts(ctx context.Context, includeBroken bool) ([]*domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE flat_id IS NULL AND (is_broken = FALSE OR $1) ORDER BY created ASC`
	return r.queryPosts(ctx, "GetUnmatchedPosts", query, includeBroken)
}

func (r *PostgresPostStorageAdapter) GetPostsByFlat(ctx context.Context, flatID uuid.UUID) ([]*domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE flat_id = $1 ORDER BY created ASC`
	return r.queryPosts(ctx, "GetPostsByFlat", query, flatID)
}

// GetOriginalCandidates возвращает оригинальные посты в окне по площади и цене.
// Посты без площади проходят фильтр площади: неизвестное не отсекаем.
func (r *PostgresPostStorageAdapter) GetOriginalCandidates(ctx context.Context, window port.CandidateWindow) ([]*domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE is_original_post = TRUE
		  AND price BETWEEN $1 AND $2
		  AND ($3 = 0 OR size_m2 IS NULL OR size_m2 BETWEEN $3 - $4 AND $3 + $4)
		ORDER BY created ASC`
	return r.queryPosts(ctx, "GetOriginalCandidates", query,
		window.MinPrice, window.MaxPrice, window.SizeM2, window.SizeTolerance)
}

func (r *PostgresPostStorageAdapter) GetKnownHashes(ctx context.Context, source domain.Source) (map[string]struct{}, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresPostStorageAdapter",
		"method":    "GetKnownHashes",
		"source":    string(source),
	})

	query := `SELECT post_hash FROM posts WHERE source = $1`
	rows, err := r.pool.Query(ctx, query, source)
	if err != nil {
		repoLogger.Error("Failed to query post hashes", err, nil)
		return nil, fmt.Errorf("failed to query post hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan post hash: %w", err)
		}
		hashes[h] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during post hash iteration: %w", err)
	}
	return hashes, nil
}

// ClearMatchState отвязывает все посты от квартир (административный reset).
func (r *PostgresPostStorageAdapter) ClearMatchState(ctx context.Context) error {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresPostStorageAdapter",
		"method":    "ClearMatchState",
	})

	query := `UPDATE posts SET
		flat_id = NULL, is_original_post = FALSE, matched_by = NULL,
		is_broken = FALSE, exception_str = NULL`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		repoLogger.Error("Failed to clear match state", err, nil)
		return fmt.Errorf("failed to clear match state: %w", err)
	}
	return nil
}

func (r *PostgresPostStorageAdapter) queryPosts(ctx context.Context, method, query string, args ...any) ([]*domain.Post, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresPostStorageAdapter",
		"method":    method,
	})

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		repoLogger.Error("Failed to query posts", err, port.Fields{"query": query})
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var posts []*domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			repoLogger.Error("Failed to scan post row", err, nil)
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during posts iteration: %w", err)
	}
	return posts, nil
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var post domain.Post
	err := row.Scan(
		&post.ID, &post.Source, &post.URL, &post.Heading, &post.Desc, &post.Price, &post.SizeM2,
		&post.District, &post.SubDistrict, &post.Street, &post.Thumbnail, &post.PhotosBlob, &post.PostHash,
		&post.PostedAt, &post.DetailsAdded, &post.IsBroken, &post.ExceptionStr,
		&post.FlatID, &post.IsOriginalPost, &post.MatchedBy, &post.Created)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// CREATE TABLE posts (
// 	id UUID PRIMARY KEY,
// 	source TEXT NOT NULL,
// 	url TEXT NOT NULL,
// 	heading TEXT NOT NULL DEFAULT '',
// 	description TEXT NOT NULL DEFAULT '',
// 	price INTEGER NOT NULL,
// 	size_m2 DOUBLE PRECISION,
// 	district TEXT,
// 	sub_district TEXT,
// 	street TEXT,
// 	thumbnail BYTEA,
// 	photos_blob BYTEA,
// 	post_hash TEXT NOT NULL,
// 	posted_at TIMESTAMPTZ,
// 	details_added BOOLEAN NOT NULL DEFAULT FALSE,
// 	is_broken BOOLEAN NOT NULL DEFAULT FALSE,
// 	exception_str TEXT,
// 	flat_id UUID REFERENCES flats(id) ON DELETE SET NULL,
// 	is_original_post BOOLEAN NOT NULL DEFAULT FALSE,
// 	matched_by TEXT,
// 	created TIMESTAMPTZ NOT NULL DEFAULT now(),
// 	UNIQUE (source, post_hash)
// );
// CREATE INDEX idx_posts_flat_id ON posts (flat_id);
// CREATE INDEX idx_posts_candidates ON posts (is_original_post, price);
