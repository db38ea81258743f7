package postgres_adapter

import (
	"context"
	"fmt"

	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mmcloughlin/geohash"
)

const geohashPrecision = 7

// PostgresLocationLookupAdapter - реализация LocationLookupPort для PostgreSQL.
// Газетир заполняется офлайн, сервис его только читает.
type PostgresLocationLookupAdapter struct {
	pool *pgxpool.Pool
}

// NewPostgresLocationLookupAdapter - конструктор.
func NewPostgresLocationLookupAdapter(pool *pgxpool.Pool) (*PostgresLocationLookupAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresLocationLookupAdapter{pool: pool}, nil
}

// LocationsForDistrict возвращает записи газетира, упоминающие район.
// Для записей с координатами, но без geohash, хэш досчитывается на лету.
func (r *PostgresLocationLookupAdapter) LocationsForDistrict(ctx context.Context, district string) ([]*domain.Location, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresLocationLookupAdapter",
		"method":    "LocationsForDistrict",
		"district":  district,
	})

	query := `
		SELECT id, city, full_name, short_name, districts, lat, lng, geohash
		FROM locations
		WHERE districts ILIKE '%' || $1 || '%'`

	rows, err := r.pool.Query(ctx, query, district)
	if err != nil {
		repoLogger.Error("Failed to query locations", err, nil)
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []*domain.Location
	for rows.Next() {
		var loc domain.Location
		err := rows.Scan(&loc.ID, &loc.City, &loc.FullName, &loc.ShortName,
			&loc.Districts, &loc.Lat, &loc.Lng, &loc.Geohash)
		if err != nil {
			repoLogger.Error("Failed to scan location row", err, nil)
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		if loc.Geohash == nil && loc.Lat != nil && loc.Lng != nil {
			gh := geohash.EncodeWithPrecision(*loc.Lat, *loc.Lng, geohashPrecision)
			loc.Geohash = &gh
		}
		locations = append(locations, &loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during locations iteration: %w", err)
	}
	return locations, nil
}

// CREATE TABLE locations (
// 	id BIGSERIAL PRIMARY KEY,
// 	city TEXT,
// 	full_name TEXT,
// 	short_name TEXT,
// 	districts TEXT,
// 	lat DOUBLE PRECISION,
// 	lng DOUBLE PRECISION,
// 	geohash TEXT
// );
