package usecases_port

import (
	"context"

	"flat-crawler-service/internal/core/domain"

	"github.com/google/uuid"
)

// FindFlatsPort — выборка квартир для browsing UI
type FindFlatsPort interface {
	Execute(ctx context.Context, filters domain.FlatFilters, limit, offset int) ([]*domain.FlatListItem, error)
}

// RateFlatPort — пользовательская оценка квартиры
type RateFlatPort interface {
	Execute(ctx context.Context, flatID uuid.UUID, kind domain.RatingKind, ticked bool) error
}

// FindLocationsPort — выборка записей газетира по району
type FindLocationsPort interface {
	Execute(ctx context.Context, district string) ([]*domain.Location, error)
}
