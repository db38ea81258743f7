package usecase

import (
	"context"
	"fmt"

	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"
)

type FindFlatsUseCase struct {
	flats port.FlatStoragePort
}

func NewFindFlatsUseCase(flats port.FlatStoragePort) *FindFlatsUseCase {
	return &FindFlatsUseCase{flats: flats}
}

// Execute возвращает страницу квартир под фильтрами browsing UI.
func (uc *FindFlatsUseCase) Execute(ctx context.Context, filters domain.FlatFilters, limit, offset int) ([]*domain.FlatListItem, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{"use_case": "FindFlats"})

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	items, err := uc.flats.ListFlats(ctx, filters, limit, offset)
	if err != nil {
		ucLogger.Error("Could not list flats", err, nil)
		return nil, fmt.Errorf("listing flats: %w", err)
	}
	return items, nil
}
