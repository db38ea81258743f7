package usecase

import (
	"context"
	"fmt"
	"strings"

	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"
)

type FindLocationsUseCase struct {
	locations port.LocationLookupPort
}

func NewFindLocationsUseCase(locations port.LocationLookupPort) *FindLocationsUseCase {
	return &FindLocationsUseCase{locations: locations}
}

// Execute возвращает записи газетира по названию района, для карты в UI.
func (uc *FindLocationsUseCase) Execute(ctx context.Context, district string) ([]*domain.Location, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{"use_case": "FindLocations"})

	district = strings.TrimSpace(district)
	if district == "" {
		return nil, fmt.Errorf("district must not be empty")
	}

	locations, err := uc.locations.LocationsForDistrict(ctx, district)
	if err != nil {
		ucLogger.Error("Could not look up locations", err, port.Fields{"district": district})
		return nil, fmt.Errorf("looking up locations for %q: %w", district, err)
	}
	return locations, nil
}
