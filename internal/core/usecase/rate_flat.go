package usecase

import (
	"context"
	"fmt"

	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"

	"github.com/google/uuid"
)

type RateFlatUseCase struct {
	flats port.FlatStoragePort
}

func NewRateFlatUseCase(flats port.FlatStoragePort) *RateFlatUseCase {
	return &RateFlatUseCase{flats: flats}
}

// Execute выставляет или снимает пользовательскую оценку квартиры.
func (uc *RateFlatUseCase) Execute(ctx context.Context, flatID uuid.UUID, kind domain.RatingKind, ticked bool) error {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case": "RateFlat",
		"flat_id":  flatID.String(),
	})

	flat, err := uc.flats.GetFlat(ctx, flatID)
	if err != nil {
		ucLogger.Error("Could not load flat", err, nil)
		return fmt.Errorf("loading flat: %w", err)
	}

	if !flat.ApplyRating(kind, ticked) {
		return fmt.Errorf("unknown rating kind %q", kind)
	}

	if err := uc.flats.UpdateFlat(ctx, flat); err != nil {
		ucLogger.Error("Could not save rating", err, nil)
		return fmt.Errorf("saving rating: %w", err)
	}

	ucLogger.Info("Flat rated", port.Fields{"kind": string(kind), "ticked": ticked})
	return nil
}
