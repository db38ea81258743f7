package usecase

import (
	"context"
	"fmt"

	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/port"
)

type ResetMatchingUseCase struct {
	posts        port.PostStoragePort
	flats        port.FlatStoragePort
	imageMatches port.ImageMatchStoragePort
}

func NewResetMatchingUseCase(posts port.PostStoragePort,
	flats port.FlatStoragePort,
	imageMatches port.ImageMatchStoragePort) *ResetMatchingUseCase {
	return &ResetMatchingUseCase{
		posts:        posts,
		flats:        flats,
		imageMatches: imageMatches,
	}
}

// Execute — административный сброс: удаляет кэш вердиктов, все квартиры
// и отвязывает посты. Сами посты и их фотографии остаются.
func (uc *ResetMatchingUseCase) Execute(ctx context.Context) error {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{"use_case": "ResetMatching"})

	ucLogger.Warn("Resetting all matching state", nil)

	if err := uc.imageMatches.DeleteAllImageMatches(ctx); err != nil {
		ucLogger.Error("Could not delete image matches", err, nil)
		return fmt.Errorf("deleting image matches: %w", err)
	}
	if err := uc.flats.DeleteAllFlats(ctx); err != nil {
		ucLogger.Error("Could not delete flats", err, nil)
		return fmt.Errorf("deleting flats: %w", err)
	}
	if err := uc.posts.ClearMatchState(ctx); err != nil {
		ucLogger.Error("Could not clear post match state", err, nil)
		return fmt.Errorf("clearing post match state: %w", err)
	}

	ucLogger.Info("Matching state reset complete", nil)
	return nil
}
