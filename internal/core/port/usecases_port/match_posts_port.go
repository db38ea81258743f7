package usecases_port

import (
	"context"

	"flat-crawler-service/internal/core/domain"

	"github.com/google/uuid"
)

// MatchPostsPort — прогон матчинга по всем непривязанным постам
type MatchPostsPort interface {
	Execute(ctx context.Context, taskID uuid.UUID) (*domain.MatchSummary, error)
}

// RematchPostsPort — повторный матчинг уже привязанных постов
// (после корректировки данных выше по конвейеру)
type RematchPostsPort interface {
	Execute(ctx context.Context, taskID uuid.UUID, postIDs []uuid.UUID) (*domain.MatchSummary, error)
}

// ResetMatchingPort — административный сброс всего состояния матчинга
type ResetMatchingPort interface {
	Execute(ctx context.Context) error
}
