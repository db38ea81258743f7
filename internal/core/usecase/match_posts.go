package usecase

import (
	"context"
	"errors"
	"fmt"

	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/imagematch"
	"flat-crawler-service/internal/core/matching"
	"flat-crawler-service/internal/core/port"

	"github.com/google/uuid"
)

type MatchPostsUseCase struct {
	posts        port.PostStoragePort
	flats        port.FlatStoragePort
	imageMatches port.ImageMatchStoragePort
	imageLoader  port.PostImageLoaderPort
	reporter     port.TaskReporterPort
	policy       matching.Policy

	priceBand     int
	sizeTolerance float64
}

func NewMatchPostsUseCase(posts port.PostStoragePort,
	flats port.FlatStoragePort,
	imageMatches port.ImageMatchStoragePort,
	imageLoader port.PostImageLoaderPort,
	reporter port.TaskReporterPort,
	policy matching.Policy) *MatchPostsUseCase {
	return &MatchPostsUseCase{
		posts:         posts,
		flats:         flats,
		imageMatches:  imageMatches,
		imageLoader:   imageLoader,
		reporter:      reporter,
		policy:        policy,
		priceBand:     matching.DefaultPriceBand,
		sizeTolerance: matching.DefaultSizeTolerance,
	}
}

// WithCandidateWindow переопределяет окно отбора кандидатов.
func (uc *MatchPostsUseCase) WithCandidateWindow(priceBand int, sizeTolerance float64) *MatchPostsUseCase {
	uc.priceBand = priceBand
	uc.sizeTolerance = sizeTolerance
	return uc
}

// Execute прогоняет матчинг по всем непривязанным постам.
// Ошибка одного поста помечает его сломанным и не валит прогон.
// Нарушения структурных инвариантов, наоборот, останавливают все.
func (uc *MatchPostsUseCase) Execute(ctx context.Context, taskID uuid.UUID) (*domain.MatchSummary, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case": "MatchPosts",
		"task_id":  taskID.String(),
	})

	// Движок живет один прогон: кэш сигнатур изображений не переживает Execute
	engine := uc.buildEngine(ucLogger)

	posts, err := uc.posts.GetUnmatchedPosts(ctx, false)
	if err != nil {
		ucLogger.Error("Could not load unmatched posts", err, nil)
		return nil, fmt.Errorf("loading unmatched posts: %w", err)
	}
	ucLogger.Info("Starting matching run", port.Fields{"posts": len(posts)})

	summary := &domain.MatchSummary{}
	for _, post := range posts {
		summary.Processed++

		outcome, err := engine.ResolvePost(ctx, post, false)
		if err != nil {
			if isInvariantViolation(err) {
				ucLogger.Error("Matching invariant violated, aborting run", err, port.Fields{
					"post_id": post.ID.String(),
				})
				return nil, err
			}
			uc.markBroken(ctx, ucLogger, post, err)
			summary.Broken++
			summary.FailedPostIDs = append(summary.FailedPostIDs, post.ID)
			continue
		}

		switch outcome {
		case matching.OutcomeCreated:
			summary.Created++
		case matching.OutcomeAttached:
			summary.Attached++
		case matching.OutcomeMerged:
			summary.Merged++
		}
	}

	ucLogger.Info("Matching run finished", port.Fields{
		"processed": summary.Processed,
		"created":   summary.Created,
		"attached":  summary.Attached,
		"merged":    summary.Merged,
		"broken":    summary.Broken,
	})

	if taskID != uuid.Nil {
		if err := uc.reporter.ReportMatchSummary(ctx, taskID, summary); err != nil {
			ucLogger.Error("Failed to report match summary", err, nil)
		}
	}
	return summary, nil
}

func (uc *MatchPostsUseCase) buildEngine(logger port.LoggerPort) *matching.Engine {
	imgEngine := imagematch.NewEngine(uc.imageMatches, logger)
	matchers := []matching.Matcher{
		matching.NewBaseInfoMatcher(),
		matching.NewImageMatcher(imgEngine, uc.imageLoader, uc.policy, logger),
	}
	return matching.NewEngine(matchers, uc.posts, uc.flats, logger).
		WithCandidateWindow(uc.priceBand, uc.sizeTolerance)
}

func (uc *MatchPostsUseCase) markBroken(ctx context.Context, logger port.LoggerPort, post *domain.Post, cause error) {
	logger.Warn("Post failed to match, marking broken", port.Fields{
		"post_id": post.ID.String(),
		"error":   cause.Error(),
	})

	excStr := cause.Error()
	post.IsBroken = true
	post.ExceptionStr = &excStr
	if err := uc.posts.UpdateMatchState(ctx, post); err != nil {
		logger.Error("Could not mark post broken", err, port.Fields{"post_id": post.ID.String()})
	}
}

// isInvariantViolation отличает баги целостности данных от сбоев одного поста
func isInvariantViolation(err error) bool {
	return errors.Is(err, domain.ErrPostAlreadyMatched) ||
		errors.Is(err, domain.ErrPostNotMatched) ||
		errors.Is(err, domain.ErrCandidateWithoutFlat) ||
		errors.Is(err, domain.ErrDuplicateImageMatch)
}
