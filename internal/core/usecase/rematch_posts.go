package usecase

import (
	"context"
	"fmt"

	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/imagematch"
	"flat-crawler-service/internal/core/matching"
	"flat-crawler-service/internal/core/port"

	"github.com/google/uuid"
)

type RematchPostsUseCase struct {
	posts        port.PostStoragePort
	flats        port.FlatStoragePort
	imageMatches port.ImageMatchStoragePort
	imageLoader  port.PostImageLoaderPort
	reporter     port.TaskReporterPort
	policy       matching.Policy

	priceBand     int
	sizeTolerance float64
}

func NewRematchPostsUseCase(posts port.PostStoragePort,
	flats port.FlatStoragePort,
	imageMatches port.ImageMatchStoragePort,
	imageLoader port.PostImageLoaderPort,
	reporter port.TaskReporterPort,
	policy matching.Policy) *RematchPostsUseCase {
	return &RematchPostsUseCase{
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
func (uc *RematchPostsUseCase) WithCandidateWindow(priceBand int, sizeTolerance float64) *RematchPostsUseCase {
	uc.priceBand = priceBand
	uc.sizeTolerance = sizeTolerance
	return uc
}

// Execute повторно матчит уже привязанные посты после корректировки данных.
// Любое найденное совпадение означает слияние квартир: пост уже имеет свою.
func (uc *RematchPostsUseCase) Execute(ctx context.Context, taskID uuid.UUID, postIDs []uuid.UUID) (*domain.MatchSummary, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case": "RematchPosts",
		"task_id":  taskID.String(),
	})

	imgEngine := imagematch.NewEngine(uc.imageMatches, ucLogger)
	matchers := []matching.Matcher{
		matching.NewBaseInfoMatcher(),
		matching.NewImageMatcher(imgEngine, uc.imageLoader, uc.policy, ucLogger),
	}
	engine := matching.NewEngine(matchers, uc.posts, uc.flats, ucLogger).
		WithCandidateWindow(uc.priceBand, uc.sizeTolerance)

	posts, err := uc.posts.GetPostsByIDs(ctx, postIDs)
	if err != nil {
		ucLogger.Error("Could not load posts for rematch", err, nil)
		return nil, fmt.Errorf("loading posts for rematch: %w", err)
	}
	ucLogger.Info("Starting rematch run", port.Fields{"posts": len(posts)})

	summary := &domain.MatchSummary{}
	for _, post := range posts {
		summary.Processed++

		outcome, err := engine.ResolvePost(ctx, post, true)
		if err != nil {
			if isInvariantViolation(err) {
				ucLogger.Error("Rematch invariant violated, aborting run", err, port.Fields{
					"post_id": post.ID.String(),
				})
				return nil, err
			}
			ucLogger.Warn("Post failed to rematch", port.Fields{
				"post_id": post.ID.String(),
				"error":   err.Error(),
			})
			summary.Broken++
			summary.FailedPostIDs = append(summary.FailedPostIDs, post.ID)
			continue
		}
		if outcome == matching.OutcomeMerged {
			summary.Merged++
		}
	}

	ucLogger.Info("Rematch run finished", port.Fields{
		"processed": summary.Processed,
		"merged":    summary.Merged,
		"broken":    summary.Broken,
	})

	if taskID != uuid.Nil {
		if err := uc.reporter.ReportMatchSummary(ctx, taskID, summary); err != nil {
			ucLogger.Error("Failed to report rematch summary", err, nil)
		}
	}
	return summary, nil
}
