package matching

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"

	"github.com/google/uuid"
)

// ResultKind — исход поиска совпадений для одного поста
type ResultKind int

const (
	NoMatch ResultKind = iota
	SingleMatch
	MultiMatch
)

// Result — решение каскада матчеров по одному посту.
type Result struct {
	Kind      ResultKind
	Matches   []*domain.Post
	MatchedBy string
}

// Outcome — примененное действие над постом
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeAttached
	OutcomeMerged
)

// DefaultPriceBand — окно цены вокруг поста при отборе кандидатов
const DefaultPriceBand = 100000

// DefaultSizeTolerance — допуск по площади при отборе кандидатов, м2
const DefaultSizeTolerance = 1.0

// Engine гоняет каскад матчеров по непривязанным постам и применяет
// решение: новая квартира, привязка к существующей или слияние нескольких.
type Engine struct {
	matchers []Matcher
	posts    port.PostStoragePort
	flats    port.FlatStoragePort
	logger   port.LoggerPort

	priceBand     int
	sizeTolerance float64
}

// NewEngine собирает движок. Порядок матчеров значим: каскад останавливается
// на первом матчере, нашедшем хотя бы одно совпадение.
func NewEngine(matchers []Matcher, posts port.PostStoragePort, flats port.FlatStoragePort, logger port.LoggerPort) *Engine {
	return &Engine{
		matchers:      matchers,
		posts:         posts,
		flats:         flats,
		logger:        logger.WithFields(port.Fields{"component": "MatchingEngine"}),
		priceBand:     DefaultPriceBand,
		sizeTolerance: DefaultSizeTolerance,
	}
}

// WithCandidateWindow переопределяет параметры окна отбора кандидатов.
func (e *Engine) WithCandidateWindow(priceBand int, sizeTolerance float64) *Engine {
	e.priceBand = priceBand
	e.sizeTolerance = sizeTolerance
	return e
}

// FindMatches прогоняет каскад по кандидатам-оригиналам из окна поста.
// rematch=false требует пост без квартиры, rematch=true — с квартирой.
func (e *Engine) FindMatches(ctx context.Context, post *domain.Post, rematch bool) (Result, error) {
	if !rematch && post.FlatID != nil {
		return Result{}, fmt.Errorf("%w: %s", domain.ErrPostAlreadyMatched, post.ID)
	}
	if rematch && post.FlatID == nil {
		return Result{}, fmt.Errorf("%w: %s", domain.ErrPostNotMatched, post.ID)
	}

	candidates, err := e.selectCandidates(ctx, post, rematch)
	if err != nil {
		return Result{}, err
	}

	for _, matcher := range e.matchers {
		matches, err := matcher.FindMatches(ctx, post, candidates)
		if err != nil {
			return Result{}, fmt.Errorf("matcher %s: %w", matcher.Type(), err)
		}
		if len(matches) == 0 {
			continue
		}
		kind := SingleMatch
		if len(matches) > 1 {
			kind = MultiMatch
		}
		return Result{Kind: kind, Matches: matches, MatchedBy: matcher.Type()}, nil
	}
	return Result{Kind: NoMatch}, nil
}

func (e *Engine) selectCandidates(ctx context.Context, post *domain.Post, rematch bool) ([]*domain.Post, error) {
	window := port.CandidateWindow{
		SizeTolerance: e.sizeTolerance,
		MinPrice:      post.Price - e.priceBand,
		MaxPrice:      post.Price + e.priceBand,
	}
	if post.SizeM2 != nil {
		window.SizeM2 = *post.SizeM2
	}
	if window.MinPrice < 0 {
		window.MinPrice = 0
	}

	raw, err := e.posts.GetOriginalCandidates(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("selecting candidates: %w", err)
	}

	candidates := make([]*domain.Post, 0, len(raw))
	for _, cand := range raw {
		if cand.ID == post.ID {
			continue
		}
		if cand.FlatID == nil {
			// Оригинал без квартиры — сломанный инвариант хранилища
			return nil, fmt.Errorf("%w: %s", domain.ErrCandidateWithoutFlat, cand.ID)
		}
		// При rematch посты своей же квартиры не кандидаты
		if rematch && post.FlatID != nil && *cand.FlatID == *post.FlatID {
			continue
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// ResolvePost находит совпадения и применяет решение.
func (e *Engine) ResolvePost(ctx context.Context, post *domain.Post, rematch bool) (Outcome, error) {
	result, err := e.FindMatches(ctx, post, rematch)
	if err != nil {
		return 0, err
	}

	switch result.Kind {
	case NoMatch:
		if rematch {
			// Квартира уже есть и новых совпадений нет: оставляем как есть
			return OutcomeAttached, nil
		}
		if err := e.CreateFlatFromPost(ctx, post); err != nil {
			return 0, err
		}
		return OutcomeCreated, nil

	case SingleMatch:
		if rematch {
			// При rematch даже одно совпадение означает слияние квартир
			if err := e.MergeMatches(ctx, post, result.Matches, result.MatchedBy, rematch); err != nil {
				return 0, err
			}
			return OutcomeMerged, nil
		}
		if err := e.AttachPostToFlat(ctx, post, result.Matches[0], result.MatchedBy); err != nil {
			return 0, err
		}
		return OutcomeAttached, nil

	default:
		if err := e.MergeMatches(ctx, post, result.Matches, result.MatchedBy, rematch); err != nil {
			return 0, err
		}
		return OutcomeMerged, nil
	}
}

// CreateFlatFromPost заводит новую квартиру с постом в роли оригинала.
func (e *Engine) CreateFlatFromPost(ctx context.Context, post *domain.Post) error {
	flat := &domain.Flat{
		ID:             uuid.New(),
		OriginalPostID: post.ID,
		MinPrice:       post.Price,
		Created:        time.Now().UTC(),
	}
	if err := e.flats.CreateFlat(ctx, flat); err != nil {
		return fmt.Errorf("creating flat: %w", err)
	}

	matchedBy := domain.MatchedByOriginalPost
	post.FlatID = &flat.ID
	post.IsOriginalPost = true
	post.MatchedBy = &matchedBy
	if err := e.posts.UpdateMatchState(ctx, post); err != nil {
		return fmt.Errorf("marking original post: %w", err)
	}

	e.logger.Info("Created flat from post", port.Fields{
		"flat_id": flat.ID.String(),
		"post_id": post.ID.String(),
	})
	return nil
}

// AttachPostToFlat привязывает пост к квартире совпавшего оригинала
// и опускает минимальную цену квартиры при необходимости.
func (e *Engine) AttachPostToFlat(ctx context.Context, post, match *domain.Post, matchedBy string) error {
	flat, err := e.flats.GetFlat(ctx, *match.FlatID)
	if err != nil {
		return fmt.Errorf("loading matched flat: %w", err)
	}

	flat.LowerMinPrice(post.Price)
	if err := e.flats.UpdateFlat(ctx, flat); err != nil {
		return fmt.Errorf("updating flat price: %w", err)
	}

	post.FlatID = &flat.ID
	post.IsOriginalPost = false
	post.MatchedBy = &matchedBy
	if err := e.posts.UpdateMatchState(ctx, post); err != nil {
		return fmt.Errorf("attaching post: %w", err)
	}

	e.logger.Info("Attached post to flat", port.Fields{
		"flat_id":    flat.ID.String(),
		"post_id":    post.ID.String(),
		"matched_by": matchedBy,
	})
	return nil
}

// MergeMatches сливает квартиры всех совпавших постов в одну.
// Выживает квартира с самой ранней датой создания, остальные поглощаются:
// их посты перепривязываются, оценки комбинируются, минимальная цена
// берется по всем, поглощенные квартиры удаляются.
func (e *Engine) MergeMatches(ctx context.Context, post *domain.Post, matches []*domain.Post, matchedBy string, rematch bool) error {
	flatIDs := make(map[uuid.UUID]struct{})
	for _, match := range matches {
		if match.FlatID == nil {
			return fmt.Errorf("%w: %s", domain.ErrCandidateWithoutFlat, match.ID)
		}
		flatIDs[*match.FlatID] = struct{}{}
	}
	if rematch && post.FlatID != nil {
		flatIDs[*post.FlatID] = struct{}{}
	}

	flats := make([]*domain.Flat, 0, len(flatIDs))
	for id := range flatIDs {
		flat, err := e.flats.GetFlat(ctx, id)
		if err != nil {
			return fmt.Errorf("loading flat %s for merge: %w", id, err)
		}
		flats = append(flats, flat)
	}

	sort.Slice(flats, func(i, j int) bool {
		if !flats[i].Created.Equal(flats[j].Created) {
			return flats[i].Created.Before(flats[j].Created)
		}
		return bytes.Compare(flats[i].ID[:], flats[j].ID[:]) < 0
	})
	primary := flats[0]

	hearted, starred, rejected := domain.CombineRatings(flats)
	primary.Hearted = hearted
	primary.Starred = starred
	primary.Rejected = rejected
	for _, flat := range flats[1:] {
		primary.LowerMinPrice(flat.MinPrice)
	}
	primary.LowerMinPrice(post.Price)

	// Перепривязка постов поглощаемых квартир. Роль оригинала остается
	// только у оригинального поста выжившей квартиры.
	for _, absorbed := range flats[1:] {
		posts, err := e.posts.GetPostsByFlat(ctx, absorbed.ID)
		if err != nil {
			return fmt.Errorf("loading posts of flat %s: %w", absorbed.ID, err)
		}
		for _, p := range posts {
			p.FlatID = &primary.ID
			if p.IsOriginalPost {
				p.IsOriginalPost = false
				mb := matchedBy
				p.MatchedBy = &mb
			}
			if err := e.posts.UpdateMatchState(ctx, p); err != nil {
				return fmt.Errorf("repointing post %s: %w", p.ID, err)
			}
		}
	}

	if err := e.flats.UpdateFlat(ctx, primary); err != nil {
		return fmt.Errorf("updating merged flat: %w", err)
	}
	for _, absorbed := range flats[1:] {
		if err := e.flats.DeleteFlat(ctx, absorbed.ID); err != nil {
			return fmt.Errorf("deleting absorbed flat %s: %w", absorbed.ID, err)
		}
	}

	if post.FlatID == nil || *post.FlatID != primary.ID {
		post.FlatID = &primary.ID
		post.IsOriginalPost = false
		mb := matchedBy
		post.MatchedBy = &mb
		if err := e.posts.UpdateMatchState(ctx, post); err != nil {
			return fmt.Errorf("attaching post after merge: %w", err)
		}
	}

	e.logger.Info("Merged flats", port.Fields{
		"primary_flat_id": primary.ID.String(),
		"merged_count":    len(flats),
		"post_id":         post.ID.String(),
		"matched_by":      matchedBy,
	})
	return nil
}
