package matching

import (
	"context"
	"math"
	"strings"

	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/imagematch"
	"flat-crawler-service/internal/core/port"
)

// Matcher решает, какие из кандидатов описывают ту же квартиру, что и post.
// Матчеры выстраиваются в каскад от дешевых и точных к дорогим и нечетким.
type Matcher interface {
	// Type — метка, записываемая в matched_by совпавшего поста
	Type() string

	FindMatches(ctx context.Context, post *domain.Post, candidates []*domain.Post) ([]*domain.Post, error)
}

// ---------------------------------------------------------------------------

// BaseInfoMatcher ловит точные повторы по текстовым атрибутам: тот же URL,
// то же описание или полное совпадение тройки (площадь, заголовок, район).
type BaseInfoMatcher struct{}

func NewBaseInfoMatcher() *BaseInfoMatcher { return &BaseInfoMatcher{} }

func (m *BaseInfoMatcher) Type() string { return "base_info" }

func (m *BaseInfoMatcher) FindMatches(ctx context.Context, post *domain.Post, candidates []*domain.Post) ([]*domain.Post, error) {
	var matches []*domain.Post
	for _, cand := range candidates {
		if m.sameBaseInfo(post, cand) {
			matches = append(matches, cand)
		}
	}
	return matches, nil
}

func (m *BaseInfoMatcher) sameBaseInfo(a, b *domain.Post) bool {
	if a.URL != "" && a.URL == b.URL {
		return true
	}
	if len(a.Desc) > 0 && a.Desc == b.Desc {
		return true
	}
	// Тройка сравнивается только когда все три поля известны у обоих
	if a.SizeM2 != nil && b.SizeM2 != nil && *a.SizeM2 == *b.SizeM2 &&
		a.Heading != "" && sameText(a.Heading, b.Heading) &&
		a.District != nil && b.District != nil && sameText(*a.District, *b.District) {
		return true
	}
	return false
}

// ---------------------------------------------------------------------------

// ImageMatcher сравнивает фотографии поста с фотографиями кандидатов.
// Решение принимается по градуированным порогам Policy: считаются пары
// изображений с точным, уверенным и слабым сигналом, и пост совпадает,
// если любой из счетчиков достигает своего порога. Текстовая корроборация
// (равная цена, равная площадь при близкой цене, равный заголовок)
// смягчает пороги на RelaxDelta.
type ImageMatcher struct {
	engine *imagematch.Engine
	loader port.PostImageLoaderPort
	policy Policy
	logger port.LoggerPort

	// dry=true не персистит вердикты пар, только считает
	dry bool
}

func NewImageMatcher(engine *imagematch.Engine, loader port.PostImageLoaderPort, policy Policy, logger port.LoggerPort) *ImageMatcher {
	return &ImageMatcher{
		engine: engine,
		loader: loader,
		policy: policy,
		logger: logger.WithFields(port.Fields{"component": "ImageMatcher"}),
	}
}

func (m *ImageMatcher) Type() string { return "image" }

// pairTally — счетчики по всем парам изображений одной пары постов
type pairTally struct {
	exact     int
	confident int
	maybe     int
}

func (m *ImageMatcher) FindMatches(ctx context.Context, post *domain.Post, candidates []*domain.Post) ([]*domain.Post, error) {
	postImages, err := m.loader.LoadPostImages(ctx, post)
	if err != nil {
		return nil, err
	}
	if len(postImages) == 0 {
		return nil, nil
	}

	var matches []*domain.Post
	for _, cand := range candidates {
		tally, err := m.tallyPair(ctx, post, postImages, cand)
		if err != nil {
			return nil, err
		}
		if m.accepts(tally, corroborates(post, cand, m.policy.FuzzyPriceMargin)) {
			matches = append(matches, cand)
		}
	}
	return matches, nil
}

func (m *ImageMatcher) tallyPair(ctx context.Context, post *domain.Post, postImages []port.PostImage, cand *domain.Post) (pairTally, error) {
	candImages, err := m.loader.LoadPostImages(ctx, cand)
	if err != nil {
		return pairTally{}, err
	}

	numComparers := m.engine.NumComparers()
	var tally pairTally
	for _, pi := range postImages {
		for _, ci := range candImages {
			match, err := m.engine.GetImageMatch(ctx,
				imagematch.PostImageRef{PostID: post.ID, Pos: pi.Pos, Img: pi.Img},
				imagematch.PostImageRef{PostID: cand.ID, Pos: ci.Pos, Img: ci.Img},
				m.dry,
			)
			if err != nil {
				return pairTally{}, err
			}
			if match == nil {
				continue
			}
			// Категории кумулятивные: точная пара засчитывается и как
			// уверенная, и как слабая. Для уверенной достаточно одного
			// подтвердившего компаратора.
			switch {
			case match.AllConfirmed(numComparers):
				tally.exact++
				tally.confident++
				tally.maybe++
			case match.NumConfirmed >= 1:
				tally.confident++
				tally.maybe++
			case match.AllMaybeOrBetter(numComparers):
				tally.maybe++
			}
		}
	}
	return tally, nil
}

func (m *ImageMatcher) accepts(t pairTally, corroborated bool) bool {
	exactT := m.policy.ExactThreshold
	confidentT := m.policy.ConfidentThreshold
	maybeT := m.policy.MaybeThreshold
	if corroborated {
		exactT = m.policy.relaxed(exactT)
		confidentT = m.policy.relaxed(confidentT)
		maybeT = m.policy.relaxed(maybeT)
	}
	return t.exact >= exactT || t.confident >= confidentT || t.maybe >= maybeT
}

// corroborates — посты подтверждают друг друга текстом: равная цена,
// равная площадь при близкой цене или равный заголовок.
func corroborates(a, b *domain.Post, fuzzyMargin float64) bool {
	if a.Price > 0 && a.Price == b.Price {
		return true
	}
	if a.SizeM2 != nil && b.SizeM2 != nil && *a.SizeM2 == *b.SizeM2 &&
		fuzzyPriceEqual(a.Price, b.Price, fuzzyMargin) {
		return true
	}
	if a.Heading != "" && sameText(a.Heading, b.Heading) {
		return true
	}
	return false
}

func fuzzyPriceEqual(p1, p2 int, margin float64) bool {
	if p1 <= 0 || p2 <= 0 {
		return false
	}
	hi := math.Max(float64(p1), float64(p2))
	return math.Abs(float64(p1-p2)) <= hi*margin
}

func sameText(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
