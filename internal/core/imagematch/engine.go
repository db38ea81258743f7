package imagematch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"

	"github.com/google/uuid"
)

// Verdict — агрегированный результат прогона всех компараторов по одной паре.
type Verdict struct {
	Maybe     int
	Confirmed int
	// Scores: comparer id -> сырой score. nil, если пара несравнима.
	Scores map[string]float64
}

// IsEmpty — ни один компаратор не дал сигнала.
func (v Verdict) IsEmpty() bool { return v.Maybe+v.Confirmed == 0 }

// PostImageRef — изображение, привязанное к посту.
// Pos nil означает миниатюру.
type PostImageRef struct {
	PostID uuid.UUID
	Pos    *int
	Img    image.Image
}

func (r PostImageRef) cacheKey() string {
	if r.Pos == nil {
		return r.PostID.String() + ":T"
	}
	return fmt.Sprintf("%s:%d", r.PostID, *r.Pos)
}

// Engine прогоняет набор компараторов над парами изображений, мемоизирует
// сигнатуры на время прогона и идемпотентно кэширует вердикты пар в хранилище.
type Engine struct {
	comparers []Comparer
	store     port.ImageMatchStoragePort
	logger    port.LoggerPort

	// мемо сигнатур на время одного прогона матчинга, ключ (post id, pos)
	imageData map[string]*ImageData
}

// NewEngine создает движок со стандартным набором компараторов.
// Кэш сигнатур живет столько же, сколько движок: конструируйте движок
// на один прогон и выбрасывайте.
func NewEngine(store port.ImageMatchStoragePort, logger port.LoggerPort) *Engine {
	return &Engine{
		comparers: []Comparer{
			NewHistComparer(),
			NewStructSimComparer(),
			NewCrossCorrComparer(),
		},
		store:     store,
		logger:    logger.WithFields(port.Fields{"component": "ImageMatchingEngine"}),
		imageData: make(map[string]*ImageData),
	}
}

// NumComparers возвращает размер набора компараторов.
func (e *Engine) NumComparers() int { return len(e.comparers) }

// CompareImages — stateless попарное сравнение без персистентности.
func (e *Engine) CompareImages(img1, img2 image.Image) (Verdict, error) {
	return e.compareImages(img1, img2, false)
}

// CompareImagesStopEarly — как CompareImages, но обрывает работу на первом
// компараторе со score ниже его FirstThreshold: одного сильного несогласия
// достаточно для отказа.
func (e *Engine) CompareImagesStopEarly(img1, img2 image.Image) (Verdict, error) {
	return e.compareImages(img1, img2, true)
}

func (e *Engine) compareImages(img1, img2 image.Image, stopEarly bool) (Verdict, error) {
	if !comparable(img1, img2) {
		// Нормальная частая ситуация, не ошибка: ни один компаратор не зовем
		return Verdict{}, nil
	}
	d1 := e.buildImageData(img1)
	d2 := e.buildImageData(img2)
	return e.runComparers(d1, d2, stopEarly)
}

// GetImageMatch — identity-aware сравнение с идемпотентным кэшем.
// Пара каноникализируется по id постов, так что на каждую неупорядоченную
// пару существует не более одной записи. dry=true не пишет в хранилище.
// Возвращает nil без ошибки, если ни один компаратор не дал сигнала.
func (e *Engine) GetImageMatch(ctx context.Context, ref1, ref2 PostImageRef, dry bool) (*domain.ImageMatch, error) {
	if !dry && ref1.PostID == ref2.PostID {
		return nil, domain.ErrSamePostComparison
	}

	// Канонический порядок, чтобы не сохранить одну пару дважды
	if bytes.Compare(ref1.PostID[:], ref2.PostID[:]) > 0 {
		ref1, ref2 = ref2, ref1
	}

	existing, err := e.store.FindByPair(ctx, ref1.PostID, ref1.Pos, ref2.PostID, ref2.Pos)
	if err != nil {
		return nil, fmt.Errorf("image match cache lookup: %w", err)
	}
	if len(existing) > 1 {
		return nil, fmt.Errorf("%w: posts %s, %s (%d rows)",
			domain.ErrDuplicateImageMatch, ref1.PostID, ref2.PostID, len(existing))
	}
	if len(existing) == 1 {
		return existing[0], nil
	}

	match, err := e.computeImageMatch(ref1, ref2)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, nil
	}
	if !dry {
		if err := e.store.SaveImageMatch(ctx, match); err != nil {
			return nil, fmt.Errorf("saving image match: %w", err)
		}
	}
	return match, nil
}

func (e *Engine) computeImageMatch(ref1, ref2 PostImageRef) (*domain.ImageMatch, error) {
	if !comparable(ref1.Img, ref2.Img) {
		return nil, nil
	}
	d1 := e.imageDataFor(ref1)
	d2 := e.imageDataFor(ref2)

	verdict, err := e.runComparers(d1, d2, false)
	if err != nil {
		return nil, err
	}
	if verdict.IsEmpty() {
		return nil, nil
	}

	var sum float64
	for _, s := range verdict.Scores {
		sum += s
	}

	return &domain.ImageMatch{
		ID:           uuid.New(),
		Post1ID:      ref1.PostID,
		ImgPos1:      ref1.Pos,
		Post2ID:      ref2.PostID,
		ImgPos2:      ref2.Pos,
		NumConfirmed: verdict.Confirmed,
		NumMaybe:     verdict.Maybe,
		AvgScore:     sum / float64(len(verdict.Scores)),
		Details:      verdict.Scores,
		Created:      time.Now().UTC(),
	}, nil
}

// imageDataFor — сигнатуры изображения поста, мемоизированные на прогон
func (e *Engine) imageDataFor(ref PostImageRef) *ImageData {
	key := ref.cacheKey()
	if d, ok := e.imageData[key]; ok {
		return d
	}
	d := e.buildImageData(ref.Img)
	e.imageData[key] = d
	return d
}

func (e *Engine) buildImageData(img image.Image) *ImageData {
	d := NewImageData(img)
	for _, comparer := range e.comparers {
		comparer.AddImageData(d, img)
	}
	return d
}

func (e *Engine) runComparers(d1, d2 *ImageData, stopEarly bool) (Verdict, error) {
	verdict := Verdict{Scores: make(map[string]float64)}
	for _, comparer := range e.comparers {
		score, err := comparer.Score(d1, d2)
		if err != nil {
			// Баг качества данных: логируем диагностику форм и пробрасываем
			cmpErr := &domain.ComparerError{
				ComparerID: comparer.ID(),
				W1:         d1.Width, H1: d1.Height,
				W2: d2.Width, H2: d2.Height,
				Err: err,
			}
			e.logger.Error("Comparer failed on valid-looking input", cmpErr, port.Fields{
				"comparer": comparer.ID(),
				"shape_1":  fmt.Sprintf("%dx%d", d1.Width, d1.Height),
				"shape_2":  fmt.Sprintf("%dx%d", d2.Width, d2.Height),
			})
			return Verdict{}, cmpErr
		}

		if stopEarly && score < comparer.FirstThreshold() {
			return Verdict{}, nil
		}

		switch {
		case score >= comparer.ConfidentThreshold():
			verdict.Confirmed++
		case score >= comparer.FirstThreshold():
			verdict.Maybe++
		}
		verdict.Scores[comparer.ID()] = score
	}
	return verdict, nil
}

// comparable: разные размеры или пустой растр — пара объявляется
// несравнимой и дает нулевой вердикт без вызова компараторов.
func comparable(img1, img2 image.Image) bool {
	if img1 == nil || img2 == nil {
		return false
	}
	b1, b2 := img1.Bounds(), img2.Bounds()
	if b1.Dx() != b2.Dx() || b1.Dy() != b2.Dy() {
		return false
	}
	return b1.Dx() > 0 && b1.Dy() > 0
}
