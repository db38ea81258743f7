package imagematch

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (l nopLogger) Info(msg string, fields port.Fields)             {}
func (l nopLogger) Warn(msg string, fields port.Fields)             {}
func (l nopLogger) Error(msg string, err error, fields port.Fields) {}
func (l nopLogger) Debug(msg string, fields port.Fields)            {}
func (l nopLogger) WithFields(fields port.Fields) port.LoggerPort   { return l }

// noiseImage строит детерминированное псевдослучайное изображение:
// у шума гарантированно ненулевая дисперсия во всех каналах.
func noiseImage(w, h int, seed int64) image.Image {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	return img
}

func solidImage(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func newTestEngine() *Engine {
	return NewEngine(&fakeMatchStore{}, nopLogger{})
}

func TestCompareImagesSelfMatch(t *testing.T) {
	engine := newTestEngine()
	img := noiseImage(32, 32, 1)

	verdict, err := engine.CompareImages(img, img)
	require.NoError(t, err)

	assert.Equal(t, engine.NumComparers(), verdict.Confirmed,
		"identical images must be confirmed by every comparer")
	assert.Equal(t, 0, verdict.Maybe)
	assert.Len(t, verdict.Scores, engine.NumComparers())
	for id, score := range verdict.Scores {
		assert.InDelta(t, 1.0, score, 1e-9, "comparer %s self-score", id)
	}
}

func TestCompareImagesDimensionMismatch(t *testing.T) {
	engine := newTestEngine()

	verdict, err := engine.CompareImages(noiseImage(32, 32, 1), noiseImage(16, 16, 2))
	require.NoError(t, err)

	assert.True(t, verdict.IsEmpty())
	assert.Nil(t, verdict.Scores)
}

func TestCompareImagesNilImage(t *testing.T) {
	engine := newTestEngine()

	verdict, err := engine.CompareImages(nil, noiseImage(16, 16, 1))
	require.NoError(t, err)
	assert.True(t, verdict.IsEmpty())
}

func TestCompareImagesZeroVarianceFails(t *testing.T) {
	engine := newTestEngine()
	img := solidImage(32, 32, color.RGBA{R: 120, G: 130, B: 140, A: 255})

	_, err := engine.CompareImages(img, img)
	require.Error(t, err)

	var cmpErr *domain.ComparerError
	require.ErrorAs(t, err, &cmpErr)
	assert.Equal(t, 32, cmpErr.W1)
	assert.Equal(t, 32, cmpErr.H1)
}

func TestCompareImagesDifferentNoise(t *testing.T) {
	engine := newTestEngine()

	// Независимый шум некоррелирован: кросс-корреляция около нуля
	verdict, err := engine.CompareImages(noiseImage(32, 32, 1), noiseImage(32, 32, 99))
	require.NoError(t, err)
	assert.Less(t, verdict.Scores["CrossCorrComparer"], 0.6)
}

func TestCompareImagesStopEarly(t *testing.T) {
	engine := newTestEngine()
	img := noiseImage(32, 32, 7)

	verdict, err := engine.CompareImagesStopEarly(img, img)
	require.NoError(t, err)
	assert.Equal(t, engine.NumComparers(), verdict.Confirmed)

	// Несравнимая пара обрывается до компараторов и там тоже
	verdict, err = engine.CompareImagesStopEarly(img, noiseImage(8, 8, 7))
	require.NoError(t, err)
	assert.True(t, verdict.IsEmpty())
}

func TestComparerThresholdOrdering(t *testing.T) {
	for _, c := range []Comparer{NewHistComparer(), NewStructSimComparer(), NewCrossCorrComparer()} {
		assert.Less(t, c.FirstThreshold(), c.ConfidentThreshold(), "comparer %s", c.ID())
	}
}
