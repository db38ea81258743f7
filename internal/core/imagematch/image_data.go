package imagematch

import (
	"image"
	"math"
)

const colorMax = 255.0

// ImageData — мемоизированные числовые сигнатуры одного изображения.
// Заполняется лениво компараторами через AddImageData: каждая сигнатура
// считается один раз и переиспользуется всеми компараторами и всеми
// повторными сравнениями этого изображения в рамках прогона.
type ImageData struct {
	Width  int
	Height int

	// Channels — пиксели по каналам R, G, B в диапазоне [0..255]
	Channels [3][]float64

	// Нормализованные [0..1] каналы (для SSIM)
	ChannelsNorm [3][]float64

	ChannelMean [3]float64
	ChannelStd  [3]float64
	statsReady  bool

	HistNorm []float64
	HistStd  float64
}

// NewImageData декодирует растр в пиксельные каналы. Остальные сигнатуры
// дописывают компараторы.
func NewImageData(img image.Image) *ImageData {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	d := &ImageData{Width: w, Height: h}

	n := w * h
	for c := 0; c < 3; c++ {
		d.Channels[c] = make([]float64, 0, n)
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// RGBA отдает 16-битные значения
			d.Channels[0] = append(d.Channels[0], float64(r>>8))
			d.Channels[1] = append(d.Channels[1], float64(g>>8))
			d.Channels[2] = append(d.Channels[2], float64(b>>8))
		}
	}
	return d
}

// NumPixels возвращает число пикселей изображения.
func (d *ImageData) NumPixels() int { return d.Width * d.Height }

// SameShape — изображения сравнимы только при одинаковых размерах.
func (d *ImageData) SameShape(other *ImageData) bool {
	return d.Width == other.Width && d.Height == other.Height
}

func (d *ImageData) ensureChannelStats() {
	if d.statsReady {
		return
	}
	for c := 0; c < 3; c++ {
		d.ChannelMean[c] = mean(d.Channels[c])
		d.ChannelStd[c] = std(d.Channels[c], d.ChannelMean[c])
	}
	d.statsReady = true
}

func (d *ImageData) ensureNormChannels() {
	if d.ChannelsNorm[0] != nil {
		return
	}
	for c := 0; c < 3; c++ {
		norm := make([]float64, len(d.Channels[c]))
		for i, v := range d.Channels[c] {
			norm[i] = v / colorMax
		}
		d.ChannelsNorm[c] = norm
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

// std — среднеквадратичное отклонение по генеральной совокупности
func std(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range xs {
		dv := v - m
		sum += dv * dv
	}
	return math.Sqrt(sum / float64(len(xs)))
}
