package imagematch

import (
	"fmt"
	"image"
	"math"
)

// Comparer — один перцептивный алгоритм сравнения со своими калиброванными
// порогами. score выше — больше похожи.
type Comparer interface {
	ID() string

	// FirstThreshold — score, начиная с которого совпадение правдоподобно
	FirstThreshold() float64
	// ConfidentThreshold — score, начиная с которого совпадение почти наверняка
	ConfidentThreshold() float64

	// AddImageData дописывает в ImageData сигнатуры, нужные этому компаратору
	AddImageData(d *ImageData, img image.Image)

	// Score сравнивает две подготовленные сигнатуры
	Score(a, b *ImageData) (float64, error)
}

// ---------------------------------------------------------------------------

// HistComparer сравнивает совместные цветовые гистограммы через
// нормализованную кросс-корреляцию центрированных гистограмм.
type HistComparer struct {
	colorBins int
	binDiv    float64
	histLen   int
}

func NewHistComparer() *HistComparer {
	const colorBins = 6
	return &HistComparer{
		colorBins: colorBins,
		// +0.0001 чтобы значение 255 не выпало в лишний бин
		binDiv:  colorMax/float64(colorBins) + 0.0001,
		histLen: colorBins * colorBins * colorBins,
	}
}

func (c *HistComparer) ID() string                  { return "HistComparer" }
func (c *HistComparer) FirstThreshold() float64     { return 0.8 }
func (c *HistComparer) ConfidentThreshold() float64 { return 0.9 }

func (c *HistComparer) AddImageData(d *ImageData, img image.Image) {
	if d.HistNorm != nil {
		return
	}
	hist := make([]float64, c.histLen)
	n := d.NumPixels()
	for i := 0; i < n; i++ {
		r := int(d.Channels[0][i] / c.binDiv)
		g := int(d.Channels[1][i] / c.binDiv)
		b := int(d.Channels[2][i] / c.binDiv)
		idx := r + g*c.colorBins + b*c.colorBins*c.colorBins
		hist[idx]++
	}

	var total float64
	for _, v := range hist {
		total += v
	}
	if total > 0 {
		for i := range hist {
			hist[i] /= total
		}
	}
	d.HistNorm = hist
	m := mean(hist)
	d.HistStd = std(hist, m)
}

func (c *HistComparer) Score(a, b *ImageData) (float64, error) {
	denom := float64(c.histLen-1) * a.HistStd * b.HistStd
	if denom == 0 {
		return 0, fmt.Errorf("zero histogram variance")
	}
	ma, mb := mean(a.HistNorm), mean(b.HistNorm)
	var sum float64
	for i := range a.HistNorm {
		sum += (a.HistNorm[i] - ma) * (b.HistNorm[i] - mb)
	}
	return sum / denom, nil
}

// ---------------------------------------------------------------------------

// StructSimComparer считает оконный structural similarity index.
// Требует одинаковых размеров — это гарантирует движок до вызова.
type StructSimComparer struct {
	window int
	step   int
}

func NewStructSimComparer() *StructSimComparer {
	return &StructSimComparer{window: 8, step: 4}
}

func (c *StructSimComparer) ID() string                  { return "SsimComparer" }
func (c *StructSimComparer) FirstThreshold() float64     { return 0.6 }
func (c *StructSimComparer) ConfidentThreshold() float64 { return 0.9 }

func (c *StructSimComparer) AddImageData(d *ImageData, img image.Image) {
	d.ensureNormChannels()
}

func (c *StructSimComparer) Score(a, b *ImageData) (float64, error) {
	if !a.SameShape(b) {
		return 0, fmt.Errorf("ssim requires identical dimensions: %dx%d vs %dx%d",
			a.Width, a.Height, b.Width, b.Height)
	}

	// Стандартные константы стабилизации для L=1
	const (
		c1 = 0.01 * 0.01
		c2 = 0.03 * 0.03
	)

	var total float64
	var channels int
	for ch := 0; ch < 3; ch++ {
		score, windows := c.channelSSIM(a, b, ch, c1, c2)
		if windows == 0 {
			return 0, fmt.Errorf("image %dx%d smaller than ssim window %d",
				a.Width, a.Height, c.window)
		}
		total += score
		channels++
	}
	return total / float64(channels), nil
}

// channelSSIM — среднее SSIM по скользящим окнам одного канала
func (c *StructSimComparer) channelSSIM(a, b *ImageData, ch int, c1, c2 float64) (float64, int) {
	w, h := a.Width, a.Height
	var sum float64
	var windows int

	for y := 0; y+c.window <= h; y += c.step {
		for x := 0; x+c.window <= w; x += c.step {
			sum += windowSSIM(a.ChannelsNorm[ch], b.ChannelsNorm[ch], w, x, y, c.window, c1, c2)
			windows++
		}
	}
	if windows == 0 {
		return 0, 0
	}
	return sum / float64(windows), windows
}

func windowSSIM(pa, pb []float64, stride, x0, y0, win int, c1, c2 float64) float64 {
	n := float64(win * win)

	var sumA, sumB float64
	for y := y0; y < y0+win; y++ {
		base := y * stride
		for x := x0; x < x0+win; x++ {
			sumA += pa[base+x]
			sumB += pb[base+x]
		}
	}
	muA, muB := sumA/n, sumB/n

	var varA, varB, cov float64
	for y := y0; y < y0+win; y++ {
		base := y * stride
		for x := x0; x < x0+win; x++ {
			da := pa[base+x] - muA
			db := pb[base+x] - muB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n - 1
	varB /= n - 1
	cov /= n - 1

	num := (2*muA*muB + c1) * (2*cov + c2)
	den := (muA*muA + muB*muB + c1) * (varA + varB + c2)
	return num / den
}

// ---------------------------------------------------------------------------

// CrossCorrComparer — попиксельная кросс-корреляция по каналам,
// нормированная на среднеквадратичное отклонение канала. Итоговый score —
// минимум по каналам: несогласный канал тянет оценку вниз.
type CrossCorrComparer struct{}

func NewCrossCorrComparer() *CrossCorrComparer { return &CrossCorrComparer{} }

func (c *CrossCorrComparer) ID() string                  { return "CrossCorrComparer" }
func (c *CrossCorrComparer) FirstThreshold() float64     { return 0.6 }
func (c *CrossCorrComparer) ConfidentThreshold() float64 { return 0.9 }

func (c *CrossCorrComparer) AddImageData(d *ImageData, img image.Image) {
	d.ensureChannelStats()
}

func (c *CrossCorrComparer) Score(a, b *ImageData) (float64, error) {
	if a.NumPixels() != b.NumPixels() {
		return 0, fmt.Errorf("pixel count mismatch: %d vs %d", a.NumPixels(), b.NumPixels())
	}
	n := a.NumPixels()
	if n < 2 {
		return 0, fmt.Errorf("image too small: %d pixels", n)
	}

	minScore := math.Inf(1)
	for ch := 0; ch < 3; ch++ {
		denom := float64(n-1) * a.ChannelStd[ch] * b.ChannelStd[ch]
		if denom == 0 {
			return 0, fmt.Errorf("zero variance in channel %d", ch)
		}
		var sum float64
		for i := 0; i < n; i++ {
			sum += (a.Channels[ch][i] - a.ChannelMean[ch]) * (b.Channels[ch][i] - b.ChannelMean[ch])
		}
		score := sum / denom
		if score < minScore {
			minScore = score
		}
	}
	return minScore, nil
}
