package textextract

import (
	"regexp"
	"strconv"
	"strings"
)

// Границы правдоподобия для вывода площади из свободного текста.
// Кандидат вне этих рамок отбрасывается.
const (
	MinSizeM2 = 20.0
	MaxSizeM2 = 250.0

	MinPricePerM2 = 4000.0
	MaxPricePerM2 = 45000.0

	// AvgPricePerM2 — ориентир для выбора между несколькими кандидатами
	AvgPricePerM2 = 14000.0
)

// sizePattern ловит "47 m2", "47m²", "47,5 mkw", "47 m.kw.", "47 metrów" и т.п.
var sizePattern = regexp.MustCompile(
	`(?i)(\d{2,3}(?:[.,]\d{1,2})?)\s*(?:m2|m²|mkw\.?|m\.?\s?kw\.?|metrów|metrow|metry|metra)`)

// DeduceSizeM2 пытается вывести площадь квартиры из свободного текста
// объявления. Кандидаты фильтруются по абсолютным рамкам площади и,
// при известной цене, по правдоподобной цене за метр. При нескольких
// выживших кандидатах выбирается тот, чья цена за метр ближе к средней
// по рынку. Возвращает nil, если уверенного кандидата нет.
func DeduceSizeM2(text string, price int) *float64 {
	matches := sizePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	var candidates []float64
	seen := make(map[float64]struct{})
	for _, m := range matches {
		raw := strings.ReplaceAll(m[1], ",", ".")
		size, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if size < MinSizeM2 || size > MaxSizeM2 {
			continue
		}
		if price > 0 {
			perM2 := float64(price) / size
			if perM2 < MinPricePerM2 || perM2 > MaxPricePerM2 {
				continue
			}
		}
		if _, dup := seen[size]; dup {
			continue
		}
		seen[size] = struct{}{}
		candidates = append(candidates, size)
	}

	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return &candidates[0]
	}

	if price <= 0 {
		// Несколько кандидатов и нечем их различить
		return nil
	}

	best := candidates[0]
	bestDist := perM2Distance(price, best)
	for _, size := range candidates[1:] {
		if d := perM2Distance(price, size); d < bestDist {
			best, bestDist = size, d
		}
	}
	return &best
}

func perM2Distance(price int, size float64) float64 {
	d := float64(price)/size - AvgPricePerM2
	if d < 0 {
		return -d
	}
	return d
}
