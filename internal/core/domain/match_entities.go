package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImageMatch — закэшированный вердикт сравнения одной пары изображений.
// Пара каноникализирована по id постов: на каждую неупорядоченную пару
// существует не более одной записи. Записи никогда не обновляются.
type ImageMatch struct {
	ID uuid.UUID

	Post1ID uuid.UUID
	// ImgPos1 — позиция изображения в списке фотографий поста, nil = миниатюра
	ImgPos1 *int

	Post2ID uuid.UUID
	ImgPos2 *int

	NumConfirmed int
	NumMaybe     int
	AvgScore     float64

	// Details: comparer id -> сырой score, для отладки
	Details map[string]float64

	Created time.Time
}

// AllConfirmed — все компараторы уверенно подтвердили совпадение.
func (m *ImageMatch) AllConfirmed(numComparers int) bool {
	return m.NumConfirmed == numComparers
}

// AllMaybeOrBetter — каждый компаратор дал хотя бы слабый сигнал.
func (m *ImageMatch) AllMaybeOrBetter(numComparers int) bool {
	return m.NumConfirmed+m.NumMaybe == numComparers
}

// MatchSummary — итог одного прогона матчинга.
type MatchSummary struct {
	Processed int
	Created   int
	Attached  int
	Merged    int
	Broken    int

	// FailedPostIDs — посты, которые так и не удалось разрешить
	FailedPostIDs []uuid.UUID
}

// CrawlReport — итог одного прогона обхода источника.
type CrawlReport struct {
	Source        Source
	CrawlID       string
	StartDate     time.Time
	PagesFetched  int
	NewPosts      int
	SkippedKnown  int
	FailedDetails int
}

// CrawlQuery — одна параметризация запроса к источнику. Name служит
// crawl id: им скоупится учет полностью обойденных дат.
type CrawlQuery struct {
	Name         string  `yaml:"name"`
	Source       Source  `yaml:"source"`
	District     string  `yaml:"district"`
	MinPrice     int     `yaml:"min_price"`
	MaxPrice     int     `yaml:"max_price"`
	MinSizeM2    float64 `yaml:"min_size_m2"`
	MaxSizeM2    float64 `yaml:"max_size_m2"`
	LookbackDays int     `yaml:"lookback_days"`
	PageLimit    int     `yaml:"page_limit"`
}
