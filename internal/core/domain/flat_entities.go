package domain

import (
	"time"

	"github.com/google/uuid"
)

// RatingKind — пользовательская оценка квартиры
type RatingKind string

const (
	RatingHeart  RatingKind = "heart"
	RatingStar   RatingKind = "star"
	RatingReject RatingKind = "reject"
)

// Flat — идентичность реальной квартиры, объединяющая один или несколько постов.
type Flat struct {
	ID             uuid.UUID
	OriginalPostID uuid.UUID

	// MinPrice — минимальная наблюдавшаяся цена по всем привязанным постам.
	// Инвариант: никогда не растет.
	MinPrice int

	Starred  bool
	Hearted  bool
	Rejected bool

	Created time.Time
}

// ApplyRating выставляет оценку. Оценки взаимоисключающие: установка одной
// сбрасывает остальные.
func (f *Flat) ApplyRating(kind RatingKind, ticked bool) bool {
	if ticked {
		f.Hearted = false
		f.Starred = false
		f.Rejected = false
	}

	switch kind {
	case RatingHeart:
		f.Hearted = ticked
	case RatingStar:
		f.Starred = ticked
	case RatingReject:
		f.Rejected = ticked
	default:
		return false
	}
	return true
}

// CombineRatings вычисляет оценку выжившей квартиры при слиянии:
// OR по всем флагам с приоритетом heart > star > reject.
func CombineRatings(flats []*Flat) (hearted, starred, rejected bool) {
	for _, f := range flats {
		hearted = hearted || f.Hearted
		starred = starred || f.Starred
		rejected = rejected || f.Rejected
	}
	if hearted {
		return true, false, false
	}
	if starred {
		return false, true, false
	}
	return false, false, rejected
}

// LowerMinPrice опускает минимальную цену, если новая ниже.
func (f *Flat) LowerMinPrice(price int) {
	if price < f.MinPrice {
		f.MinPrice = price
	}
}

// FlatFilters — фильтры для выборки квартир в browsing API.
type FlatFilters struct {
	MinPrice *int
	MaxPrice *int
	District *string
	// Rated: nil — все, true — только с оценкой, false — только без
	Rated *bool
	// ExcludeRejected отбрасывает отклоненные квартиры
	ExcludeRejected bool
}

// FlatListItem — проекция квартиры для списка в browsing UI.
type FlatListItem struct {
	Flat         Flat
	Heading      string
	URL          string
	SizeM2       *float64
	District     *string
	PostsCount   int
	LastPostedAt *time.Time
}
