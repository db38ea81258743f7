package rest

import (
	"time"

	"github.com/google/uuid"
)

// FlatListItemDTO - элемент выдачи GET /flats
type FlatListItemDTO struct {
	ID           uuid.UUID  `json:"id"`
	Heading      string     `json:"heading"`
	URL          string     `json:"url"`
	MinPrice     int        `json:"min_price"`
	SizeM2       *float64   `json:"size_m2,omitempty"`
	District     *string    `json:"district,omitempty"`
	PostsCount   int        `json:"posts_count"`
	LastPostedAt *time.Time `json:"last_posted_at,omitempty"`
	Hearted      bool       `json:"hearted"`
	Starred      bool       `json:"starred"`
	Rejected     bool       `json:"rejected"`
}

// RateFlatRequest - тело POST /flats/{flatID}/rate
type RateFlatRequest struct {
	Kind   string `json:"kind"`
	Ticked bool   `json:"ticked"`
}

// RematchRequest - тело POST /matching/rematch
type RematchRequest struct {
	PostIDs []uuid.UUID `json:"post_ids"`
}

// MatchSummaryDTO - результат прогона матчинга
type MatchSummaryDTO struct {
	Processed     int         `json:"processed"`
	Created       int         `json:"created"`
	Attached      int         `json:"attached"`
	Merged        int         `json:"merged"`
	Broken        int         `json:"broken"`
	FailedPostIDs []uuid.UUID `json:"failed_post_ids,omitempty"`
}

// CrawlRequest - тело POST /crawl
type CrawlRequest struct {
	Name         string  `json:"name"`
	Source       string  `json:"source"`
	District     string  `json:"district"`
	MinPrice     int     `json:"min_price"`
	MaxPrice     int     `json:"max_price"`
	MinSizeM2    float64 `json:"min_size_m2"`
	MaxSizeM2    float64 `json:"max_size_m2"`
	LookbackDays int     `json:"lookback_days"`
	PageLimit    int     `json:"page_limit"`
}

// LocationDTO - запись газетира для карты
type LocationDTO struct {
	ID        int64    `json:"id"`
	City      *string  `json:"city,omitempty"`
	FullName  *string  `json:"full_name,omitempty"`
	ShortName *string  `json:"short_name,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
	Geohash   *string  `json:"geohash,omitempty"`
}

// CrawlReportDTO - результат обхода
type CrawlReportDTO struct {
	Source        string    `json:"source"`
	CrawlID       string    `json:"crawl_id"`
	StartDate     time.Time `json:"start_date"`
	PagesFetched  int       `json:"pages_fetched"`
	NewPosts      int       `json:"new_posts"`
	SkippedKnown  int       `json:"skipped_known"`
	FailedDetails int       `json:"failed_details"`
}
