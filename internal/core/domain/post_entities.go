package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Source определяет сайт-источник объявления
type Source string

const (
	SourceGumtree Source = "gumtree"
	SourceOtodom  Source = "otodom"
	SourceOlx     Source = "olx"
)

// MatchedByOriginalPost — значение matched_by для поста, основавшего квартиру
const MatchedByOriginalPost = "original_post"

// Post — одно наблюдение объявления на одном источнике.
// Поля, которые источник может не отдавать, представлены указателями.
type Post struct {
	ID     uuid.UUID
	Source Source
	URL    string

	Heading string
	Desc    string
	Price   int
	SizeM2  *float64

	District    *string
	SubDistrict *string
	Street      *string

	Thumbnail  []byte
	PhotosBlob []byte // конкатенация изображений через разделитель, см. adapters/imaging

	PostHash string
	PostedAt *time.Time

	DetailsAdded bool

	IsBroken     bool
	ExceptionStr *string

	FlatID         *uuid.UUID
	IsOriginalPost bool
	MatchedBy      *string

	Created time.Time
}

// HasTimestamp сообщает, есть ли у поста дата публикации.
// Некоторые источники её вообще не отдают.
func (p *Post) HasTimestamp() bool {
	return p.PostedAt != nil && !p.PostedAt.IsZero()
}

func (p *Post) String() string {
	heading := p.Heading
	if len(heading) > 100 {
		heading = heading[:100]
	}
	return fmt.Sprintf("%s [%s] %s (id: %s)", heading, p.Source, p.URL, p.ID)
}

// Location — запись газетира (справочника адресов), только для чтения из ядра.
type Location struct {
	ID        int64
	City      *string
	FullName  *string
	ShortName *string
	Districts *string
	Lat       *float64
	Lng       *float64
	Geohash   *string
}
