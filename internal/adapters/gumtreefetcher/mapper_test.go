package gumtreefetcher

import (
	"strings"
	"testing"
	"time"

	"flat-crawler-service/internal/core/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"2 400 zł", 2400},
		{"649 000 zł", 649000},
		{"1.250.000", 1250000},
		{"500000", 500000},
	}
	for _, tt := range tests {
		got, err := parsePrice(tt.raw)
		require.NoError(t, err, "raw %q", tt.raw)
		assert.Equal(t, tt.want, got, "raw %q", tt.raw)
	}

	_, err := parsePrice("Zamienię")
	require.Error(t, err)
	_, err = parsePrice("")
	require.Error(t, err)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"48 m2", 48},
		{"48,5 m2", 48.5},
		{"62.3", 62.3},
		{"  37 m²  ", 37},
	}
	for _, tt := range tests {
		got, err := parseSize(tt.raw)
		require.NoError(t, err, "raw %q", tt.raw)
		assert.InDelta(t, tt.want, got, 1e-9, "raw %q", tt.raw)
	}

	_, err := parseSize("brak danych")
	require.Error(t, err)
}

func TestParsePostedAt(t *testing.T) {
	now := time.Date(2026, 8, 29, 15, 4, 0, 0, time.UTC)
	today := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"Dzisiaj 14:30", today, true},
		{"5 min temu", today, true},
		{"3 godz. temu", today, true},
		{"Wczoraj 09:12", today.AddDate(0, 0, -1), true},
		{"4 dni temu", today.AddDate(0, 0, -4), true},
		{"15/08/2026", time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"wkrótce", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := parsePostedAt(tt.raw, now)
		assert.Equal(t, tt.ok, ok, "raw %q", tt.raw)
		if tt.ok {
			assert.Equal(t, tt.want, got, "raw %q", tt.raw)
		}
	}
}

func TestSplitLocation(t *testing.T) {
	district, subDistrict, street := splitLocation("Krowodrza, Łobzów, ul. Wrocławska")
	assert.Equal(t, "Krowodrza", district)
	assert.Equal(t, "Łobzów", subDistrict)
	assert.Equal(t, "ul. Wrocławska", street)

	district, subDistrict, street = splitLocation("Podgórze")
	assert.Equal(t, "Podgórze", district)
	assert.Empty(t, subDistrict)
	assert.Empty(t, street)

	// Хвостовые части улицы не теряются
	_, _, street = splitLocation("Stare Miasto, Kazimierz, ul. Miodowa, 12")
	assert.Equal(t, "ul. Miodowa, 12", street)
}

func TestAbsoluteURL(t *testing.T) {
	abs, err := absoluteURL("https://www.gumtree.pl/s-mieszkania/krakow/page-1", "/a-mieszkania/krakow/oferta/100123")
	require.NoError(t, err)
	assert.Equal(t, "https://www.gumtree.pl/a-mieszkania/krakow/oferta/100123", abs)

	abs, err = absoluteURL("https://www.gumtree.pl/", "https://img.classistatic.com/api/v1/pl/images/abc.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://img.classistatic.com/api/v1/pl/images/abc.jpg", abs)
}

const tileHTML = `
<div class="tileV1">
  <div class="bolt-image"><img src="https://img.classistatic.com/api/v1/pl/images/abc.jpg"></div>
  <div class="title"><a class="href-link" href="/a-mieszkania/krakow/3-pokoje/100123">Słoneczne 3 pokoje, Krowodrza</a></div>
  <span class="ad-price">649 000 zł</span>
  <div class="category-location"><span>Krowodrza</span></div>
  <div class="creation-date"><span class="icon"></span><span>4 dni temu</span></div>
</div>`

func TestTileFromSelection(t *testing.T) {
	doc := docFromHTML(t, tileHTML)
	tile, err := tileFromSelection(doc.Find("div.tileV1"), "https://www.gumtree.pl/s-mieszkania/krakow")
	require.NoError(t, err)

	post := tile.post
	assert.Equal(t, domain.SourceGumtree, post.Source)
	assert.Equal(t, "https://www.gumtree.pl/a-mieszkania/krakow/3-pokoje/100123", post.URL)
	assert.Equal(t, "Słoneczne 3 pokoje, Krowodrza", post.Heading)
	assert.Equal(t, 649000, post.Price)
	require.NotNil(t, post.District)
	assert.Equal(t, "Krowodrza", *post.District)
	require.NotNil(t, post.PostedAt)
	assert.Equal(t, "https://img.classistatic.com/api/v1/pl/images/abc.jpg", tile.thumbURL)
}

func TestTileFromSelectionRejectsBrokenTiles(t *testing.T) {
	noLink := `<div class="tileV1"><div class="title"></div><span class="ad-price">100 zł</span></div>`
	_, err := tileFromSelection(docFromHTML(t, noLink).Find("div.tileV1"), "https://www.gumtree.pl/")
	require.Error(t, err)

	noPrice := `<div class="tileV1"><div class="title"><a class="href-link" href="/oferta/1">Kawalerka</a></div></div>`
	_, err = tileFromSelection(docFromHTML(t, noPrice).Find("div.tileV1"), "https://www.gumtree.pl/")
	require.Error(t, err)
}

const detailsHTML = `
<div class="vip-content">
  <div class="description"><span class="pre">Przestronne mieszkanie po remoncie, 48 m2.</span></div>
  <ul class="selMenu">
    <li><span class="name">Wielkość (m2)</span><span class="value">48,5</span></li>
    <li><span class="name">Lokalizacja</span><span class="value">Krowodrza, Łobzów, ul. Wrocławska</span></li>
    <li><span class="name">Liczba pokoi</span><span class="value">3 pokoje</span></li>
    <li><span class="name">Parking</span><span class="value"></span></li>
  </ul>
  <div class="vip-gallery">
    <img data-src="https://img.classistatic.com/1.jpg">
    <img src="https://img.classistatic.com/2.jpg">
    <img data-src="https://img.classistatic.com/1.jpg">
    <img data-src="https://img.classistatic.com/3.jpg">
  </div>
</div>`

func TestDetailsToPost(t *testing.T) {
	doc := docFromHTML(t, detailsHTML)
	post := &domain.Post{Heading: "Kawalerka"}

	detailsToPost(doc.Find("div.vip-content"), post)

	assert.Equal(t, "Przestronne mieszkanie po remoncie, 48 m2.", post.Desc)
	require.NotNil(t, post.SizeM2)
	assert.InDelta(t, 48.5, *post.SizeM2, 1e-9)
	require.NotNil(t, post.District)
	assert.Equal(t, "Krowodrza", *post.District)
	require.NotNil(t, post.SubDistrict)
	assert.Equal(t, "Łobzów", *post.SubDistrict)
	require.NotNil(t, post.Street)
	assert.Equal(t, "ul. Wrocławska", *post.Street)
}

func TestCollectPhotoURLs(t *testing.T) {
	doc := docFromHTML(t, detailsHTML)

	urls := collectPhotoURLs(doc.Find("div.vip-content"), "https://www.gumtree.pl/", 8)
	assert.Equal(t, []string{
		"https://img.classistatic.com/1.jpg",
		"https://img.classistatic.com/2.jpg",
		"https://img.classistatic.com/3.jpg",
	}, urls, "duplicates collapse, data-src wins over src")

	limited := collectPhotoURLs(doc.Find("div.vip-content"), "https://www.gumtree.pl/", 2)
	assert.Len(t, limited, 2)
}
