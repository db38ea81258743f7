package gumtreefetcher

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"flat-crawler-service/internal/adapters/imaging"
	"flat-crawler-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 90, A: 255})
		}
	}
	data, err := imaging.EncodeJPEG(img)
	require.NoError(t, err)
	return data
}

const listingPageHTML = `<html><body>
<div class="tileV1">
  <div class="bolt-image"><img src="/img/thumb1.jpg"></div>
  <div class="title"><a class="href-link" href="/oferta/1">Mieszkanie 3-pokojowe Krowodrza</a></div>
  <span class="ad-price">649 000 zł</span>
  <div class="category-location"><span>Krowodrza</span></div>
  <div class="creation-date"><span>wczoraj</span></div>
</div>
<div class="tileV1">
  <div class="title"><a class="href-link" href="/oferta/2">Kawalerka Podgórze</a></div>
  <span class="ad-price">380 000 zł</span>
  <div class="creation-date"><span>dzisiaj</span></div>
</div>
<div class="pagination"><a class="arrow-right" href="?page=2"></a></div>
</body></html>`

const detailPageHTML = `<html><body><div class="vip-content">
  <div class="description"><span class="pre">Słoneczne mieszkanie po remoncie.</span></div>
  <ul class="selMenu">
    <li><span class="name">Wielkość (m2)</span><span class="value">54</span></li>
    <li><span class="name">Lokalizacja</span><span class="value">Krowodrza, Łobzów</span></li>
  </ul>
  <div class="vip-gallery">
    <img data-src="/img/photo1.jpg">
    <img data-src="/img/photo2.jpg">
  </div>
</div></body></html>`

func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()
	jpegBytes := smallJPEG(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/listing", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingPageHTML)
	})
	mux.HandleFunc("/oferta/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, detailPageHTML)
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(jpegBytes)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestBuildListingURL(t *testing.T) {
	adapter, err := NewGumtreeFetcherAdapter("https://www.gumtree.pl/s-mieszkania/krakow")
	require.NoError(t, err)

	raw, err := adapter.buildListingURL(domain.CrawlQuery{
		MinPrice:  300000,
		MaxPrice:  900000,
		MinSizeM2: 30,
	}, 2)
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "300000", q.Get("pr.min"))
	assert.Equal(t, "900000", q.Get("pr.max"))
	assert.Equal(t, "30", q.Get("m.min"))
	assert.Equal(t, "dt", q.Get("sort"))
	assert.Equal(t, "desc", q.Get("order"))

	// Первая страница не несет параметра page
	raw, err = adapter.buildListingURL(domain.CrawlQuery{}, 1)
	require.NoError(t, err)
	parsed, err = url.Parse(raw)
	require.NoError(t, err)
	assert.Empty(t, parsed.Query().Get("page"))
}

func TestFetchListingPageAgainstServer(t *testing.T) {
	server := newSiteServer(t)
	adapter, err := NewGumtreeFetcherAdapter(server.URL + "/listing")
	require.NoError(t, err)

	page, err := adapter.FetchListingPage(context.Background(), domain.CrawlQuery{}, 1)
	require.NoError(t, err)

	assert.True(t, page.HasNext)
	require.Len(t, page.Posts, 2)

	first := page.Posts[0]
	assert.Equal(t, "Mieszkanie 3-pokojowe Krowodrza", first.Heading)
	assert.Equal(t, 649000, first.Price)
	assert.Equal(t, server.URL+"/oferta/1", first.URL)
	require.NotNil(t, first.District)
	assert.Equal(t, "Krowodrza", *first.District)
	require.NotNil(t, first.PostedAt)
	assert.NotEmpty(t, first.Thumbnail, "tile thumbnail must be downloaded")

	// У второй плитки нет миниатюры и района, пост все равно разобран
	second := page.Posts[1]
	assert.Equal(t, 380000, second.Price)
	assert.Empty(t, second.Thumbnail)
	assert.Nil(t, second.District)
}

func TestFetchListingPageServerError(t *testing.T) {
	server := newSiteServer(t)
	adapter, err := NewGumtreeFetcherAdapter(server.URL + "/boom")
	require.NoError(t, err)

	_, err = adapter.FetchListingPage(context.Background(), domain.CrawlQuery{}, 1)
	require.Error(t, err)
}

func TestFetchDetailsAgainstServer(t *testing.T) {
	server := newSiteServer(t)
	adapter, err := NewGumtreeFetcherAdapter(server.URL + "/listing")
	require.NoError(t, err)

	post := &domain.Post{URL: server.URL + "/oferta/1", Heading: "Mieszkanie"}
	require.NoError(t, adapter.FetchDetails(context.Background(), post))

	assert.Equal(t, "Słoneczne mieszkanie po remoncie.", post.Desc)
	require.NotNil(t, post.SizeM2)
	assert.InDelta(t, 54, *post.SizeM2, 1e-9)
	require.NotNil(t, post.District)
	assert.Equal(t, "Krowodrza", *post.District)

	photos := imaging.SplitImages(post.PhotosBlob)
	assert.Len(t, photos, 2)

	// Миниатюры со списочной страницы не было: построена из первого фото
	require.NotEmpty(t, post.Thumbnail)
	thumb, err := imaging.DecodeImage(post.Thumbnail)
	require.NoError(t, err)
	assert.Equal(t, imaging.ThumbnailWidth, thumb.Bounds().Dx())
	assert.Equal(t, imaging.ThumbnailHeight, thumb.Bounds().Dy())
}

func TestFetchDetailsGonePage(t *testing.T) {
	server := newSiteServer(t)
	adapter, err := NewGumtreeFetcherAdapter(server.URL + "/listing")
	require.NoError(t, err)

	post := &domain.Post{URL: server.URL + "/gone", Heading: "Mieszkanie", Price: 500000}
	require.NoError(t, adapter.FetchDetails(context.Background(), post),
		"removed listing keeps its listing-page data")
	assert.Empty(t, post.Desc)
	assert.Equal(t, 500000, post.Price)
}

func TestSourceIdentifier(t *testing.T) {
	adapter, err := NewGumtreeFetcherAdapter("https://www.gumtree.pl/")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceGumtree, adapter.Source())
}
