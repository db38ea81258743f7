package gumtreefetcher

import (
	"context"
	"fmt"
	"net/http"

	"flat-crawler-service/internal/adapters/imaging"
	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"

	"github.com/gocolly/colly/v2"
)

// maxDetailPhotos ограничивает число скачиваемых полноразмерных фотографий
const maxDetailPhotos = 8

// FetchDetails дозагружает страницу объявления: полное описание, размер,
// район и полноразмерные фотографии.
func (a *GumtreeFetcherAdapter) FetchDetails(ctx context.Context, post *domain.Post) error {
	logger := contextkeys.LoggerFromContext(ctx)
	fetchLogger := logger.WithFields(port.Fields{"component": "GumtreeFetcherAdapter(FetchDetails)"})

	collector := a.collector.Clone()

	var photoURLs []string
	var criticalError error
	var gone bool

	collector.OnRequest(func(r *colly.Request) {
		fetchLogger.Debug("Making request to fetch post details", port.Fields{
			"url": r.URL.String(),
		})
	})

	collector.OnHTML("div.vip-content", func(e *colly.HTMLElement) {
		detailsToPost(e.DOM, post)
		photoURLs = collectPhotoURLs(e.DOM, a.baseURL, maxDetailPhotos)
	})

	collector.OnError(func(r *colly.Response, err error) {
		fetchLogger.Error("Failed to fetch post details", err, port.Fields{
			"url":    r.Request.URL.String(),
			"status": r.StatusCode,
		})

		// Снятое объявление (404/410) не считается ошибкой запроса:
		// пост остается с данными списочной страницы
		if r.StatusCode == http.StatusNotFound || r.StatusCode == http.StatusGone {
			gone = true
			return
		}

		criticalError = fmt.Errorf("gumtree adapter: details request to %s failed with status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	if visitErr := collector.Visit(post.URL); visitErr != nil {
		return fmt.Errorf("gumtree adapter: failed to visit URL %s: %w", post.URL, visitErr)
	}
	collector.Wait()

	if criticalError != nil {
		return criticalError
	}
	if gone {
		fetchLogger.Warn("Post page is gone, keeping listing data only", port.Fields{"url": post.URL})
		return nil
	}

	encoded := make([][]byte, 0, len(photoURLs))
	for _, photoURL := range photoURLs {
		data, err := a.fetchBinary(photoURL)
		if err != nil {
			fetchLogger.Warn("Failed to download photo, skipping", port.Fields{
				"url":   photoURL,
				"error": err.Error(),
			})
			continue
		}
		encoded = append(encoded, data)
	}
	if len(encoded) > 0 {
		post.PhotosBlob = imaging.JoinImages(encoded)
	}

	// Если миниатюры на списочной странице не было, строим ее из первой
	// фотографии: матчинг по изображениям опирается на миниатюры
	if len(post.Thumbnail) == 0 && len(encoded) > 0 {
		img, err := imaging.DecodeImage(encoded[0])
		if err == nil {
			if thumb, encErr := imaging.EncodeJPEG(imaging.ScaleToThumbnail(img)); encErr == nil {
				post.Thumbnail = thumb
			}
		}
	}

	return nil
}
