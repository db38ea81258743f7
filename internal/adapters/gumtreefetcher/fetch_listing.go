package gumtreefetcher

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"

	"github.com/gocolly/colly/v2"
)

// listingTile — промежуточный результат разбора одной плитки выдачи.
// URL миниатюры скачивается отдельным запросом уже после разбора страницы.
type listingTile struct {
	post     *domain.Post
	thumbURL string
}

func (a *GumtreeFetcherAdapter) buildListingURL(query domain.CrawlQuery, page int) (string, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	if query.MinPrice > 0 {
		q.Set("pr.min", strconv.Itoa(query.MinPrice))
	}
	if query.MaxPrice > 0 {
		q.Set("pr.max", strconv.Itoa(query.MaxPrice))
	}
	if query.MinSizeM2 > 0 {
		q.Set("m.min", strconv.FormatFloat(query.MinSizeM2, 'f', -1, 64))
	}
	if query.MaxSizeM2 > 0 {
		q.Set("m.max", strconv.FormatFloat(query.MaxSizeM2, 'f', -1, 64))
	}
	// Сортировка от новых к старым обязательна: на ней держится
	// критерий остановки обхода
	q.Set("sort", "dt")
	q.Set("order", "desc")

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchListingPage загружает и разбирает одну страницу выдачи.
func (a *GumtreeFetcherAdapter) FetchListingPage(ctx context.Context, query domain.CrawlQuery, page int) (*port.ListingPage, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	fetchLogger := logger.WithFields(port.Fields{"component": "GumtreeFetcherAdapter(FetchListingPage)"})

	// Создаем "одноразовый" клон для этого конкретного запроса
	// Он наследует лимиты, но имеет свои собственные обработчики!
	collector := a.collector.Clone()

	var tiles []listingTile
	var hasNext bool
	var responseErr error

	targetURL, err := a.buildListingURL(query, page)
	if err != nil {
		return nil, fmt.Errorf("gumtree adapter: failed to build listing URL: %w", err)
	}

	collector.OnRequest(func(r *colly.Request) {
		fetchLogger.Debug("Making request to fetch listing page", port.Fields{
			"url":  r.URL.String(),
			"page": page,
		})
	})

	collector.OnHTML("div.tileV1", func(e *colly.HTMLElement) {
		tile, parseErr := tileFromSelection(e.DOM, a.baseURL)
		if parseErr != nil {
			fetchLogger.Warn("Failed to parse listing tile, skipping", port.Fields{
				"page":  page,
				"error": parseErr.Error(),
			})
			return
		}
		tiles = append(tiles, tile)
	})

	// Наличие активной стрелки "вперед" означает следующую страницу
	collector.OnHTML("div.pagination a.arrow-right:not(.disabled)", func(e *colly.HTMLElement) {
		hasNext = true
	})

	collector.OnError(func(r *colly.Response, err error) {
		fetchLogger.Error("Failed to fetch listing page", err, port.Fields{
			"url":    r.Request.URL.String(),
			"status": r.StatusCode,
		})
		responseErr = fmt.Errorf("gumtree adapter: request to %s failed with status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	if visitErr := collector.Visit(targetURL); visitErr != nil {
		fetchLogger.Error("Failed to initiate listing visit", visitErr, port.Fields{"url": targetURL})
		return nil, fmt.Errorf("gumtree adapter: failed to visit URL %s: %w", targetURL, visitErr)
	}
	collector.Wait()

	if responseErr != nil {
		return nil, responseErr
	}

	// Миниатюры скачиваются после разбора страницы: они входят в хеш
	// поста, по которому отсекаются уже виденные объявления
	posts := make([]*domain.Post, 0, len(tiles))
	for _, tile := range tiles {
		if tile.thumbURL != "" {
			data, thumbErr := a.fetchBinary(tile.thumbURL)
			if thumbErr != nil {
				fetchLogger.Warn("Failed to download thumbnail", port.Fields{
					"url":   tile.thumbURL,
					"error": thumbErr.Error(),
				})
			} else {
				tile.post.Thumbnail = data
			}
		}
		posts = append(posts, tile.post)
	}

	fetchLogger.Info("Finished fetching listing page", port.Fields{
		"url":      targetURL,
		"page":     page,
		"posts":    len(posts),
		"has_next": hasNext,
	})

	return &port.ListingPage{Posts: posts, HasNext: hasNext}, nil
}
