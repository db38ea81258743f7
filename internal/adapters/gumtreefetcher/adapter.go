package gumtreefetcher

import (
	"fmt"
	"time"

	"flat-crawler-service/internal/core/domain"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
)

// GumtreeFetcherAdapter отвечает за все взаимодействия с сайтом Gumtree
type GumtreeFetcherAdapter struct {
	// родительский коллектор, который разделяет лимиты
	collector *colly.Collector
	baseURL   string
}

// NewGumtreeFetcherAdapter - конструктор
func NewGumtreeFetcherAdapter(baseURL string) (*GumtreeFetcherAdapter, error) {
	// родительский коллектор. Домены не ограничиваем: фотографии
	// раздаются с отдельного CDN
	c := colly.NewCollector(colly.AllowURLRevisit())

	// Эти правила будут наследоваться всеми клонами коллектора
	err := c.Limit(&colly.LimitRule{
		DomainGlob: "*gumtree*",

		// Параллелизм на уровне HTTP-запросов
		Parallelism: 1,

		// задержка от 0 до 2 секунд после завершения предыдущего
		RandomDelay: 2 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("GumtreeFetcherAdapter: failed to set limit rule: %w", err)
	}

	extensions.RandomUserAgent(c) // На каждый запрос будет подставлен User-Agent реального браузера
	extensions.Referer(c)         // Автоматически подставляет заголовок Referer, имитируя навигацию

	return &GumtreeFetcherAdapter{
		collector: c,
		baseURL:   baseURL,
	}, nil
}

// Source возвращает идентификатор источника
func (a *GumtreeFetcherAdapter) Source() domain.Source {
	return domain.SourceGumtree
}

// fetchBinary скачивает бинарный ресурс (изображение) через клон коллектора.
func (a *GumtreeFetcherAdapter) fetchBinary(url string) ([]byte, error) {
	collector := a.collector.Clone()

	var body []byte
	var responseErr error

	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	collector.OnError(func(r *colly.Response, err error) {
		responseErr = fmt.Errorf("gumtree adapter: request to %s failed with status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	if err := collector.Visit(url); err != nil {
		return nil, fmt.Errorf("gumtree adapter: failed to visit %s: %w", url, err)
	}
	collector.Wait()

	if responseErr != nil {
		return nil, responseErr
	}
	return body, nil
}
