package gumtreefetcher

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"flat-crawler-service/internal/core/domain"

	"github.com/PuerkitoBio/goquery"
)

// nonDigits вырезает из строки цены все, кроме цифр
var nonDigits = regexp.MustCompile(`[^\d]`)

// tileFromSelection разбирает одну плитку списочной выдачи в частично
// заполненный пост. Детальные поля дозаполняет FetchDetails.
func tileFromSelection(sel *goquery.Selection, baseURL string) (listingTile, error) {
	link := sel.Find("div.title a.href-link").First()
	href, ok := link.Attr("href")
	if !ok || href == "" {
		return listingTile{}, fmt.Errorf("listing tile has no link")
	}

	heading := strings.TrimSpace(link.Text())
	if heading == "" {
		return listingTile{}, fmt.Errorf("listing tile has no heading")
	}

	absURL, err := absoluteURL(baseURL, href)
	if err != nil {
		return listingTile{}, fmt.Errorf("resolving tile link %q: %w", href, err)
	}

	price, err := parsePrice(sel.Find("span.ad-price").First().Text())
	if err != nil {
		return listingTile{}, fmt.Errorf("parsing tile price: %w", err)
	}

	post := &domain.Post{
		Source:  domain.SourceGumtree,
		URL:     absURL,
		Heading: heading,
		Price:   price,
	}

	if district := strings.TrimSpace(sel.Find("div.category-location span").First().Text()); district != "" {
		post.District = &district
	}

	if postedAt, ok := parsePostedAt(sel.Find("div.creation-date span").Last().Text(), time.Now()); ok {
		post.PostedAt = &postedAt
	}

	tile := listingTile{post: post}
	if src, ok := sel.Find("div.bolt-image img").First().Attr("src"); ok {
		if thumbURL, err := absoluteURL(baseURL, src); err == nil {
			tile.thumbURL = thumbURL
		}
	}
	return tile, nil
}

// detailFieldExtractors — упорядоченная таблица разборщиков полей страницы
// объявления. Поле опознается по префиксу метки: сайт дописывает к меткам
// единицы измерения ("Wielkość (m2)").
var detailFieldExtractors = []struct {
	label string
	apply func(post *domain.Post, value string)
}{
	{"Wielkość", func(post *domain.Post, value string) {
		if size, err := parseSize(value); err == nil {
			post.SizeM2 = &size
		}
	}},
	{"Lokalizacja", func(post *domain.Post, value string) {
		district, subDistrict, street := splitLocation(value)
		if district != "" {
			post.District = &district
		}
		if subDistrict != "" {
			post.SubDistrict = &subDistrict
		}
		if street != "" {
			post.Street = &street
		}
	}},
}

// detailsToPost переносит поля страницы объявления в пост. Поля, которых
// на странице нет, остаются как были.
func detailsToPost(sel *goquery.Selection, post *domain.Post) {
	if desc := strings.TrimSpace(sel.Find("div.description span.pre").First().Text()); desc != "" {
		post.Desc = desc
	}

	sel.Find("ul.selMenu li").Each(func(_ int, item *goquery.Selection) {
		label := strings.TrimSpace(item.Find("span.name").Text())
		value := strings.TrimSpace(item.Find("span.value").Text())
		if value == "" {
			return
		}

		for _, extractor := range detailFieldExtractors {
			if strings.HasPrefix(label, extractor.label) {
				extractor.apply(post, value)
				return
			}
		}
	})
}

// collectPhotoURLs собирает абсолютные URL фотографий галереи, не более max.
func collectPhotoURLs(sel *goquery.Selection, baseURL string, max int) []string {
	var urls []string
	seen := make(map[string]struct{})

	sel.Find("div.vip-gallery img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, ok := img.Attr("data-src")
		if !ok {
			src, ok = img.Attr("src")
		}
		if !ok || src == "" {
			return true
		}

		absURL, err := absoluteURL(baseURL, src)
		if err != nil {
			return true
		}
		if _, dup := seen[absURL]; dup {
			return true
		}
		seen[absURL] = struct{}{}
		urls = append(urls, absURL)
		return len(urls) < max
	})
	return urls
}

// parsePrice разбирает строку цены вида "2 400 zł" в целые злотые.
func parsePrice(raw string) (int, error) {
	digits := nonDigits.ReplaceAllString(raw, "")
	if digits == "" {
		return 0, fmt.Errorf("price string %q has no digits", raw)
	}
	price, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("parsing price %q: %w", raw, err)
	}
	return price, nil
}

// parseSize разбирает значение размера вида "48 m2" или "48,5".
func parseSize(raw string) (float64, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimSuffix(cleaned, "m2")
	cleaned = strings.TrimSuffix(cleaned, "m²")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	return strconv.ParseFloat(cleaned, 64)
}

// parsePostedAt разбирает дату публикации. Выдача показывает относительные
// даты для свежих объявлений и календарные для остальных.
func parsePostedAt(raw string, now time.Time) (time.Time, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" {
		return time.Time{}, false
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch {
	case strings.Contains(cleaned, "dzisiaj"), strings.Contains(cleaned, "min temu"),
		strings.Contains(cleaned, "godz. temu"):
		return today, true
	case strings.Contains(cleaned, "wczoraj"):
		return today.AddDate(0, 0, -1), true
	case strings.Contains(cleaned, "dni temu"):
		digits := nonDigits.ReplaceAllString(cleaned, "")
		if days, err := strconv.Atoi(digits); err == nil {
			return today.AddDate(0, 0, -days), true
		}
		return time.Time{}, false
	}

	if ts, err := time.Parse("02/01/2006", cleaned); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

// splitLocation делит строку локации "Район, Подрайон, Улица" на части.
func splitLocation(raw string) (district, subDistrict, street string) {
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) > 0 {
		district = parts[0]
	}
	if len(parts) > 1 {
		subDistrict = parts[1]
	}
	if len(parts) > 2 {
		street = strings.Join(parts[2:], ", ")
	}
	return district, subDistrict, street
}

func absoluteURL(baseURL, href string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
