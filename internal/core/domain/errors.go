package domain

import (
	"errors"
	"fmt"
)

// Ошибки нарушения инвариантов — падают громко, не проглатываются.
var (
	// ErrDuplicateImageMatch — больше одной кэш-записи на каноническую пару
	// изображений. Продолжать нельзя: сломана каноникализация или запись кэша.
	ErrDuplicateImageMatch = errors.New("multiple ImageMatch rows for the same canonical pair")

	// ErrPostAlreadyMatched — попытка матчить пост, у которого уже есть квартира
	ErrPostAlreadyMatched = errors.New("post already has a flat assigned")

	// ErrPostNotMatched — rematch требует пост с уже назначенной квартирой
	ErrPostNotMatched = errors.New("rematch requires a post with a flat assigned")

	// ErrCandidateWithoutFlat — кандидат без квартиры в выборке оригинальных постов
	ErrCandidateWithoutFlat = errors.New("candidate original post has no flat assigned")

	// ErrSamePostComparison — сравнение двух изображений одного поста вне dry-режима
	ErrSamePostComparison = errors.New("refusing to compare images of the same post (use dry mode)")

	// ErrCrawlDateGap — на странице не нашлось ни одного поста с датой:
	// алгоритм границ дат не может безопасно продвинуться.
	ErrCrawlDateGap = errors.New("crawl page has no posts with a resolvable timestamp")
)

// ComparerError — компаратор упал на корректных с виду данных.
// Это баг качества данных: логируется с полной диагностикой форм и пробрасывается.
type ComparerError struct {
	ComparerID string
	W1, H1     int
	W2, H2     int
	Err        error
}

func (e *ComparerError) Error() string {
	return fmt.Sprintf("comparer %s failed on images %dx%d vs %dx%d: %v",
		e.ComparerID, e.W1, e.H1, e.W2, e.H2, e.Err)
}

func (e *ComparerError) Unwrap() error { return e.Err }
