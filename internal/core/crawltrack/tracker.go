package crawltrack

import (
	"context"
	"time"

	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"
)

// Tracker ведет учет полностью обойденных календарных дат для пары
// (источник, crawl id). Дата считается полностью обойденной, только если
// обход видел посты и старше, и новее нее: значит, между ними ничего
// не пропущено. Граничные даты обхода никогда не отмечаются.
type Tracker struct {
	log     port.CrawlLogPort
	source  domain.Source
	crawlID string
}

func NewTracker(log port.CrawlLogPort, source domain.Source, crawlID string) *Tracker {
	return &Tracker{log: log, source: source, crawlID: crawlID}
}

// NextStartDate возвращает самую раннюю неотмеченную дату в окне
// [now - lookbackDays, now). Если все отмечены, возвращает сегодняшний день.
func (t *Tracker) NextStartDate(ctx context.Context, lookbackDays int, now time.Time) (time.Time, error) {
	today := Midnight(now)
	since := today.AddDate(0, 0, -lookbackDays)

	crawled, err := t.log.ListCrawledDays(ctx, t.source, t.crawlID, since)
	if err != nil {
		return time.Time{}, err
	}

	for day := since; day.Before(today); day = day.AddDate(0, 0, 1) {
		if _, ok := crawled[day]; !ok {
			return day, nil
		}
	}
	return today, nil
}

// RecordProgress отмечает как обойденные все даты строго между oldest и
// newest. Сами граничные даты не отмечаются: их полнота не гарантирована.
// Повторная отметка идемпотентна.
func (t *Tracker) RecordProgress(ctx context.Context, oldest, newest time.Time) error {
	start := Midnight(oldest).AddDate(0, 0, 1)
	end := Midnight(newest)

	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		if err := t.log.MarkDayCrawled(ctx, t.source, t.crawlID, day); err != nil {
			return err
		}
	}
	return nil
}

// Midnight нормализует момент времени к полуночи UTC его календарной даты.
func Midnight(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
