package configs

import (
	"fmt"
	"os"

	"flat-crawler-service/internal/core/domain"

	yaml "gopkg.in/yaml.v2"
)

// crawlQueriesFile — корневая структура yaml-файла с запросами
type crawlQueriesFile struct {
	Queries []domain.CrawlQuery `yaml:"queries"`
}

// LoadCrawlQueries читает параметризации запросов обхода из yaml-файла.
func LoadCrawlQueries(path string) ([]domain.CrawlQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading crawl queries file %s: %w", path, err)
	}

	var file crawlQueriesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing crawl queries file %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(file.Queries))
	for i, q := range file.Queries {
		if q.Name == "" {
			return nil, fmt.Errorf("crawl query #%d has no name", i+1)
		}
		if q.Source == "" {
			return nil, fmt.Errorf("crawl query %q has no source", q.Name)
		}
		// Name скоупит учет покрытых дат, дубликаты смешали бы прогресс
		// разных запросов
		if _, dup := seen[q.Name]; dup {
			return nil, fmt.Errorf("duplicate crawl query name %q", q.Name)
		}
		seen[q.Name] = struct{}{}
	}

	return file.Queries, nil
}
