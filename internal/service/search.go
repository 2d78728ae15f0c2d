package service

import (
	_ "embed"
	"fmt"
	"log"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed search_index.yaml
var defaultIndex []byte

const (
	bucketCap         = 5
	singleCategoryCap = 5
	multiCategoryCap  = 3
)

type SearchLink struct {
	Title string `yaml:"title" json:"title"`
	Href  string `yaml:"href" json:"href"`
}

type SearchCategory struct {
	Title string       `yaml:"title"`
	Links []SearchLink `yaml:"links"`
}

// SearchResult - одна ссылка в выдаче вместе с названием категории.
type SearchResult struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Href     string `json:"href"`
}

// Searcher ранжирует статический индекс ссылок консоли.
type Searcher struct {
	categories []SearchCategory
}

// NewSearcher загружает встроенный индекс.
func NewSearcher() (*Searcher, error) {
	return NewSearcherFromYAML(defaultIndex)
}

// NewSearcherFromYAML загружает индекс из YAML-документа.
func NewSearcherFromYAML(data []byte) (*Searcher, error) {
	var doc struct {
		Categories []SearchCategory `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse search index: %w", err)
	}
	return &Searcher{categories: doc.Categories}, nil
}

type categoryMatch struct {
	title    string
	prefix   []SearchLink
	contains []SearchLink
}

// Search делит ссылки каждой категории на совпадения по префиксу и по
// подстроке (не более 5 в каждой корзине). Категории с совпадением по
// префиксу идут первыми, остальные - в порядке индекса. Если совпала одна
// категория, из нее берется до 5 ссылок, иначе до 3 из каждой.
func (s *Searcher) Search(query string) []SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	results := []SearchResult{}
	if q == "" {
		return results
	}

	var matched []categoryMatch
	for _, cat := range s.categories {
		m := categoryMatch{title: cat.Title}
		for _, link := range cat.Links {
			title := strings.ToLower(link.Title)
			switch {
			case strings.HasPrefix(title, q):
				if len(m.prefix) < bucketCap {
					m.prefix = append(m.prefix, link)
				}
			case strings.Contains(title, q):
				if len(m.contains) < bucketCap {
					m.contains = append(m.contains, link)
				}
			}
		}
		if len(m.prefix)+len(m.contains) > 0 {
			matched = append(matched, m)
		}
	}
	if len(matched) == 0 {
		return results
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return len(matched[i].prefix) > 0 && len(matched[j].prefix) == 0
	})

	limit := multiCategoryCap
	if len(matched) == 1 {
		limit = singleCategoryCap
	}
	for _, m := range matched {
		links := append(append([]SearchLink{}, m.prefix...), m.contains...)
		if len(links) > limit {
			links = links[:limit]
		}
		for _, l := range links {
			results = append(results, SearchResult{Category: m.title, Title: l.Title, Href: l.Href})
		}
	}

	log.Printf("Search %q matched %d categories, %d links", query, len(matched), len(results))
	return results
}
