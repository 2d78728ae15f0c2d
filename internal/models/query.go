package models

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"oscar-gateway/internal/validate"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 1000
)

// ListQuery - нормализованные параметры списочных запросов: пагинация,
// сортировка, фильтр и временной диапазон.
type ListQuery struct {
	Page      int
	PerPage   int
	Column    string
	Order     string
	Filter    string
	Search    string
	StartTime *time.Time
	EndTime   *time.Time
	// Offset задан, если клиент прислал skip; он уходит в апстрим как есть.
	Offset    *int
}

// Skip возвращает смещение первой записи страницы.
func (q ListQuery) Skip() int {
	if q.Offset != nil {
		return *q.Offset
	}
	return (q.Page - 1) * q.PerPage
}

// Desc сообщает, запрошена ли сортировка по убыванию.
func (q ListQuery) Desc() bool {
	return q.Order == "desc"
}

// TotalPages считает количество страниц для total записей.
func (q ListQuery) TotalPages(total int) int {
	if q.PerPage <= 0 || total <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(q.PerPage)))
}

// ParseListQuery принимает как "page/perPage", так и "skip/limit",
// "sort" и "order" как синонимы.
func ParseListQuery(values url.Values) (ListQuery, error) {
	q := ListQuery{Page: 1, PerPage: DefaultPerPage}

	perPage := first(values, "perPage", "limit", "per_page")
	if perPage != "" {
		n, err := strconv.Atoi(perPage)
		if err != nil || n < 1 {
			return q, validate.Errorf("perPage", "perPage must be a positive integer")
		}
		q.PerPage = min(n, MaxPerPage)
	}

	if page := values.Get("page"); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			return q, validate.Errorf("page", "page must be a positive integer")
		}
		q.Page = n
	} else if skip := values.Get("skip"); skip != "" {
		n, err := strconv.Atoi(skip)
		if err != nil || n < 0 {
			return q, validate.Errorf("skip", "skip must be a non-negative integer")
		}
		q.Page = n/q.PerPage + 1
		q.Offset = &n
	}

	q.Column = first(values, "column", "sort_by")
	order := strings.ToLower(first(values, "sort", "order"))
	switch order {
	case "", "asc", "desc":
		q.Order = order
	default:
		return q, validate.Errorf("sort", "sort must be asc or desc")
	}

	if filter := values.Get("filter"); filter != "" {
		if !json.Valid([]byte(filter)) {
			return q, validate.Errorf("filter", "filter must be valid JSON")
		}
		q.Filter = filter
	}
	q.Search = strings.TrimSpace(first(values, "q", "search"))

	var err error
	if q.StartTime, err = parseTime("start_time", values.Get("start_time")); err != nil {
		return q, err
	}
	if q.EndTime, err = parseTime("end_time", values.Get("end_time")); err != nil {
		return q, err
	}
	if q.StartTime != nil && q.EndTime != nil && q.EndTime.Before(*q.StartTime) {
		return q, validate.Errorf("end_time", "end_time must not be before start_time")
	}
	return q, nil
}

// Upstream переводит запрос в параметры middleware API.
func (q ListQuery) Upstream() url.Values {
	out := url.Values{}
	out.Set("skip", strconv.Itoa(q.Skip()))
	out.Set("limit", strconv.Itoa(q.PerPage))
	if q.Column != "" {
		out.Set("sort_by", q.Column)
	}
	if q.Order != "" {
		out.Set("order", q.Order)
	}
	if q.Filter != "" {
		out.Set("filter", q.Filter)
	}
	if q.Search != "" {
		out.Set("search", q.Search)
	}
	if q.StartTime != nil {
		out.Set("start_time", q.StartTime.UTC().Format(time.RFC3339))
	}
	if q.EndTime != nil {
		out.Set("end_time", q.EndTime.UTC().Format(time.RFC3339))
	}
	return out
}

func parseTime(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		t := time.Unix(secs, 0).UTC()
		return &t, nil
	}
	return nil, validate.Errorf(field, "%s must be an RFC 3339 timestamp or unix seconds", field)
}

func first(values url.Values, keys ...string) string {
	for _, k := range keys {
		if v := values.Get(k); v != "" {
			return v
		}
	}
	return ""
}
