package model

import (
	"errors"
	"strings"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

var (
	ErrInvalidPagination = errors.New("invalid pagination")
	ErrInvalidSort       = errors.New("invalid sort field")
	ErrInvalidFilter     = errors.New("invalid filter")
)

// ListQuery carries the semantic parameters of a list request.  Two equal
// queries must always produce the same cache key, so every field that
// changes the result set lives here.
type ListQuery struct {
	Offset  int
	Limit   int
	SortBy  string // empty means the store's default order
	Desc    bool
	Filters map[string]string
}

// Normalize applies defaults and validates the query against the sortable
// fields and filters a listing supports.
func (q *ListQuery) Normalize(sortable, filterable []string) error {
	if q.Offset < 0 || q.Limit < 0 || q.Limit > MaxPageLimit {
		return ErrInvalidPagination
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageLimit
	}
	q.SortBy = strings.ToLower(strings.TrimSpace(q.SortBy))
	if q.SortBy != "" && !contains(sortable, q.SortBy) {
		return ErrInvalidSort
	}
	clean := make(map[string]string, len(q.Filters))
	for k, v := range q.Filters {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !contains(filterable, k) {
			return ErrInvalidFilter
		}
		clean[k] = v
	}
	q.Filters = clean
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
