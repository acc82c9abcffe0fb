package models

import (
	"fmt"
	"strings"
)

// Comment is a single reviewable record as served by the backend.
type Comment struct {
	ID       int64  `json:"id"`
	Comment  string `json:"comment"`
	Category string `json:"category"`
}

// Dataset is a named upload of comments.
type Dataset struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CategoryStat is the number of comments carrying a category.
type CategoryStat struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// SortKey selects how category stats are ordered.
type SortKey string

const (
	SortByCategory SortKey = "category"
	SortByCount    SortKey = "count"
)

// ParseSortKey accepts "category" or "count". Empty means category.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortByCategory:
		return SortByCategory, nil
	case SortByCount:
		return SortByCount, nil
	default:
		return "", fmt.Errorf("%w: unknown sort key %q (expected category or count)", ErrValidation, s)
	}
}
