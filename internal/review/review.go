// Package review holds the view-model logic of the comment review screen:
// filtering the cached rows, per-category counts, category suggestions and
// category colours. Everything here is pure and works on in-memory slices.
package review

import (
	"sort"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"annotate/internal/models"
)

// Palette is the set of row background colours, indexed by CategoryColorIndex.
var Palette = []string{
	"#fef2f2", // red
	"#fdf4ff", // purple
	"#f5f3ff", // violet
	"#eff6ff", // blue
	"#f0fdf4", // green
	"#fefce8", // yellow
	"#fff7ed", // orange
}

// Row is a cached comment plus its local editing state.
type Row struct {
	models.Comment
	// Edited is set while a change has not been confirmed by the backend.
	Edited bool `json:"edited"`
}

// Filter narrows the visible rows.
type Filter struct {
	Text     string
	Category string
	// FocusedID keeps the row being edited visible even when it stops
	// matching. Zero means no focus.
	FocusedID int64
}

// IsZero reports whether the filter has no predicates.
func (f Filter) IsZero() bool {
	return f.Text == "" && f.Category == ""
}

// Matches reports whether a single row passes the filter.
func (f Filter) Matches(r Row) bool {
	if f.IsZero() {
		return true
	}
	if f.FocusedID != 0 && r.ID == f.FocusedID {
		return true
	}
	matchesText := f.Text == "" ||
		strings.Contains(strings.ToLower(r.Comment.Comment), strings.ToLower(f.Text))
	matchesCategory := f.Category == "" ||
		strings.Contains(strings.ToLower(r.Category), strings.ToLower(f.Category))
	return matchesText && matchesCategory
}

// Apply returns the rows passing the filter, in their original order. With
// no predicates the input slice itself is returned.
func (f Filter) Apply(rows []Row) []Row {
	if f.IsZero() {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// CategoryStats counts rows per exact category string.
//
// SortByCount orders by descending count, ties broken by category. Any other
// key orders categories with locale-aware collation.
func CategoryStats(rows []Row, key models.SortKey) []models.CategoryStat {
	counts := make(map[string]int)
	for _, r := range rows {
		counts[r.Category]++
	}
	stats := make([]models.CategoryStat, 0, len(counts))
	for category, n := range counts {
		stats = append(stats, models.CategoryStat{Category: category, Count: n})
	}

	col := collate.New(language.Und)
	byName := func(a, b string) bool {
		if c := col.CompareString(a, b); c != 0 {
			return c < 0
		}
		return a < b
	}
	if key == models.SortByCount {
		sort.Slice(stats, func(i, j int) bool {
			if stats[i].Count != stats[j].Count {
				return stats[i].Count > stats[j].Count
			}
			return byName(stats[i].Category, stats[j].Category)
		})
		return stats
	}
	sort.Slice(stats, func(i, j int) bool {
		return byName(stats[i].Category, stats[j].Category)
	})
	return stats
}

// UniqueCategories returns the distinct categories in the rows, sorted.
func UniqueCategories(rows []Row) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0)
	for _, r := range rows {
		if _, ok := seen[r.Category]; ok {
			continue
		}
		seen[r.Category] = struct{}{}
		out = append(out, r.Category)
	}
	sort.Strings(out)
	return out
}

// MergeCategories unions category lists into one sorted, de-duplicated list.
func MergeCategories(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, l := range lists {
		for _, c := range l {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Suggest returns the known categories containing input, case-insensitively.
// The empty category and the input itself are never suggested. Prefix matches
// come first. limit <= 0 means no limit.
func Suggest(categories []string, input string, limit int) []string {
	current := strings.TrimSpace(input)
	needle := strings.ToLower(current)
	if needle == "" {
		return []string{}
	}
	var prefix, inner []string
	for _, c := range categories {
		if c == "" || c == current {
			continue
		}
		lc := strings.ToLower(c)
		switch {
		case strings.HasPrefix(lc, needle):
			prefix = append(prefix, c)
		case strings.Contains(lc, needle):
			inner = append(inner, c)
		}
	}
	out := append(prefix, inner...)
	if out == nil {
		out = []string{}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CategoryColorIndex hashes a category to a Palette index: the sum of its
// UTF-16 code units modulo the palette size.
func CategoryColorIndex(category string) int {
	sum := 0
	for _, u := range utf16.Encode([]rune(category)) {
		sum += int(u)
	}
	return sum % len(Palette)
}

// CategoryColor is the Palette entry for a category.
func CategoryColor(category string) string {
	return Palette[CategoryColorIndex(category)]
}

// RowsFromComments wraps freshly fetched comments as unedited rows.
func RowsFromComments(comments []models.Comment) []Row {
	rows := make([]Row, len(comments))
	for i, c := range comments {
		rows[i] = Row{Comment: c}
	}
	return rows
}
