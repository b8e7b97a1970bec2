package catalog

import (
	"fmt"
	"strings"
)

// Pagination bounds for product listings.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// sortFields is the allow-list of product columns a listing may be ordered by.
var sortFields = map[string]struct{}{
	"name":            {},
	"price":           {},
	"created_at":      {},
	"available_items": {},
}

// InvalidQueryError indicates a malformed listing parameter. It maps to a
// 400 response at the HTTP layer.
type InvalidQueryError struct {
	Param  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid %s parameter: %s", e.Param, e.Reason)
}

// ListQuery is a validated product listing request: category filtering,
// ordering and pagination.
type ListQuery struct {
	// CategoryIDs filters products to (or, when ExcludeCategories is set,
	// away from) the given category memberships. Empty means no filter.
	CategoryIDs       []string
	ExcludeCategories bool

	// SortField is one of the allow-listed product columns; SortDesc reverses
	// the order. An empty SortField keeps the default name ordering.
	SortField string
	SortDesc  bool

	Page     int
	PageSize int
}

// ParseListQuery validates raw query parameters into a ListQuery.
//
// The category parameter is a comma-separated list of category IDs; a leading
// "-" excludes the listed categories instead of including them. The sort
// parameter names a product field, with a leading "-" for descending order.
func ParseListQuery(category, sort string, page, pageSize int) (ListQuery, error) {
	q := ListQuery{
		SortField: "name",
		Page:      page,
		PageSize:  pageSize,
	}

	if category != "" {
		if strings.HasPrefix(category, "-") {
			q.ExcludeCategories = true
			category = category[1:]
		}
		for _, id := range strings.Split(category, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				return ListQuery{}, &InvalidQueryError{Param: "category", Reason: "empty category ID"}
			}
			q.CategoryIDs = append(q.CategoryIDs, id)
		}
	}

	if sort != "" {
		field := sort
		if strings.HasPrefix(field, "-") {
			q.SortDesc = true
			field = field[1:]
		}
		if _, ok := sortFields[field]; !ok {
			return ListQuery{}, &InvalidQueryError{Param: "sort", Reason: fmt.Sprintf("unknown field %q", field)}
		}
		q.SortField = field
	}

	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.PageSize < 1:
		q.PageSize = DefaultPageSize
	case q.PageSize > MaxPageSize:
		q.PageSize = MaxPageSize
	}

	return q, nil
}

// Offset returns the row offset for the query's page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}
