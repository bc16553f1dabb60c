package pagination

import (
	"fmt"

	"github.com/timmy/vehicle-catalog/internal/domain"
)

// Limits bounds the page size callers may request.
type Limits struct {
	DefaultSize int
	MaxSize     int
}

// DefaultLimits returns the default page size limits.
func DefaultLimits() Limits {
	return Limits{DefaultSize: 20, MaxSize: 100}
}

// PageRequest is a validated forward page request.
type PageRequest struct {
	First int
	// After is the decoded natural key of the last item of the previous page.
	After    int64
	HasAfter bool
}

// NewPageRequest validates first and decodes after. first <= 0 selects the
// default size; an empty after starts from the beginning.
func NewPageRequest(first int, after string, limits Limits) (PageRequest, error) {
	if first < 0 {
		return PageRequest{}, domain.NewValidationError("first", "must not be negative")
	}
	if first == 0 {
		first = limits.DefaultSize
	}
	if limits.MaxSize > 0 && first > limits.MaxSize {
		return PageRequest{}, domain.NewValidationError("first", fmt.Sprintf("must be at most %d", limits.MaxSize))
	}

	req := PageRequest{First: first}
	if after != "" {
		key, err := Decode(after)
		if err != nil {
			return PageRequest{}, err
		}
		req.After = key
		req.HasAfter = true
	}
	return req, nil
}

// PageInfo describes the window a page covers.
type PageInfo struct {
	HasNextPage     bool    `json:"hasNextPage"`
	HasPreviousPage bool    `json:"hasPreviousPage"`
	StartCursor     *string `json:"startCursor"`
	EndCursor       *string `json:"endCursor"`
}

// Edge pairs a node with its cursor.
type Edge[T any] struct {
	Cursor string `json:"cursor"`
	Node   T      `json:"node"`
}

// Connection is one page of results.
type Connection[T any] struct {
	Edges      []Edge[T] `json:"edges"`
	PageInfo   PageInfo  `json:"pageInfo"`
	TotalCount int64     `json:"totalCount"`
}

// Nodes returns the page's nodes in order.
func (c Connection[T]) Nodes() []T {
	out := make([]T, 0, len(c.Edges))
	for _, e := range c.Edges {
		out = append(out, e.Node)
	}
	return out
}

// BuildConnection trims a result fetched with First+1 rows into a page.
// hasPreviousPage is true iff the request carried an after cursor.
func BuildConnection[T any](req PageRequest, rows []T, keyOf func(T) int64, total int64) Connection[T] {
	hasNext := len(rows) > req.First
	if hasNext {
		rows = rows[:req.First]
	}

	conn := Connection[T]{
		Edges:      make([]Edge[T], 0, len(rows)),
		TotalCount: total,
		PageInfo: PageInfo{
			HasNextPage:     hasNext,
			HasPreviousPage: req.HasAfter,
		},
	}
	for _, row := range rows {
		conn.Edges = append(conn.Edges, Edge[T]{Cursor: Encode(keyOf(row)), Node: row})
	}
	if n := len(conn.Edges); n > 0 {
		start, end := conn.Edges[0].Cursor, conn.Edges[n-1].Cursor
		conn.PageInfo.StartCursor = &start
		conn.PageInfo.EndCursor = &end
	}
	return conn
}
