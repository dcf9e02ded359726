package request

import (
	"net/http"
	"strconv"
)

// Pagination carries the cursor parameters of the backup and API key
// listings.
type Pagination struct {
	Limit  int
	Cursor string
}

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ParsePagination reads limit and cursor from the query string.
// Malformed or non-positive limits fall back to the default; limits
// above MaxLimit are clamped.
func ParsePagination(r *http.Request) Pagination {
	q := r.URL.Query()
	p := Pagination{
		Limit:  DefaultLimit,
		Cursor: q.Get("cursor"),
	}

	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	return p
}
