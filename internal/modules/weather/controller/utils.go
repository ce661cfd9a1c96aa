package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/types"
)

const (
	defaultLimit = 400
	maxLimit     = 5000
)

// parseRangeQuery reads from, to and limit. Bounds accept RFC3339 or a plain
// calendar date.
func parseRangeQuery(r *http.Request) (from time.Time, to time.Time, limit int, err error) {
	q := r.URL.Query()

	if s := q.Get("from"); s != "" {
		from, err = parseBound(s)
		if err != nil {
			return time.Time{}, time.Time{}, 0, errors.New("invalid 'from' (expected RFC3339 or YYYY-MM-DD)")
		}
	}
	if s := q.Get("to"); s != "" {
		to, err = parseBound(s)
		if err != nil {
			return time.Time{}, time.Time{}, 0, errors.New("invalid 'to' (expected RFC3339 or YYYY-MM-DD)")
		}
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, 0, errors.New("'from' must be <= 'to'")
	}

	limit = defaultLimit
	if s := q.Get("limit"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return time.Time{}, time.Time{}, 0, errors.New("invalid 'limit' (expected integer)")
		}
		if n <= 0 {
			return time.Time{}, time.Time{}, 0, errors.New("'limit' must be > 0")
		}
		if n > maxLimit {
			return time.Time{}, time.Time{}, 0, errors.New("'limit' must be <= 5000")
		}
		limit = n
	}

	return from, to, limit, nil
}

func parseBound(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(types.DateLayout, s)
}
