package api

import (
	"net/http"
	"strconv"
)

// parseLimit parses the page-size parameter from an HTTP request, clamping it
// to (0, maxLimit].
func parseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	return limit
}
