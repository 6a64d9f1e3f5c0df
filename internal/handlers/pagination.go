package handlers

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	maxPageLimit = 100
	// maxPage keeps (page-1)*limit inside int64.
	maxPage = math.MaxInt64 / maxPageLimit
)

var errInvalidPagination = errors.New("invalid pagination params")

// parsePaginationParams reads page/limit. limit falls back to defaultLimit and
// is capped at maxPageLimit.
func parsePaginationParams(pageStr, limitStr string, defaultLimit int64) (int64, int64, error) {
	page := int64(1)
	limit := defaultLimit

	if s := strings.TrimSpace(pageStr); s != "" {
		p, err := strconv.ParseInt(s, 10, 64)
		if err != nil || p < 1 {
			return 0, 0, errInvalidPagination
		}
		page = min(p, maxPage)
	}

	if s := strings.TrimSpace(limitStr); s != "" {
		l, err := strconv.ParseInt(s, 10, 64)
		if err != nil || l < 1 {
			return 0, 0, errInvalidPagination
		}
		limit = l
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	return page, limit, nil
}

func pageOptions(page, limit int64) *options.FindOptions {
	return options.Find().SetSkip((page - 1) * limit).SetLimit(limit)
}
