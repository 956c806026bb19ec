package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/busybee/internal/constants"
)

// PaginationParams holds the pagination parameters
type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
}

// GetPaginationParams extracts and validates pagination parameters from the
// request. ok is false when the request asks for neither page nor limit, in
// which case the caller returns the whole list.
func GetPaginationParams(c *gin.Context) (params PaginationParams, ok bool) {
	pageStr, hasPage := c.GetQuery("page")
	limitStr, hasLimit := c.GetQuery("limit")
	if !hasPage && !hasLimit {
		return PaginationParams{}, false
	}

	page, _ := strconv.Atoi(pageStr)
	limit, _ := strconv.Atoi(limitStr)

	if page < constants.MinPageSize {
		page = constants.MinPageSize
	}
	if limit < constants.MinPageSize || limit > constants.MaxPageSize {
		limit = constants.DefaultPageSize
	}

	return PaginationParams{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}, true
}

// Paginate slices items to the requested page. Pages past the end are empty.
func Paginate[T any](items []T, params PaginationParams) []T {
	if params.Offset >= len(items) {
		return items[:0]
	}
	end := min(params.Offset+params.Limit, len(items))
	return items[params.Offset:end]
}
