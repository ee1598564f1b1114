package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/payops/payops/internal/shared/constants"
)

type Pagination struct {
	Page     int
	PageSize int
}

// Offset is the number of rows skipped before the page starts.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// ParsePagination reads page and page_size with the API defaults.
func ParsePagination(c *gin.Context) Pagination {
	return ParsePaginationWithLimits(c, constants.DefaultPageSize, constants.MaxPageSize)
}

func ParsePaginationWithLimits(c *gin.Context, defaultPageSize, maxPageSize int) Pagination {
	p := Pagination{
		Page:     queryInt(c, "page", constants.DefaultPage),
		PageSize: queryInt(c, "page_size", defaultPageSize),
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

// queryInt ignores values that are not positive integers.
func queryInt(c *gin.Context, key string, fallback int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// ApplyPagination returns the bounds of the page within a list of total items.
func ApplyPagination(total, page, pageSize int) (start, end int) {
	start = min(max(page-1, 0)*pageSize, total)
	end = min(start+pageSize, total)
	return start, end
}

// TotalPages never reports fewer than one page.
func TotalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 1
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
