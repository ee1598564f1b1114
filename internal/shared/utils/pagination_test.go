package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/payops/payops/internal/shared/constants"
)

func contextWithQuery(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/v1/routing/rules?"+query, nil)
	return c
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantPage     int
		wantPageSize int
	}{
		{"defaults", "", constants.DefaultPage, constants.DefaultPageSize},
		{"explicit", "page=3&page_size=25", 3, 25},
		{"capped", "page_size=100000", constants.DefaultPage, constants.MaxPageSize},
		{"garbage falls back", "page=abc&page_size=-4", constants.DefaultPage, constants.DefaultPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParsePagination(contextWithQuery(tt.query))
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantPageSize, p.PageSize)
		})
	}
}

func TestPagination_Offset(t *testing.T) {
	assert.Equal(t, 0, Pagination{Page: 1, PageSize: 20}.Offset())
	assert.Equal(t, 40, Pagination{Page: 3, PageSize: 20}.Offset())
}

func TestApplyPagination(t *testing.T) {
	start, end := ApplyPagination(45, 3, 20)
	assert.Equal(t, 40, start)
	assert.Equal(t, 45, end)

	start, end = ApplyPagination(10, 5, 20)
	assert.Equal(t, 10, start)
	assert.Equal(t, 10, end)

	start, end = ApplyPagination(10, 0, 20)
	assert.Equal(t, 0, start)
	assert.Equal(t, 10, end)
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 1, TotalPages(0, 20))
	assert.Equal(t, 1, TotalPages(20, 20))
	assert.Equal(t, 3, TotalPages(41, 20))
	assert.Equal(t, 1, TotalPages(41, 0))
}
