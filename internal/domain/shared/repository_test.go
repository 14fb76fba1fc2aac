package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Paged(t *testing.T) {
	f := DefaultFilter().Paged(3, 50)
	assert.Equal(t, 3, f.Page)
	assert.Equal(t, 50, f.PageSize)
	assert.Equal(t, 100, f.Offset())

	f = DefaultFilter().Paged(0, 0)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, DefaultPageSize, f.PageSize)

	assert.Equal(t, MaxPageSize, DefaultFilter().Paged(1, 1000).PageSize)
}

func TestFilter_Ordered(t *testing.T) {
	f := DefaultFilter().Ordered("total", "ASC")
	assert.Equal(t, "total", f.OrderBy)
	assert.Equal(t, "asc", f.OrderDir)

	f = DefaultFilter().Ordered("", "")
	assert.Equal(t, "created_at", f.OrderBy)
	assert.Equal(t, "desc", f.OrderDir)
}

func TestFilter_Window(t *testing.T) {
	tests := []struct {
		name       string
		filter     Filter
		rows       int
		start, end int
	}{
		{"first page", Filter{Page: 1, PageSize: 20}, 45, 0, 20},
		{"last partial page", Filter{Page: 3, PageSize: 20}, 45, 40, 45},
		{"past the end", Filter{Page: 9, PageSize: 20}, 45, 45, 45},
		{"no paging", Filter{}, 45, 0, 45},
		{"page zero reads as first", Filter{Page: 0, PageSize: 10}, 45, 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.filter.Window(tt.rows)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}
