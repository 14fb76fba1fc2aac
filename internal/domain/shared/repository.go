package shared

import "strings"

// Page sizes for list queries
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filter is the paging and ordering of a list query.
// A PageSize of zero returns every row.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

// DefaultFilter is the first page of twenty, newest first
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: DefaultPageSize,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
}

// Paged returns f with page and size applied. Values below 1 keep the current
// setting and size is capped at MaxPageSize.
func (f Filter) Paged(page, size int) Filter {
	if page > 0 {
		f.Page = page
	}
	if size > 0 {
		f.PageSize = min(size, MaxPageSize)
	}
	return f
}

// Ordered returns f ordered by column in direction dir. Empty values keep the current setting.
func (f Filter) Ordered(column, dir string) Filter {
	if column != "" {
		f.OrderBy = column
	}
	if dir != "" {
		f.OrderDir = strings.ToLower(dir)
	}
	return f
}

// Offset returns the row offset of the current page
func (f Filter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Window returns the slice bounds of the current page within n rows
func (f Filter) Window(n int) (start, end int) {
	if f.PageSize <= 0 {
		return 0, n
	}
	start = min(f.Offset(), n)
	return start, min(start+f.PageSize, n)
}
