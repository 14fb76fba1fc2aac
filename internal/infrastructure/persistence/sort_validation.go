package persistence

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sortColumns whitelists the columns a list query may be ordered by.
// Anything else from the request falls back to the first column.
type sortColumns []string

// saleSortColumns are the sale list orderings, created_at first
var saleSortColumns = sortColumns{"created_at", "updated_at", "sale_number", "status", "total", "completed_at"}

// column returns the whitelisted column matching requested, or the default
func (s sortColumns) column(requested string) string {
	requested = strings.TrimSpace(requested)
	for _, c := range s {
		if c == requested {
			return c
		}
	}
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// descending reports whether dir asks for newest first. Only "asc" sorts ascending.
func descending(dir string) bool {
	return !strings.EqualFold(strings.TrimSpace(dir), "asc")
}

// apply orders query by the requested column and breaks ties on id so pages are stable
func (s sortColumns) apply(query *gorm.DB, orderBy, orderDir string) *gorm.DB {
	desc := descending(orderDir)
	return query.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: s.column(orderBy)}, Desc: desc},
		{Column: clause.Column{Name: "id"}, Desc: desc},
	}})
}
