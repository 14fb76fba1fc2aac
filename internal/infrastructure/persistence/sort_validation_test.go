package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestSortColumns_Column(t *testing.T) {
	tests := []struct {
		requested string
		want      string
	}{
		{"", "created_at"},
		{"total", "total"},
		{"  sale_number ", "sale_number"},
		{"TOTAL", "created_at"},
		{"tenant_id", "created_at"},
		{"total; DROP TABLE sales", "created_at"},
		{"total desc, id", "created_at"},
	}
	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			assert.Equal(t, tt.want, saleSortColumns.column(tt.requested))
		})
	}

	assert.Empty(t, sortColumns(nil).column("total"))
}

func TestDescending(t *testing.T) {
	assert.True(t, descending(""))
	assert.True(t, descending("desc"))
	assert.True(t, descending("asc; --"))
	assert.False(t, descending("asc"))
	assert.False(t, descending(" ASC "))
}

func TestSortColumns_ApplyRendersQuotedColumns(t *testing.T) {
	db := newSQLiteDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var out []map[string]any
		return saleSortColumns.apply(tx.Table("sales"), "total", "asc").Find(&out)
	})
	assert.Contains(t, sql, "ORDER BY `total`,`id`")

	sql = db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var out []map[string]any
		return saleSortColumns.apply(tx.Table("sales"), "1; DROP TABLE sales", "").Find(&out)
	})
	assert.Contains(t, sql, "ORDER BY `created_at` DESC,`id` DESC")
	assert.NotContains(t, sql, "DROP")
}
