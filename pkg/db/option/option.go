// Package option provides composable query modifiers for GORM lookups.
package option

import (
	"strings"
	"time"

	"github.com/rxbuddy/loyalty/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a GORM query before execution.
type QueryOption func(*gorm.DB) *gorm.DB

// QuerySortBy restricts sortable columns to an allow list.
type QuerySortBy struct {
	Allow map[string]bool
	Field string
	Desc  bool
}

// ApplyPagination applies a cursor filter plus a pageSize+1 limit so the
// caller can detect whether more rows exist.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		size := page.PageSize
		if size <= 0 {
			size = 50
		}
		if token := strings.TrimSpace(page.PageToken); token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err == nil {
				// Bind the timestamp as time.Time so drivers compare
				// chronologically rather than textually.
				var at interface{} = cursor.CreatedAt
				if parsed, perr := time.Parse(time.RFC3339Nano, cursor.CreatedAt); perr == nil {
					at = parsed
				}
				tx = tx.Where(
					"(created_at < ?) OR (created_at = ? AND id < ?)",
					at, at, cursor.ID,
				)
			}
		}
		return tx.Limit(size + 1)
	}
}

// WithSortBy orders results by an allowed column, newest first by default.
func WithSortBy(sort QuerySortBy) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" || !sort.Allow[field] {
			field = "created_at"
		}
		direction := "DESC"
		if !sort.Desc && sort.Field != "" {
			direction = "ASC"
		}
		return tx.Order(field + " " + direction).Order("id DESC")
	}
}
