package database

import (
	"strings"
	"time"

	"invoice-ledger/ledger"

	"gorm.io/gorm"
)

// ForUser restricts a query to rows owned by userID.
func ForUser(userID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	}
}

// WithStatus filters invoices the same way ledger.Classify labels them, with
// due dates compared against the current UTC day.
func WithStatus(status ledger.Status, now time.Time) func(*gorm.DB) *gorm.DB {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return func(db *gorm.DB) *gorm.DB {
		switch status {
		case ledger.Paid:
			return db.Where("paid_at IS NOT NULL")
		case ledger.Overdue:
			return db.Where("paid_at IS NULL AND due_date < ?", today)
		case ledger.Pending:
			return db.Where("paid_at IS NULL AND due_date >= ?", today)
		}
		_ = db.AddError(ledger.ErrInvalidStatus)
		return db
	}
}

// Search matches the invoice number, client name or email, case-insensitively.
func Search(q string) func(*gorm.DB) *gorm.DB {
	q = strings.ToLower(strings.TrimSpace(q))
	return func(db *gorm.DB) *gorm.DB {
		if q == "" {
			return db
		}
		pattern := "%" + escapeLike(q) + "%"
		return db.Where("(LOWER(number) LIKE ? OR LOWER(client_name) LIKE ? OR LOWER(email) LIKE ?)",
			pattern, pattern, pattern)
	}
}

// Paginate applies 1-based page/limit, capping limit at MaxPageSize.
func Paginate(page, limit int) func(*gorm.DB) *gorm.DB {
	page, limit = NormalizePage(page, limit)
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((page - 1) * limit).Limit(limit)
	}
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
