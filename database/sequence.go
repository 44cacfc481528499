package database

import (
	"fmt"
	"strconv"
	"strings"

	"invoice-ledger/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FormatInvoiceNumber renders INV-<year>-<seq> with at least three digits.
func FormatInvoiceNumber(year, seq int) string {
	return fmt.Sprintf("INV-%d-%03d", year, seq)
}

// ParseInvoiceNumber is the inverse of FormatInvoiceNumber.
func ParseInvoiceNumber(number string) (year, seq int, err error) {
	parts := strings.Split(strings.TrimSpace(number), "-")
	if len(parts) != 3 || parts[0] != "INV" {
		return 0, 0, fmt.Errorf("malformed invoice number %q", number)
	}
	if year, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("malformed invoice year in %q", number)
	}
	if seq, err = strconv.Atoi(parts[2]); err != nil || seq <= 0 {
		return 0, 0, fmt.Errorf("malformed invoice sequence in %q", number)
	}
	return year, seq, nil
}

// NextInvoiceNumber reserves the next number for year. It must run inside
// the transaction that creates the invoice; the sequence row stays locked
// until that transaction ends.
func NextInvoiceNumber(tx *gorm.DB, year int) (string, error) {
	seq := models.InvoiceSequence{Year: year}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
		return "", fmt.Errorf("init invoice sequence: %w", err)
	}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("year = ?", year).First(&seq).Error; err != nil {
		return "", fmt.Errorf("lock invoice sequence: %w", err)
	}
	seq.Last++
	if err := tx.Model(&models.InvoiceSequence{}).
		Where("year = ?", year).Update("last", seq.Last).Error; err != nil {
		return "", fmt.Errorf("advance invoice sequence: %w", err)
	}
	return FormatInvoiceNumber(year, seq.Last), nil
}
