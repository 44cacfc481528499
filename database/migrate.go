package database

import (
	"fmt"

	"invoice-ledger/models"

	"gorm.io/gorm"
)

// AutoMigrate applies (idempotent) schema migrations:
// - AutoMigrate (tables/columns/index tags)
// - Composite indexes
// - Basic CHECK constraints (postgres only)
func AutoMigrate(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&models.User{},
			&models.Client{},
			&models.Invoice{},
			&models.InvoiceItem{},
			&models.InvoiceVersion{},
			&models.Payment{},
			&models.InvoiceSequence{},
			&models.IdempotencyKey{},
		); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}

		if tx.Dialector.Name() != "postgres" {
			return nil
		}

		indexes := []string{
			`CREATE INDEX IF NOT EXISTS idx_invoices_user_due ON invoices (user_id, due_date)`,
			`CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice_position ON invoice_items (invoice_id, position)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		checks := []struct{ table, name, expr string }{
			{"invoice_items", "chk_invoice_items_quantity_nonneg", "quantity >= 0"},
			{"invoice_items", "chk_invoice_items_unit_price_nonneg", "unit_price >= 0"},
			{"invoices", "chk_invoices_total_nonneg", "total >= 0"},
			{"invoices", "chk_invoices_due_after_issue", "due_date >= issue_date"},
			{"payments", "chk_payments_amount_pos", "amount > 0"},
		}
		for _, c := range checks {
			if err := tx.Exec(checkConstraintSQL(c.table, c.name, c.expr)).Error; err != nil {
				return fmt.Errorf("check constraint %s failed: %w", c.name, err)
			}
		}
		return nil
	})
}

func checkConstraintSQL(table, name, expr string) string {
	return fmt.Sprintf(`DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_constraint
		WHERE conrelid = '%[1]s'::regclass
		  AND conname  = '%[2]s'
	) THEN
		ALTER TABLE %[1]s
		ADD CONSTRAINT %[2]s
		CHECK (%[3]s);
	END IF;
END $$;`, table, name, expr)
}
