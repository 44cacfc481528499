package models

import (
	"errors"
	"time"

	"invoice-ledger/ledger"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Invoice is a submitted draft. Its status is never stored; it is derived
// from the due date and payments whenever the invoice is read.
type Invoice struct {
	ID         uint   `json:"-" gorm:"primaryKey"`
	Number     string `json:"id" gorm:"size:32;not null;uniqueIndex"`
	UserID     string `json:"-" gorm:"size:36;not null;index"`
	ClientID   uint   `json:"-" gorm:"index"`
	ClientName string `json:"client" gorm:"not null"`
	Email      string `json:"email" gorm:"not null;size:255"`

	IssueDate time.Time `json:"issue_date" gorm:"type:date;not null"`
	DueDate   time.Time `json:"due_date" gorm:"type:date;not null;index"`

	Items     []InvoiceItem   `json:"items" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Subtotal  decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2);not null"`
	TaxRate   decimal.Decimal `json:"tax_rate" gorm:"type:numeric(5,4);not null"`
	TaxAmount decimal.Decimal `json:"tax_amount" gorm:"type:numeric(12,2);not null"`
	Total     decimal.Decimal `json:"total" gorm:"type:numeric(12,2);not null"`

	// Payments rollup
	PaidTotal decimal.Decimal `json:"paid_total" gorm:"type:numeric(12,2);not null;default:0"`
	PaidAt    *time.Time      `json:"paid_at" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusAt classifies the invoice at the given instant.
func (inv *Invoice) StatusAt(now time.Time) ledger.Status {
	return ledger.Classify(inv.DueDate, inv.PaidAt, now)
}

// Outstanding is what is still owed, never negative.
func (inv *Invoice) Outstanding() decimal.Decimal {
	rest := inv.Total.Sub(inv.PaidTotal)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

var (
	ErrInvoicePaid = errors.New("invoice is already paid")
	ErrOverpayment = errors.New("amount exceeds the outstanding balance")
)

// ApplyPayment adds amount to the paid total and settles the invoice as of
// at once payments cover the total. It reports whether this payment settled
// it. Nothing changes when an error is returned.
func (inv *Invoice) ApplyPayment(amount decimal.Decimal, at time.Time) (bool, error) {
	if inv.PaidAt != nil {
		return false, ErrInvoicePaid
	}
	if !amount.IsPositive() || amount.GreaterThan(inv.Outstanding()) {
		return false, ErrOverpayment
	}
	inv.PaidTotal = inv.PaidTotal.Add(amount)
	return inv.Settle(at), nil
}

// Settle marks the invoice paid as of at if nothing is owed. A zero-total
// invoice settles as soon as it exists.
func (inv *Invoice) Settle(at time.Time) bool {
	if inv.PaidAt != nil || inv.PaidTotal.LessThan(inv.Total) {
		return false
	}
	inv.PaidAt = &at
	return true
}

type InvoiceItem struct {
	ID          uint            `json:"-" gorm:"primaryKey"`
	InvoiceID   uint            `json:"-" gorm:"index"`
	Position    int             `json:"position" gorm:"not null"`
	Description string          `json:"description" gorm:"not null"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:numeric(12,4);not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,4);not null"`
	LineTotal   decimal.Decimal `json:"line_total" gorm:"type:numeric(14,4);not null"`
}

// Version kinds.
const (
	VersionSubmitted = "submitted"
	VersionUpdated   = "updated"
	VersionPayment   = "payment"
)

// InvoiceVersion is an immutable JSON snapshot taken on every change.
type InvoiceVersion struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	InvoiceID uint           `json:"-" gorm:"index:idx_invoice_versions_invoice_id_version_no,unique,priority:1"`
	VersionNo int            `json:"version_no" gorm:"not null;index:idx_invoice_versions_invoice_id_version_no,unique,priority:2"`
	Kind      string         `json:"kind" gorm:"size:20"`
	Snapshot  datatypes.JSON `json:"snapshot"`
	CreatedAt time.Time      `json:"created_at"`
}

// Payment is recorded against an invoice; once payments cover the total the
// invoice counts as paid.
type Payment struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	InvoiceID uint            `json:"-" gorm:"index:idx_payments_invoice_paid_at,priority:1"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Method    string          `json:"method" gorm:"size:32"`
	Reference string          `json:"reference"`
	Note      string          `json:"note"`
	PaidAt    time.Time       `json:"paid_at" gorm:"index:idx_payments_invoice_paid_at,priority:2"`
	CreatedAt time.Time       `json:"created_at"`
}

// InvoiceSequence hands out the running number behind INV-<year>-<seq>.
type InvoiceSequence struct {
	Year int `gorm:"primaryKey;autoIncrement:false"`
	Last int `gorm:"not null"`
}
