package controllers

import (
	"time"

	"invoice-ledger/ledger"
	"invoice-ledger/models"

	"github.com/shopspring/decimal"
)

// invoiceResponse is an invoice as the API shows it: calendar dates, and a
// status derived at read time.
type invoiceResponse struct {
	*models.Invoice
	IssueDate   ledger.Date       `json:"issue_date"`
	DueDate     ledger.Date       `json:"due_date"`
	Status      ledger.Status     `json:"status"`
	Appearance  ledger.Appearance `json:"appearance"`
	Outstanding decimal.Decimal   `json:"outstanding"`
}

func newInvoiceResponse(inv *models.Invoice, at time.Time) invoiceResponse {
	status := inv.StatusAt(at)
	if inv.Items == nil {
		inv.Items = []models.InvoiceItem{}
	}
	return invoiceResponse{
		Invoice:     inv,
		IssueDate:   ledger.NewDate(inv.IssueDate),
		DueDate:     ledger.NewDate(inv.DueDate),
		Status:      status,
		Appearance:  status.Appearance(),
		Outstanding: inv.Outstanding(),
	}
}
