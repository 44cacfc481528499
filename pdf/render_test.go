package pdf

import (
	"bytes"
	"testing"
	"time"

	"invoice-ledger/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Render(t *testing.T) {
	inv := &models.Invoice{
		Number:     "INV-2024-001",
		ClientName: "Acme Corp",
		Email:      "billing@acme.com",
		IssueDate:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		DueDate:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Items: []models.InvoiceItem{
			{Position: 1, Description: "Design", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(100), LineTotal: decimal.NewFromInt(200)},
			{Position: 2, Description: "Hosting", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(50), LineTotal: decimal.NewFromInt(50)},
		},
		Subtotal:  decimal.NewFromInt(250),
		TaxRate:   decimal.RequireFromString("0.10"),
		TaxAmount: decimal.NewFromInt(25),
		Total:     decimal.NewFromInt(275),
		PaidTotal: decimal.NewFromInt(75),
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, inv, time.Date(2024, 2, 16, 0, 0, 0, 0, time.UTC)))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Greater(t, buf.Len(), 500)
}
