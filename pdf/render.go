// Package pdf renders stored invoices as A4 documents.
package pdf

import (
	"fmt"
	"io"
	"time"

	"invoice-ledger/ledger"
	"invoice-ledger/models"

	"github.com/jung-kurt/gofpdf"
)

// tone colors for the status badge.
var toneRGB = map[string][3]int{
	"emerald": {16, 185, 129},
	"amber":   {245, 158, 11},
	"rose":    {244, 63, 94},
	"muted":   {148, 163, 184},
}

// column widths: description, quantity, unit price, line total.
var cols = [4]float64{95, 25, 30, 30}

// Render writes inv as a PDF to w. The status badge reflects inv at now.
func Render(w io.Writer, inv *models.Invoice, now time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(inv.Number, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.Cell(120, 10, "Invoice "+inv.Number)

	status := inv.StatusAt(now)
	rgb, ok := toneRGB[status.Appearance().Tone]
	if !ok {
		rgb = toneRGB["muted"]
	}
	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(rgb[0], rgb[1], rgb[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(30, 8, status.Appearance().Label, "", 1, "C", true, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 11)
	meta := [][2]string{
		{"Bill to", inv.ClientName},
		{"Email", inv.Email},
		{"Issue date", ledger.NewDate(inv.IssueDate).String()},
		{"Due date", ledger.NewDate(inv.DueDate).String()},
	}
	for _, row := range meta {
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(35, 7, row[0])
		pdf.SetFont("Arial", "", 11)
		pdf.Cell(0, 7, tr(row[1]))
		pdf.Ln(7)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(241, 245, 249)
	for i, title := range []string{"Description", "Qty", "Unit price", "Amount"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(cols[i], 8, title, "B", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, item := range inv.Items {
		pdf.CellFormat(cols[0], 7, tr(item.Description), "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[1], 7, item.Quantity.String(), "", 0, "R", false, 0, "")
		pdf.CellFormat(cols[2], 7, ledger.FormatWithSymbol(item.UnitPrice), "", 0, "R", false, 0, "")
		pdf.CellFormat(cols[3], 7, ledger.FormatWithSymbol(item.LineTotal), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	label := cols[0] + cols[1] + cols[2]
	totals := [][2]string{
		{"Subtotal", ledger.FormatWithSymbol(inv.Subtotal)},
		{fmt.Sprintf("Tax (%s%%)", inv.TaxRate.Shift(2).String()), ledger.FormatWithSymbol(inv.TaxAmount)},
		{"Total", ledger.FormatWithSymbol(inv.Total)},
	}
	if inv.PaidTotal.IsPositive() {
		totals = append(totals,
			[2]string{"Paid", ledger.FormatWithSymbol(inv.PaidTotal)},
			[2]string{"Balance due", ledger.FormatWithSymbol(inv.Outstanding())},
		)
	}
	for i, row := range totals {
		style := ""
		if i == 2 {
			style = "B"
		}
		pdf.SetFont("Arial", style, 11)
		pdf.CellFormat(label, 7, row[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(cols[3], 7, row[1], "", 1, "R", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render invoice %s: %w", inv.Number, err)
	}
	return nil
}
