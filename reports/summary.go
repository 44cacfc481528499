// Package reports aggregates invoices for the dashboard.
package reports

import (
	"time"

	"invoice-ledger/ledger"

	"github.com/shopspring/decimal"
)

// Figures are the columns of an invoice the dashboard needs.
type Figures struct {
	IssueDate time.Time
	DueDate   time.Time
	PaidAt    *time.Time
	Total     decimal.Decimal
	PaidTotal decimal.Decimal
}

type StatusBreakdown struct {
	Status     ledger.Status     `json:"status"`
	Appearance ledger.Appearance `json:"appearance"`
	Count      int               `json:"count"`
	Amount     decimal.Decimal   `json:"amount"`
}

type MonthRevenue struct {
	Month    string          `json:"month"`
	Year     int             `json:"year"`
	Revenue  decimal.Decimal `json:"revenue"`
	Invoiced decimal.Decimal `json:"invoiced"`
}

// Summary is the dashboard payload. Revenue counts invoices once they are
// paid; pending and overdue amounts are what is still outstanding.
type Summary struct {
	TotalRevenue  decimal.Decimal   `json:"total_revenue"`
	PaidCount     int               `json:"paid_count"`
	PendingCount  int               `json:"pending_count"`
	PendingAmount decimal.Decimal   `json:"pending_amount"`
	OverdueCount  int               `json:"overdue_count"`
	OverdueAmount decimal.Decimal   `json:"overdue_amount"`
	ByStatus      []StatusBreakdown `json:"by_status"`
	Monthly       []MonthRevenue    `json:"monthly"`
}

// Summarize classifies every invoice at now and buckets revenue over the
// last months calendar months, oldest first, ending with now's month.
func Summarize(invoices []Figures, now time.Time, months int) Summary {
	if months < 1 {
		months = 1
	}
	byStatus := make([]StatusBreakdown, 0, 3)
	index := make(map[ledger.Status]int, 3)
	for _, s := range ledger.Statuses() {
		index[s] = len(byStatus)
		byStatus = append(byStatus, StatusBreakdown{Status: s, Appearance: s.Appearance(), Amount: decimal.Zero})
	}

	monthly, slot := monthBuckets(now, months)

	sum := Summary{
		TotalRevenue:  decimal.Zero,
		PendingAmount: decimal.Zero,
		OverdueAmount: decimal.Zero,
	}
	for _, inv := range invoices {
		status := ledger.Classify(inv.DueDate, inv.PaidAt, now)
		b := &byStatus[index[status]]
		b.Count++

		outstanding := inv.Total.Sub(inv.PaidTotal)
		if outstanding.IsNegative() {
			outstanding = decimal.Zero
		}

		switch status {
		case ledger.Paid:
			sum.PaidCount++
			sum.TotalRevenue = sum.TotalRevenue.Add(inv.Total)
			b.Amount = b.Amount.Add(inv.Total)
			if i, ok := slot(*inv.PaidAt); ok {
				monthly[i].Revenue = monthly[i].Revenue.Add(inv.Total)
			}
		case ledger.Pending:
			sum.PendingCount++
			sum.PendingAmount = sum.PendingAmount.Add(outstanding)
			b.Amount = b.Amount.Add(outstanding)
		case ledger.Overdue:
			sum.OverdueCount++
			sum.OverdueAmount = sum.OverdueAmount.Add(outstanding)
			b.Amount = b.Amount.Add(outstanding)
		}

		if i, ok := slot(inv.IssueDate); ok {
			monthly[i].Invoiced = monthly[i].Invoiced.Add(inv.Total)
		}
	}

	sum.ByStatus = byStatus
	sum.Monthly = monthly
	return sum
}

// monthBuckets returns empty buckets and a lookup from a time to its bucket.
func monthBuckets(now time.Time, months int) ([]MonthRevenue, func(time.Time) (int, bool)) {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)

	buckets := make([]MonthRevenue, months)
	for i := range buckets {
		m := first.AddDate(0, i, 0)
		buckets[i] = MonthRevenue{
			Month:    m.Month().String()[:3],
			Year:     m.Year(),
			Revenue:  decimal.Zero,
			Invoiced: decimal.Zero,
		}
	}

	slot := func(t time.Time) (int, bool) {
		t = t.UTC()
		i := (t.Year()-first.Year())*12 + int(t.Month()) - int(first.Month())
		return i, i >= 0 && i < months
	}
	return buckets, slot
}
