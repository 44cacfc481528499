// Package ledger keeps the line items of an invoice draft and derives its
// totals with exact decimal arithmetic.
//
// A draft starts with one blank item and is edited in place until it is
// either cancelled or submitted:
//
//	d, _ := ledger.NewDraft()
//	item, _, _ := d.AddItem()
//	qty, price := decimal.NewFromInt(2), decimal.NewFromInt(100)
//	totals, err := d.UpdateItem(item.ID, ledger.ItemUpdate{Quantity: &qty, UnitPrice: &price})
//
// Amounts are never rounded inside the package except when building a
// submission payload; use Format to display them.
package ledger
