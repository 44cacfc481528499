package ledger

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is one billable row of a draft.
type LineItem struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// NewLineItem returns a blank item: empty description, quantity 1, price 0.
func NewLineItem() LineItem {
	return LineItem{
		ID:        uuid.NewString(),
		Quantity:  decimal.NewFromInt(1),
		UnitPrice: decimal.Zero,
	}
}

// LineTotal is quantity * unit price, unrounded.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice)
}

// ItemUpdate carries the fields to replace on an item. Nil fields are kept.
type ItemUpdate struct {
	Description *string
	Quantity    *decimal.Decimal
	UnitPrice   *decimal.Decimal
}

func (u ItemUpdate) apply(li LineItem) LineItem {
	if u.Description != nil {
		li.Description = *u.Description
	}
	if u.Quantity != nil {
		li.Quantity = *u.Quantity
	}
	if u.UnitPrice != nil {
		li.UnitPrice = *u.UnitPrice
	}
	return li
}

// check appends the item's problems to verr, prefixing field names.
// Descriptions are only required at submission time.
func (li LineItem) check(verr *ValidationError, prefix string, requireDescription bool) {
	if li.Quantity.IsNegative() {
		verr.Add(prefix+"quantity", "must not be negative")
	}
	if li.UnitPrice.IsNegative() {
		verr.Add(prefix+"unit_price", "must not be negative")
	}
	if requireDescription && strings.TrimSpace(li.Description) == "" {
		verr.Add(prefix+"description", "is required")
	}
}
