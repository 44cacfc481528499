package main

import (
	"fmt"
	"strings"

	"invoice-ledger/ledger"

	"github.com/shopspring/decimal"
)

// itemArg is one --item flag: "description:quantity:unit_price". The
// description may itself contain colons.
type itemArg struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

func parseItem(raw string) (itemArg, error) {
	priceAt := strings.LastIndex(raw, ":")
	if priceAt < 0 {
		return itemArg{}, fmt.Errorf("item %q: want description:quantity:unit_price", raw)
	}
	qtyAt := strings.LastIndex(raw[:priceAt], ":")
	if qtyAt < 0 {
		return itemArg{}, fmt.Errorf("item %q: want description:quantity:unit_price", raw)
	}

	qty, err := decimal.NewFromString(strings.TrimSpace(raw[qtyAt+1 : priceAt]))
	if err != nil {
		return itemArg{}, fmt.Errorf("item %q: bad quantity: %w", raw, err)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(raw[priceAt+1:]))
	if err != nil {
		return itemArg{}, fmt.Errorf("item %q: bad unit price: %w", raw, err)
	}
	return itemArg{
		Description: strings.TrimSpace(raw[:qtyAt]),
		Quantity:    qty,
		UnitPrice:   price,
	}, nil
}

// buildDraft edits a fresh draft the way a person would: fill the blank
// first row, then add a row per further item.
func buildDraft(raw []string, rate decimal.Decimal) (*ledger.Draft, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("at least one --item is required")
	}
	d, err := ledger.NewDraft(ledger.WithTaxRate(rate))
	if err != nil {
		return nil, err
	}

	row := d.Items()[0]
	for i, r := range raw {
		arg, err := parseItem(r)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			if row, _, err = d.AddItem(); err != nil {
				return nil, err
			}
		}
		_, err = d.UpdateItem(row.ID, ledger.ItemUpdate{
			Description: &arg.Description,
			Quantity:    &arg.Quantity,
			UnitPrice:   &arg.UnitPrice,
		})
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
	}
	return d, nil
}
