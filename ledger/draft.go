package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"
	"github.com/shopspring/decimal"
)

// Draft is an invoice being edited. It owns its line items and derives all
// totals from them; nothing is cached.
type Draft struct {
	mu      sync.Mutex
	id      string
	items   []LineItem
	taxRate decimal.Decimal
	machine *stateless.StateMachine
}

// Option configures a new draft.
type Option func(*Draft)

// WithTaxRate overrides DefaultTaxRate.
func WithTaxRate(rate decimal.Decimal) Option {
	return func(d *Draft) { d.taxRate = rate }
}

// WithItems seeds the draft instead of the single blank item. Items without
// an ID get a fresh one.
func WithItems(items ...LineItem) Option {
	return func(d *Draft) {
		for _, item := range items {
			if item.ID == "" {
				item.ID = uuid.NewString()
			}
			d.items = append(d.items, item)
		}
	}
}

// WithID fixes the draft ID, which doubles as the submission idempotency key.
func WithID(id string) Option {
	return func(d *Draft) { d.id = id }
}

// NewDraft opens a draft for editing with one blank line item.
func NewDraft(opts ...Option) (*Draft, error) {
	d := &Draft{
		id:      uuid.NewString(),
		taxRate: DefaultTaxRate,
		machine: newLifecycle(),
	}
	for _, opt := range opts {
		opt(d)
	}

	verr := &ValidationError{}
	if d.taxRate.IsNegative() {
		verr.Add("tax_rate", "must not be negative")
	}
	if d.id == "" {
		verr.Add("id", "is required")
	}
	seen := make(map[string]struct{}, len(d.items))
	for i, item := range d.items {
		prefix := "items[" + strconv.Itoa(i) + "]."
		item.check(verr, prefix, false)
		if _, dup := seen[item.ID]; dup {
			verr.Add(prefix+"id", "is duplicated")
		}
		seen[item.ID] = struct{}{}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	if len(d.items) == 0 {
		d.items = []LineItem{NewLineItem()}
	}
	if err := d.machine.Fire(triggerOpen); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Draft) ID() string { return d.id }

func (d *Draft) TaxRate() decimal.Decimal { return d.taxRate }

func (d *Draft) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state()
}

func (d *Draft) state() State {
	return d.machine.MustState().(State)
}

// Items returns a copy of the line items in insertion order.
func (d *Draft) Items() []LineItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]LineItem, len(d.items))
	copy(out, d.items)
	return out
}

func (d *Draft) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// Item looks up one line item by ID.
func (d *Draft) Item(id string) (LineItem, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := d.indexOf(id); i >= 0 {
		return d.items[i], true
	}
	return LineItem{}, false
}

// CanRemove reports whether RemoveItem would succeed for any item; a UI
// should disable its delete action otherwise.
func (d *Draft) CanRemove() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state() == StateEditing && len(d.items) > 1
}

// AddItem appends a blank line item and returns it with the new totals.
func (d *Draft) AddItem() (LineItem, Totals, error) {
	item := NewLineItem()
	totals, err := d.edit(func() error {
		d.items = append(d.items, item)
		return nil
	})
	if err != nil {
		return LineItem{}, totals, err
	}
	return item, totals, nil
}

// RemoveItem deletes the item with the given ID. Removing the last item
// fails with ErrLastItem; an unknown ID is a no-op.
func (d *Draft) RemoveItem(id string) (Totals, error) {
	return d.edit(func() error {
		i := d.indexOf(id)
		if i < 0 {
			return nil
		}
		if len(d.items) == 1 {
			return ErrLastItem
		}
		d.items = append(d.items[:i:i], d.items[i+1:]...)
		return nil
	})
}

// UpdateItem replaces the given fields on an item. Negative quantity or
// price is rejected with a *ValidationError and nothing changes.
func (d *Draft) UpdateItem(id string, update ItemUpdate) (Totals, error) {
	return d.edit(func() error {
		i := d.indexOf(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}
		next := update.apply(d.items[i])
		verr := &ValidationError{}
		next.check(verr, "", false)
		if err := verr.Err(); err != nil {
			return err
		}
		d.items[i] = next
		return nil
	})
}

// Cancel discards the draft. It is terminal.
func (d *Draft) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state() != StateEditing {
		return fmt.Errorf("%w: draft is %s", ErrNotEditable, d.state())
	}
	return d.machine.Fire(triggerCancel)
}

func (d *Draft) Subtotal() decimal.Decimal {
	d.mu.Lock()
	defer d.mu.Unlock()
	return subtotalOf(d.items)
}

// Tax returns Subtotal * rate.
func (d *Draft) Tax(rate decimal.Decimal) decimal.Decimal {
	return d.Subtotal().Mul(rate)
}

// Total returns Subtotal * (1 + rate).
func (d *Draft) Total(rate decimal.Decimal) decimal.Decimal {
	return d.Subtotal().Mul(decimal.NewFromInt(1).Add(rate))
}

// Totals derives subtotal, tax and total with the draft's own tax rate.
func (d *Draft) Totals() Totals {
	d.mu.Lock()
	defer d.mu.Unlock()
	return computeTotals(d.items, d.taxRate)
}

// Validate runs the submission-time checks on the line items.
func (d *Draft) Validate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	verr := &ValidationError{}
	d.checkItems(verr)
	return verr.Err()
}

func (d *Draft) checkItems(verr *ValidationError) {
	if len(d.items) == 0 {
		verr.Add("items", "at least one line item is required")
	}
	for i, item := range d.items {
		item.check(verr, "items["+strconv.Itoa(i)+"].", true)
	}
}

// edit runs fn under the lock when the draft is editable. On error the
// draft is left as it was.
func (d *Draft) edit(fn func() error) (Totals, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if st := d.state(); st != StateEditing {
		return computeTotals(d.items, d.taxRate), fmt.Errorf("%w: draft is %s", ErrNotEditable, st)
	}
	if err := fn(); err != nil {
		return computeTotals(d.items, d.taxRate), err
	}
	if err := d.machine.Fire(triggerEdit); err != nil {
		return computeTotals(d.items, d.taxRate), errors.Join(ErrNotEditable, err)
	}
	return computeTotals(d.items, d.taxRate), nil
}

func (d *Draft) indexOf(id string) int {
	for i, item := range d.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
