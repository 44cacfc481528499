package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of invoice dates.
const DateLayout = "2006-01-02"

// Date is a calendar date encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, t.Location())}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// The embedded time.Time brings its own JSON methods; these shadow them.

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	return d.UnmarshalText([]byte(s))
}

// Header is the client information entered next to the line items.
type Header struct {
	Client    string
	Email     string
	IssueDate Date
	DueDate   Date
}

// Validate checks the header on its own.
func (h Header) Validate() error {
	verr := &ValidationError{}
	h.check(verr)
	return verr.Err()
}

func (h Header) check(verr *ValidationError) {
	if strings.TrimSpace(h.Client) == "" {
		verr.Add("client", "is required")
	}
	if strings.TrimSpace(h.Email) == "" {
		verr.Add("email", "is required")
	} else if _, err := mail.ParseAddress(h.Email); err != nil {
		verr.Add("email", "is not a valid address")
	}
	if h.IssueDate.IsZero() {
		verr.Add("issue_date", "is required")
	}
	if h.DueDate.IsZero() {
		verr.Add("due_date", "is required")
	} else if h.DueDate.Before(h.IssueDate.Time) {
		verr.Add("due_date", "must not be before the issue date")
	}
}

// PayloadItem is a line item as sent to the backend.
type PayloadItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Payload is the finalized invoice handed to the backend. Totals are
// rounded to minor units.
type Payload struct {
	Client    string          `json:"client"`
	Email     string          `json:"email"`
	IssueDate Date            `json:"issue_date"`
	DueDate   Date            `json:"due_date"`
	Items     []PayloadItem   `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

// Receipt is the backend's record of a submitted invoice.
type Receipt struct {
	ID        string          `json:"id"`
	Status    Status          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

// Submitter persists a finalized invoice. The idempotency key is stable for
// a draft, so a retry after a timeout must not create a second invoice.
type Submitter interface {
	SubmitInvoice(ctx context.Context, idempotencyKey string, payload Payload) (*Receipt, error)
}

// Payload builds the submission body for h without changing the draft.
func (d *Draft) Payload(h Header) Payload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.payload(h)
}

func (d *Draft) payload(h Header) Payload {
	items := make([]PayloadItem, 0, len(d.items))
	for _, item := range d.items {
		items = append(items, PayloadItem{
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	totals := computeTotals(d.items, d.taxRate).Rounded()
	return Payload{
		Client:    strings.TrimSpace(h.Client),
		Email:     strings.TrimSpace(h.Email),
		IssueDate: h.IssueDate,
		DueDate:   h.DueDate,
		Items:     items,
		Subtotal:  totals.Subtotal,
		TaxAmount: totals.TaxAmount,
		Total:     totals.Total,
	}
}

// Submit validates the draft and hands it to s. Only one submission may be
// in flight; edits are refused until it settles. On failure the draft goes
// back to editing with its items untouched and a *SubmissionError is
// returned.
func (d *Draft) Submit(ctx context.Context, s Submitter, h Header) (*Receipt, error) {
	payload, err := d.beginSubmit(h)
	if err != nil {
		return nil, err
	}

	receipt, err := s.SubmitInvoice(ctx, d.id, payload)
	if err == nil && receipt == nil {
		err = errors.New("backend returned no receipt")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		if ferr := d.machine.Fire(triggerFail); ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		return nil, &SubmissionError{Err: err}
	}
	if err := d.machine.Fire(triggerSucceed); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (d *Draft) beginSubmit(h Header) (Payload, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch st := d.state(); st {
	case StateEditing:
	case StateSubmitting:
		return Payload{}, ErrSubmissionInFlight
	default:
		return Payload{}, fmt.Errorf("%w: draft is %s", ErrNotEditable, st)
	}

	verr := &ValidationError{}
	h.check(verr)
	d.checkItems(verr)
	if err := verr.Err(); err != nil {
		return Payload{}, err
	}

	payload := d.payload(h)
	if err := d.machine.Fire(triggerSubmit); err != nil {
		return Payload{}, err
	}
	return payload, nil
}
