package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSubmitter struct {
	mu      sync.Mutex
	calls   []string
	payload Payload
	receipt *Receipt
	err     error
	// block, when set, holds the call until closed.
	block   chan struct{}
	started chan struct{}
}

func (s *stubSubmitter) SubmitInvoice(ctx context.Context, key string, p Payload) (*Receipt, error) {
	s.mu.Lock()
	s.calls = append(s.calls, key)
	s.payload = p
	s.mu.Unlock()

	if s.started != nil {
		close(s.started)
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.receipt, s.err
}

func validHeader() Header {
	return Header{
		Client:    "Acme Corp",
		Email:     "billing@acme.com",
		IssueDate: Date{day("2024-02-12")},
		DueDate:   Date{day("2024-03-12")},
	}
}

func readyDraft(t *testing.T) *Draft {
	t.Helper()
	d := newDraft(t)
	setItem(t, d, d.Items()[0].ID, "Design", "2", "100")
	item, _, err := d.AddItem()
	require.NoError(t, err)
	setItem(t, d, item.ID, "Review", "1", "50")
	return d
}

func Test_Draft_SubmitSuccess(t *testing.T) {
	d := readyDraft(t)
	s := &stubSubmitter{receipt: &Receipt{ID: "INV-2024-001", Status: Pending}}

	receipt, err := d.Submit(context.Background(), s, validHeader())
	require.NoError(t, err)
	assert.Equal(t, "INV-2024-001", receipt.ID)
	assert.Equal(t, StateSubmitted, d.State())
	assert.Equal(t, []string{d.ID()}, s.calls)

	assert.Equal(t, "Acme Corp", s.payload.Client)
	require.Len(t, s.payload.Items, 2)
	assert.Equal(t, "250.00", Format(s.payload.Subtotal))
	assert.Equal(t, "25.00", Format(s.payload.TaxAmount))
	assert.Equal(t, "275.00", Format(s.payload.Total))

	_, _, err = d.AddItem()
	assert.ErrorIs(t, err, ErrNotEditable)
	_, err = d.Submit(context.Background(), s, validHeader())
	assert.ErrorIs(t, err, ErrNotEditable)
}

func Test_Draft_SubmitFailureKeepsItems(t *testing.T) {
	d := readyDraft(t)
	before := d.Items()
	s := &stubSubmitter{err: errors.New("503 service unavailable")}

	_, err := d.Submit(context.Background(), s, validHeader())
	var serr *SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.True(t, serr.Retryable())
	assert.Equal(t, StateEditing, d.State())
	assert.Equal(t, before, d.Items())

	s.err = nil
	s.receipt = &Receipt{ID: "INV-2024-002", Status: Pending}
	receipt, err := d.Submit(context.Background(), s, validHeader())
	require.NoError(t, err)
	assert.Equal(t, "INV-2024-002", receipt.ID)
	assert.Equal(t, []string{d.ID(), d.ID()}, s.calls, "retries reuse the idempotency key")
}

func Test_Draft_SubmitTimeoutReturnsToEditing(t *testing.T) {
	d := readyDraft(t)
	s := &stubSubmitter{block: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Submit(ctx, s, validHeader())
	assert.ErrorIs(t, err, context.Canceled)
	var serr *SubmissionError
	assert.ErrorAs(t, err, &serr)
	assert.Equal(t, StateEditing, d.State())
}

func Test_Draft_SecondSubmitWhileInFlightIsRejected(t *testing.T) {
	d := readyDraft(t)
	s := &stubSubmitter{
		receipt: &Receipt{ID: "INV-2024-003", Status: Pending},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}

	done := make(chan error, 1)
	go func() {
		_, err := d.Submit(context.Background(), s, validHeader())
		done <- err
	}()
	<-s.started

	assert.Equal(t, StateSubmitting, d.State())
	_, err := d.Submit(context.Background(), s, validHeader())
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	_, _, err = d.AddItem()
	assert.ErrorIs(t, err, ErrNotEditable)

	close(s.block)
	require.NoError(t, <-done)
	assert.Equal(t, StateSubmitted, d.State())
	assert.Len(t, s.calls, 1)
}

func Test_Draft_SubmitValidatesBeforeCalling(t *testing.T) {
	d := newDraft(t)
	s := &stubSubmitter{}

	_, err := d.Submit(context.Background(), s, Header{Email: "not-an-email", DueDate: Date{day("2024-01-01")}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := verr.Map()
	assert.Contains(t, fields, "client")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "issue_date")
	assert.Contains(t, fields, "items[0].description")
	assert.Empty(t, s.calls)
	assert.Equal(t, StateEditing, d.State())
}

func Test_Draft_SubmitRejectsDueBeforeIssue(t *testing.T) {
	d := readyDraft(t)
	h := validHeader()
	h.DueDate = Date{day("2024-01-01")}

	_, err := d.Submit(context.Background(), &stubSubmitter{}, h)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Map(), "due_date")
}

func Test_Draft_SubmitWithoutReceiptFails(t *testing.T) {
	d := readyDraft(t)
	_, err := d.Submit(context.Background(), &stubSubmitter{}, validHeader())
	var serr *SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StateEditing, d.State())
}

func Test_Payload_JSONShape(t *testing.T) {
	d := readyDraft(t)
	b, err := json.Marshal(d.Payload(validHeader()))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "2024-02-12", raw["issue_date"])
	assert.Equal(t, "2024-03-12", raw["due_date"])
	assert.Equal(t, "275", raw["total"])
	assert.Len(t, raw["items"], 2)

	var back Payload
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Total.Equal(dec("275")))
	assert.Equal(t, "2024-03-12", back.DueDate.String())
}
