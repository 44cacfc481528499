package ledger

import (
	"fmt"
	"time"
)

// Status is the closed set of states an invoice can be shown in.
type Status int

const (
	Paid Status = iota
	Pending
	Overdue

	statusCount
)

// Appearance holds the display attributes of a status.
type Appearance struct {
	Label string `json:"label"`
	Tone  string `json:"tone"`
}

// Both tables are sized by statusCount, so a new status cannot be added
// without growing them.
var (
	statusNames = [statusCount]string{
		Paid:    "paid",
		Pending: "pending",
		Overdue: "overdue",
	}
	statusAppearances = [statusCount]Appearance{
		Paid:    {Label: "Paid", Tone: "emerald"},
		Pending: {Label: "Pending", Tone: "amber"},
		Overdue: {Label: "Overdue", Tone: "rose"},
	}
)

// Statuses lists every status in declaration order.
func Statuses() []Status {
	out := make([]Status, 0, statusCount)
	for s := Status(0); s < statusCount; s++ {
		out = append(out, s)
	}
	return out
}

func (s Status) Valid() bool {
	return s >= 0 && s < statusCount
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Appearance returns the display attributes for s. Invalid values get the
// neutral "muted" tone.
func (s Status) Appearance() Appearance {
	if !s.Valid() {
		return Appearance{Label: "Unknown", Tone: "muted"}
	}
	return statusAppearances[s]
}

// ParseStatus maps a wire name to a Status. Any other value is a contract
// violation.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, name)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatus, int(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Classify derives the status of an invoice: paid once a payment is
// recorded, overdue when the due date has passed without payment, pending
// otherwise. Dates are compared by calendar day in the due date's location;
// a zero due date never becomes overdue.
func Classify(dueDate time.Time, paidAt *time.Time, now time.Time) Status {
	if paidAt != nil && !paidAt.IsZero() {
		return Paid
	}
	if dueDate.IsZero() {
		return Pending
	}
	if startOfDay(now, dueDate.Location()).After(startOfDay(dueDate, dueDate.Location())) {
		return Overdue
	}
	return Pending
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
