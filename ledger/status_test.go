package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func Test_Classify(t *testing.T) {
	due := day("2024-02-14")
	paid := day("2024-03-01")

	tests := []struct {
		name   string
		paidAt *time.Time
		now    time.Time
		want   Status
	}{
		{"paid before due", &paid, day("2024-02-01"), Paid},
		{"paid after due", &paid, day("2024-04-01"), Paid},
		{"unpaid before due", nil, day("2024-02-13"), Pending},
		{"unpaid on due date", nil, due.Add(23 * time.Hour), Pending},
		{"unpaid day after due", nil, day("2024-02-15"), Overdue},
		{"zero paid time counts as unpaid", &time.Time{}, day("2024-02-15"), Overdue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(due, tt.paidAt, tt.now))
		})
	}
}

func Test_Classify_WithoutDueDateStaysPending(t *testing.T) {
	assert.Equal(t, Pending, Classify(time.Time{}, nil, time.Now()))
}

func Test_Status_EveryValueHasNameAndAppearance(t *testing.T) {
	require.Len(t, Statuses(), 3)
	for _, s := range Statuses() {
		assert.NotEmpty(t, s.String())
		assert.NotEmpty(t, s.Appearance().Label)
		assert.NotEmpty(t, s.Appearance().Tone)

		parsed, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	assert.Equal(t, "emerald", Paid.Appearance().Tone)
	assert.Equal(t, "amber", Pending.Appearance().Tone)
	assert.Equal(t, "rose", Overdue.Appearance().Tone)
}

func Test_Status_JSONRejectsUnknownValues(t *testing.T) {
	var out struct {
		Status Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"status":"overdue"}`), &out))
	assert.Equal(t, Overdue, out.Status)

	err := json.Unmarshal([]byte(`{"status":"void"}`), &out)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"overdue"}`, string(b))

	_, err = json.Marshal(struct{ S Status }{S: Status(7)})
	assert.Error(t, err)
	assert.Equal(t, "muted", Status(7).Appearance().Tone)
}
