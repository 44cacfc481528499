package models

import (
	"testing"
	"time"

	"invoice-ledger/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Invoice_StatusAt(t *testing.T) {
	inv := Invoice{
		DueDate:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Total:     decimal.NewFromInt(100),
		PaidTotal: decimal.Zero,
	}
	assert.Equal(t, ledger.Pending, inv.StatusAt(time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, ledger.Overdue, inv.StatusAt(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)))

	paid := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	inv.PaidAt = &paid
	assert.Equal(t, ledger.Paid, inv.StatusAt(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func Test_Invoice_Outstanding(t *testing.T) {
	inv := Invoice{Total: decimal.RequireFromString("275.00"), PaidTotal: decimal.RequireFromString("75.50")}
	assert.Equal(t, "199.5", inv.Outstanding().String())

	inv.PaidTotal = decimal.RequireFromString("300")
	assert.True(t, inv.Outstanding().IsZero())
}

func Test_User_Password(t *testing.T) {
	var u User
	require.NoError(t, u.SetPassword("correct horse"))
	assert.NotEqual(t, []byte("correct horse"), u.Password)
	assert.NoError(t, u.ComparePassword("correct horse"))
	assert.Error(t, u.ComparePassword("battery staple"))
}

func Test_User_BeforeCreateAssignsID(t *testing.T) {
	var u User
	require.NoError(t, u.BeforeCreate(nil))
	assert.Len(t, u.Id, 36)

	keep := User{Id: "fixed"}
	require.NoError(t, keep.BeforeCreate(nil))
	assert.Equal(t, "fixed", keep.Id)
}

func Test_Invoice_ApplyPayment(t *testing.T) {
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	inv := Invoice{DueDate: due, Total: decimal.RequireFromString("275"), PaidTotal: decimal.Zero}

	first := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	settled, err := inv.ApplyPayment(decimal.RequireFromString("100"), first)
	require.NoError(t, err)
	assert.False(t, settled)
	assert.Nil(t, inv.PaidAt)
	assert.Equal(t, "175", inv.Outstanding().String())
	assert.Equal(t, ledger.Pending, inv.StatusAt(first))

	_, err = inv.ApplyPayment(decimal.RequireFromString("175.01"), first)
	assert.ErrorIs(t, err, ErrOverpayment)
	assert.Equal(t, "100", inv.PaidTotal.String())

	last := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, ledger.Overdue, inv.StatusAt(last))
	settled, err = inv.ApplyPayment(decimal.RequireFromString("175"), last)
	require.NoError(t, err)
	assert.True(t, settled)
	require.NotNil(t, inv.PaidAt)
	assert.Equal(t, last, *inv.PaidAt)
	assert.True(t, inv.Outstanding().IsZero())
	assert.Equal(t, ledger.Paid, inv.StatusAt(last))

	_, err = inv.ApplyPayment(decimal.RequireFromString("1"), last)
	assert.ErrorIs(t, err, ErrInvoicePaid)
	assert.Equal(t, "275", inv.PaidTotal.String())
}

func Test_Invoice_ApplyPayment_ExactAmount(t *testing.T) {
	inv := Invoice{Total: decimal.RequireFromString("99.99"), PaidTotal: decimal.Zero}
	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	settled, err := inv.ApplyPayment(decimal.RequireFromString("99.99"), at)
	require.NoError(t, err)
	assert.True(t, settled)
	assert.Equal(t, at, *inv.PaidAt)

	_, err = inv.ApplyPayment(decimal.Zero, at)
	assert.Error(t, err)
}

func Test_Invoice_SettleZeroTotal(t *testing.T) {
	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	inv := Invoice{DueDate: at, Total: decimal.Zero, PaidTotal: decimal.Zero}
	assert.True(t, inv.Settle(at))
	assert.Equal(t, ledger.Paid, inv.StatusAt(at.AddDate(0, 2, 0)))
	assert.False(t, inv.Settle(at.AddDate(0, 0, 1)))
	assert.Equal(t, at, *inv.PaidAt)

	owed := Invoice{Total: decimal.NewFromInt(10), PaidTotal: decimal.Zero}
	assert.False(t, owed.Settle(at))
	assert.Nil(t, owed.PaidAt)
}
