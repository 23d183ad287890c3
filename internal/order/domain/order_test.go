package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewOrderTotals(t *testing.T) {
	o := NewOrder("o-1", "u-1", []Line{
		{ListingID: "l-1", Quantity: 2, UnitPriceCents: 150},
		{ListingID: "l-2", Quantity: 1, UnitPriceCents: 700},
	})

	require.Equal(t, StatusDraft, o.Status)
	require.Equal(t, int64(1000), o.TotalCents)
	require.Len(t, o.Lines, 2)
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusDraft, StatusAwaitingPayment, true},
		{StatusAwaitingPayment, StatusConfirmed, true},
		{StatusAwaitingPayment, StatusFailed, true},
		{StatusDraft, StatusFailed, true},
		{StatusDraft, StatusCancelled, true},
		{StatusAwaitingPayment, StatusCancelled, true},
		{StatusDraft, StatusConfirmed, false},
		{StatusConfirmed, StatusCancelled, false},
		{StatusConfirmed, StatusFailed, false},
		{StatusCancelled, StatusAwaitingPayment, false},
		{StatusFailed, StatusConfirmed, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	require.False(t, StatusDraft.Terminal())
	require.False(t, StatusAwaitingPayment.Terminal())
	require.True(t, StatusConfirmed.Terminal())
	require.True(t, StatusCancelled.Terminal())
	require.True(t, StatusFailed.Terminal())
}
