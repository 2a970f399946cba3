package loans

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestApplicationTransitions(t *testing.T) {
	cases := []struct {
		from, to ApplicationStatus
		allowed  bool
	}{
		{ApplicationPending, ApplicationApproved, true},
		{ApplicationPending, ApplicationRejected, true},
		{ApplicationPending, ApplicationDisbursed, false},
		{ApplicationApproved, ApplicationDisbursed, true},
		{ApplicationApproved, ApplicationRejected, false},
		{ApplicationApproved, ApplicationPending, false},
		{ApplicationRejected, ApplicationApproved, false},
		{ApplicationDisbursed, ApplicationPending, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.allowed, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestLoanTransitions(t *testing.T) {
	for _, target := range []LoanStatus{LoanClosed, LoanDefaulted, LoanWrittenOff} {
		require.True(t, LoanActive.CanTransition(target))
		require.False(t, target.CanTransition(LoanActive), "%s is terminal", target)
		require.False(t, target.CanTransition(LoanClosed))
	}
}

func TestEffectiveStatusOverlaysOverdue(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	due := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	pastDue := Installment{DueDate: due, Status: InstallmentPending}
	require.Equal(t, InstallmentOverdue, pastDue.EffectiveStatus(now))
	require.Equal(t, InstallmentPending, pastDue.Status, "stored status is untouched")

	partial := Installment{DueDate: due, Status: InstallmentPartial}
	require.Equal(t, InstallmentOverdue, partial.EffectiveStatus(now))

	paid := Installment{DueDate: due, Status: InstallmentPaid}
	require.Equal(t, InstallmentPaid, paid.EffectiveStatus(now), "paid installments never go overdue")

	upcoming := Installment{DueDate: future, Status: InstallmentPending}
	require.Equal(t, InstallmentPending, upcoming.EffectiveStatus(now))
}

func TestInstallmentStatusFor(t *testing.T) {
	require.Equal(t, InstallmentPending, installmentStatusFor(amount("0"), amount("400")))
	require.Equal(t, InstallmentPartial, installmentStatusFor(amount("0.01"), amount("400")))
	require.Equal(t, InstallmentPartial, installmentStatusFor(amount("399.99"), amount("400")))
	require.Equal(t, InstallmentPaid, installmentStatusFor(amount("400"), amount("400")))
}

func TestInstallmentOutstanding(t *testing.T) {
	installment := Installment{
		Principal:     amount("833.33"),
		Interest:      amount("100.00"),
		Total:         amount("933.33"),
		PaidAmount:    amount("500.00"),
		PaidPrincipal: amount("500.00"),
	}
	require.True(t, installment.Outstanding().Equal(amount("433.33")))
	require.True(t, installment.OutstandingPrincipal().Equal(amount("333.33")))
}
