package payment_test

import (
	"errors"
	"testing"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func policy() domain.PaymentPolicy {
	return domain.DefaultPolicy().Payment
}

func codes(r payment.Result) []string {
	out := []string{}
	for _, issue := range r.Details.Issues {
		out = append(out, issue.Code)
	}
	return out
}

func TestValidate_CleanPayment(t *testing.T) {
	c := &payment.ContractContext{MonthlyAmount: d("500"), ContractAmount: d("6000"), TotalPaid: d("1000")}
	inv := &payment.InvoiceContext{TotalAmount: d("500")}

	r := payment.Validate(policy(), c, inv, d("500"))

	assert.True(t, r.IsValid)
	assert.False(t, r.IsWarning)
	assert.False(t, r.IsBlocked)
	assert.Empty(t, r.Message)
	assert.Empty(t, r.Details.Issues)
	assert.NoError(t, r.Err())
}

func TestValidate_NonPositiveAmount(t *testing.T) {
	for _, amount := range []string{"0", "-10"} {
		r := payment.Validate(policy(), nil, nil, d(amount))

		assert.True(t, r.IsBlocked, amount)
		assert.False(t, r.IsValid, amount)
		assert.Equal(t, []string{payment.CodeNonPositiveAmount}, codes(r))
	}
}

func TestValidate_SuspiciouslyLarge(t *testing.T) {
	t.Run("floor dominates small monthly amounts", func(t *testing.T) {
		c := &payment.ContractContext{MonthlyAmount: d("500")}

		ok := payment.Validate(policy(), c, nil, d("50000"))
		assert.False(t, ok.IsBlocked)

		r := payment.Validate(policy(), c, nil, d("50000.01"))
		assert.True(t, r.IsBlocked)
		require.NotNil(t, r.Details.SuspiciousThreshold)
		assert.True(t, r.Details.SuspiciousThreshold.Equal(d("50000")))
		assert.Contains(t, r.Message, "50000.00")
	})

	t.Run("ten times monthly dominates large monthly amounts", func(t *testing.T) {
		c := &payment.ContractContext{MonthlyAmount: d("8000")}

		r := payment.Validate(policy(), c, nil, d("80001"))
		assert.True(t, r.IsBlocked)
		assert.True(t, r.Details.SuspiciousThreshold.Equal(d("80000")))
	})

	t.Run("no monthly amount skips the check", func(t *testing.T) {
		c := &payment.ContractContext{}
		r := payment.Validate(policy(), c, nil, d("1000000"))
		assert.True(t, r.IsValid)
	})
}

func TestValidate_Overpayment(t *testing.T) {
	c := &payment.ContractContext{ContractAmount: d("10000"), TotalPaid: d("9000")}

	within := payment.Validate(policy(), c, nil, d("2000"))
	assert.True(t, within.IsValid, "11000 sits exactly on the tolerance")

	r := payment.Validate(policy(), c, nil, d("2500"))
	assert.True(t, r.IsBlocked)
	assert.Equal(t, []string{payment.CodeOverpayment}, codes(r))
	require.NotNil(t, r.Details.Overpayment)
	assert.True(t, r.Details.Overpayment.Equal(d("1500")))
	assert.Contains(t, r.Message, "1500.00")
}

func TestValidate_InvoiceMismatchOnlyWarns(t *testing.T) {
	inv := &payment.InvoiceContext{TotalAmount: d("1000")}

	inside := payment.Validate(policy(), nil, inv, d("800"))
	assert.False(t, inside.IsWarning)

	r := payment.Validate(policy(), nil, inv, d("700"))
	assert.True(t, r.IsValid)
	assert.True(t, r.IsWarning)
	assert.False(t, r.IsBlocked)
	require.NotNil(t, r.Details.InvoiceDifference)
	assert.True(t, r.Details.InvoiceDifference.Equal(d("300")))
	assert.NoError(t, r.Err())
}

func TestValidate_BlockedTakesPrecedence(t *testing.T) {
	c := &payment.ContractContext{MonthlyAmount: d("500"), ContractAmount: d("6000"), TotalPaid: d("0")}
	inv := &payment.InvoiceContext{TotalAmount: d("500")}

	r := payment.Validate(policy(), c, inv, d("60000"))

	assert.True(t, r.IsBlocked)
	assert.False(t, r.IsWarning)
	assert.False(t, r.IsValid)
	assert.Equal(t, []string{payment.CodeSuspiciousAmount, payment.CodeOverpayment, payment.CodeInvoiceMismatch}, codes(r))
	assert.Contains(t, r.Message, "Suspiciously large")

	var vErr *domain.ValidationError
	require.True(t, errors.As(r.Err(), &vErr))
	assert.Equal(t, r.Message, vErr.Message)
	assert.Len(t, vErr.Details, 3)
}

func TestValidate_ZeroInvoiceAmountSkipsMismatch(t *testing.T) {
	r := payment.Validate(policy(), nil, &payment.InvoiceContext{TotalAmount: decimal.Zero}, d("100"))
	assert.True(t, r.IsValid)
	assert.False(t, r.IsWarning)
}
