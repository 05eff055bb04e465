package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/payment"
	"github.com/alaraf/fleet-finance/internal/service"
	"github.com/alaraf/fleet-finance/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newPaymentService(db *gorm.DB) *service.PaymentService {
	r := newRepos(db)
	svc := service.NewPaymentService(db, r.contracts, r.invoices, r.payments, defaultPolicies(), zap.NewNop())
	svc.SetClock(fixedClock)
	return svc
}

func countPayments(t *testing.T, db *gorm.DB, contractID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&domain.Payment{}).Where("contract_id = ?", contractID).Count(&n).Error)
	return n
}

func TestPaymentService_Record_UpdatesInvoiceAndContract(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newPaymentService(db)
	ctx := context.Background()

	customer := testutil.CreateTestCustomer(t, db, "Yara", "5000")
	contract := testutil.CreateTestContract(t, db, customer, "C-1", testutil.Date(2024, time.January, 5), "1000")
	invoice := testutil.CreateTestInvoice(t, db, contract, "INV-1", testutil.Date(2024, time.March, 5), "1000", "0")

	p, result, err := svc.Record(ctx, &domain.PaymentRequest{
		ContractID: contract.ID,
		InvoiceID:  &invoice.ID,
		Amount:     testutil.Money("950"),
	})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, result.IsValid)
	assert.Equal(t, domain.PaymentStatusCompleted, p.PaymentStatus)
	assert.True(t, testutil.Date(2024, time.April, 10).Equal(p.PaymentDate))

	inv := reloadInvoice(t, db, invoice.ID)
	assert.True(t, inv.PaidAmount.Equal(testutil.Money("950")))
	assert.True(t, inv.BalanceDue.Equal(testutil.Money("50")))
	assert.Equal(t, domain.InvoicePaymentPartial, inv.PaymentStatus)
	assert.True(t, reloadContract(t, db, contract.ID).TotalPaid.Equal(testutil.Money("950")))

	t.Run("pending payment does not settle", func(t *testing.T) {
		_, _, err := svc.Record(ctx, &domain.PaymentRequest{
			ContractID:    contract.ID,
			InvoiceID:     &invoice.ID,
			Amount:        testutil.Money("50"),
			PaymentStatus: domain.PaymentStatusPending,
		})
		require.NoError(t, err)
		inv := reloadInvoice(t, db, invoice.ID)
		assert.True(t, inv.BalanceDue.Equal(testutil.Money("50")))
		assert.True(t, reloadContract(t, db, contract.ID).TotalPaid.Equal(testutil.Money("950")))
	})

	t.Run("settling payment marks the invoice paid", func(t *testing.T) {
		_, _, err := svc.Record(ctx, &domain.PaymentRequest{
			ContractID:  contract.ID,
			InvoiceID:   &invoice.ID,
			Amount:      testutil.Money("50"),
			PaymentDate: "2024-04-09",
		})
		require.NoError(t, err)
		inv := reloadInvoice(t, db, invoice.ID)
		assert.True(t, inv.BalanceDue.IsZero())
		assert.Equal(t, domain.InvoicePaymentPaid, inv.PaymentStatus)
	})
}

func TestPaymentService_Record_Blocked(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newPaymentService(db)
	ctx := context.Background()

	customer := testutil.CreateTestCustomer(t, db, "Tarek", "5000")
	contract := testutil.CreateTestContract(t, db, customer, "C-2", testutil.Date(2024, time.January, 5), "1000",
		testutil.WithContractAmount("3000"))

	tests := []struct {
		name   string
		amount string
		code   string
	}{
		{"zero amount", "0", payment.CodeNonPositiveAmount},
		{"negative amount", "-10", payment.CodeNonPositiveAmount},
		{"suspiciously large", "60000", payment.CodeSuspiciousAmount},
		{"overpays the contract", "3400", payment.CodeOverpayment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, result, err := svc.Record(ctx, &domain.PaymentRequest{
				ContractID: contract.ID,
				Amount:     testutil.Money(tt.amount),
			})
			assert.Nil(t, p)
			assert.True(t, result.IsBlocked)

			var validationErr *domain.ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Contains(t, validationErr.Details, tt.code)
			assert.NotEmpty(t, validationErr.Message)
		})
	}

	assert.Equal(t, int64(0), countPayments(t, db, contract.ID))
	assert.True(t, reloadContract(t, db, contract.ID).TotalPaid.IsZero())
}

func TestPaymentService_Record_MismatchOnlyWarns(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newPaymentService(db)

	customer := testutil.CreateTestCustomer(t, db, "Mona", "5000")
	contract := testutil.CreateTestContract(t, db, customer, "C-3", testutil.Date(2024, time.January, 5), "1000")
	invoice := testutil.CreateTestInvoice(t, db, contract, "INV-3", testutil.Date(2024, time.March, 5), "1000", "0")

	p, result, err := svc.Record(context.Background(), &domain.PaymentRequest{
		ContractID: contract.ID,
		InvoiceID:  &invoice.ID,
		Amount:     testutil.Money("500"),
	})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, result.IsWarning)
	assert.False(t, result.IsBlocked)
	assert.Equal(t, int64(1), countPayments(t, db, contract.ID))
}

func TestPaymentService_Record_RejectsForeignInvoice(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newPaymentService(db)

	customer := testutil.CreateTestCustomer(t, db, "Ali", "5000")
	contract := testutil.CreateTestContract(t, db, customer, "C-4", testutil.Date(2024, time.January, 5), "1000")
	other := testutil.CreateTestContract(t, db, customer, "C-5", testutil.Date(2024, time.January, 5), "1000")
	foreign := testutil.CreateTestInvoice(t, db, other, "INV-5", testutil.Date(2024, time.March, 5), "1000", "0")

	_, _, err := svc.Record(context.Background(), &domain.PaymentRequest{
		ContractID: contract.ID,
		InvoiceID:  &foreign.ID,
		Amount:     testutil.Money("1000"),
	})
	assert.True(t, errors.Is(err, service.ErrInvalidInput))
	assert.Equal(t, int64(0), countPayments(t, db, contract.ID))
}

func TestPaymentService_Record_BadDate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newPaymentService(db)

	customer := testutil.CreateTestCustomer(t, db, "Sara", "5000")
	contract := testutil.CreateTestContract(t, db, customer, "C-6", testutil.Date(2024, time.January, 5), "1000")

	_, _, err := svc.Record(context.Background(), &domain.PaymentRequest{
		ContractID:  contract.ID,
		Amount:      testutil.Money("100"),
		PaymentDate: "10/04/2024",
	})
	assert.True(t, errors.Is(err, service.ErrInvalidInput))
}

func TestPaymentService_Validate_DoesNotWrite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newPaymentService(db)

	customer := testutil.CreateTestCustomer(t, db, "Dina", "5000")
	contract := testutil.CreateTestContract(t, db, customer, "C-7", testutil.Date(2024, time.January, 5), "1000")

	result, err := svc.Validate(context.Background(), &domain.PaymentRequest{
		ContractID: contract.ID,
		Amount:     testutil.Money("1000"),
	})
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, int64(0), countPayments(t, db, contract.ID))

	_, err = svc.Validate(context.Background(), &domain.PaymentRequest{ContractID: uuid.New(), Amount: testutil.Money("1")})
	assert.True(t, errors.Is(err, service.ErrNotFound))
}
