package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/alaraf/fleet-finance/internal/billing"
	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/service"
	"github.com/alaraf/fleet-finance/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newReconciliationService(db *gorm.DB) *service.ReconciliationService {
	r := newRepos(db)
	svc := service.NewReconciliationService(db, r.contracts, r.invoices, r.payments, zap.NewNop())
	svc.SetClock(fixedClock)
	return svc
}

type duplicateFixture struct {
	contract  *domain.Contract
	canonical *domain.Invoice
	duplicate *domain.Invoice
	onDupe    *domain.Payment
	pending   *domain.Payment
	onCanon   *domain.Payment
}

// seedDuplicate creates two March invoices for one contract. The older one is
// canonical; payments are spread across both.
func seedDuplicate(t *testing.T, db *gorm.DB, number string) duplicateFixture {
	t.Helper()
	customer := testutil.CreateTestCustomer(t, db, "Customer "+number, "5000")
	contract := testutil.CreateTestContract(t, db, customer, number, testutil.Date(2024, time.January, 5), "1000")

	due := testutil.Date(2024, time.March, 5)
	canonical := testutil.CreateTestInvoice(t, db, contract, number+"-A", due, "1000", "200")
	duplicate := testutil.CreateTestInvoice(t, db, contract, number+"-B", due, "1000", "400")
	setCreatedAt(t, db, canonical, time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC))
	setCreatedAt(t, db, duplicate, time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC))

	return duplicateFixture{
		contract:  contract,
		canonical: canonical,
		duplicate: duplicate,
		onCanon:   testutil.CreateTestPayment(t, db, canonical, "200", domain.PaymentStatusCompleted),
		onDupe:    testutil.CreateTestPayment(t, db, duplicate, "400", domain.PaymentStatusCompleted),
		pending:   testutil.CreateTestPayment(t, db, duplicate, "100", domain.PaymentStatusPending),
	}
}

func TestReconciliationService_ReconcileContract_MergesGroup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newReconciliationService(db)
	ctx := context.Background()
	f := seedDuplicate(t, db, "C-200")

	report, err := svc.ReconcileContract(ctx, f.contract.ID, false)
	require.NoError(t, err)

	succeeded, skipped, failed := report.Counts()
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 1, report.Total())

	key := billing.GroupKey{ContractID: f.contract.ID, Period: domain.PeriodOf(testutil.Date(2024, time.March, 5))}
	require.NotNil(t, resultFor(report, key.String()))

	dup := reloadInvoice(t, db, f.duplicate.ID)
	assert.Equal(t, domain.InvoiceStatusCancelled, dup.Status)
	assert.Contains(t, dup.Notes, "C-200-A")

	for _, p := range []*domain.Payment{f.onCanon, f.onDupe, f.pending} {
		moved := reloadPayment(t, db, p.ID)
		require.NotNil(t, moved.InvoiceID)
		assert.Equal(t, f.canonical.ID, *moved.InvoiceID)
		assert.True(t, moved.Amount.Equal(p.Amount), "payment amounts must survive the move")
	}

	canon := reloadInvoice(t, db, f.canonical.ID)
	assert.Equal(t, domain.InvoiceStatusIssued, canon.Status)
	assert.True(t, canon.PaidAmount.Equal(testutil.Money("600")), "pending payments do not count: %s", canon.PaidAmount)
	assert.True(t, canon.BalanceDue.Equal(testutil.Money("400")))
	assert.Equal(t, domain.InvoicePaymentPartial, canon.PaymentStatus)

	t.Run("second run finds nothing", func(t *testing.T) {
		again, err := svc.ReconcileContract(ctx, f.contract.ID, false)
		require.NoError(t, err)
		assert.Empty(t, again.Results)

		dup := reloadInvoice(t, db, f.duplicate.ID)
		assert.Equal(t, 1, countLines(dup.Notes), "note must not be appended twice")
	})
}

func TestReconciliationService_PlanContract_DoesNotWrite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newReconciliationService(db)
	f := seedDuplicate(t, db, "C-201")

	plans, conflicts, err := svc.PlanContract(context.Background(), f.contract.ID)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	require.Len(t, plans, 1)
	assert.Equal(t, f.canonical.ID, plans[0].Canonical.ID)
	require.Len(t, plans[0].PaymentMoves, 2)
	assert.True(t, plans[0].PaymentTotal.Equal(testutil.Money("700")))

	assert.Equal(t, domain.InvoiceStatusIssued, reloadInvoice(t, db, f.duplicate.ID).Status)
	assert.Equal(t, f.duplicate.ID, *reloadPayment(t, db, f.onDupe.ID).InvoiceID)
}

func TestReconciliationService_MovesPaymentWithStaleContractID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newReconciliationService(db)
	f := seedDuplicate(t, db, "C-202")

	require.NoError(t, db.Model(&domain.Payment{}).Where("id = ?", f.onDupe.ID).
		UpdateColumn("contract_id", uuid.New()).Error)

	plans, _, err := svc.PlanContract(context.Background(), f.contract.ID)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Len(t, plans[0].PaymentMoves, 2)

	_, err = svc.ReconcileContract(context.Background(), f.contract.ID, false)
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceStatusCancelled, reloadInvoice(t, db, f.duplicate.ID).Status)
	moved := reloadPayment(t, db, f.onDupe.ID)
	require.NotNil(t, moved.InvoiceID)
	assert.Equal(t, f.canonical.ID, *moved.InvoiceID, "no payment may stay on a cancelled invoice")

	canon := reloadInvoice(t, db, f.canonical.ID)
	assert.True(t, canon.PaidAmount.Equal(testutil.Money("600")), "paid: %s", canon.PaidAmount)
}

func TestReconciliationService_CancelledInvoicesAreNotDuplicates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newReconciliationService(db)

	customer := testutil.CreateTestCustomer(t, db, "Hadi", "5000")
	contract := testutil.CreateTestContract(t, db, customer, "C-202", testutil.Date(2024, time.January, 5), "1000")
	due := testutil.Date(2024, time.February, 5)
	testutil.CreateTestInvoice(t, db, contract, "A", due, "1000", "0")
	old := testutil.CreateTestInvoice(t, db, contract, "B", due, "1000", "0")
	require.NoError(t, db.Model(&domain.Invoice{}).Where("id = ?", old.ID).
		Update("status", domain.InvoiceStatusCancelled).Error)

	report, err := svc.ReconcileContract(context.Background(), contract.ID, false)
	require.NoError(t, err)
	assert.Empty(t, report.Results)
}

func TestReconciliationService_ReconcileAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newReconciliationService(db)
	ctx := context.Background()

	first := seedDuplicate(t, db, "C-300")
	second := seedDuplicate(t, db, "C-301")

	customer := testutil.CreateTestCustomer(t, db, "Clean", "5000")
	clean := testutil.CreateTestContract(t, db, customer, "C-302", testutil.Date(2024, time.January, 5), "1000")
	testutil.CreateTestInvoice(t, db, clean, "C-302-JAN", testutil.Date(2024, time.January, 5), "1000", "0")
	testutil.CreateTestInvoice(t, db, clean, "C-302-FEB", testutil.Date(2024, time.February, 5), "1000", "0")

	t.Run("dry run", func(t *testing.T) {
		report := svc.ReconcileAll(ctx, true)
		assert.True(t, report.DryRun)
		assert.Equal(t, 2, report.Total())
		assert.Equal(t, domain.InvoiceStatusIssued, reloadInvoice(t, db, first.duplicate.ID).Status)
	})

	report := svc.ReconcileAll(ctx, false)
	assert.False(t, report.HasFailures())
	assert.Equal(t, 2, report.Total())
	assert.Equal(t, domain.InvoiceStatusCancelled, reloadInvoice(t, db, first.duplicate.ID).Status)
	assert.Equal(t, domain.InvoiceStatusCancelled, reloadInvoice(t, db, second.duplicate.ID).Status)
	assert.Equal(t, int64(2), countInvoices(t, db, clean.ID))
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := 1
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}
