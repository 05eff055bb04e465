package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alaraf/fleet-finance/internal/auth"
	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/repository"
	"github.com/alaraf/fleet-finance/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func scopedTo(company domain.CompanyID) context.Context {
	return auth.WithCompanyFilter(context.Background(), &auth.CompanyFilter{CompanyID: &company})
}

// ============================================================================
// Tenant scoping
// ============================================================================

func TestNormalizePagination(t *testing.T) {
	tests := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, 20},
		{-3, 10, 1, 10},
		{2, 500, 2, repository.MaxPageSize},
		{4, 50, 4, 50},
	}
	for _, tt := range tests {
		page, size := repository.NormalizePagination(tt.page, tt.size)
		assert.Equal(t, tt.wantPage, page)
		assert.Equal(t, tt.wantSize, size)
	}
}

func TestContractRepository_CompanyFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewContractRepository(db)

	acme := testutil.CreateTestCustomer(t, db, "Acme customer", "1000")
	acmeContract := testutil.CreateTestContract(t, db, acme, "C-ACME", testutil.Date(2024, time.January, 1), "500")

	globex := &domain.Customer{CompanyID: "globex", Name: "Globex customer"}
	require.NoError(t, db.Create(globex).Error)
	globexContract := testutil.CreateTestContract(t, db, globex, "C-GLOBEX", testutil.Date(2024, time.January, 1), "500")

	t.Run("unscoped context sees every company", func(t *testing.T) {
		all, err := repo.ListBillable(context.Background())
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("scoped context sees only its company", func(t *testing.T) {
		ctx := scopedTo(testutil.TestCompany)
		all, err := repo.ListBillable(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, acmeContract.ID, all[0].ID)

		_, err = repo.GetByID(ctx, globexContract.ID)
		assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	})

	t.Run("user context without explicit filter is pinned", func(t *testing.T) {
		ctx := auth.WithUserContext(context.Background(), &auth.UserContext{
			UserID:    uuid.New(),
			CompanyID: "globex",
			Roles:     []domain.UserRoleType{domain.RoleViewer},
		})
		c, err := repo.GetByID(ctx, globexContract.ID)
		require.NoError(t, err)
		assert.Equal(t, "C-GLOBEX", c.ContractNumber)
	})
}

// ============================================================================
// Guarded writes
// ============================================================================

func TestContractRepository_RelinkVehicle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewContractRepository(db)
	ctx := context.Background()

	customer := testutil.CreateTestCustomer(t, db, "Relink", "1000")
	contract := testutil.CreateTestContract(t, db, customer, "C-RELINK", testutil.Date(2024, time.January, 1), "500")
	first := testutil.CreateTestVehicle(t, db, "AB12345", domain.VehicleStatusAvailable)
	second := testutil.CreateTestVehicle(t, db, "CD67890", domain.VehicleStatusAvailable)

	ok, err := repo.RelinkVehicle(ctx, contract.ID, nil, first.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// stale expectation: the contract no longer points nowhere
	ok, err = repo.RelinkVehicle(ctx, contract.ID, nil, second.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.RelinkVehicle(ctx, contract.ID, &first.ID, second.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	reloaded, err := repo.GetByID(ctx, contract.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.VehicleID)
	assert.Equal(t, second.ID, *reloaded.VehicleID)
}

func TestVehicleRepository_UpdateStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewVehicleRepository(db)
	ctx := context.Background()

	v := testutil.CreateTestVehicle(t, db, "EF11111", domain.VehicleStatusAvailable)

	ok, err := repo.UpdateStatus(ctx, v.ID, domain.VehicleStatusAvailable, domain.VehicleStatusRented)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateStatus(ctx, v.ID, domain.VehicleStatusAvailable, domain.VehicleStatusRented)
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded, err := repo.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VehicleStatusRented, reloaded.Status)
}

func TestInvoiceRepository_CancelAndDuplicates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewInvoiceRepository(db)
	ctx := context.Background()

	customer := testutil.CreateTestCustomer(t, db, "Dup", "1000")
	contract := testutil.CreateTestContract(t, db, customer, "C-DUP", testutil.Date(2024, time.January, 1), "500")
	single := testutil.CreateTestContract(t, db, customer, "C-ONE", testutil.Date(2024, time.January, 1), "500")

	a := testutil.CreateTestInvoice(t, db, contract, "INV-A", testutil.Date(2024, time.February, 1), "500", "0")
	testutil.CreateTestInvoice(t, db, contract, "INV-B", testutil.Date(2024, time.February, 1), "500", "0")
	testutil.CreateTestInvoice(t, db, single, "INV-C", testutil.Date(2024, time.February, 1), "500", "0")

	ids, err := repo.ListContractIDsWithDuplicateCandidates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{contract.ID}, ids)

	open, err := repo.ListContractIDsWithOpenBalance(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{contract.ID, single.ID}, open)

	ok, err := repo.Cancel(ctx, a.ID, "Superseded by invoice INV-B")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Cancel(ctx, a.ID, "again")
	require.NoError(t, err)
	assert.False(t, ok, "already cancelled")

	cancelled, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusCancelled, cancelled.Status)
	assert.Equal(t, "Superseded by invoice INV-B", cancelled.Notes)

	ids, err = repo.ListContractIDsWithDuplicateCandidates(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPaymentRepository_MoveToInvoice(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPaymentRepository(db)
	ctx := context.Background()

	customer := testutil.CreateTestCustomer(t, db, "Mover", "1000")
	contract := testutil.CreateTestContract(t, db, customer, "C-MOVE", testutil.Date(2024, time.January, 1), "500")
	from := testutil.CreateTestInvoice(t, db, contract, "INV-FROM", testutil.Date(2024, time.February, 1), "500", "0")
	to := testutil.CreateTestInvoice(t, db, contract, "INV-TO", testutil.Date(2024, time.February, 1), "500", "0")
	p := testutil.CreateTestPayment(t, db, from, "200", domain.PaymentStatusCompleted)

	ok, err := repo.MoveToInvoice(ctx, p.ID, from.ID, to.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MoveToInvoice(ctx, p.ID, from.ID, to.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	moved, err := repo.ListByInvoice(ctx, to.ID)
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, p.ID, moved[0].ID)
}

// ============================================================================
// Ledgers
// ============================================================================

func TestNotificationLogRepository_ClaimIsExclusive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewNotificationLogRepository(db)
	ctx := context.Background()

	customer := testutil.CreateTestCustomer(t, db, "Notify", "1000")
	contract := testutil.CreateTestContract(t, db, customer, "C-NOTE", testutil.Date(2024, time.January, 1), "500")

	entry := func() *domain.NotificationLog {
		return &domain.NotificationLog{
			CompanyID:  contract.CompanyID,
			ContractID: contract.ID,
			Type:       domain.NotificationTypePaymentOverdue,
			SentOn:     "2024-04-10",
		}
	}

	ok, err := repo.Claim(ctx, entry())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Claim(ctx, entry())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Release(ctx, contract.ID, domain.NotificationTypePaymentOverdue, "2024-04-10"))

	ok, err = repo.Claim(ctx, entry())
	require.NoError(t, err)
	assert.True(t, ok, "released slot can be claimed again")

	logs, err := repo.ListByContract(ctx, contract.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestJobRunRepository_ListRecent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewJobRunRepository(db)
	ctx := context.Background()

	base := time.Date(2024, time.April, 10, 2, 0, 0, 0, time.UTC)
	for i, name := range []string{"invoice_cadence", "invoice_reconcile", "invoice_cadence"} {
		start := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Create(ctx, &domain.JobRun{
			JobName:    name,
			StartedAt:  start,
			FinishedAt: start.Add(time.Minute),
			Succeeded:  i,
		}))
	}

	all, err := repo.ListRecent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 2, all[0].Succeeded, "newest first")

	cadence, err := repo.ListRecent(ctx, "invoice_cadence", 1)
	require.NoError(t, err)
	require.Len(t, cadence, 1)
	assert.Equal(t, "invoice_cadence", cadence[0].JobName)
	assert.Equal(t, 2, cadence[0].Succeeded)
}
