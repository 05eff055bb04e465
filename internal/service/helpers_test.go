package service_test

import (
	"testing"
	"time"

	"github.com/alaraf/fleet-finance/internal/config"
	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// testNow is the fixed "current time" used by every service test
var testNow = time.Date(2024, time.April, 10, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type repos struct {
	contracts     *repository.ContractRepository
	invoices      *repository.InvoiceRepository
	payments      *repository.PaymentRepository
	vehicles      *repository.VehicleRepository
	customers     *repository.CustomerRepository
	violations    *repository.ViolationRepository
	legalCases    *repository.LegalCaseRepository
	sequences     *repository.NumberSequenceRepository
	notifications *repository.NotificationLogRepository
}

func newRepos(db *gorm.DB) repos {
	return repos{
		contracts:     repository.NewContractRepository(db),
		invoices:      repository.NewInvoiceRepository(db),
		payments:      repository.NewPaymentRepository(db),
		vehicles:      repository.NewVehicleRepository(db),
		customers:     repository.NewCustomerRepository(db),
		violations:    repository.NewViolationRepository(db),
		legalCases:    repository.NewLegalCaseRepository(db),
		sequences:     repository.NewNumberSequenceRepository(db),
		notifications: repository.NewNotificationLogRepository(db),
	}
}

func defaultPolicies() *config.PolicyProvider {
	return config.NewStaticPolicyProvider(domain.DefaultPolicy())
}

func reloadInvoice(t *testing.T, db *gorm.DB, id uuid.UUID) domain.Invoice {
	t.Helper()
	var inv domain.Invoice
	require.NoError(t, db.First(&inv, "id = ?", id).Error)
	return inv
}

func reloadPayment(t *testing.T, db *gorm.DB, id uuid.UUID) domain.Payment {
	t.Helper()
	var p domain.Payment
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return p
}

func reloadVehicle(t *testing.T, db *gorm.DB, id uuid.UUID) domain.Vehicle {
	t.Helper()
	var v domain.Vehicle
	require.NoError(t, db.First(&v, "id = ?", id).Error)
	return v
}

func reloadContract(t *testing.T, db *gorm.DB, id uuid.UUID) domain.Contract {
	t.Helper()
	var c domain.Contract
	require.NoError(t, db.First(&c, "id = ?", id).Error)
	return c
}

func setCreatedAt(t *testing.T, db *gorm.DB, inv *domain.Invoice, at time.Time) {
	t.Helper()
	require.NoError(t, db.Model(&domain.Invoice{}).Where("id = ?", inv.ID).UpdateColumn("created_at", at).Error)
	inv.CreatedAt = at
}

func countInvoices(t *testing.T, db *gorm.DB, contractID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&domain.Invoice{}).Where("contract_id = ?", contractID).Count(&n).Error)
	return n
}

func resultFor(report *domain.BatchReport, key string) *domain.UnitResult {
	for i := range report.Results {
		if report.Results[i].Key == key {
			return &report.Results[i]
		}
	}
	return nil
}
