// Package testutil provides an in-memory database and fixtures for service and
// repository tests.
package testutil

import (
	"testing"
	"time"

	"github.com/alaraf/fleet-finance/internal/database"
	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// TestCompany is the tenant fixtures are created under
const TestCompany domain.CompanyID = "acme"

// SetupTestDB returns a fresh migrated in-memory database
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewSQLite(":memory:")
	require.NoError(t, err, "failed to open in-memory database")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Date returns midnight UTC of the given day
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Money parses a decimal literal
func Money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// CreateTestCustomer creates a customer with the given credit limit
func CreateTestCustomer(t *testing.T, db *gorm.DB, name string, creditLimit string) *domain.Customer {
	t.Helper()
	customer := &domain.Customer{
		CompanyID:   TestCompany,
		Name:        name,
		CreditLimit: Money(creditLimit),
	}
	require.NoError(t, db.Create(customer).Error)
	return customer
}

// ContractOption customises a fixture contract
type ContractOption func(*domain.Contract)

// WithEndDate sets the contract end date
func WithEndDate(end time.Time) ContractOption {
	return func(c *domain.Contract) { c.EndDate = &end }
}

// WithStatus sets the contract status
func WithStatus(status domain.ContractStatus) ContractOption {
	return func(c *domain.Contract) { c.Status = status }
}

// WithVehicle links the contract to a vehicle
func WithVehicle(id uuid.UUID) ContractOption {
	return func(c *domain.Contract) { c.VehicleID = &id }
}

// WithPlate sets the contract license plate
func WithPlate(plate string) ContractOption {
	return func(c *domain.Contract) { c.LicensePlate = plate }
}

// WithContractAmount sets the full contract value
func WithContractAmount(amount string) ContractOption {
	return func(c *domain.Contract) { c.ContractAmount = Money(amount) }
}

// CreateTestContract creates an active monthly contract for the customer
func CreateTestContract(t *testing.T, db *gorm.DB, customer *domain.Customer, number string, start time.Time, monthly string, opts ...ContractOption) *domain.Contract {
	t.Helper()
	contract := &domain.Contract{
		CompanyID:      customer.CompanyID,
		ContractNumber: number,
		CustomerID:     customer.ID,
		Status:         domain.ContractStatusActive,
		StartDate:      start,
		MonthlyAmount:  Money(monthly),
		ContractAmount: Money(monthly).Mul(decimal.NewFromInt(12)),
		TotalPaid:      decimal.Zero,
	}
	for _, opt := range opts {
		opt(contract)
	}
	require.NoError(t, db.Create(contract).Error)
	return contract
}

// CreateTestInvoice creates an issued rental invoice due on the given day
func CreateTestInvoice(t *testing.T, db *gorm.DB, contract *domain.Contract, number string, due time.Time, total, paid string) *domain.Invoice {
	t.Helper()
	contractID := contract.ID
	invoice := &domain.Invoice{
		CompanyID:     contract.CompanyID,
		InvoiceNumber: number,
		ContractID:    &contractID,
		CustomerID:    contract.CustomerID,
		InvoiceType:   domain.InvoiceTypeRental,
		InvoiceDate:   due,
		DueDate:       &due,
		TotalAmount:   Money(total),
		Status:        domain.InvoiceStatusIssued,
	}
	invoice.ApplyPaidAmount(Money(paid))
	require.NoError(t, db.Create(invoice).Error)
	return invoice
}

// CreateTestPayment creates a payment attached to an invoice
func CreateTestPayment(t *testing.T, db *gorm.DB, invoice *domain.Invoice, amount string, status domain.PaymentStatus) *domain.Payment {
	t.Helper()
	invoiceID := invoice.ID
	payment := &domain.Payment{
		CompanyID:     invoice.CompanyID,
		InvoiceID:     &invoiceID,
		ContractID:    *invoice.ContractID,
		Amount:        Money(amount),
		PaymentDate:   invoice.InvoiceDate,
		PaymentStatus: status,
	}
	require.NoError(t, db.Create(payment).Error)
	return payment
}

// CreateTestVehicle creates an active vehicle
func CreateTestVehicle(t *testing.T, db *gorm.DB, plate string, status domain.VehicleStatus) *domain.Vehicle {
	t.Helper()
	vehicle := &domain.Vehicle{
		CompanyID:   TestCompany,
		PlateNumber: plate,
		Status:      status,
		IsActive:    true,
	}
	require.NoError(t, db.Create(vehicle).Error)
	return vehicle
}
