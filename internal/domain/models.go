package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BaseModel contains common fields for all models
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns an ID when the caller did not set one
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// CompanyID identifies the tenant that owns a record
type CompanyID string

// IsValidCompanyID checks if a string is usable as a company identifier
func IsValidCompanyID(id string) bool {
	return id != "" && len(id) <= 50
}

// ContractStatus represents the lifecycle state of a rental contract
type ContractStatus string

const (
	ContractStatusDraft               ContractStatus = "draft"
	ContractStatusPendingPayment      ContractStatus = "pending_payment"
	ContractStatusActive              ContractStatus = "active"
	ContractStatusSuspended           ContractStatus = "suspended"
	ContractStatusExpired             ContractStatus = "expired"
	ContractStatusCancelled           ContractStatus = "cancelled"
	ContractStatusUnderLegalProcedure ContractStatus = "under_legal_procedure"
)

// BillableContractStatuses are the statuses whose contracts accrue recurring invoices
var BillableContractStatuses = []ContractStatus{
	ContractStatusActive,
	ContractStatusSuspended,
	ContractStatusExpired,
	ContractStatusUnderLegalProcedure,
}

// IsBillable reports whether recurring invoices are generated for the status
func (s ContractStatus) IsBillable() bool {
	for _, b := range BillableContractStatuses {
		if s == b {
			return true
		}
	}
	return false
}

// InvoiceType classifies an invoice
type InvoiceType string

const (
	InvoiceTypeRental  InvoiceType = "rental"
	InvoiceTypeService InvoiceType = "service"
	InvoiceTypeSale    InvoiceType = "sale"
	InvoiceTypePenalty InvoiceType = "penalty"
)

// InvoiceStatus represents the document status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusIssued    InvoiceStatus = "issued"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// InvoicePaymentStatus represents how much of an invoice has been settled
type InvoicePaymentStatus string

const (
	InvoicePaymentUnpaid  InvoicePaymentStatus = "unpaid"
	InvoicePaymentPartial InvoicePaymentStatus = "partial"
	InvoicePaymentPaid    InvoicePaymentStatus = "paid"
)

// PaymentStatus represents the processing state of a payment
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// VehicleStatus represents the operational state of a fleet vehicle
type VehicleStatus string

const (
	VehicleStatusAvailable        VehicleStatus = "available"
	VehicleStatusRented           VehicleStatus = "rented"
	VehicleStatusMaintenance      VehicleStatus = "maintenance"
	VehicleStatusOutOfService     VehicleStatus = "out_of_service"
	VehicleStatusReserved         VehicleStatus = "reserved"
	VehicleStatusAccident         VehicleStatus = "accident"
	VehicleStatusPoliceStation    VehicleStatus = "police_station"
	VehicleStatusStolen           VehicleStatus = "stolen"
	VehicleStatusMunicipality     VehicleStatus = "municipality"
	VehicleStatusReservedEmployee VehicleStatus = "reserved_employee"
	VehicleStatusStreet52         VehicleStatus = "street_52"
)

// IsProtected reports whether the status is an out-of-band operational state
// that occupancy synchronisation must never overwrite.
func (s VehicleStatus) IsProtected() bool {
	switch s {
	case VehicleStatusAvailable, VehicleStatusRented, VehicleStatusReserved:
		return false
	default:
		return true
	}
}

// Customer represents the renter of a contract
type Customer struct {
	BaseModel
	CompanyID     CompanyID       `gorm:"type:varchar(50);not null;index;column:company_id"`
	Name          string          `gorm:"type:varchar(200);not null"`
	Phone         string          `gorm:"type:varchar(50)"`
	Email         string          `gorm:"type:varchar(255)"`
	CreditLimit   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0;column:credit_limit"`
	IsBlacklisted bool            `gorm:"not null;default:false;column:is_blacklisted"`
}

// Contract is a vehicle rental agreement that drives the invoice stream
type Contract struct {
	BaseModel
	CompanyID             CompanyID       `gorm:"type:varchar(50);not null;index;column:company_id"`
	ContractNumber        string          `gorm:"type:varchar(50);not null;column:contract_number"`
	CustomerID            uuid.UUID       `gorm:"type:uuid;not null;index;column:customer_id"`
	VehicleID             *uuid.UUID      `gorm:"type:uuid;index;column:vehicle_id"`
	Status                ContractStatus  `gorm:"type:varchar(50);not null;default:'draft';index"`
	StartDate             time.Time       `gorm:"type:date;not null;column:start_date"`
	EndDate               *time.Time      `gorm:"type:date;column:end_date"`
	MonthlyAmount         decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0;column:monthly_amount"`
	ContractAmount        decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0;column:contract_amount"`
	TotalPaid             decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0;column:total_paid"`
	LicensePlate          string          `gorm:"type:varchar(50);column:license_plate"`
	BillingIntervalMonths int             `gorm:"not null;default:1;column:billing_interval_months"`
}

// BillingInterval returns the number of months between recurring invoices
func (c *Contract) BillingInterval() int {
	if c.BillingIntervalMonths < 1 {
		return 1
	}
	return c.BillingIntervalMonths
}

// Invoice is a billing document raised against a contract
type Invoice struct {
	BaseModel
	CompanyID     CompanyID            `gorm:"type:varchar(50);not null;index;column:company_id"`
	InvoiceNumber string               `gorm:"type:varchar(50);not null;column:invoice_number"`
	ContractID    *uuid.UUID           `gorm:"type:uuid;index;column:contract_id"`
	CustomerID    uuid.UUID            `gorm:"type:uuid;not null;column:customer_id"`
	InvoiceType   InvoiceType          `gorm:"type:varchar(50);not null;default:'rental';column:invoice_type"`
	InvoiceDate   time.Time            `gorm:"type:date;not null;column:invoice_date"`
	DueDate       *time.Time           `gorm:"type:date;column:due_date"`
	TotalAmount   decimal.Decimal      `gorm:"type:numeric(14,2);not null;default:0;column:total_amount"`
	PaidAmount    decimal.Decimal      `gorm:"type:numeric(14,2);not null;default:0;column:paid_amount"`
	BalanceDue    decimal.Decimal      `gorm:"type:numeric(14,2);not null;default:0;column:balance_due"`
	PaymentStatus InvoicePaymentStatus `gorm:"type:varchar(20);not null;default:'unpaid';column:payment_status"`
	Status        InvoiceStatus        `gorm:"type:varchar(20);not null;default:'issued';index"`
	Notes         string               `gorm:"type:text"`
}

// BillingPeriod returns the month the invoice belongs to: its due date when
// present, otherwise its invoice date.
func (i *Invoice) BillingPeriod() BillingPeriod {
	if i.DueDate != nil {
		return PeriodOf(*i.DueDate)
	}
	return PeriodOf(i.InvoiceDate)
}

// CountsForPeriod reports whether the invoice occupies its contract's recurring
// billing slot. Cadence generation and duplicate reconciliation both rely on it.
// The invoice type does not matter: invoices imported from older systems bill a
// contract month as "sale".
func (i *Invoice) CountsForPeriod() bool {
	return i.ContractID != nil && i.Status != InvoiceStatusCancelled
}

// ReferenceDate returns the date used to measure lateness
func (i *Invoice) ReferenceDate() time.Time {
	if i.DueDate != nil {
		return *i.DueDate
	}
	return i.InvoiceDate
}

// ApplyPaidAmount sets paid, balance and payment status from a paid total
func (i *Invoice) ApplyPaidAmount(paid decimal.Decimal) {
	i.PaidAmount = paid
	i.BalanceDue = BalanceDue(i.TotalAmount, paid)
	i.PaymentStatus = DerivePaymentStatus(paid, i.BalanceDue)
}

// Payment is money received against a contract, attached to one invoice once reconciled
type Payment struct {
	BaseModel
	CompanyID     CompanyID       `gorm:"type:varchar(50);not null;index;column:company_id"`
	PaymentNumber string          `gorm:"type:varchar(50);column:payment_number"`
	InvoiceID     *uuid.UUID      `gorm:"type:uuid;index;column:invoice_id"`
	ContractID    uuid.UUID       `gorm:"type:uuid;not null;index;column:contract_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	PaymentDate   time.Time       `gorm:"type:date;not null;column:payment_date"`
	PaymentStatus PaymentStatus   `gorm:"type:varchar(20);not null;default:'completed';column:payment_status"`
	Notes         string          `gorm:"type:text"`
}

// Vehicle is a fleet unit that can be allocated to contracts
type Vehicle struct {
	BaseModel
	CompanyID   CompanyID     `gorm:"type:varchar(50);not null;index;column:company_id"`
	PlateNumber string        `gorm:"type:varchar(50);not null;column:plate_number"`
	Status      VehicleStatus `gorm:"type:varchar(50);not null;default:'available';index"`
	IsActive    bool          `gorm:"not null;default:true;column:is_active"`
}

// LegalCaseStatus represents the state of a legal case
type LegalCaseStatus string

const (
	LegalCaseStatusOpen   LegalCaseStatus = "open"
	LegalCaseStatusClosed LegalCaseStatus = "closed"
)

// LegalCase is a collection case filed against a customer
type LegalCase struct {
	BaseModel
	CompanyID  CompanyID       `gorm:"type:varchar(50);not null;index;column:company_id"`
	CustomerID uuid.UUID       `gorm:"type:uuid;not null;index;column:customer_id"`
	ContractID *uuid.UUID      `gorm:"type:uuid;column:contract_id"`
	CaseNumber string          `gorm:"type:varchar(50);column:case_number"`
	Status     LegalCaseStatus `gorm:"type:varchar(20);not null;default:'open'"`
}

// TrafficViolation is a fine recorded against a vehicle during a contract
type TrafficViolation struct {
	BaseModel
	CompanyID     CompanyID       `gorm:"type:varchar(50);not null;index;column:company_id"`
	CustomerID    uuid.UUID       `gorm:"type:uuid;not null;index;column:customer_id"`
	ContractID    *uuid.UUID      `gorm:"type:uuid;column:contract_id"`
	VehicleID     *uuid.UUID      `gorm:"type:uuid;column:vehicle_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	ViolationDate time.Time       `gorm:"type:date;not null;column:violation_date"`
	Status        string          `gorm:"type:varchar(20);not null;default:'unpaid'"`
}

// NotificationType identifies the kind of contract notification
type NotificationType string

const (
	NotificationTypeContractExpiring NotificationType = "contract_expiring"
	NotificationTypeContractExpired  NotificationType = "contract_expired"
	NotificationTypePaymentOverdue   NotificationType = "payment_overdue"
)

// NotificationLog records that a notification was dispatched for a contract on a day.
// The unique index makes (contract, type, day) a claim that can be taken only once.
type NotificationLog struct {
	ID         uuid.UUID        `gorm:"type:uuid;primary_key"`
	CompanyID  CompanyID        `gorm:"type:varchar(50);not null;column:company_id"`
	ContractID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_notification_dedup;column:contract_id"`
	Type       NotificationType `gorm:"type:varchar(50);not null;uniqueIndex:idx_notification_dedup"`
	SentOn     string           `gorm:"type:varchar(10);not null;uniqueIndex:idx_notification_dedup;column:sent_on"`
	Payload    string           `gorm:"type:text"`
	CreatedAt  time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// JobRun is the persisted header of a batch report
type JobRun struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	JobName    string    `gorm:"type:varchar(100);not null;index;column:job_name"`
	StartedAt  time.Time `gorm:"not null;column:started_at"`
	FinishedAt time.Time `gorm:"not null;column:finished_at"`
	Succeeded  int       `gorm:"not null;default:0"`
	Skipped    int       `gorm:"not null;default:0"`
	Failed     int       `gorm:"not null;default:0"`
	ReportPath string    `gorm:"type:varchar(500);column:report_path"`
	Error      string    `gorm:"type:text"`
}

// NumberSequence tracks the last issued document number per company, prefix and year
type NumberSequence struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	CompanyID    CompanyID `gorm:"type:varchar(50);not null;uniqueIndex:idx_number_sequence;column:company_id"`
	Prefix       string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_number_sequence"`
	Year         int       `gorm:"not null;uniqueIndex:idx_number_sequence"`
	LastSequence int       `gorm:"not null;default:0;column:last_sequence"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}
