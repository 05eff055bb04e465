package billing

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GroupKey identifies a recurring billing slot
type GroupKey struct {
	ContractID uuid.UUID            `json:"contractId"`
	Period     domain.BillingPeriod `json:"period"`
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%s", k.ContractID, k.Period)
}

// DuplicateGroup is a billing slot held by more than one recurring invoice
type DuplicateGroup struct {
	Key      GroupKey
	Invoices []domain.Invoice
}

// PaymentMove reassigns a payment from a superseded invoice to the canonical one
type PaymentMove struct {
	PaymentID     uuid.UUID       `json:"paymentId"`
	FromInvoiceID uuid.UUID       `json:"fromInvoiceId"`
	ToInvoiceID   uuid.UUID       `json:"toInvoiceId"`
	Amount        decimal.Decimal `json:"amount"`
}

// InvoiceAmounts are the settlement fields derived from an invoice's payments
type InvoiceAmounts struct {
	PaidAmount    decimal.Decimal             `json:"paidAmount"`
	BalanceDue    decimal.Decimal             `json:"balanceDue"`
	PaymentStatus domain.InvoicePaymentStatus `json:"paymentStatus"`
}

// ReconcilePlan is the full set of writes that restores one billing slot to a single invoice
type ReconcilePlan struct {
	Key          GroupKey
	Canonical    domain.Invoice
	Superseded   []domain.Invoice
	PaymentMoves []PaymentMove
	// Amounts of the canonical invoice after every group payment points at it
	Amounts InvoiceAmounts
	// PaymentTotal is the sum of every payment attached to the group, before and after
	PaymentTotal decimal.Decimal
}

// SupersededNote is the audit note written on a cancelled duplicate
func SupersededNote(canonicalNumber string) string {
	return fmt.Sprintf("Superseded by invoice %s during duplicate reconciliation", canonicalNumber)
}

// RecomputeInvoiceAmounts derives paid amount, balance and payment status from
// the completed payments only. Pending and failed payments do not count.
func RecomputeInvoiceAmounts(total decimal.Decimal, payments []domain.Payment) InvoiceAmounts {
	paid := decimal.Zero
	for _, p := range payments {
		if p.PaymentStatus == domain.PaymentStatusCompleted {
			paid = paid.Add(p.Amount)
		}
	}
	balance := domain.BalanceDue(total, paid)
	return InvoiceAmounts{
		PaidAmount:    paid,
		BalanceDue:    balance,
		PaymentStatus: domain.DerivePaymentStatus(paid, balance),
	}
}

// GroupDuplicates buckets recurring invoices by (contract, billing period) and
// returns the buckets holding more than one, ordered by contract then period.
func GroupDuplicates(invoices []domain.Invoice) []DuplicateGroup {
	buckets := make(map[GroupKey][]domain.Invoice)
	for _, inv := range invoices {
		if !inv.CountsForPeriod() {
			continue
		}
		key := GroupKey{ContractID: *inv.ContractID, Period: inv.BillingPeriod()}
		buckets[key] = append(buckets[key], inv)
	}

	var groups []DuplicateGroup
	for key, members := range buckets {
		if len(members) > 1 {
			groups = append(groups, DuplicateGroup{Key: key, Invoices: members})
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i].Key, groups[j].Key
		if c := bytes.Compare(a.ContractID[:], b.ContractID[:]); c != 0 {
			return c < 0
		}
		return a.Period.Before(b.Period)
	})
	return groups
}

// SelectCanonical orders the group by creation time then id and returns the first
// invoice. Two members with the same timestamp and id cannot be told apart and
// yield a *domain.ReconciliationConflict.
func SelectCanonical(g DuplicateGroup) (domain.Invoice, []domain.Invoice, error) {
	if len(g.Invoices) < 2 {
		return domain.Invoice{}, nil, conflict(g.Key, "group holds fewer than two invoices")
	}
	for _, inv := range g.Invoices {
		if !inv.CountsForPeriod() || *inv.ContractID != g.Key.ContractID || inv.BillingPeriod() != g.Key.Period {
			return domain.Invoice{}, nil, conflict(g.Key, fmt.Sprintf("invoice %s does not belong to the group", inv.InvoiceNumber))
		}
	}

	ordered := append([]domain.Invoice(nil), g.Invoices...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return invoiceLess(&ordered[i], &ordered[j])
	})

	first, second := &ordered[0], &ordered[1]
	if first.CreatedAt.Equal(second.CreatedAt) && first.ID == second.ID {
		return domain.Invoice{}, nil, conflict(g.Key,
			fmt.Sprintf("invoices %s and %s share creation time and id", first.InvoiceNumber, second.InvoiceNumber))
	}
	return ordered[0], ordered[1:], nil
}

// PlanReconciliation plans the merge of one duplicate group. payments may contain
// payments of other invoices; only those attached to a group member are used.
func PlanReconciliation(g DuplicateGroup, payments []domain.Payment) (*ReconcilePlan, error) {
	canonical, superseded, err := SelectCanonical(g)
	if err != nil {
		return nil, err
	}

	supersededIDs := make(map[uuid.UUID]bool, len(superseded))
	for _, inv := range superseded {
		supersededIDs[inv.ID] = true
	}

	plan := &ReconcilePlan{
		Key:          g.Key,
		Canonical:    canonical,
		Superseded:   superseded,
		PaymentTotal: decimal.Zero,
	}

	var attached []domain.Payment
	for _, p := range payments {
		if p.InvoiceID == nil {
			continue
		}
		from := *p.InvoiceID
		switch {
		case from == canonical.ID:
		case supersededIDs[from]:
			plan.PaymentMoves = append(plan.PaymentMoves, PaymentMove{
				PaymentID:     p.ID,
				FromInvoiceID: from,
				ToInvoiceID:   canonical.ID,
				Amount:        p.Amount,
			})
		default:
			continue
		}
		attached = append(attached, p)
		plan.PaymentTotal = plan.PaymentTotal.Add(p.Amount)
	}

	plan.Amounts = RecomputeInvoiceAmounts(canonical.TotalAmount, attached)
	return plan, nil
}

// Reconcile plans every duplicate group of a contract's invoices. Groups that
// cannot be merged safely are returned as errors and left untouched.
func Reconcile(invoices []domain.Invoice, payments []domain.Payment) ([]*ReconcilePlan, []error) {
	var plans []*ReconcilePlan
	var errs []error
	for _, g := range GroupDuplicates(invoices) {
		plan, err := PlanReconciliation(g, payments)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		plans = append(plans, plan)
	}
	return plans, errs
}

func invoiceLess(a, b *domain.Invoice) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

func conflict(key GroupKey, reason string) *domain.ReconciliationConflict {
	return &domain.ReconciliationConflict{ContractID: key.ContractID, Period: key.Period, Reason: reason}
}
