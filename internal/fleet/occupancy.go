// Package fleet derives vehicle occupancy from active rental contracts.
package fleet

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/google/uuid"
)

// StatusChange moves a vehicle between rented and available
type StatusChange struct {
	VehicleID   uuid.UUID            `json:"vehicleId"`
	PlateNumber string               `json:"plateNumber"`
	OldStatus   domain.VehicleStatus `json:"oldStatus"`
	NewStatus   domain.VehicleStatus `json:"newStatus"`
}

// LinkRepair re-points a contract at the vehicle carrying its license plate
type LinkRepair struct {
	ContractID     uuid.UUID  `json:"contractId"`
	ContractNumber string     `json:"contractNumber"`
	LicensePlate   string     `json:"licensePlate"`
	OldVehicleID   *uuid.UUID `json:"oldVehicleId,omitempty"`
	NewVehicleID   uuid.UUID  `json:"newVehicleId"`
}

// IssueKind classifies a contract the planner could not link
type IssueKind string

const (
	IssueAmbiguousPlate IssueKind = "ambiguous_plate"
	IssueUnmatchedPlate IssueKind = "unmatched_plate"
	IssueMissingPlate   IssueKind = "missing_plate"
)

// Issue is a data-quality problem found while planning. The contract is left as is.
type Issue struct {
	ContractID     uuid.UUID `json:"contractId"`
	ContractNumber string    `json:"contractNumber"`
	Kind           IssueKind `json:"kind"`
	Detail         string    `json:"detail"`
	Err            error     `json:"-"`
}

// SyncPlan is the set of writes that makes vehicle status agree with active contracts
type SyncPlan struct {
	StatusChanges []StatusChange `json:"statusChanges"`
	LinkRepairs   []LinkRepair   `json:"linkRepairs"`
	Issues        []Issue        `json:"issues"`
}

// IsEmpty reports whether the plan has nothing to write
func (p *SyncPlan) IsEmpty() bool {
	return len(p.StatusChanges) == 0 && len(p.LinkRepairs) == 0
}

// IsActiveOn reports whether the contract is active and its date range contains day
func IsActiveOn(c *domain.Contract, day time.Time) bool {
	if c.Status != domain.ContractStatusActive {
		return false
	}
	today := domain.DateOnly(day)
	if domain.DateOnly(c.StartDate).After(today) {
		return false
	}
	return c.EndDate == nil || !domain.DateOnly(*c.EndDate).Before(today)
}

// PlanSync computes link repairs and status changes. contracts may include
// contracts that are not active today; they are ignored. Vehicles in a protected
// status are never changed; the IsActive flag does not exempt a vehicle.
func PlanSync(vehicles []domain.Vehicle, contracts []domain.Contract, today time.Time) SyncPlan {
	plan := SyncPlan{
		StatusChanges: []StatusChange{},
		LinkRepairs:   []LinkRepair{},
		Issues:        []Issue{},
	}

	byID := make(map[uuid.UUID]*domain.Vehicle, len(vehicles))
	byPlate := make(map[string][]*domain.Vehicle, len(vehicles))
	for i := range vehicles {
		v := &vehicles[i]
		byID[v.ID] = v
		if plate := domain.NormalizePlate(v.PlateNumber); plate != "" {
			byPlate[plate] = append(byPlate[plate], v)
		}
	}

	active := make([]*domain.Contract, 0, len(contracts))
	for i := range contracts {
		if IsActiveOn(&contracts[i], today) {
			active = append(active, &contracts[i])
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return bytes.Compare(active[i].ID[:], active[j].ID[:]) < 0
	})

	rented := make(map[uuid.UUID]bool)
	for _, c := range active {
		if id, ok := resolveLink(c, byID, byPlate, &plan); ok {
			rented[id] = true
		}
	}

	ordered := make([]*domain.Vehicle, 0, len(vehicles))
	for i := range vehicles {
		ordered = append(ordered, &vehicles[i])
	}
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i].ID[:], ordered[j].ID[:]) < 0
	})

	for _, v := range ordered {
		if v.Status.IsProtected() {
			continue
		}
		switch {
		case rented[v.ID] && v.Status != domain.VehicleStatusRented:
			plan.StatusChanges = append(plan.StatusChanges, StatusChange{
				VehicleID: v.ID, PlateNumber: v.PlateNumber, OldStatus: v.Status, NewStatus: domain.VehicleStatusRented,
			})
		case !rented[v.ID] && v.Status == domain.VehicleStatusRented:
			plan.StatusChanges = append(plan.StatusChanges, StatusChange{
				VehicleID: v.ID, PlateNumber: v.PlateNumber, OldStatus: v.Status, NewStatus: domain.VehicleStatusAvailable,
			})
		}
	}

	return plan
}

// resolveLink returns the vehicle the contract occupies after any repair,
// recording repairs and issues on the plan.
func resolveLink(c *domain.Contract, byID map[uuid.UUID]*domain.Vehicle, byPlate map[string][]*domain.Vehicle, plan *SyncPlan) (uuid.UUID, bool) {
	var current *domain.Vehicle
	if c.VehicleID != nil {
		current = byID[*c.VehicleID]
	}

	plate := domain.NormalizePlate(c.LicensePlate)
	if plate == "" {
		if current != nil {
			return current.ID, true
		}
		plan.Issues = append(plan.Issues, Issue{
			ContractID: c.ID, ContractNumber: c.ContractNumber, Kind: IssueMissingPlate,
			Detail: "contract has no vehicle link and no license plate",
		})
		return uuid.Nil, false
	}

	matches := byPlate[plate]
	switch len(matches) {
	case 0:
		if current != nil {
			return current.ID, true
		}
		plan.Issues = append(plan.Issues, Issue{
			ContractID: c.ID, ContractNumber: c.ContractNumber, Kind: IssueUnmatchedPlate,
			Detail: fmt.Sprintf("no vehicle carries plate %q", c.LicensePlate),
		})
		return uuid.Nil, false

	case 1:
		target := matches[0]
		if current == nil || current.ID != target.ID {
			plan.LinkRepairs = append(plan.LinkRepairs, LinkRepair{
				ContractID:     c.ID,
				ContractNumber: c.ContractNumber,
				LicensePlate:   c.LicensePlate,
				OldVehicleID:   c.VehicleID,
				NewVehicleID:   target.ID,
			})
		}
		return target.ID, true

	default:
		ids := make([]uuid.UUID, 0, len(matches))
		for _, m := range matches {
			if current != nil && m.ID == current.ID {
				return current.ID, true
			}
			ids = append(ids, m.ID)
		}
		err := &domain.LinkRepairAmbiguous{ContractID: c.ID, LicensePlate: c.LicensePlate, VehicleIDs: ids}
		plan.Issues = append(plan.Issues, Issue{
			ContractID: c.ID, ContractNumber: c.ContractNumber, Kind: IssueAmbiguousPlate,
			Detail: err.Error(), Err: err,
		})
		if current != nil {
			return current.ID, true
		}
		return uuid.Nil, false
	}
}
