package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationKey identifies one (contract, type, day) notification slot. A
// slot is delivered at most once.
type NotificationKey struct {
	ContractID uuid.UUID
	Type       NotificationType
	Day        string // YYYY-MM-DD
}

func (k NotificationKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.ContractID, k.Type, k.Day)
}

// Notification is what the daily notifier asks a delivery channel to send
type Notification struct {
	Type       NotificationType       `json:"type"`
	ContractID uuid.UUID              `json:"contractId"`
	CompanyID  CompanyID              `json:"companyId"`
	Payload    map[string]interface{} `json:"payload"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// Key returns the dedup slot of the notification on the given day
func (n *Notification) Key(day time.Time) NotificationKey {
	return NotificationKey{ContractID: n.ContractID, Type: n.Type, Day: DateOnly(day).Format("2006-01-02")}
}
