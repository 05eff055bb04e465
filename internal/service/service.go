package service

import (
	"time"

	"github.com/alaraf/fleet-finance/internal/domain"
)

// PolicySource resolves the effective policy for a company
type PolicySource interface {
	For(companyID domain.CompanyID) domain.Policy
}

// clock is embedded by services that need "today"
type clock struct {
	now func() time.Time
}

func newClock() clock {
	return clock{now: time.Now}
}

// SetClock pins the service's notion of the current time
func (c *clock) SetClock(now func() time.Time) {
	c.now = now
}

func (c *clock) today() time.Time {
	return domain.DateOnly(c.now().UTC())
}
