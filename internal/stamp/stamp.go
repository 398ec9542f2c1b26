// Package stamp composes the approval block drawn onto a verified pay
// application. The block content is plain text so a stamped page re-read
// through recognition yields the same values back.
package stamp

import (
	"fmt"
	"time"

	"github.com/blue-scarf/paystamp/internal/money"
)

// Stamp is the content of one approval block.
type Stamp struct {
	CommitmentID   string    `json:"commitment_id"`
	CostCode       string    `json:"cost_code"`
	AmountDueCents int64     `json:"amount_due_cents"`
	RetainageCents int64     `json:"retainage_cents"`
	Approver       string    `json:"approver"`
	Date           time.Time `json:"date"`
}

// Validate rejects a stamp missing the fields the block always carries.
func (s Stamp) Validate() error {
	switch {
	case s.CommitmentID == "":
		return fmt.Errorf("stamp: commitment id is required")
	case s.CostCode == "":
		return fmt.Errorf("stamp: cost code is required")
	case s.Approver == "":
		return fmt.Errorf("stamp: approver is required")
	case s.Date.IsZero():
		return fmt.Errorf("stamp: date is required")
	}
	return nil
}

// Lines returns the block text, one entry per rendered line, in fixed order.
func (s Stamp) Lines() []string {
	return []string{
		"COM: " + s.CommitmentID,
		"C.C: " + s.CostCode,
		"DUE: " + money.FormatUSD(s.AmountDueCents),
		"RET: " + money.FormatUSD(s.RetainageCents),
		"By: " + s.Approver,
		"Date: " + s.Date.Format("1/2/2006"),
	}
}
