// Package pipeline coordinates a pay application from upload to delivery:
// recognition, field parsing, vendor resolution, human verification, and
// stamp composition, with every step recorded on the session.
package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blue-scarf/paystamp/constants"
	"github.com/blue-scarf/paystamp/internal/common"
	"github.com/blue-scarf/paystamp/internal/extract"
	"github.com/blue-scarf/paystamp/internal/match"
	"github.com/blue-scarf/paystamp/internal/parser"
)

// Transition is one recorded state change.
type Transition struct {
	From   constants.SessionState `json:"from"`
	To     constants.SessionState `json:"to"`
	At     time.Time              `json:"at"`
	Reason string                 `json:"reason,omitempty"`
}

// Session is the unit of work: one uploaded application moving through the
// pipeline. All mutation goes through the Orchestrator, which holds the
// session lock.
type Session struct {
	ID           uuid.UUID              `json:"id"`
	State        constants.SessionState `json:"state"`
	DocumentName string                 `json:"document_name"`
	PageCount    int                    `json:"page_count"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`

	Raw    *extract.RawExtraction `json:"raw,omitempty"`
	Fields *parser.Fields         `json:"fields,omitempty"`
	Match  *match.Result          `json:"match,omitempty"`

	// SelectedCommitmentID is set by an accepted match or a manual pick.
	SelectedCommitmentID string `json:"selected_commitment_id,omitempty"`
	SelectedCostCode     string `json:"selected_cost_code,omitempty"`

	StampedAt *time.Time `json:"stamped_at,omitempty"`

	// LastError and LastGoodState describe the failure when State is ERROR;
	// a retry resumes from LastGoodState.
	LastError     string                 `json:"last_error,omitempty"`
	LastGoodState constants.SessionState `json:"last_good_state,omitempty"`

	History []Transition `json:"history,omitempty"`
}

// transitions lists the legal forward edges. ERROR is reachable from every
// non-terminal state and is handled separately.
var transitions = map[constants.SessionState][]constants.SessionState{
	constants.StateUploaded:  {constants.StateExtracted},
	constants.StateExtracted: {constants.StateParsed},
	constants.StateParsed:    {constants.StateMatched},
	constants.StateMatched:   {constants.StateAwaitingVerification},
	constants.StateAwaitingVerification: {
		constants.StateStamped,
		// Reset re-enters the parse step from the stored extraction.
		constants.StateExtracted,
	},
	constants.StateStamped: {constants.StateDelivered},
	constants.StateError:   {},
}

func canTransition(from, to constants.SessionState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// advance moves the session along a legal edge, recording the transition.
func (s *Session) advance(to constants.SessionState, reason string) error {
	if !canTransition(s.State, to) {
		return common.NewAppError(common.ErrInvalidState,
			fmt.Sprintf("cannot move session from %s to %s", s.State, to), nil)
	}
	s.record(to, reason)
	return nil
}

// fail moves the session to ERROR from any non-terminal state, remembering
// where it was so a retry can resume.
func (s *Session) fail(cause error) {
	if s.State.Terminal() {
		return
	}
	s.LastError = cause.Error()
	s.LastGoodState = s.State
	s.record(constants.StateError, cause.Error())
}

func (s *Session) record(to constants.SessionState, reason string) {
	now := time.Now().UTC()
	s.History = append(s.History, Transition{From: s.State, To: to, At: now, Reason: reason})
	s.State = to
	s.UpdatedAt = now
}

// ReadyToStamp reports whether verification is complete: all required fields
// present and a commitment selected.
func (s *Session) ReadyToStamp() error {
	if s.State != constants.StateAwaitingVerification {
		return common.NewAppError(common.ErrInvalidState,
			fmt.Sprintf("session in %s, not %s", s.State, constants.StateAwaitingVerification), nil)
	}
	if s.Fields == nil {
		return common.NewAppError(common.ErrInvalidState, "session has no parsed fields", nil)
	}
	if missing := s.Fields.MissingRequired(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, f := range missing {
			names[i] = string(f)
		}
		return common.NewAppError(common.ErrValidation,
			fmt.Sprintf("required fields missing: %v", names), nil)
	}
	if s.SelectedCommitmentID == "" {
		return common.NewAppError(common.ErrValidation, "no commitment selected for this vendor", nil)
	}
	return nil
}

func newSession(name string, pages int) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           uuid.New(),
		State:        constants.StateUploaded,
		DocumentName: name,
		PageCount:    pages,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
