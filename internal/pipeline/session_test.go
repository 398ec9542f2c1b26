package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blue-scarf/paystamp/constants"
	"github.com/blue-scarf/paystamp/internal/common"
	"github.com/blue-scarf/paystamp/internal/parser"
)

func TestSessionAdvance(t *testing.T) {
	s := newSession("app.png", 1)
	assert.Equal(t, constants.StateUploaded, s.State)

	path := []constants.SessionState{
		constants.StateExtracted,
		constants.StateParsed,
		constants.StateMatched,
		constants.StateAwaitingVerification,
		constants.StateStamped,
		constants.StateDelivered,
	}
	for _, next := range path {
		require.NoError(t, s.advance(next, ""))
	}
	assert.True(t, s.State.Terminal())
	assert.Len(t, s.History, len(path))
}

func TestSessionAdvance_RejectsSkips(t *testing.T) {
	s := newSession("app.png", 1)

	err := s.advance(constants.StateStamped, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidState))
	assert.Equal(t, constants.StateUploaded, s.State, "failed advance leaves state alone")

	require.NoError(t, s.advance(constants.StateExtracted, ""))
	assert.Error(t, s.advance(constants.StateDelivered, ""))
}

func TestSessionFail(t *testing.T) {
	s := newSession("app.png", 1)
	require.NoError(t, s.advance(constants.StateExtracted, ""))

	s.fail(errors.New("recognizer unreachable"))
	assert.Equal(t, constants.StateError, s.State)
	assert.Equal(t, constants.StateExtracted, s.LastGoodState)
	assert.Equal(t, "recognizer unreachable", s.LastError)

	// Terminal states never fail again.
	before := len(s.History)
	s.fail(errors.New("again"))
	assert.Len(t, s.History, before)
}

func TestReadyToStamp(t *testing.T) {
	s := newSession("app.png", 1)
	for _, next := range []constants.SessionState{
		constants.StateExtracted, constants.StateParsed,
		constants.StateMatched, constants.StateAwaitingVerification,
	} {
		require.NoError(t, s.advance(next, ""))
	}

	err := s.ReadyToStamp()
	require.Error(t, err, "no fields yet")

	s.Fields = &parser.Fields{}
	require.NoError(t, s.Fields.SetField(constants.FieldVendorName, "Archon Air Management Corp"))
	require.NoError(t, s.Fields.SetField(constants.FieldAmountDue, "6930.00"))

	err = s.ReadyToStamp()
	require.Error(t, err)

	require.NoError(t, s.Fields.SetField(constants.FieldRetainage, "770.00"))
	err = s.ReadyToStamp()
	require.Error(t, err, "commitment still unselected")
	assert.True(t, errors.Is(err, common.ErrValidation))

	s.SelectedCommitmentID = "RES-OAKHS-13"
	s.SelectedCostCode = "23-3000"
	require.NoError(t, s.ReadyToStamp())
}

func TestReadyToStamp_WrongState(t *testing.T) {
	s := newSession("app.png", 1)
	err := s.ReadyToStamp()
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidState))
}

func TestReadyToStamp_MissingFieldBlocks(t *testing.T) {
	s := newSession("app.png", 1)
	for _, next := range []constants.SessionState{
		constants.StateExtracted, constants.StateParsed,
		constants.StateMatched, constants.StateAwaitingVerification,
	} {
		require.NoError(t, s.advance(next, ""))
	}
	s.Fields = &parser.Fields{VendorName: "Archon Air Management Corp"}
	s.Fields.Missing = []constants.Field{constants.FieldRetainage}
	s.SelectedCommitmentID = "RES-OAKHS-13"

	err := s.ReadyToStamp()
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Contains(t, err.Error(), "retainage")
}
