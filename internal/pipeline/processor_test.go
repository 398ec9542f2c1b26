package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blue-scarf/paystamp/constants"
	"github.com/blue-scarf/paystamp/internal/catalog"
	"github.com/blue-scarf/paystamp/internal/common"
	"github.com/blue-scarf/paystamp/internal/extract"
	"github.com/blue-scarf/paystamp/internal/match"
	"github.com/blue-scarf/paystamp/internal/parser"
	"github.com/blue-scarf/paystamp/internal/stamp"
)

const recognizedApplication = `APPLICATION AND CERTIFICATE FOR PAYMENT
TO OWNER: Shorecrest Construction Company
FROM CONTRACTOR:
Archon Air Management Corp
APPLICATION NO: 4
PERIOD TO: 10/31/2025
4. TOTAL COMPLETED & STORED TO DATE $ 7,700.00
Total Retainage $ 770.00
8. CURRENT PAYMENT DUE $6,930.00`

type stubExtractor struct {
	text string
	err  error
}

func (s *stubExtractor) Extract(_ context.Context, _ []byte) (extract.RawExtraction, error) {
	if s.err != nil {
		return extract.RawExtraction{}, s.err
	}
	return extract.FromText(s.text), nil
}

func testCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commitments.csv")
	csv := "Number,Vendor,Cost Code\n" +
		"RES-OAKHS-13,Archon Air Management Corp,23-3000\n" +
		"RES-OAKHS-21,Bello Construction LLC,03-1000\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))
	store := catalog.NewStore(path, nil)
	require.NoError(t, store.Load(context.Background()))
	return store
}

func testOrchestrator(t *testing.T, ex extract.TextExtractor) *Orchestrator {
	t.Helper()
	store, err := OpenStore(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	composer, err := stamp.NewComposer(nil)
	require.NoError(t, err)

	return NewOrchestrator(Deps{
		Store:     store,
		Extractor: ex,
		Parser:    parser.New("Shorecrest", nil),
		Matcher:   match.New(match.Thresholds{}, nil),
		Catalog:   testCatalog(t),
		Composer:  composer,
		Approver:  "Dana Whitfield",
	})
}

func uploadPage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(1200, 900, color.White), imaging.PNG))
	return buf.Bytes()
}

func TestOrchestrator_HappyPath(t *testing.T) {
	ctx := context.Background()
	o := testOrchestrator(t, &stubExtractor{text: recognizedApplication})

	s, err := o.Create(ctx, "app.png", [][]byte{uploadPage(t)})
	require.NoError(t, err)
	assert.Equal(t, constants.StateAwaitingVerification, s.State)
	require.NotNil(t, s.Match)
	assert.Equal(t, match.OutcomeMatched, s.Match.Outcome)
	assert.Equal(t, "RES-OAKHS-13", s.SelectedCommitmentID)
	assert.Equal(t, "23-3000", s.SelectedCostCode)
	assert.Equal(t, int64(693000), s.Fields.AmountDueCents)

	s, err = o.Stamp(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StateStamped, s.State)
	require.NotNil(t, s.StampedAt)

	got, pages, err := o.Deliver(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StateDelivered, got.State)
	require.Len(t, pages, 1)
	assert.NotEmpty(t, pages[0])

	// Stamped output decodes and a preview renders.
	png, err := o.Page(ctx, s.ID, 0, 300)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}

func TestOrchestrator_SessionSurvivesReload(t *testing.T) {
	ctx := context.Background()
	o := testOrchestrator(t, &stubExtractor{text: recognizedApplication})

	s, err := o.Create(ctx, "app.png", [][]byte{uploadPage(t)})
	require.NoError(t, err)

	// Drop the in-memory document; stamping must rehydrate from the store.
	o.docs.Delete(s.ID)

	s, err = o.Stamp(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StateStamped, s.State)
}

func TestOrchestrator_UnknownVendorBlocksStamp(t *testing.T) {
	ctx := context.Background()
	text := `FROM CONTRACTOR:
Sunrise Glazing Inc
CURRENT PAYMENT DUE $1,000.00
RETAINAGE $100.00`
	o := testOrchestrator(t, &stubExtractor{text: text})

	s, err := o.Create(ctx, "app.png", [][]byte{uploadPage(t)})
	require.NoError(t, err)
	assert.Equal(t, constants.StateAwaitingVerification, s.State)
	assert.Equal(t, match.OutcomeNoMatch, s.Match.Outcome)
	assert.Empty(t, s.SelectedCommitmentID)

	_, err = o.Stamp(ctx, s.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))

	// Fixing the vendor re-runs resolution and unblocks stamping.
	s, err = o.EditFields(ctx, s.ID, map[constants.Field]string{
		constants.FieldVendorName: "Bello Construction LLC",
	})
	require.NoError(t, err)
	assert.Equal(t, match.OutcomeMatched, s.Match.Outcome)
	assert.Equal(t, "RES-OAKHS-21", s.SelectedCommitmentID)

	s, err = o.Stamp(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StateStamped, s.State)
}

func TestOrchestrator_SelectMatch(t *testing.T) {
	ctx := context.Background()
	text := `FROM CONTRACTOR:
Sunrise Glazing Inc
CURRENT PAYMENT DUE $1,000.00
RETAINAGE $100.00`
	o := testOrchestrator(t, &stubExtractor{text: text})

	s, err := o.Create(ctx, "app.png", [][]byte{uploadPage(t)})
	require.NoError(t, err)

	_, err = o.SelectMatch(ctx, s.ID, "NOPE-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	s, err = o.SelectMatch(ctx, s.ID, "RES-OAKHS-13")
	require.NoError(t, err)
	assert.Equal(t, "RES-OAKHS-13", s.SelectedCommitmentID)
	assert.Equal(t, "23-3000", s.SelectedCostCode)
}

func TestOrchestrator_ExtractFailureLandsInError(t *testing.T) {
	ctx := context.Background()
	o := testOrchestrator(t, &stubExtractor{err: errors.New("recognizer unreachable")})

	s, err := o.Create(ctx, "app.png", [][]byte{uploadPage(t)})
	require.NoError(t, err, "stage failures are recorded, not returned")
	assert.Equal(t, constants.StateError, s.State)
	assert.Contains(t, s.LastError, "recognizer unreachable")

	// Without recognized text there is nothing to reset from.
	_, err = o.Reset(ctx, s.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidState))
}

func TestOrchestrator_Reset(t *testing.T) {
	ctx := context.Background()
	o := testOrchestrator(t, &stubExtractor{text: recognizedApplication})

	s, err := o.Create(ctx, "app.png", [][]byte{uploadPage(t)})
	require.NoError(t, err)

	s, err = o.EditFields(ctx, s.ID, map[constants.Field]string{
		constants.FieldAmountDue: "1.00",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), s.Fields.AmountDueCents)

	s, err = o.Reset(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StateAwaitingVerification, s.State)
	assert.Equal(t, int64(693000), s.Fields.AmountDueCents, "override discarded")
	assert.Equal(t, "RES-OAKHS-13", s.SelectedCommitmentID)
}

func TestOrchestrator_RejectsBadUpload(t *testing.T) {
	ctx := context.Background()
	o := testOrchestrator(t, &stubExtractor{text: recognizedApplication})

	_, err := o.Create(ctx, "app.pdf", [][]byte{uploadPage(t)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = o.Create(ctx, "app.png", [][]byte{[]byte("junk")})
	require.Error(t, err)
}

func TestOrchestrator_DeleteAndNotFound(t *testing.T) {
	ctx := context.Background()
	o := testOrchestrator(t, &stubExtractor{text: recognizedApplication})

	s, err := o.Create(ctx, "app.png", [][]byte{uploadPage(t)})
	require.NoError(t, err)

	require.NoError(t, o.Delete(ctx, s.ID))
	_, err = o.Get(ctx, s.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
	assert.True(t, errors.Is(o.Delete(ctx, s.ID), common.ErrNotFound))
}
