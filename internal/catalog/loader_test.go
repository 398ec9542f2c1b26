package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleCSV = `Number,Vendor,Cost Code
RES-OAKHS-13,Archon Air,23-3000
RES-OAKHS-07,Bello Construction,03-1000
RES-OAKHS-21,Lima Electric,26-0500
`

func TestLoadCSV(t *testing.T) {
	records, err := LoadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, Record{
		CommitmentID: "RES-OAKHS-13",
		Vendor:       "Archon Air",
		CostCode:     "23-3000",
	}, records[0])
	assert.Equal(t, "Lima Electric", records[2].Vendor)
}

func TestLoadCSV_ColumnOrderInsensitive(t *testing.T) {
	csv := "Vendor,Cost Code,Number\nArchon Air,23-3000,RES-OAKHS-13\n"
	records, err := LoadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "RES-OAKHS-13", records[0].CommitmentID)
}

func TestLoadCSV_MissingColumn(t *testing.T) {
	csv := "Number,Name\n1,Acme\n"
	_, err := LoadCSV(strings.NewReader(csv))
	assert.ErrorIs(t, err, ErrSchema)
}

func TestLoadCSV_ShortRow(t *testing.T) {
	csv := "Number,Vendor,Cost Code\nRES-1\n"
	_, err := LoadCSV(strings.NewReader(csv))
	assert.Error(t, err)
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commitments.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetList()[0]
	rows := [][]any{
		{"Number", "Vendor", "Cost Code"},
		{"RES-OAKHS-13", "Archon Air", "23-3000"},
		{"RES-OAKHS-07", "Bello Construction", ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	records, err := LoadXLSX(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Archon Air", records[0].Vendor)
	assert.Equal(t, "", records[1].CostCode)
}

func TestStoreLoadAndSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commitments.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	store := NewStore(path, nil)

	// Before the first Load the snapshot is empty but safe to use.
	empty := store.Snapshot()
	require.NotNil(t, empty)
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, empty.Records())
	assert.True(t, empty.LoadedAt().IsZero())

	require.NoError(t, store.Load(context.Background()))
	snap := store.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, []string{"Archon Air", "Bello Construction", "Lima Electric"}, snap.Vendors())

	// A failed reload keeps the previous snapshot.
	require.NoError(t, os.WriteFile(path, []byte("Number,Name\n1,Acme\n"), 0o644))
	require.Error(t, store.Load(context.Background()))
	assert.Same(t, snap, store.Snapshot())
}
