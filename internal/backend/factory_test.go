package backend

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/config"
	"fintrack/internal/sheets/memory"
)

func TestCreateMemoryMirror(t *testing.T) {
	res, err := NewFactory(nil).CreateMirror(context.Background(), Config{Type: MemoryMirror})
	require.NoError(t, err)
	require.NotNil(t, res.Mirror)
	assert.IsType(t, &memory.Mirror{}, res.Mirror)
	assert.Nil(t, res.Cleanup)
}

func TestCreateMirrorRejectsInvalidConfig(t *testing.T) {
	f := NewFactory(nil)

	_, err := f.CreateMirror(context.Background(), Config{Type: "excel"})
	assert.ErrorContains(t, err, "invalid mirror type")

	_, err = f.CreateMirror(context.Background(), Config{Type: SheetsMirror, GoogleSheetName: "Expenses"})
	assert.ErrorContains(t, err, "Spreadsheet ID is required")
}

func TestCreateSheetsMirrorWithoutCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFactory(nil).CreateMirror(context.Background(), Config{
		Type:                SheetsMirror,
		GoogleSpreadsheetID: "sheet-123",
		GoogleSheetName:     "Expenses",
	})
	assert.ErrorContains(t, err, "missing service account credentials")
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	cfg := &config.Config{
		MirrorBackend:            "sheets",
		GoogleSpreadsheetID:      "sheet-123",
		GoogleSheetName:          "Expenses",
		GoogleServiceAccountFile: "/etc/key.json",
	}
	got, err := FromAppConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, Config{
		Type:                     SheetsMirror,
		GoogleSpreadsheetID:      "sheet-123",
		GoogleSheetName:          "Expenses",
		GoogleServiceAccountFile: "/etc/key.json",
	}, got)

	cfg.MirrorBackend = "sqlite"
	_, err = FromAppConfig(cfg)
	assert.ErrorContains(t, err, "invalid mirror backend")
}

func TestMirrorTypes(t *testing.T) {
	for _, mt := range MirrorTypes() {
		assert.True(t, mt.IsValid(), mt.String())
	}
	assert.False(t, MirrorType("").IsValid())
}

func TestMemoryMirrorWarnsItIsEphemeral(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	_, err := NewFactory(logger).CreateMirror(context.Background(), Config{Type: MemoryMirror})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "MIRROR_BACKEND=sheets")
}
