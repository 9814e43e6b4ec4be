package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/ordercsv/internal/config"
	"github.com/JonMunkholm/ordercsv/internal/export"
)

func exportConfig() *config.ExportConfig {
	return &config.ExportConfig{
		DefaultStrategy: "stream",
		LineEnding:      "crlf",
		Charset:         "utf-8",
		Timezone:        "UTC",
	}
}

func TestOptions_Defaults(t *testing.T) {
	opts, err := exportFlagSet{}.options(exportConfig())
	require.NoError(t, err)

	assert.Nil(t, opts.From)
	assert.Nil(t, opts.To)
	assert.Equal(t, export.StrategyStream, opts.Strategy)
	assert.Equal(t, export.LineEndingCRLF, opts.LineEnding)
	assert.Equal(t, export.CharsetUTF8, opts.Charset)
	assert.False(t, opts.Strict)
}

func TestOptions_Overrides(t *testing.T) {
	f := exportFlagSet{
		from:       "2024-02-01",
		to:         "2024-02-01",
		strategy:   "window",
		lineEnding: "lf",
		charset:    "sjis",
		strict:     true,
	}
	opts, err := f.options(exportConfig())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), *opts.From)
	assert.Equal(t, time.Date(2024, 2, 1, 23, 59, 59, 999_999_000, time.UTC), *opts.To)
	assert.Equal(t, export.StrategyWindow, opts.Strategy)
	assert.Equal(t, export.LineEndingLF, opts.LineEnding)
	assert.Equal(t, export.CharsetShiftJIS, opts.Charset)
	assert.True(t, opts.Strict)
}

func TestOptions_Errors(t *testing.T) {
	tests := []struct {
		name string
		f    exportFlagSet
		want string
	}{
		{"bad from", exportFlagSet{from: "soon"}, "--from"},
		{"bad to", exportFlagSet{to: "2024-02-30"}, "--to"},
		{"inverted", exportFlagSet{from: "2024-03-01", to: "2024-02-01"}, "invalid date range"},
		{"unknown strategy", exportFlagSet{strategy: "magic"}, "unknown strategy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.f.options(exportConfig())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExportError_KeepsCause(t *testing.T) {
	cause := errors.New(`ERROR: relation "order_item" does not exist (SQLSTATE 42P01)`)
	err := exportError(fmt.Errorf("open item rows: %w", cause), 0)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Code: ERR000")
	assert.Contains(t, err.Error(), "(after 0 rows)")
	assert.Contains(t, err.Error(), `relation "order_item" does not exist`)
}

func TestWriteOutput_Stdout(t *testing.T) {
	var out strings.Builder
	res, err := writeOutput("-", &out, func(w io.Writer) (export.Result, error) {
		_, err := io.WriteString(w, "a,b\n")
		return export.Result{Rows: 1}, err
	})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, "a,b\n", out.String())
}

func TestWriteOutput_FileReplacedOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	_, err := writeOutput(path, nil, func(w io.Writer) (export.Result, error) {
		_, err := io.WriteString(w, "new\n")
		return export.Result{}, err
	})
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestWriteOutput_FileKeptOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	boom := errors.New("boom")
	_, err := writeOutput(path, nil, func(w io.Writer) (export.Result, error) {
		io.WriteString(w, "partial")
		return export.Result{}, boom
	})
	require.ErrorIs(t, err, boom)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
