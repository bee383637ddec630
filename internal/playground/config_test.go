package playground

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	rterrors "github.com/wippyai/ownership/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rcplay.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[memory]
source = "linear"
limit = 4096
pages = 2

[counts]
synchronized = true

[log]
level = "debug"

[ui]
color = "off"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, SourceLinear, cfg.Memory.Source)
	require.EqualValues(t, 4096, cfg.Memory.Limit)
	require.EqualValues(t, 2, cfg.Memory.Pages)
	require.True(t, cfg.Counts.Synchronized)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "off", cfg.UI.Color)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "[counts]\nsynchronized = true\n"))
	require.NoError(t, err)
	require.Equal(t, SourceHeap, cfg.Memory.Source)
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, "auto", cfg.UI.Color)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind rterrors.Kind
	}{
		{"syntax", "[memory\n", rterrors.KindInvalidData},
		{"unknown key", "[memory]\nsorce = \"heap\"\n", rterrors.KindInvalidInput},
		{"bad source", "[memory]\nsource = \"disk\"\n", rterrors.KindInvalidInput},
		{"zero pages", "[memory]\nsource = \"linear\"\npages = 0\n", rterrors.KindInvalidInput},
		{"bad level", "[log]\nlevel = \"loud\"\n", rterrors.KindInvalidInput},
		{"bad color", "[ui]\ncolor = \"sometimes\"\n", rterrors.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			require.True(t, rterrors.HasKind(err, tt.kind), "got %v", err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "info"}, true)
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(-1))
	require.True(t, l.Core().Enabled(0))

	_, err = NewLogger(LogConfig{Level: "nope"}, false)
	require.Error(t, err)
}
