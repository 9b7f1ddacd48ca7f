package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	require.Equal(t, Default(), s)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	yml := `
cols: 60
rows: 20
enemies: 2
density: 0.1
seed: 1234
slot: "  level-one "
log_file: /tmp/mazechase.log
log_level: DEBUG
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0600))

	s, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 60, s.Cols)
	require.Equal(t, 20, s.Rows)
	require.Equal(t, 2, s.Enemies)
	require.InDelta(t, 0.1, s.Density, 1e-9)
	require.Equal(t, uint64(1234), s.Seed)
	require.Equal(t, "level-one", s.Slot)
	require.Equal(t, "/tmp/mazechase.log", s.LogFile)
	require.Equal(t, "debug", s.LogLevel)
	// Untouched keys keep their defaults
	require.Equal(t, 30, s.FPS)
	require.Equal(t, 4, s.EPS)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("cols: [not a number"), 0600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestWriteThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	s := Default()
	s.Cols = 40
	s.Rows = 12
	s.SpectateAddr = "localhost:22124"
	require.NoError(t, Write(path, s))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, s, loaded)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Cols = 80
	valid.Rows = 24
	require.NoError(t, valid.Validate())

	fastest := valid
	fastest.FPS = MaxRate
	fastest.EPS = MaxRate
	require.NoError(t, fastest.Validate())

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero fps", func(s *Settings) { s.FPS = 0 }},
		{"negative eps", func(s *Settings) { s.EPS = -1 }},
		{"fps above cap", func(s *Settings) { s.FPS = MaxRate + 1 }},
		{"eps far above cap", func(s *Settings) { s.EPS = 2_000_000_000 }},
		{"bad log level", func(s *Settings) { s.LogLevel = "loud" }},
		{"unresolved size", func(s *Settings) { s.Cols = 0 }},
		{"solid walls", func(s *Settings) { s.Density = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			require.Error(t, s.Validate())
		})
	}
}

func TestNormalized(t *testing.T) {
	s := Settings{Slot: "   ", LogLevel: " WARN "}
	n := s.Normalized()
	require.Equal(t, "quicksave", n.Slot)
	require.Equal(t, "warn", n.LogLevel)
}
