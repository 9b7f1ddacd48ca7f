package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"mazechase/internal/game"
)

const (
	// FileName is the config file looked up in the state directory
	FileName = "config.yaml"
	// MaxRate caps FPS and EPS
	MaxRate = 1000
)

// Settings holds everything the play command needs
type Settings struct {
	Cols         int     `yaml:"cols"`          // 0 means terminal width
	Rows         int     `yaml:"rows"`          // 0 means terminal height
	FPS          int     `yaml:"fps"`           // redraws per second
	EPS          int     `yaml:"eps"`           // world evolutions per second
	Enemies      int     `yaml:"enemies"`
	Density      float64 `yaml:"density"`       // wall probability per cell
	Seed         uint64  `yaml:"seed"`          // 0 picks a random seed
	Slot         string  `yaml:"slot"`          // save slot used by S and L
	LogFile      string  `yaml:"log_file"`      // empty discards logs
	LogLevel     string  `yaml:"log_level"`
	SpectateAddr string  `yaml:"spectate_addr"` // empty disables spectating
}

// Default returns the settings used when nothing else is configured
func Default() Settings {
	return Settings{
		FPS:      30,
		EPS:      4,
		Enemies:  5,
		Density:  0.25,
		Slot:     "quicksave",
		LogLevel: "info",
	}
}

// Load reads path on top of the defaults. A missing file yields the defaults.
func Load(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return s.Normalized(), nil
}

// Normalized returns a copy with blank strings replaced by defaults
func (s Settings) Normalized() Settings {
	d := Default()
	n := s
	n.Slot = strings.TrimSpace(n.Slot)
	if n.Slot == "" {
		n.Slot = d.Slot
	}
	n.LogLevel = strings.ToLower(strings.TrimSpace(n.LogLevel))
	if n.LogLevel == "" {
		n.LogLevel = d.LogLevel
	}
	n.LogFile = strings.TrimSpace(n.LogFile)
	n.SpectateAddr = strings.TrimSpace(n.SpectateAddr)
	return n
}

// Validate checks the settings. Cols and Rows must already be resolved.
func (s Settings) Validate() error {
	if s.FPS <= 0 || s.FPS > MaxRate {
		return fmt.Errorf("fps must be in [1, %d], got %d", MaxRate, s.FPS)
	}
	if s.EPS <= 0 || s.EPS > MaxRate {
		return fmt.Errorf("eps must be in [1, %d], got %d", MaxRate, s.EPS)
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", s.LogLevel)
	}
	return s.GameConfig().Validate()
}

// GameConfig returns the part of the settings that shapes the world
func (s Settings) GameConfig() game.Config {
	return game.Config{
		Cols:    s.Cols,
		Rows:    s.Rows,
		Enemies: s.Enemies,
		Density: s.Density,
		Seed:    s.Seed,
	}
}

// Write stores the settings as YAML
func Write(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
