package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ItsNotGoodName/dim/internal/core"
)

const (
	DefaultDuration = 30
	DefaultAlpha    = 0.5
	DefaultFade     = 0.5
)

// MaxSeconds is the longest duration or fade a time.Duration can hold.
const MaxSeconds = math.MaxInt64 / int64(time.Second)

var ErrInvalid = errors.New("invalid config")

var defaultConfig = Config{}

// Config is one source of options. Nil fields are unset.
type Config struct {
	// Duration in seconds, 0 is infinite.
	Duration *int `yaml:"duration,omitempty"`
	// Alpha is 0 for transparent and 1 for opaque.
	Alpha *float64 `yaml:"alpha,omitempty"`
	// Fade is the fade-in duration in seconds.
	Fade        *float64 `yaml:"fade,omitempty"`
	Passthrough *bool    `yaml:"passthrough,omitempty"`
}

// Merge returns cfg with other's set values taking precedence. Passthrough
// is enabled when either side enables it.
func (cfg Config) Merge(other Config) Config {
	merged := cfg
	if other.Duration != nil {
		merged.Duration = other.Duration
	}
	if other.Alpha != nil {
		merged.Alpha = other.Alpha
	}
	if other.Fade != nil {
		merged.Fade = other.Fade
	}
	if core.Optional(cfg.Passthrough, false) || core.Optional(other.Passthrough, false) {
		passthrough := true
		merged.Passthrough = &passthrough
	}
	return merged
}

func (cfg Config) Validate() error {
	alpha := core.Optional(cfg.Alpha, DefaultAlpha)
	duration := core.Optional(cfg.Duration, DefaultDuration)
	fade := core.Optional(cfg.Fade, DefaultFade)

	if !(alpha >= 0 && alpha <= 1) {
		return fmt.Errorf("%w: alpha can only be from 0.0 to 1.0 inclusive, got %v", ErrInvalid, alpha)
	}
	if duration < 0 {
		return fmt.Errorf("%w: duration can not be negative, got %d", ErrInvalid, duration)
	}
	if int64(duration) > MaxSeconds {
		return fmt.Errorf("%w: duration can not be longer than %ds, got %d", ErrInvalid, MaxSeconds, duration)
	}
	if !(fade >= 0) {
		return fmt.Errorf("%w: fade can not be negative, got %v", ErrInvalid, fade)
	}
	if fade > float64(MaxSeconds) {
		return fmt.Errorf("%w: fade can not be longer than %ds, got %v", ErrInvalid, MaxSeconds, fade)
	}
	if duration > 0 && fade > float64(duration) {
		return fmt.Errorf("%w: fade (%vs) is longer than the duration (%ds)", ErrInvalid, fade, duration)
	}

	return nil
}

// Settings resolves unset values to their defaults.
func (cfg Config) Settings() Settings {
	return Settings{
		Duration:    time.Duration(core.Optional(cfg.Duration, DefaultDuration)) * time.Second,
		Alpha:       core.Optional(cfg.Alpha, DefaultAlpha),
		Fade:        time.Duration(core.Optional(cfg.Fade, DefaultFade) * float64(time.Second)),
		Passthrough: core.Optional(cfg.Passthrough, false),
	}
}

// Settings is the resolved configuration of a run.
type Settings struct {
	// Duration is 0 when dim runs until input.
	Duration    time.Duration
	Alpha       float64
	Fade        time.Duration
	Passthrough bool
}
