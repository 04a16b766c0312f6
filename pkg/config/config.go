// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"time"

	cerror "github.com/pingcap/dinesim/pkg/errors"
)

const (
	// MinSeats is the smallest table the simulation accepts. Below it the
	// adjacency arbitration degenerates and the visualization is meaningless.
	MinSeats = 5
	// MaxSeats is a sanity ceiling, chosen for the visualization rather than
	// for the arbitration, which has no inherent upper bound.
	MaxSeats = 512
)

// Renderer names accepted by the `--renderer` flag.
const (
	RendererConsole = "console"
	RendererLog     = "log"
)

// TomlDuration is an alias of time.Duration to implement the TOML
// text unmarshaler.
type TomlDuration time.Duration

// UnmarshalText is used by the toml decoder.
func (d *TomlDuration) UnmarshalText(text []byte) error {
	stdDuration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = TomlDuration(stdDuration)
	return nil
}

// SimConfig represents a complete configuration of the dining simulation.
type SimConfig struct {
	// Seats is the number of philosophers (and forks) around the table.
	// It is set from the positional command argument, not from the file.
	Seats int `toml:"seats" json:"seats"`

	ThinkMin TomlDuration `toml:"think-min" json:"think-min"`
	ThinkMax TomlDuration `toml:"think-max" json:"think-max"`
	EatMin   TomlDuration `toml:"eat-min" json:"eat-min"`
	EatMax   TomlDuration `toml:"eat-max" json:"eat-max"`

	// Refresh is the floor period of the observer, state changes trigger
	// earlier redraws.
	Refresh TomlDuration `toml:"refresh" json:"refresh"`

	// Renderer selects the visualization surface, one of [console, log].
	Renderer string `toml:"renderer" json:"renderer"`

	// Seed seeds the per-seat random sources, 0 means time-based.
	Seed int64 `toml:"seed" json:"seed"`

	// Addr enables the status HTTP server when non-empty.
	Addr string `toml:"addr" json:"addr"`

	LogFile  string `toml:"log-file" json:"log-file"`
	LogLevel string `toml:"log-level" json:"log-level"`
}

// GetDefaultSimConfig returns the default simulation config. The timing
// defaults match the classic demonstration: thinking takes 1 to 3 seconds,
// eating 0.5 to 1.5 seconds, the display refreshes every 400ms.
func GetDefaultSimConfig() *SimConfig {
	return &SimConfig{
		ThinkMin: TomlDuration(1000 * time.Millisecond),
		ThinkMax: TomlDuration(3000 * time.Millisecond),
		EatMin:   TomlDuration(500 * time.Millisecond),
		EatMax:   TomlDuration(1500 * time.Millisecond),
		Refresh:  TomlDuration(400 * time.Millisecond),
		Renderer: RendererConsole,
		LogLevel: "info",
	}
}

// ValidateAndAdjust validates and adjusts the simulation configuration.
func (c *SimConfig) ValidateAndAdjust() error {
	if c.Seats < MinSeats || c.Seats > MaxSeats {
		return cerror.ErrSeatCountInvalid.GenWithStackByArgs(c.Seats, MinSeats, MaxSeats)
	}
	if c.ThinkMin <= 0 || c.EatMin <= 0 {
		return cerror.ErrConfigInvalid.GenWithStackByArgs("think and eat durations must be positive")
	}
	if c.ThinkMax < c.ThinkMin {
		return cerror.ErrConfigInvalid.GenWithStackByArgs("think-max must not be smaller than think-min")
	}
	if c.EatMax < c.EatMin {
		return cerror.ErrConfigInvalid.GenWithStackByArgs("eat-max must not be smaller than eat-min")
	}
	if c.Refresh <= 0 {
		return cerror.ErrConfigInvalid.GenWithStackByArgs("refresh period must be positive")
	}
	switch c.Renderer {
	case RendererConsole, RendererLog:
	default:
		return cerror.ErrRendererUnknown.GenWithStackByArgs(c.Renderer)
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return nil
}
