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

package render

import (
	"io"

	"github.com/pingcap/dinesim/dining"
	"github.com/pingcap/dinesim/pkg/config"
	cerror "github.com/pingcap/dinesim/pkg/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Log renders each snapshot as one structured log line, the surface for
// headless runs and CI.
type Log struct{}

// NewLog creates a log renderer.
func NewLog() *Log {
	return &Log{}
}

// Render implements dining.Renderer.
func (l *Log) Render(snap dining.Snapshot) error {
	phases := make([]string, len(snap.Seats))
	meals := make([]uint64, len(snap.Seats))
	for i, seat := range snap.Seats {
		phases[i] = seat.Phase.String()
		meals[i] = seat.Meals
	}
	log.Info("table state",
		zap.Strings("phases", phases),
		zap.Uint64s("meals", meals),
		zap.Ints("queue", snap.Queue),
		zap.Ints("forkOwner", snap.ForkOwner),
		zap.Int("eating", snap.EatingSeats()),
		zap.Uint64("totalMeals", snap.TotalMeals()),
		zap.Bool("closed", snap.Closed))
	return nil
}

// New builds the renderer selected in the config. The console surface
// writes boards to out, the log surface ignores it.
func New(name string, out io.Writer) (dining.Renderer, error) {
	switch name {
	case config.RendererConsole:
		return NewConsole(out), nil
	case config.RendererLog:
		return NewLog(), nil
	default:
		return nil, cerror.ErrRendererUnknown.GenWithStackByArgs(name)
	}
}
