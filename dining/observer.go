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

package dining

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Renderer is the visualization boundary. Implementations receive a
// consistent state copy and must not mutate it or reach back into the
// table.
type Renderer interface {
	Render(snap Snapshot) error
}

// Observer periodically renders table snapshots. It redraws on every state
// change and on a floor tick, whichever comes first. The snapshot is taken
// under the table lock, the render happens outside it, so a slow surface
// never blocks arbitration.
type Observer struct {
	table    *Table
	renderer Renderer
	refresh  time.Duration
	clk      clock.Clock
}

// NewObserver creates an observer with the given floor refresh period.
func NewObserver(table *Table, renderer Renderer, refresh time.Duration, clk clock.Clock) *Observer {
	return &Observer{
		table:    table,
		renderer: renderer,
		refresh:  refresh,
		clk:      clk,
	}
}

// Run renders until the table closes or the context is canceled. A render
// error aborts the observer, except for the final frame on shutdown which
// is best effort.
func (o *Observer) Run(ctx context.Context) error {
	changes := o.table.Changes(-1)
	defer changes.Stop()
	ticker := o.clk.Ticker(o.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case <-o.table.Done():
			if err := o.renderer.Render(o.table.Snapshot()); err != nil {
				log.Warn("final render failed", zap.Error(err))
			}
			return nil
		case <-changes.C:
		case <-ticker.C:
		}

		if err := o.renderer.Render(o.table.Snapshot()); err != nil {
			return errors.Trace(err)
		}
	}
}
