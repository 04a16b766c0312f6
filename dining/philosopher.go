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
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
	cerror "github.com/pingcap/dinesim/pkg/errors"
	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Timing bounds the randomized think and eat delays of a philosopher.
// All bounds must be positive, max not below min. Equal bounds turn the
// delay into a fixed one, which tests rely on.
type Timing struct {
	ThinkMin time.Duration
	ThinkMax time.Duration
	EatMin   time.Duration
	EatMax   time.Duration
}

// Philosopher is one seat's loop: think, request forks, eat, release,
// repeat until the table closes. It never holds the table lock while
// thinking or eating, those are plain delays, not resource waits.
type Philosopher struct {
	seat   int
	table  *Table
	timing Timing
	clk    clock.Clock
	rnd    *rand.Rand
}

// NewPhilosopher seats a philosopher at the table. The rand source must
// not be shared with other philosophers, rand.Rand is not goroutine safe.
func NewPhilosopher(table *Table, seat int, timing Timing, clk clock.Clock, rnd *rand.Rand) *Philosopher {
	return &Philosopher{
		seat:   seat,
		table:  table,
		timing: timing,
		clk:    clk,
		rnd:    rnd,
	}
}

// Run cycles the philosopher until the table closes or the context is
// canceled. A closed table is a clean exit, not an error.
func (p *Philosopher) Run(ctx context.Context) error {
	for {
		if err := p.pause(ctx, p.timing.ThinkMin, p.timing.ThinkMax); err != nil {
			return p.exitErr(err)
		}

		failpoint.Inject("philosopherThinkDelay", func(val failpoint.Value) {
			if ms, ok := val.(int); ok {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		})

		if err := p.table.Request(ctx, p.seat); err != nil {
			return p.exitErr(err)
		}

		if err := p.pause(ctx, p.timing.EatMin, p.timing.EatMax); err != nil {
			// Still holding both forks, put them down before leaving so
			// the neighbors are not blocked by an empty seat.
			if rerr := p.table.Release(p.seat); rerr != nil {
				log.Warn("failed to release forks on exit",
					zap.Int("seat", p.seat), zap.Error(rerr))
			}
			return p.exitErr(err)
		}

		if err := p.table.Release(p.seat); err != nil {
			return errors.Trace(err)
		}
	}
}

// pause sleeps a random duration in [min, max), interruptible by table
// close and context cancellation.
func (p *Philosopher) pause(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		d += time.Duration(p.rnd.Int63n(int64(max - min)))
	}
	timer := p.clk.Timer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-p.table.Done():
		return cerror.ErrTableClosed.GenWithStackByArgs()
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
}

func (p *Philosopher) exitErr(err error) error {
	if cerror.IsTableClosedError(err) {
		log.Debug("philosopher leaves the table", zap.Int("seat", p.seat))
		return nil
	}
	return errors.Trace(err)
}
