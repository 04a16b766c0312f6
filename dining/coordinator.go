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
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pingcap/dinesim/pkg/config"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Coordinator owns the table, one philosopher per seat and the observer.
// It starts them together, stops them together and is the only stop path:
// signals, the keyboard watcher and the natural end of Run all funnel into
// Close, which is idempotent.
type Coordinator struct {
	cfg      *config.SimConfig
	id       string
	table    *Table
	diners   []*Philosopher
	observer *Observer
	clk      clock.Clock

	statusMu     sync.Mutex
	statusServer *http.Server
	statusLis    net.Listener

	startedAt time.Time
	drained   chan struct{}
}

// Option customizes a Coordinator, test hooks mostly.
type Option func(c *Coordinator)

// WithClock replaces the wall clock, letting tests drive delays.
func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) {
		c.clk = clk
	}
}

// NewCoordinator builds the whole simulation from a validated config. The
// renderer is the visualization surface consuming snapshots, see the
// dining/render package for the stock ones.
func NewCoordinator(cfg *config.SimConfig, renderer Renderer, opts ...Option) (*Coordinator, error) {
	if err := cfg.ValidateAndAdjust(); err != nil {
		return nil, errors.Trace(err)
	}

	c := &Coordinator{
		cfg:     cfg,
		id:      uuid.New().String(),
		clk:     clock.New(),
		drained: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.table = NewTable(cfg.Seats)
	timing := Timing{
		ThinkMin: time.Duration(cfg.ThinkMin),
		ThinkMax: time.Duration(cfg.ThinkMax),
		EatMin:   time.Duration(cfg.EatMin),
		EatMax:   time.Duration(cfg.EatMax),
	}
	c.diners = make([]*Philosopher, cfg.Seats)
	for i := 0; i < cfg.Seats; i++ {
		// Per-seat sources keep runs reproducible for a given seed and
		// keep rand.Rand access single-goroutine.
		rnd := rand.New(rand.NewSource(cfg.Seed + int64(i)))
		c.diners[i] = NewPhilosopher(c.table, i, timing, c.clk, rnd)
	}
	c.observer = NewObserver(c.table, renderer, time.Duration(cfg.Refresh), c.clk)
	return c, nil
}

// RunID identifies this simulation run in logs and the status server.
func (c *Coordinator) RunID() string { return c.id }

// Table exposes the monitor, read-only uses only: snapshots and Done.
func (c *Coordinator) Table() *Table { return c.table }

// Run starts every philosopher and the observer and blocks until all of
// them have exited. It is the join point required for a complete shutdown:
// once Run returns, no simulation goroutine is left.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.drained)
	c.startedAt = time.Now()

	log.Info("simulation starting",
		zap.String("id", c.id),
		zap.Int("seats", c.cfg.Seats),
		zap.Int64("seed", c.cfg.Seed),
		zap.String("renderer", c.cfg.Renderer))

	if c.cfg.Addr != "" {
		if err := c.startStatusHTTP(); err != nil {
			return errors.Trace(err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range c.diners {
		p := p
		g.Go(func() error {
			return p.Run(gctx)
		})
	}
	g.Go(func() error {
		return c.observer.Run(gctx)
	})

	err := g.Wait()
	err = multierr.Append(err, c.stopStatusHTTP())
	c.logSummary()
	return err
}

// Close requests a stop. The table broadcast unparks every waiting
// philosopher, delays abort through the table's done channel, and Run's
// goroutines drain on their own. Safe to call concurrently and repeatedly.
func (c *Coordinator) Close() {
	c.table.Close()
}

// Drain triggers Close and returns a channel closed once every simulation
// goroutine has joined, which is what the two-stage signal handler waits
// for before the process may exit.
func (c *Coordinator) Drain() <-chan struct{} {
	c.Close()
	return c.drained
}

func (c *Coordinator) logSummary() {
	snap := c.table.Snapshot()
	meals := make([]uint64, len(snap.Seats))
	for i, seat := range snap.Seats {
		meals[i] = seat.Meals
	}
	log.Info("simulation finished",
		zap.String("id", c.id),
		zap.Uint64s("meals", meals),
		zap.Uint64("totalMeals", snap.TotalMeals()),
		zap.Duration("uptime", time.Since(c.startedAt)))
}
