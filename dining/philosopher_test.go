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
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	cerror "github.com/pingcap/dinesim/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func fastTiming() Timing {
	return Timing{
		ThinkMin: time.Millisecond,
		ThinkMax: 3 * time.Millisecond,
		EatMin:   time.Millisecond,
		EatMax:   3 * time.Millisecond,
	}
}

func TestPhilosophersEatAndExitCleanly(t *testing.T) {
	t.Parallel()

	const seats = 5
	tbl := NewTable(seats)
	clk := clock.New()

	g, ctx := errgroup.WithContext(context.Background())
	for seat := 0; seat < seats; seat++ {
		p := NewPhilosopher(tbl, seat, fastTiming(), clk, rand.New(rand.NewSource(int64(seat))))
		g.Go(func() error {
			return p.Run(ctx)
		})
	}

	// Liveness: with head-only FIFO arbitration every seat eats, nobody
	// starves behind busy neighbors.
	require.Eventually(t, func() bool {
		snap := tbl.Snapshot()
		for _, seat := range snap.Seats {
			if seat.Meals == 0 {
				return false
			}
		}
		return true
	}, 10*time.Second, 5*time.Millisecond)

	// Closing the table is a clean exit for every philosopher.
	tbl.Close()
	require.NoError(t, g.Wait())
}

func TestPhilosopherContextCancel(t *testing.T) {
	t.Parallel()

	tbl := NewTable(5)
	timing := Timing{
		ThinkMin: time.Hour,
		ThinkMax: time.Hour,
		EatMin:   time.Hour,
		EatMax:   time.Hour,
	}
	p := NewPhilosopher(tbl, 0, timing, clock.New(), rand.New(rand.NewSource(1)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx)
	}()

	cancel()
	err := <-done
	require.True(t, cerror.IsContextCanceledError(err))
	tbl.Close()
}

func TestPhilosopherReleasesForksOnClose(t *testing.T) {
	t.Parallel()

	tbl := NewTable(5)
	timing := Timing{
		ThinkMin: time.Millisecond,
		ThinkMax: time.Millisecond,
		EatMin:   time.Hour,
		EatMax:   time.Hour,
	}
	p := NewPhilosopher(tbl, 2, timing, clock.New(), rand.New(rand.NewSource(1)))

	done := make(chan error, 1)
	go func() {
		done <- p.Run(context.Background())
	}()

	require.Eventually(t, func() bool {
		return tbl.Snapshot().Seats[2].Phase == Eating
	}, 3*time.Second, time.Millisecond)

	// Close interrupts the hour-long meal, the philosopher must put the
	// forks down on the way out.
	tbl.Close()
	require.NoError(t, <-done)

	snap := tbl.Snapshot()
	require.Equal(t, NoOwner, snap.ForkOwner[1])
	require.Equal(t, NoOwner, snap.ForkOwner[2])
	require.Equal(t, Thinking, snap.Seats[2].Phase)
}

func TestPhilosopherWithMockClock(t *testing.T) {
	t.Parallel()

	tbl := NewTable(5)
	mock := clock.NewMock()
	timing := Timing{
		ThinkMin: time.Hour,
		ThinkMax: time.Hour,
		EatMin:   time.Hour,
		EatMax:   time.Hour,
	}
	p := NewPhilosopher(tbl, 1, timing, mock, rand.New(rand.NewSource(1)))

	done := make(chan error, 1)
	go func() {
		done <- p.Run(context.Background())
	}()

	// Nothing happens while the mock clock stands still.
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, Thinking, tbl.Snapshot().Seats[1].Phase)
	require.Equal(t, uint64(0), tbl.Snapshot().Seats[1].Meals)

	// Driving the clock forward walks the philosopher through its cycle.
	require.Eventually(t, func() bool {
		mock.Add(time.Hour)
		return tbl.Snapshot().Seats[1].Meals >= 1
	}, 10*time.Second, 5*time.Millisecond)

	tbl.Close()
	require.NoError(t, <-done)
}
