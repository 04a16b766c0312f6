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
	"sync"
	"testing"
	"time"

	cerror "github.com/pingcap/dinesim/pkg/errors"
	"github.com/stretchr/testify/require"
)

func waitForQueue(t *testing.T, tbl *Table, expected []int) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap := tbl.Snapshot()
		if len(snap.Queue) != len(expected) {
			return false
		}
		for i, seat := range expected {
			if snap.Queue[i] != seat {
				return false
			}
		}
		return true
	}, 3*time.Second, time.Millisecond)
}

func TestGrantWhenNoNeighborEats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl := NewTable(5)

	// No neighbor of seat 2 is eating, the request is granted in place.
	require.NoError(t, tbl.Request(ctx, 2))
	snap := tbl.Snapshot()
	require.Equal(t, Eating, snap.Seats[2].Phase)
	require.Equal(t, uint64(1), snap.Seats[2].Meals)
	require.Equal(t, 2, snap.ForkOwner[1])
	require.Equal(t, 2, snap.ForkOwner[2])
	require.Empty(t, snap.Queue)

	// Seat 1 is adjacent to the eating seat 2, it has to wait.
	granted := make(chan error, 1)
	go func() {
		granted <- tbl.Request(ctx, 1)
	}()
	waitForQueue(t, tbl, []int{1})
	require.Equal(t, Hungry, tbl.Snapshot().Seats[1].Phase)

	// Releasing seat 2 re-arbitrates and grants the queue head.
	require.NoError(t, tbl.Release(2))
	require.NoError(t, <-granted)

	snap = tbl.Snapshot()
	require.Equal(t, Eating, snap.Seats[1].Phase)
	require.Equal(t, Thinking, snap.Seats[2].Phase)
	require.Equal(t, uint64(1), snap.Seats[2].Rounds)
	require.Equal(t, 1, snap.ForkOwner[0])
	require.Equal(t, 1, snap.ForkOwner[1])
	require.Equal(t, NoOwner, snap.ForkOwner[2])
}

func TestHeadOnlyArbitration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl := NewTable(5)

	require.NoError(t, tbl.Request(ctx, 1))

	// Seat 0 queues first but is blocked by its eating neighbor 1.
	got0 := make(chan error, 1)
	go func() {
		got0 <- tbl.Request(ctx, 0)
	}()
	waitForQueue(t, tbl, []int{0})

	// Seat 3 could eat right now, both its neighbors are thinking, but it
	// queued behind seat 0 and must not jump the line.
	got3 := make(chan error, 1)
	go func() {
		got3 <- tbl.Request(ctx, 3)
	}()
	waitForQueue(t, tbl, []int{0, 3})

	time.Sleep(50 * time.Millisecond)
	snap := tbl.Snapshot()
	require.Equal(t, Hungry, snap.Seats[3].Phase)
	require.Equal(t, []int{0, 3}, snap.Queue)

	// Freeing seat 1 unblocks the head, and the follow-up arbitration of
	// the same release grants seat 3 too.
	require.NoError(t, tbl.Release(1))
	require.NoError(t, <-got0)
	require.NoError(t, <-got3)

	snap = tbl.Snapshot()
	require.Equal(t, Eating, snap.Seats[0].Phase)
	require.Equal(t, Eating, snap.Seats[3].Phase)
}

func TestQueueHeadIsNeverOvertaken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl := NewTable(5)

	// Seats 0 and 2 eat, seat 1 is adjacent to both and queues.
	require.NoError(t, tbl.Request(ctx, 0))
	require.NoError(t, tbl.Request(ctx, 2))

	got1 := make(chan error, 1)
	go func() {
		got1 <- tbl.Request(ctx, 1)
	}()
	waitForQueue(t, tbl, []int{1})

	// A later request queues behind the head.
	got3 := make(chan error, 1)
	go func() {
		got3 <- tbl.Request(ctx, 3)
	}()
	waitForQueue(t, tbl, []int{1, 3})

	// One neighbor releasing is not enough for seat 1.
	require.NoError(t, tbl.Release(0))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, Hungry, tbl.Snapshot().Seats[1].Phase)

	// The second release grants the head on the spot.
	require.NoError(t, tbl.Release(2))
	require.NoError(t, <-got1)
	require.NoError(t, <-got3)

	snap := tbl.Snapshot()
	require.Equal(t, uint64(1), snap.Seats[1].Meals)
	require.Equal(t, uint64(1), snap.Seats[3].Meals)
}

func TestMutualExclusionUnderLoad(t *testing.T) {
	t.Parallel()

	const (
		seats  = 7
		rounds = 20
	)
	ctx := context.Background()
	tbl := NewTable(seats)
	errCh := make(chan error, seats+1)

	var wg sync.WaitGroup
	for seat := 0; seat < seats; seat++ {
		seat := seat
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				if err := tbl.Request(ctx, seat); err != nil {
					errCh <- err
					return
				}
				time.Sleep(100 * time.Microsecond)
				if err := tbl.Release(seat); err != nil {
					errCh <- err
					return
				}
			}
		}()
	}

	samplerStop := make(chan struct{})
	samplerDone := make(chan struct{})
	go func() {
		defer close(samplerDone)
		for {
			select {
			case <-samplerStop:
				return
			default:
			}
			snap := tbl.Snapshot()
			for i := 0; i < seats; i++ {
				if snap.Seats[i].Phase == Eating && snap.Seats[(i+1)%seats].Phase == Eating {
					errCh <- cerror.ErrSeatMisuse.GenWithStackByArgs(i, "adjacent seats eating")
					return
				}
			}
			time.Sleep(200 * time.Microsecond)
		}
	}()

	wg.Wait()
	close(samplerStop)
	<-samplerDone
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	// Every request was eventually granted, nobody starved.
	snap := tbl.Snapshot()
	for i := 0; i < seats; i++ {
		require.Equal(t, uint64(rounds), snap.Seats[i].Meals, "seat %d", i)
		require.Equal(t, uint64(rounds), snap.Seats[i].Rounds, "seat %d", i)
	}
	require.Empty(t, snap.Queue)
}

func TestCloseUnblocksWaiters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl := NewTable(5)

	require.NoError(t, tbl.Request(ctx, 0))
	require.NoError(t, tbl.Request(ctx, 2))

	blocked := make(chan error, 2)
	go func() {
		blocked <- tbl.Request(ctx, 1)
	}()
	go func() {
		blocked <- tbl.Request(ctx, 3)
	}()
	require.Eventually(t, func() bool {
		return len(tbl.Snapshot().Queue) == 2
	}, 3*time.Second, time.Millisecond)

	tbl.Close()
	for i := 0; i < 2; i++ {
		require.True(t, cerror.ErrTableClosed.Equal(<-blocked))
	}

	// Closed tables reject new requests and Close stays a no-op.
	require.True(t, cerror.ErrTableClosed.Equal(tbl.Request(ctx, 4)))
	tbl.Close()

	select {
	case <-tbl.Done():
	default:
		t.Fatal("Done channel must be closed after Close")
	}

	// The queue keeps its entries, nothing was granted on the way out.
	snap := tbl.Snapshot()
	require.True(t, snap.Closed)
	require.Len(t, snap.Queue, 2)
}

func TestSeatMisuse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl := NewTable(5)

	require.True(t, cerror.ErrSeatMisuse.Equal(tbl.Request(ctx, -1)))
	require.True(t, cerror.ErrSeatMisuse.Equal(tbl.Request(ctx, 5)))
	require.True(t, cerror.ErrSeatMisuse.Equal(tbl.Release(7)))

	// Releasing without eating.
	require.True(t, cerror.ErrSeatMisuse.Equal(tbl.Release(1)))

	// Requesting while already eating.
	require.NoError(t, tbl.Request(ctx, 1))
	require.True(t, cerror.ErrSeatMisuse.Equal(tbl.Request(ctx, 1)))

	// A misuse does not corrupt the seat, it can still release and re-eat.
	require.NoError(t, tbl.Release(1))
	require.NoError(t, tbl.Request(ctx, 1))
}

func TestRequestContextCanceled(t *testing.T) {
	t.Parallel()

	tbl := NewTable(5)
	require.NoError(t, tbl.Request(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	res := make(chan error, 1)
	go func() {
		res <- tbl.Request(ctx, 2)
	}()
	waitForQueue(t, tbl, []int{2})

	cancel()
	err := <-res
	require.True(t, cerror.IsContextCanceledError(err))

	// The canceled request left no trace: the queue is clean and the seat
	// can request again.
	snap := tbl.Snapshot()
	require.Empty(t, snap.Queue)
	require.Equal(t, Thinking, snap.Seats[2].Phase)

	require.NoError(t, tbl.Release(1))
	require.NoError(t, tbl.Request(context.Background(), 2))
}

func TestSnapshotQueueOrderIsStable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tbl := NewTable(5)

	// Seats 0 and 3 are not adjacent, both eat, and every remaining seat
	// is blocked by at least one of them.
	require.NoError(t, tbl.Request(ctx, 0))
	require.NoError(t, tbl.Request(ctx, 3))

	var wg sync.WaitGroup
	expected := []int(nil)
	for _, seat := range []int{1, 2, 4} {
		seat := seat
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tbl.Request(ctx, seat)
		}()
		expected = append(expected, seat)
		waitForQueue(t, tbl, expected)
	}

	// Taking a snapshot must not disturb the queue order.
	first := tbl.Snapshot()
	second := tbl.Snapshot()
	require.Equal(t, []int{1, 2, 4}, first.Queue)
	require.Equal(t, first.Queue, second.Queue)

	tbl.Close()
	wg.Wait()
}
