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
	"strconv"
	"sync"
	"time"

	"github.com/edwingeng/deque"
	cerror "github.com/pingcap/dinesim/pkg/errors"
	"github.com/pingcap/dinesim/pkg/notify"
	"github.com/pingcap/dinesim/pkg/syncutil"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Table is the monitor arbitrating fork ownership between seats. One
// mutex guards phases, the fairness queue, fork ownership and counters;
// every seat has its own condition variable sharing that mutex, so a grant
// wakes exactly the granted seat.
//
// Grants are strictly FIFO: arbitration only ever inspects the front of the
// queue, so a seat that reached the head cannot be overtaken by later
// requesters, which bounds every seat's wait.
type Table struct {
	n int

	// closed mirrors isClosed for lock-free fast-path checks. The wait
	// loops re-check isClosed under mu before blocking.
	closed   atomic.Bool
	closedCh chan struct{}

	notifier notify.Notifier

	mu        sync.Mutex
	isClosed  bool
	phases    []Phase
	meals     []uint64
	rounds    []uint64
	queued    []bool
	queue     deque.Deque
	forkOwner []int
	waitSince []time.Time
	conds     []*syncutil.Cond
}

// NewTable creates a table with n seats, all thinking, all forks free.
func NewTable(n int) *Table {
	if n < 3 {
		log.Panic("a table needs at least 3 seats for adjacency to make sense",
			zap.Int("seats", n))
	}
	t := &Table{
		n:         n,
		closedCh:  make(chan struct{}),
		phases:    make([]Phase, n),
		meals:     make([]uint64, n),
		rounds:    make([]uint64, n),
		queued:    make([]bool, n),
		queue:     deque.NewDeque(),
		forkOwner: make([]int, n),
		waitSince: make([]time.Time, n),
		conds:     make([]*syncutil.Cond, n),
	}
	for i := 0; i < n; i++ {
		t.forkOwner[i] = NoOwner
		t.conds[i] = syncutil.NewCond(&t.mu)
	}
	return t
}

// Seats returns the number of seats at the table.
func (t *Table) Seats() int { return t.n }

// Done returns a channel closed when the table closes. Philosophers race
// their think and eat delays against it so shutdown never waits for a nap.
func (t *Table) Done() <-chan struct{} { return t.closedCh }

// Changes returns a receiver signaled on every state change, so observers
// can redraw promptly instead of polling the lock. A positive tick adds a
// periodic floor signal.
func (t *Table) Changes(tick time.Duration) *notify.Receiver {
	return t.notifier.NewReceiver(tick)
}

// Request marks the seat hungry, queues it and blocks until arbitration
// grants it both forks, the context is canceled or the table closes.
// On grant it returns nil and the caller owns both adjacent forks until it
// calls Release.
func (t *Table) Request(ctx context.Context, seat int) error {
	if t.closed.Load() {
		return cerror.ErrTableClosed.GenWithStackByArgs()
	}
	if seat < 0 || seat >= t.n {
		return cerror.ErrSeatMisuse.GenWithStackByArgs(seat, "no such seat")
	}

	t.mu.Lock()
	if t.isClosed {
		t.mu.Unlock()
		return cerror.ErrTableClosed.GenWithStackByArgs()
	}
	if t.queued[seat] {
		t.mu.Unlock()
		return cerror.ErrSeatMisuse.GenWithStackByArgs(seat, "requested forks while already waiting")
	}
	if t.phases[seat] != Thinking {
		t.mu.Unlock()
		return cerror.ErrSeatMisuse.GenWithStackByArgs(seat,
			"requested forks while "+t.phases[seat].String())
	}

	t.phases[seat] = Hungry
	t.queued[seat] = true
	t.queue.PushBack(seat)
	t.waitSince[seat] = time.Now()
	queueLengthGauge.Inc()
	t.notifier.Notify()
	t.arbitrate()

	// Classic monitor wait loop: the predicate is re-checked after every
	// wake, a wake alone never implies eligibility.
	for t.phases[seat] != Eating && !t.isClosed {
		if err := t.conds[seat].WaitWithContext(ctx); err != nil {
			// The cond does not re-acquire the lock on cancellation.
			t.mu.Lock()
			t.abandon(seat)
			t.mu.Unlock()
			return err
		}
	}
	granted := t.phases[seat] == Eating
	t.mu.Unlock()

	if !granted {
		return cerror.ErrTableClosed.GenWithStackByArgs()
	}
	return nil
}

// Release puts both forks down, returns the seat to thinking and re-runs
// arbitration, since freed forks may make the queue head eligible.
func (t *Table) Release(seat int) error {
	if seat < 0 || seat >= t.n {
		return cerror.ErrSeatMisuse.GenWithStackByArgs(seat, "no such seat")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phases[seat] != Eating {
		return cerror.ErrSeatMisuse.GenWithStackByArgs(seat, "released forks it does not hold")
	}
	left, right := leftForkOf(seat, t.n), rightForkOf(seat, t.n)
	if t.forkOwner[left] != seat || t.forkOwner[right] != seat {
		log.Panic("an eating seat does not hold both forks, report a bug",
			zap.Int("seat", seat),
			zap.Int("leftOwner", t.forkOwner[left]),
			zap.Int("rightOwner", t.forkOwner[right]))
	}

	t.forkOwner[left] = NoOwner
	t.forkOwner[right] = NoOwner
	t.phases[seat] = Thinking
	t.rounds[seat]++
	eatingSeatsGauge.Dec()
	t.notifier.Notify()
	t.arbitrate()
	return nil
}

// arbitrate grants forks to queued seats, front of the queue only. It runs
// with mu held, after every enqueue and every release. A grant changes
// state, so the loop reconsiders the new head until it is ineligible or the
// queue empties. It never scans past the head: a later seat that could eat
// right now still waits for its turn.
func (t *Table) arbitrate() {
	if t.isClosed {
		// The queue keeps its entries but nothing is granted anymore,
		// every waiter has been woken to observe the closed flag.
		return
	}
	for t.queue.Len() > 0 {
		head := t.queue.Front().(int)
		if t.phases[head] != Hungry || !t.queued[head] {
			log.Panic("fairness queue contains a seat that is not hungry, report a bug",
				zap.Int("seat", head),
				zap.Stringer("phase", t.phases[head]),
				zap.Bool("queued", t.queued[head]))
		}
		if t.phases[leftOf(head, t.n)] == Eating || t.phases[rightOf(head, t.n)] == Eating {
			return
		}
		t.queue.PopFront()
		t.queued[head] = false
		t.grant(head)
	}
}

// grant hands both forks to the seat. Caller holds mu and has already
// removed the seat from the queue.
func (t *Table) grant(seat int) {
	left, right := leftForkOf(seat, t.n), rightForkOf(seat, t.n)
	if t.forkOwner[left] != NoOwner || t.forkOwner[right] != NoOwner {
		log.Panic("granting a fork that is still held, report a bug",
			zap.Int("seat", seat),
			zap.Int("leftOwner", t.forkOwner[left]),
			zap.Int("rightOwner", t.forkOwner[right]))
	}
	t.forkOwner[left] = seat
	t.forkOwner[right] = seat
	t.phases[seat] = Eating
	t.meals[seat]++

	queueLengthGauge.Dec()
	eatingSeatsGauge.Inc()
	mealsServedCounter.WithLabelValues(strconv.Itoa(seat)).Inc()
	waitDurationHistogram.Observe(time.Since(t.waitSince[seat]).Seconds())

	// Each cond has at most one waiter, its own seat, so a broadcast is a
	// targeted wake.
	t.conds[seat].Broadcast()
	t.notifier.Notify()
}

// abandon removes a canceled requester. Caller holds mu. If the grant
// raced ahead of the cancellation the forks are put back so the neighbors
// are not blocked by a seat that will never release.
func (t *Table) abandon(seat int) {
	if t.phases[seat] == Eating {
		left, right := leftForkOf(seat, t.n), rightForkOf(seat, t.n)
		t.forkOwner[left] = NoOwner
		t.forkOwner[right] = NoOwner
		t.phases[seat] = Thinking
		eatingSeatsGauge.Dec()
		t.notifier.Notify()
		t.arbitrate()
		return
	}
	if t.queued[seat] {
		t.removeFromQueue(seat)
		t.queued[seat] = false
		t.phases[seat] = Thinking
		queueLengthGauge.Dec()
		t.notifier.Notify()
		t.arbitrate()
	}
}

// removeFromQueue drops one seat from the middle of the queue, preserving
// the order of everyone else. Caller holds mu.
func (t *Table) removeFromQueue(seat int) {
	n := t.queue.Len()
	for _, e := range t.queue.PopManyFront(n) {
		if e.(int) == seat {
			continue
		}
		t.queue.PushBack(e)
	}
}

// Snapshot copies the whole table state under the lock. Renderers and the
// status server consume the copy without blocking arbitration.
func (t *Table) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		Seats:     make([]SeatState, t.n),
		ForkOwner: append([]int(nil), t.forkOwner...),
		Closed:    t.isClosed,
	}
	for i := 0; i < t.n; i++ {
		snap.Seats[i] = SeatState{
			Phase:  t.phases[i],
			Meals:  t.meals[i],
			Rounds: t.rounds[i],
		}
	}
	if n := t.queue.Len(); n > 0 {
		// The deque has no non-destructive iterator, popping and
		// re-pushing under the lock preserves order.
		snap.Queue = make([]int, 0, n)
		for _, e := range t.queue.PopManyFront(n) {
			snap.Queue = append(snap.Queue, e.(int))
			t.queue.PushBack(e)
		}
	}
	return snap
}

// Close shuts the table down. Every parked requester is woken and returns
// ErrTableClosed, the queue keeps its entries but nothing is granted
// anymore. Close is idempotent, the flag moves false to true exactly once.
func (t *Table) Close() {
	t.mu.Lock()
	if t.isClosed {
		t.mu.Unlock()
		return
	}
	t.isClosed = true
	t.closed.Store(true)
	close(t.closedCh)
	for _, cond := range t.conds {
		cond.Broadcast()
	}
	t.notifier.Notify()
	t.mu.Unlock()
}
