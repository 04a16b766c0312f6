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

package syncutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pingcap/errors"
)

// Cond is like a regular sync.Cond with enhancement with respective to
// cancellability. Waiters are woken by swapping and closing a broadcast
// channel, so a wait can also be abandoned when a context is canceled.
type Cond struct {
	L  sync.Locker
	ch atomic.Pointer[chan struct{}]
}

// NewCond creates a new Cond with the given locker.
func NewCond(l sync.Locker) *Cond {
	c := &Cond{L: l}
	ch := make(chan struct{})
	c.ch.Store(&ch)
	return c
}

// Wait waits on the condition variable. The caller must hold L, which is
// released while waiting and re-acquired before returning. As with
// sync.Cond, the caller must re-check its predicate after waking.
func (c *Cond) Wait() {
	ch := *c.ch.Load()
	c.L.Unlock()
	<-ch
	c.L.Lock()
}

// WaitWithContext waits on the condition variable until the context is
// canceled or until Broadcast is called.
// The lock is NOT re-acquired if ctx is canceled.
func (c *Cond) WaitWithContext(ctx context.Context) error {
	ch := *c.ch.Load()
	c.L.Unlock()
	select {
	case <-ch:
		c.L.Lock()
		return nil
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
}

// Broadcast wakes up all current waiters. Unlike sync.Cond, the caller does
// not need to hold L.
func (c *Cond) Broadcast() {
	ch := make(chan struct{})
	old := c.ch.Swap(&ch)
	close(*old)
}
