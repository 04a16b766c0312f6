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

package notify

import (
	"sync"
	"time"
)

// Notifier provides a one-to-many notification mechanism. Events are
// coalesced: a receiver that has a pending event does not accumulate more.
type Notifier struct {
	mu        sync.RWMutex
	receivers map[int]*Receiver
	nextIndex int
}

// Notify sends a signal to all receivers, non-blocking.
func (n *Notifier) Notify() {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, receiver := range n.receivers {
		receiver.signalNonBlocking()
	}
}

// Receiver receives events from a Notifier on channel C.
type Receiver struct {
	// C is the channel the receiver reads events from.
	C <-chan struct{}

	c       chan struct{}
	ticker  *time.Ticker
	closeCh chan struct{}
	stop    func()
}

// NewReceiver creates a receiver attached to the notifier. If tick is
// positive the receiver also fires periodically even without notifications.
func (n *Notifier) NewReceiver(tick time.Duration) *Receiver {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.receivers == nil {
		n.receivers = make(map[int]*Receiver)
	}
	index := n.nextIndex
	n.nextIndex++

	var ticker *time.Ticker
	if tick > 0 {
		ticker = time.NewTicker(tick)
	}
	c := make(chan struct{}, 1)
	receiver := &Receiver{
		C:       c,
		c:       c,
		ticker:  ticker,
		closeCh: make(chan struct{}),
		stop: func() {
			n.remove(index)
		},
	}
	if ticker != nil {
		go func() {
			for {
				select {
				case <-receiver.closeCh:
					return
				case <-ticker.C:
					receiver.signalNonBlocking()
				}
			}
		}()
	}
	n.receivers[index] = receiver
	return receiver
}

func (r *Receiver) signalNonBlocking() {
	select {
	case r.c <- struct{}{}:
	default:
	}
}

// Stop detaches the receiver from its notifier and releases the tick
// goroutine, if any. It must be called exactly once.
func (r *Receiver) Stop() {
	if r.ticker != nil {
		r.ticker.Stop()
	}
	close(r.closeCh)
	r.stop()
}

func (n *Notifier) remove(index int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.receivers, index)
}
