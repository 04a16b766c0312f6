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

import "fmt"

// Phase is the lifecycle phase of a seat. A philosopher cycles
// Thinking -> Hungry -> Eating -> Thinking until the table closes.
type Phase int32

// Seat phases.
const (
	Thinking Phase = iota
	Hungry
	Eating
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case Thinking:
		return "thinking"
	case Hungry:
		return "hungry"
	case Eating:
		return "eating"
	default:
		return fmt.Sprintf("unknown(%d)", int32(p))
	}
}

// MarshalText makes phases render as names in JSON snapshots.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name produced by MarshalText.
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "thinking":
		*p = Thinking
	case "hungry":
		*p = Hungry
	case "eating":
		*p = Eating
	default:
		return fmt.Errorf("unknown phase %q", text)
	}
	return nil
}

// NoOwner marks a fork that is not held by any seat.
const NoOwner = -1

// SeatState is the externally visible state of one seat.
type SeatState struct {
	Phase Phase `json:"phase"`
	// Meals counts granted meals, incremented when the seat is granted
	// both forks.
	Meals uint64 `json:"meals"`
	// Rounds counts completed eat cycles, incremented on release.
	Rounds uint64 `json:"rounds"`
}

// Snapshot is a point-in-time-consistent copy of the whole table state,
// taken under the table lock and safe to read without it. It is the only
// read surface exposed to renderers and the status server.
type Snapshot struct {
	Seats []SeatState `json:"seats"`
	// Queue lists the hungry seats front to back in grant order.
	Queue []int `json:"queue"`
	// ForkOwner[f] is the seat currently holding fork f, or NoOwner.
	ForkOwner []int `json:"fork_owner"`
	Closed    bool  `json:"closed"`
}

// EatingSeats returns the number of seats currently eating.
func (s *Snapshot) EatingSeats() int {
	eating := 0
	for _, seat := range s.Seats {
		if seat.Phase == Eating {
			eating++
		}
	}
	return eating
}

// TotalMeals returns the sum of meals served so far.
func (s *Snapshot) TotalMeals() uint64 {
	var total uint64
	for _, seat := range s.Seats {
		total += seat.Meals
	}
	return total
}

// leftOf and rightOf are the ring neighbors of a seat.
func leftOf(seat, n int) int  { return (seat - 1 + n) % n }
func rightOf(seat, n int) int { return (seat + 1) % n }

// Fork f sits between seat f and seat (f+1) mod n, so a seat's left fork
// shares its index with the left neighbor and the right fork with the seat.
func leftForkOf(seat, n int) int  { return (seat - 1 + n) % n }
func rightForkOf(seat, n int) int { return seat }
