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

// Package render holds the stock visualization surfaces. They consume
// table snapshots through the dining.Renderer boundary and never reach
// into the monitor itself.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/pingcap/dinesim/dining"
	"github.com/pingcap/errors"
)

const ansiClear = "\x1b[2J\x1b[H"

var (
	headerColor   = color.New(color.Bold)
	thinkingColor = color.New(color.Faint)
	hungryColor   = color.New(color.FgYellow)
	eatingColor   = color.New(color.FgGreen)
)

// Console renders the table as a full-screen text board, one line per
// seat plus the queue and fork ownership ring.
type Console struct {
	out io.Writer
}

// NewConsole creates a console renderer writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Render implements dining.Renderer. The whole frame is built first and
// written with a single call, partially drawn boards flicker.
func (c *Console) Render(snap dining.Snapshot) error {
	var b strings.Builder
	b.WriteString(ansiClear)
	b.WriteString(headerColor.Sprintf("dinesim — %d philosophers\n\n", len(snap.Seats)))

	for i, seat := range snap.Seats {
		fmt.Fprintf(&b, "  philosopher %2d  %-24s meals %4s  rounds %4s\n",
			i,
			phaseLabel(seat.Phase),
			humanize.Comma(int64(seat.Meals)),
			humanize.Comma(int64(seat.Rounds)))
	}

	b.WriteString("\n  forks: ")
	for f, owner := range snap.ForkOwner {
		if owner == dining.NoOwner {
			fmt.Fprintf(&b, "[%d: - ] ", f)
		} else {
			fmt.Fprintf(&b, "[%d:%2d] ", f, owner)
		}
	}
	b.WriteString("\n  queue: ")
	if len(snap.Queue) == 0 {
		b.WriteString("(empty)")
	} else {
		for i, seat := range snap.Queue {
			if i > 0 {
				b.WriteString(" -> ")
			}
			fmt.Fprintf(&b, "%d", seat)
		}
	}

	fmt.Fprintf(&b, "\n\n  meals served: %s\n", humanize.Comma(int64(snap.TotalMeals())))
	if snap.Closed {
		b.WriteString("\n  the table is closed.\n")
	} else {
		b.WriteString("\n  Press q or Ctrl+C to exit.\n")
	}

	_, err := io.WriteString(c.out, b.String())
	return errors.Trace(err)
}

func phaseLabel(p dining.Phase) string {
	switch p {
	case dining.Thinking:
		return thinkingColor.Sprint("thinking")
	case dining.Hungry:
		return hungryColor.Sprint("hungry")
	case dining.Eating:
		return eatingColor.Sprint("eating")
	default:
		return p.String()
	}
}

// WatchQuitKey blocks reading in byte by byte and invokes stop when 'q' is
// pressed. It returns silently on read errors or EOF. The read cannot be
// interrupted, run it on a goroutine that is allowed to die with the
// process.
func (c *Console) WatchQuitKey(in io.Reader, stop func()) {
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return
		}
		if n > 0 && (buf[0] == 'q' || buf[0] == 'Q') {
			stop()
			return
		}
	}
}
