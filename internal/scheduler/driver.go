// refboxd
// Copyright (c) 2026 The refboxd Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of refboxd.
//
// refboxd is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// refboxd is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with refboxd.  If not, see <http://www.gnu.org/licenses/>.

// Package scheduler drives the single task responsible for ever calling
// Manager.Update and Manager.GenerateSnapshot on a schedule: no other part
// of the system touches wall-clock time directly.
package scheduler

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/uwh-refbox/refboxd/internal/tournament"
)

// Driver wakes at the Tournament Manager's next update time (the next instant
// the displayed seconds change, see Manager.NextUpdateTime), advances it, and
// hands the resulting snapshot to onSnapshot. A Notify call
// wakes it early — used whenever a command (start/stop clock, score change,
// penalty edit) may have changed what the next deadline is, so a stale timer
// never delays a display update.
type Driver struct {
	mgr        *tournament.Manager
	onSnapshot func(tournament.Snapshot)
	clock      clockwork.Clock
	wake       chan struct{}
}

// New returns a Driver for mgr. clock defaults to the real wall clock; tests
// pass a clockwork.FakeClock to drive the loop deterministically.
func New(mgr *tournament.Manager, onSnapshot func(tournament.Snapshot), clock clockwork.Clock) *Driver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Driver{
		mgr:        mgr,
		onSnapshot: onSnapshot,
		clock:      clock,
		wake:       make(chan struct{}, 1),
	}
}

// Notify wakes the driver immediately instead of waiting for its current
// deadline; safe to call from any goroutine, non-blocking, and coalesces
// multiple pending notifications into one wake-up.
func (d *Driver) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled. It is meant to be the body of one
// supervised goroutine (see cmd/refboxd, which runs it under an errgroup).
func (d *Driver) Run(ctx context.Context) error {
	for {
		now := d.clock.Now()
		next, running := d.mgr.NextUpdateTime(now)

		var timerChan <-chan time.Time
		var timer clockwork.Timer
		if running {
			if wait := next.Sub(now); wait <= 0 {
				timerChan = immediate()
			} else {
				timer = d.clock.NewTimer(wait)
				timerChan = timer.Chan()
			}
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-d.wake:
			if timer != nil {
				timer.Stop()
			}
			continue
		case <-timerChan:
		}

		now = d.clock.Now()
		d.mgr.Update(now)
		snap, err := d.mgr.GenerateSnapshot(now)
		if err != nil {
			log.Warn().Err(err).Msg("scheduler: snapshot generation failed, skipping this tick")
			continue
		}
		d.onSnapshot(snap)
	}
}

func immediate() <-chan time.Time {
	c := make(chan time.Time, 1)
	c <- time.Time{}
	return c
}
