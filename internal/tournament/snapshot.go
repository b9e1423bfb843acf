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

package tournament

import (
	"time"

	"github.com/google/uuid"

	"github.com/uwh-refbox/refboxd/internal/period"
)

// TimeoutSnapshot is the read-only view of whichever timeout, if any, is
// currently active. Elapsed holds the timeout clock's reading: time remaining
// for a TeamTimeout, time elapsed for the other kinds.
type TimeoutSnapshot struct {
	Kind    TimeoutKind
	Team    Team
	Elapsed time.Duration
}

// Snapshot is the read-only, wire-ready view of the Tournament Manager's
// entire state at one instant. It never mutates the Manager and never goes
// stale once returned: the caller owns a copy (the Penalty/Warning/Foul
// slices are defensive copies, not aliases into the manager's ledger).
type Snapshot struct {
	TournamentID   uuid.UUID
	GameNumber     uint16
	NextGameNumber uint16
	CurrentGame    uint16

	Period    period.GamePeriod
	ClockTime time.Duration

	DarkScore  uint8
	LightScore uint8

	Timeout TimeoutSnapshot

	DarkPenalties  []PenaltySnapshot
	LightPenalties []PenaltySnapshot
	Warnings       []Warning
	Fouls          []Foul
}

// GenerateSnapshot renders the Manager's entire state at `now`. It first
// calls Update(now) so the returned period/clock reflect any transition that
// `now` has crossed, matching how the original implementation always
// advances the clock state before reading it.
func (m *Manager) GenerateSnapshot(now time.Time) (Snapshot, error) {
	m.mu.Lock()
	m.updateLocked(now)

	clockTime, ok := m.clk.Time(now)
	if !ok {
		m.mu.Unlock()
		return Snapshot{}, newError(InvalidNowValue, "now precedes the clock's anchor instant")
	}

	curPer := m.currentPeriod
	cfg := m.cfg

	timeoutKind := m.timeout.kind
	timeoutTeam := m.timeout.team
	var timeoutClk = m.timeout.clk

	darkPenalties := append([]Penalty(nil), m.penalties[Dark]...)
	lightPenalties := append([]Penalty(nil), m.penalties[Light]...)
	warnings := append([]Warning(nil), m.warnings...)
	fouls := append([]Foul(nil), m.fouls...)

	snap := Snapshot{
		TournamentID:   m.tournamentID,
		GameNumber:     m.gameNumber,
		NextGameNumber: m.nextGame,
		CurrentGame:    m.currentGame,
		Period:         curPer,
		ClockTime:      clockTime,
		DarkScore:      m.darkScore,
		LightScore:     m.lightScore,
		Warnings:       warnings,
		Fouls:          fouls,
	}
	m.mu.Unlock()

	if timeoutKind != NoTimeout {
		elapsed, _ := timeoutClk.Time(now)
		snap.Timeout = TimeoutSnapshot{Kind: timeoutKind, Team: timeoutTeam, Elapsed: elapsed}
	}

	snap.DarkPenalties = make([]PenaltySnapshot, 0, len(darkPenalties))
	for _, p := range darkPenalties {
		ps, err := p.AsSnapshot(curPer, clockTime, cfg)
		if err != nil {
			return Snapshot{}, err
		}
		snap.DarkPenalties = append(snap.DarkPenalties, ps)
	}
	snap.LightPenalties = make([]PenaltySnapshot, 0, len(lightPenalties))
	for _, p := range lightPenalties {
		ps, err := p.AsSnapshot(curPer, clockTime, cfg)
		if err != nil {
			return Snapshot{}, err
		}
		snap.LightPenalties = append(snap.LightPenalties, ps)
	}

	return snap, nil
}
