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

	"github.com/uwh-refbox/refboxd/internal/period"
)

// Config holds every duration and toggle the Tournament Manager and the
// penalty ledger need. It is the in-memory counterpart of the persisted
// configuration document described in SPEC_FULL.md §6.5; loading/validating
// that document lives in pkg/config.
type Config struct {
	HalfPlayDuration       time.Duration
	HalfTimeDuration       time.Duration
	PreOvertimeBreak       time.Duration
	OvertimeHalfPlayDur    time.Duration
	OvertimeHalfTimeDur    time.Duration
	PreSuddenDeathDuration time.Duration
	NominalBreak           time.Duration
	MinimumBreak           time.Duration
	PreGameDuration        time.Duration

	OvertimeAllowed    bool
	SuddenDeathAllowed bool

	TeamTimeoutsPerHalfOrGame int
	TeamTimeoutDuration       time.Duration
}

// periodConfig projects Config down to what the period package needs.
func (c Config) periodConfig() period.Config {
	return period.Config{
		HalfPlayDuration:       c.HalfPlayDuration,
		HalfTimeDuration:       c.HalfTimeDuration,
		PreOvertimeBreak:       c.PreOvertimeBreak,
		OvertimeHalfPlayDur:    c.OvertimeHalfPlayDur,
		OvertimeHalfTimeDur:    c.OvertimeHalfTimeDur,
		PreSuddenDeathDuration: c.PreSuddenDeathDuration,
		NominalBreak:           c.NominalBreak,
		MinimumBreak:           c.MinimumBreak,
		OvertimeAllowed:        c.OvertimeAllowed,
		SuddenDeathAllowed:     c.SuddenDeathAllowed,
	}
}

// DefaultConfig matches the nominal values used throughout the original
// implementation's default GameConfig.
func DefaultConfig() Config {
	return Config{
		HalfPlayDuration:          15 * time.Minute,
		HalfTimeDuration:          3 * time.Minute,
		PreOvertimeBreak:          3 * time.Minute,
		OvertimeHalfPlayDur:       5 * time.Minute,
		OvertimeHalfTimeDur:       1 * time.Minute,
		PreSuddenDeathDuration:    1 * time.Minute,
		NominalBreak:              5 * time.Minute,
		MinimumBreak:              1 * time.Minute,
		PreGameDuration:           3 * time.Minute,
		OvertimeAllowed:           false,
		SuddenDeathAllowed:        true,
		TeamTimeoutsPerHalfOrGame: 1,
		TeamTimeoutDuration:       1 * time.Minute,
	}
}
