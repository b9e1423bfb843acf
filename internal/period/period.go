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

// Package period defines the GamePeriod enum shared by the tournament
// manager, the penalty ledger, and the wire codec.
package period

import (
	"fmt"
	"time"
)

// GamePeriod is a tagged variant of the phases a game passes through.
type GamePeriod int

const (
	BetweenGames GamePeriod = iota
	FirstHalf
	HalfTime
	SecondHalf
	PreOvertime
	OvertimeFirstHalf
	OvertimeHalfTime
	OvertimeSecondHalf
	PreSuddenDeath
	SuddenDeath
)

func (p GamePeriod) String() string {
	switch p {
	case BetweenGames:
		return "BetweenGames"
	case FirstHalf:
		return "FirstHalf"
	case HalfTime:
		return "HalfTime"
	case SecondHalf:
		return "SecondHalf"
	case PreOvertime:
		return "PreOvertime"
	case OvertimeFirstHalf:
		return "OvertimeFirstHalf"
	case OvertimeHalfTime:
		return "OvertimeHalfTime"
	case OvertimeSecondHalf:
		return "OvertimeSecondHalf"
	case PreSuddenDeath:
		return "PreSuddenDeath"
	case SuddenDeath:
		return "SuddenDeath"
	default:
		return fmt.Sprintf("GamePeriod(%d)", int(p))
	}
}

// Config is the subset of TournamentConfig that period arithmetic needs:
// the nominal duration of every fixed-length period, plus the feature
// toggles that decide which period follows SecondHalf/OvertimeSecondHalf.
type Config struct {
	HalfPlayDuration       time.Duration
	HalfTimeDuration       time.Duration
	PreOvertimeBreak       time.Duration
	OvertimeHalfPlayDur    time.Duration
	OvertimeHalfTimeDur    time.Duration
	PreSuddenDeathDuration time.Duration
	NominalBreak           time.Duration
	MinimumBreak           time.Duration

	OvertimeAllowed    bool
	SuddenDeathAllowed bool
}

// PenaltiesRun reports whether the passage of this period's game clock
// accrues penalty/warning time. BetweenGames and the break periods never do;
// the regulation halves always do; the overtime halves and Sudden Death only
// do when the tournament's config actually allows that period to be played
// (an otherwise-unreachable period contributes no penalty time even when
// used as an endpoint of a time-arithmetic calculation).
func (p GamePeriod) PenaltiesRun(cfg Config) bool {
	switch p {
	case FirstHalf, SecondHalf:
		return true
	case OvertimeFirstHalf, OvertimeSecondHalf:
		return cfg.OvertimeAllowed
	case SuddenDeath:
		return cfg.SuddenDeathAllowed
	default:
		return false
	}
}

// Duration returns the nominal duration of a fixed-length period. It returns
// false for BetweenGames (variable, computed by the tournament manager) and
// for SuddenDeath (unbounded, counts up).
func (p GamePeriod) Duration(cfg Config) (time.Duration, bool) {
	switch p {
	case FirstHalf, SecondHalf:
		return cfg.HalfPlayDuration, true
	case HalfTime:
		return cfg.HalfTimeDuration, true
	case PreOvertime:
		return cfg.PreOvertimeBreak, true
	case OvertimeFirstHalf, OvertimeSecondHalf:
		return cfg.OvertimeHalfPlayDur, true
	case OvertimeHalfTime:
		return cfg.OvertimeHalfTimeDur, true
	case PreSuddenDeath:
		return cfg.PreSuddenDeathDuration, true
	default:
		return 0, false
	}
}

// NextPeriod returns the period that mechanically follows this one, ignoring
// score-dependent branching (SecondHalf/OvertimeSecondHalf always "continue"
// toward overtime/sudden death here; the tournament manager's transition
// table applies the real score-dependent rules). It is total except for
// SuddenDeath, which has no fixed successor until a winning score is set.
func (p GamePeriod) NextPeriod() (GamePeriod, bool) {
	switch p {
	case BetweenGames:
		return FirstHalf, true
	case FirstHalf:
		return HalfTime, true
	case HalfTime:
		return SecondHalf, true
	case SecondHalf:
		return PreOvertime, true
	case PreOvertime:
		return OvertimeFirstHalf, true
	case OvertimeFirstHalf:
		return OvertimeHalfTime, true
	case OvertimeHalfTime:
		return OvertimeSecondHalf, true
	case OvertimeSecondHalf:
		return PreSuddenDeath, true
	case PreSuddenDeath:
		return SuddenDeath, true
	case SuddenDeath:
		return SuddenDeath, false
	default:
		return SuddenDeath, false
	}
}

// Less reports the total order periods are played in (BetweenGames of a
// later game compares greater than SuddenDeath of an earlier one is not
// meaningful across games; callers compare within a single game's timeline).
func (p GamePeriod) Less(other GamePeriod) bool {
	return p.ordinal() < other.ordinal()
}

func (p GamePeriod) ordinal() int {
	return int(p)
}

// Compare returns -1, 0, or 1 as p is less than, equal to, or greater than
// other, in period-sequence order.
func (p GamePeriod) Compare(other GamePeriod) int {
	switch {
	case p.ordinal() < other.ordinal():
		return -1
	case p.ordinal() > other.ordinal():
		return 1
	default:
		return 0
	}
}

// TimeBetween returns the signed duration elapsed going from `earlier` to
// `later`, both timestamps measured within the same play period (a
// countdown-clock "time in period" reading decreases as play proceeds, so
// the elapsed time is earlier-minus-later).
func TimeBetween(earlier, later time.Duration) time.Duration {
	return earlier - later
}

// TimeElapsedAt returns how much of a period's nominal duration has elapsed
// given a countdown "time in period" reading, or false if the period has no
// fixed duration (BetweenGames, SuddenDeath).
func (p GamePeriod) TimeElapsedAt(timeInPeriod time.Duration, cfg Config) (time.Duration, bool) {
	dur, ok := p.Duration(cfg)
	if !ok {
		return 0, false
	}
	return dur - timeInPeriod, true
}
