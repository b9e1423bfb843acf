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
	"math"
	"time"

	"github.com/uwh-refbox/refboxd/internal/period"
)

// PenaltyKind is the severity/duration class of a penalty.
type PenaltyKind int

const (
	ThirtySecond PenaltyKind = iota
	OneMinute
	TwoMinute
	FourMinute
	FiveMinute
	TotalDismissal
)

// Duration returns the penalty's fixed duration, or false for
// TotalDismissal, which never completes.
func (k PenaltyKind) Duration() (time.Duration, bool) {
	switch k {
	case ThirtySecond:
		return 30 * time.Second, true
	case OneMinute:
		return 1 * time.Minute, true
	case TwoMinute:
		return 2 * time.Minute, true
	case FourMinute:
		return 4 * time.Minute, true
	case FiveMinute:
		return 5 * time.Minute, true
	case TotalDismissal:
		return 0, false
	default:
		return 0, false
	}
}

func (k PenaltyKind) String() string {
	switch k {
	case ThirtySecond:
		return "ThirtySecond"
	case OneMinute:
		return "OneMinute"
	case TwoMinute:
		return "TwoMinute"
	case FourMinute:
		return "FourMinute"
	case FiveMinute:
		return "FiveMinute"
	case TotalDismissal:
		return "TotalDismissal"
	default:
		return "Unknown"
	}
}

// Penalty is a single recorded infraction with clock-time carried time.
type Penalty struct {
	ID           uint64
	PlayerNumber uint8
	Team         Team
	Kind         PenaltyKind
	Infraction   Infraction
	StartPeriod  period.GamePeriod
	StartTime    time.Duration
}

// Warning is an informational-only record; it never accrues clock time.
type Warning struct {
	ID                 uint64
	Team               Team
	HasPlayer          bool
	PlayerNumber       uint8
	Infraction         Infraction
	IssuedPeriod       period.GamePeriod
	IssuedTimeInPeriod time.Duration
}

// Foul mirrors Warning; fouls are recorded separately for display purposes
// but carry identical fields and never accrue clock time either.
type Foul = Warning

// TimeElapsed sums the penalty-carrying time between the penalty's start
// and (curPer, curTime), walking every period in between and counting only
// the play periods (period.PenaltiesRun). The result is signed: a cur
// position before the penalty's start yields a negative elapsed time, used
// for preview/display.
func (p Penalty) TimeElapsed(curPer period.GamePeriod, curTime time.Duration, cfg Config) (time.Duration, error) {
	pc := cfg.periodConfig()

	calcBetween := func(earlierPer period.GamePeriod, earlierTime time.Duration, laterPer period.GamePeriod, laterTime time.Duration) (time.Duration, error) {
		var elapsed time.Duration
		if earlierPer.PenaltiesRun(pc) {
			// earlierTime is a countdown "time in period" reading, so it
			// already equals the time remaining until the period ends, i.e.
			// exactly the tail the penalty accrues in that period. SuddenDeath
			// is the last period and so is never the earlier endpoint here.
			elapsed += earlierTime
		}

		// The walk always visits the full fixed period sequence regardless
		// of config: an overtime half or Sudden Death the config disallows
		// is simply unreachable in play, but a penalty time-arithmetic query
		// can still name it as an endpoint (e.g. when comparing against a
		// hypothetical later snapshot), and PenaltiesRun(cfg) already makes
		// such a period contribute zero to the sum.
		cursor, ok := earlierPer.NextPeriod()
		for ok && cursor.Less(laterPer) {
			if cursor.PenaltiesRun(pc) {
				if d, hasDur := cursor.Duration(pc); hasDur {
					if d > 0 && elapsed > math.MaxInt64-d {
						return 0, newError(DurationOverflow, "summed penalty-carrying period durations overflowed")
					}
					elapsed += d
				}
			}
			cursor, ok = cursor.NextPeriod()
		}

		if laterPer.PenaltiesRun(pc) {
			if laterPer == period.SuddenDeath {
				elapsed += laterTime
			} else if te, hasDur := laterPer.TimeElapsedAt(laterTime, pc); hasDur {
				elapsed += te
			}
		}

		return elapsed, nil
	}

	switch curPer.Compare(p.StartPeriod) {
	case 0:
		if curPer.PenaltiesRun(pc) {
			if curPer == period.SuddenDeath {
				return curTime - p.StartTime, nil
			}
			return period.TimeBetween(p.StartTime, curTime), nil
		}
		return 0, nil
	case 1:
		return calcBetween(p.StartPeriod, p.StartTime, curPer, curTime)
	default:
		d, err := calcBetween(curPer, curTime, p.StartPeriod, p.StartTime)
		if err != nil {
			return 0, err
		}
		return -d, nil
	}
}

// TimeRemaining is kind.Duration() - TimeElapsed(...), saturated to zero once
// the game the penalty started in has concluded and BetweenGames has begun
// (all timed penalties are by definition served once a game ends).
func (p Penalty) TimeRemaining(curPer period.GamePeriod, curTime time.Duration, cfg Config) (time.Duration, error) {
	if curPer == period.BetweenGames && p.StartPeriod != period.BetweenGames {
		return 0, nil
	}

	dur, ok := p.Kind.Duration()
	if !ok {
		return 0, newError(NoDuration, "total dismissal penalties have no duration")
	}

	elapsed, err := p.TimeElapsed(curPer, curTime, cfg)
	if err != nil {
		return 0, err
	}

	return dur - elapsed, nil
}

// IsComplete reports whether the penalty has been fully served. Total
// Dismissal penalties are never complete.
func (p Penalty) IsComplete(curPer period.GamePeriod, curTime time.Duration, cfg Config) (bool, error) {
	if p.Kind == TotalDismissal {
		return false, nil
	}
	remaining, err := p.TimeRemaining(curPer, curTime, cfg)
	if err != nil {
		return false, err
	}
	return remaining <= 0, nil
}

// PenaltyTime is the wire-ready remaining-time value: either a clamped
// second count or the TotalDismissal sentinel.
type PenaltyTime struct {
	IsTotalDismissal bool
	Seconds          uint16
}

// AsSnapshot renders the penalty's current remaining time clamped to a
// non-negative second count (or the TD sentinel) for wire transmission.
func (p Penalty) AsSnapshot(curPer period.GamePeriod, curTime time.Duration, cfg Config) (PenaltySnapshot, error) {
	if p.Kind == TotalDismissal {
		return PenaltySnapshot{
			ID:           p.ID,
			PlayerNumber: p.PlayerNumber,
			Team:         p.Team,
			Infraction:   p.Infraction,
			Time:         PenaltyTime{IsTotalDismissal: true},
		}, nil
	}

	remaining, err := p.TimeRemaining(curPer, curTime, cfg)
	if err != nil {
		return PenaltySnapshot{}, err
	}

	secs := remaining.Seconds()
	if secs < 0 {
		secs = 0
	}
	if secs > float64(^uint16(0)) {
		return PenaltySnapshot{}, newError(SnapshotOverflow, "penalty remaining time exceeds u16 seconds")
	}

	return PenaltySnapshot{
		ID:           p.ID,
		PlayerNumber: p.PlayerNumber,
		Team:         p.Team,
		Infraction:   p.Infraction,
		Time:         PenaltyTime{Seconds: uint16(secs)},
	}, nil
}

// PenaltySnapshot is the read-only wire/display representation of a Penalty.
type PenaltySnapshot struct {
	ID           uint64
	PlayerNumber uint8
	Team         Team
	Infraction   Infraction
	Time         PenaltyTime
}
