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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/uwh-refbox/refboxd/internal/period"
)

func elapsedTestConfig(overtimeAllowed, suddenDeathAllowed bool) Config {
	return Config{
		HalfPlayDuration:       5 * time.Second,
		HalfTimeDuration:       7 * time.Second,
		PreOvertimeBreak:       9 * time.Second,
		OvertimeHalfPlayDur:    11 * time.Second,
		OvertimeHalfTimeDur:    13 * time.Second,
		PreSuddenDeathDuration: 15 * time.Second,
		OvertimeAllowed:        overtimeAllowed,
		SuddenDeathAllowed:     suddenDeathAllowed,
	}
}

func TestPenaltyTimeElapsed(t *testing.T) {
	allPeriods := elapsedTestConfig(true, true)
	sdOnly := elapsedTestConfig(false, true)
	noSDNoOT := elapsedTestConfig(false, false)

	cases := []struct {
		startPer  period.GamePeriod
		startTime time.Duration
		curPer    period.GamePeriod
		curTime   time.Duration
		cfg       Config
		want      time.Duration
		msg       string
	}{
		{period.FirstHalf, 4 * time.Second, period.FirstHalf, 2 * time.Second, allPeriods, 2 * time.Second, "Both first half"},
		{period.OvertimeFirstHalf, 10 * time.Second, period.OvertimeFirstHalf, 2 * time.Second, allPeriods, 8 * time.Second, "Both overtime first half"},
		{period.SuddenDeath, 10 * time.Second, period.SuddenDeath, 55 * time.Second, allPeriods, 45 * time.Second, "Both sudden death"},
		{period.HalfTime, 4 * time.Second, period.HalfTime, 2 * time.Second, allPeriods, 0, "Both half time"},
		{period.FirstHalf, 4 * time.Second, period.SecondHalf, 2 * time.Second, allPeriods, 7 * time.Second, "First half to second half"},
		{period.BetweenGames, 4 * time.Second, period.FirstHalf, 2 * time.Second, allPeriods, 3 * time.Second, "Between games to first half"},
		{period.FirstHalf, 2 * time.Second, period.FirstHalf, 4 * time.Second, allPeriods, -2 * time.Second, "Both first half, bad timing"},
		{period.HalfTime, 2 * time.Second, period.HalfTime, 4 * time.Second, allPeriods, 0, "Both half time, bad timing"},
		{period.HalfTime, 2 * time.Second, period.FirstHalf, 4 * time.Second, allPeriods, -4 * time.Second, "Half time to first half"},
		{period.FirstHalf, 4 * time.Second, period.SuddenDeath, 25 * time.Second, allPeriods, 56 * time.Second, "First half to sudden death, all periods"},
		{period.FirstHalf, 4 * time.Second, period.SuddenDeath, 25 * time.Second, sdOnly, 34 * time.Second, "First half to sudden death, sudden death no overtime"},
		{period.FirstHalf, 4 * time.Second, period.SuddenDeath, 25 * time.Second, noSDNoOT, 9 * time.Second, "First half to sudden death, no sudden death or overtime"},
	}

	for _, c := range cases {
		p := Penalty{Kind: OneMinute, StartPeriod: c.startPer, StartTime: c.startTime}
		got, err := p.TimeElapsed(c.curPer, c.curTime, c.cfg)
		assert.NoError(t, err, c.msg)
		assert.Equal(t, c.want, got, c.msg)
	}
}

func TestPenaltyTimeRemaining(t *testing.T) {
	cfg := elapsedTestConfig(true, true)

	cases := []struct {
		startPer  period.GamePeriod
		startTime time.Duration
		kind      PenaltyKind
		curPer    period.GamePeriod
		curTime   time.Duration
		want      time.Duration
		wantErr   Code
		msg       string
	}{
		{period.FirstHalf, 4 * time.Second, OneMinute, period.FirstHalf, 2 * time.Second, 58 * time.Second, 0, "Both first half, 1m"},
		{period.FirstHalf, 4 * time.Second, TwoMinute, period.FirstHalf, 2 * time.Second, 118 * time.Second, 0, "Both first half, 2m"},
		{period.FirstHalf, 4 * time.Second, FiveMinute, period.FirstHalf, 2 * time.Second, 298 * time.Second, 0, "Both first half, 5m"},
		{period.FirstHalf, 4 * time.Second, TotalDismissal, period.FirstHalf, 2 * time.Second, 0, NoDuration, "Both first half, TD"},
		{period.SuddenDeath, 5 * time.Second, OneMinute, period.SuddenDeath, 70 * time.Second, -5 * time.Second, 0, "Penalty Complete"},
		{period.FirstHalf, 5 * time.Second, OneMinute, period.BetweenGames, 10 * time.Second, 0, 0, "Game Ended"},
		{period.FirstHalf, 5 * time.Second, TotalDismissal, period.BetweenGames, 10 * time.Second, 0, 0, "Game Ended, TD"},
	}

	for _, c := range cases {
		p := Penalty{Kind: c.kind, StartPeriod: c.startPer, StartTime: c.startTime}
		got, err := p.TimeRemaining(c.curPer, c.curTime, cfg)
		if c.wantErr != 0 {
			var tErr *Error
			assert.True(t, errors.As(err, &tErr), c.msg)
			assert.Equal(t, c.wantErr, tErr.Code, c.msg)
			continue
		}
		assert.NoError(t, err, c.msg)
		assert.Equal(t, c.want, got, c.msg)
	}
}

// TestPenaltyTimeElapsedIdentity checks, for randomly generated
// configurations and same-period readings, that TimeElapsed matches the
// closed-form identity a countdown clock implies: zero in a non-penalty-
// carrying period, start-minus-current in a countdown-clock play period, and
// current-minus-start in Sudden Death's elapsed-since-entry clock.
func TestPenaltyTimeElapsedIdentity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := elapsedTestConfig(rapid.Bool().Draw(rt, "overtimeAllowed"), rapid.Bool().Draw(rt, "suddenDeathAllowed"))
		curPer := period.GamePeriod(rapid.IntRange(int(period.BetweenGames), int(period.SuddenDeath)).Draw(rt, "period"))
		startTime := time.Duration(rapid.IntRange(0, 600).Draw(rt, "startTime")) * time.Second
		curTime := time.Duration(rapid.IntRange(0, 600).Draw(rt, "curTime")) * time.Second

		p := Penalty{Kind: OneMinute, StartPeriod: curPer, StartTime: startTime}
		got, err := p.TimeElapsed(curPer, curTime, cfg)
		require.NoError(rt, err)

		switch {
		case !curPer.PenaltiesRun(cfg.periodConfig()):
			assert.Equal(rt, time.Duration(0), got)
		case curPer == period.SuddenDeath:
			assert.Equal(rt, curTime-startTime, got)
		default:
			assert.Equal(rt, startTime-curTime, got)
		}
	})
}

func TestPenaltyIsComplete(t *testing.T) {
	cfg := elapsedTestConfig(true, true)

	check := func(kind PenaltyKind, curTime time.Duration, want bool) {
		t.Helper()
		p := Penalty{Kind: kind, StartPeriod: period.SuddenDeath, StartTime: 5 * time.Second}
		got, err := p.IsComplete(period.SuddenDeath, curTime, cfg)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}

	check(OneMinute, 60*time.Second, false)
	check(OneMinute, 65*time.Second, true)
	check(OneMinute, 70*time.Second, true)

	check(TwoMinute, 120*time.Second, false)
	check(TwoMinute, 125*time.Second, true)
	check(TwoMinute, 130*time.Second, true)

	check(FiveMinute, 300*time.Second, false)
	check(FiveMinute, 305*time.Second, true)
	check(FiveMinute, 310*time.Second, true)

	check(TotalDismissal, 300*time.Second, false)
	check(TotalDismissal, 305*time.Second, false)
	check(TotalDismissal, 310*time.Second, false)
}
