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

package wire

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/uwh-refbox/refboxd/internal/period"
	"github.com/uwh-refbox/refboxd/internal/tournament"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	td := TransmittedData{
		WhiteOnRight: true,
		Flash:        false,
		BeepTest:     true,
		Brightness:   2,
		Snapshot: tournament.Snapshot{
			TournamentID:   uuid.Nil,
			GameNumber:     3,
			NextGameNumber: 4,
			CurrentGame:    3,
			Period:         period.SecondHalf,
			ClockTime:      7 * time.Minute,
			DarkScore:      4,
			LightScore:     2,
			DarkPenalties: []tournament.PenaltySnapshot{
				{PlayerNumber: 9, Team: tournament.Dark, Infraction: tournament.InfractionGrabbing, Time: tournament.PenaltyTime{Seconds: 45}},
			},
			LightPenalties: []tournament.PenaltySnapshot{
				{PlayerNumber: 2, Team: tournament.Light, Infraction: tournament.InfractionStickFoul, Time: tournament.PenaltyTime{IsTotalDismissal: true}},
			},
		},
	}

	buf, err := td.Encode()
	require.NoError(t, err)
	assert.Equal(t, EncodedLen, len(buf))

	got, err := Decode(buf[:])
	require.NoError(t, err)

	assert.Equal(t, td.WhiteOnRight, got.WhiteOnRight)
	assert.Equal(t, td.BeepTest, got.BeepTest)
	assert.Equal(t, td.Brightness, got.Brightness)
	assert.Equal(t, td.Snapshot.Period, got.Snapshot.Period)
	assert.Equal(t, td.Snapshot.ClockTime, got.Snapshot.ClockTime)
	assert.Equal(t, td.Snapshot.DarkScore, got.Snapshot.DarkScore)
	assert.Equal(t, td.Snapshot.LightScore, got.Snapshot.LightScore)
	require.Len(t, got.Snapshot.DarkPenalties, 1)
	assert.Equal(t, uint16(45), got.Snapshot.DarkPenalties[0].Time.Seconds)
	require.Len(t, got.Snapshot.LightPenalties, 1)
	assert.True(t, got.Snapshot.LightPenalties[0].Time.IsTotalDismissal)
}

func TestEncodeRejectsTooManyPenalties(t *testing.T) {
	penalties := make([]tournament.PenaltySnapshot, MaxPenaltiesPerTeam+1)
	td := TransmittedData{Snapshot: tournament.Snapshot{DarkPenalties: penalties}}
	_, err := td.Encode()
	assert.Error(t, err)
}

// TestEncodeDecodeRoundTripProperty exercises Encode/Decode over randomly
// generated snapshots within the record's valid field ranges: whatever goes
// in binary must come back out unchanged, for any period/clock/score/penalty
// combination the Tournament Manager could ever hand the Update Sender.
func TestEncodeDecodeRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		genPenalty := func(team tournament.Team) tournament.PenaltySnapshot {
			dismissed := rapid.Bool().Draw(rt, "dismissed")
			pt := tournament.PenaltyTime{IsTotalDismissal: dismissed}
			if !dismissed {
				pt.Seconds = uint16(rapid.IntRange(0, int(totalDismissalSentinel-1)).Draw(rt, "seconds"))
			}
			return tournament.PenaltySnapshot{
				PlayerNumber: uint8(rapid.IntRange(0, 255).Draw(rt, "player")),
				Team:         team,
				Infraction:   tournament.Infraction(rapid.IntRange(0, 255).Draw(rt, "infraction")),
				Time:         pt,
			}
		}
		genPenalties := func(team tournament.Team) []tournament.PenaltySnapshot {
			n := rapid.IntRange(0, MaxPenaltiesPerTeam).Draw(rt, "count")
			out := make([]tournament.PenaltySnapshot, n)
			for i := range out {
				out[i] = genPenalty(team)
			}
			return out
		}

		td := TransmittedData{
			WhiteOnRight: rapid.Bool().Draw(rt, "whiteOnRight"),
			Flash:        rapid.Bool().Draw(rt, "flash"),
			BeepTest:     rapid.Bool().Draw(rt, "beepTest"),
			Brightness:   uint8(rapid.IntRange(0, 3).Draw(rt, "brightness")),
			Snapshot: tournament.Snapshot{
				Period:     period.GamePeriod(rapid.IntRange(int(period.BetweenGames), int(period.SuddenDeath)).Draw(rt, "period")),
				ClockTime:  time.Duration(rapid.IntRange(0, 65535).Draw(rt, "clockSecs")) * time.Second,
				DarkScore:  uint8(rapid.IntRange(0, 255).Draw(rt, "darkScore")),
				LightScore: uint8(rapid.IntRange(0, 255).Draw(rt, "lightScore")),
				Timeout: tournament.TimeoutSnapshot{
					Kind:    tournament.TimeoutKind(rapid.IntRange(0, 255).Draw(rt, "timeoutKind")),
					Team:    tournament.Team(rapid.IntRange(0, 255).Draw(rt, "timeoutTeam")),
					Elapsed: time.Duration(rapid.IntRange(0, 65535).Draw(rt, "timeoutSecs")) * time.Second,
				},
				DarkPenalties:  genPenalties(tournament.Dark),
				LightPenalties: genPenalties(tournament.Light),
			},
		}

		buf, err := td.Encode()
		require.NoError(rt, err)
		got, err := Decode(buf[:])
		require.NoError(rt, err)

		assert.Equal(rt, td.WhiteOnRight, got.WhiteOnRight)
		assert.Equal(rt, td.Flash, got.Flash)
		assert.Equal(rt, td.BeepTest, got.BeepTest)
		assert.Equal(rt, td.Brightness, got.Brightness)
		assert.Equal(rt, td.Snapshot.Period, got.Snapshot.Period)
		assert.Equal(rt, td.Snapshot.ClockTime, got.Snapshot.ClockTime)
		assert.Equal(rt, td.Snapshot.DarkScore, got.Snapshot.DarkScore)
		assert.Equal(rt, td.Snapshot.LightScore, got.Snapshot.LightScore)
		assert.Equal(rt, td.Snapshot.Timeout, got.Snapshot.Timeout)
		assert.Equal(rt, td.Snapshot.DarkPenalties, got.Snapshot.DarkPenalties)
		assert.Equal(rt, td.Snapshot.LightPenalties, got.Snapshot.LightPenalties)
	})
}

func TestEncodeJSON(t *testing.T) {
	s := tournament.Snapshot{
		Period:     period.FirstHalf,
		ClockTime:  90 * time.Second,
		DarkScore:  1,
		LightScore: 0,
	}
	b, err := EncodeJSON(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"period":"FirstHalf"`)
	assert.Equal(t, byte('\n'), b[len(b)-1])
}
