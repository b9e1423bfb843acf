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

// Package wire implements the fixed-length binary snapshot record and the
// JSON snapshot the Update Sender broadcasts to TCP/serial sinks.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/uwh-refbox/refboxd/internal/period"
	"github.com/uwh-refbox/refboxd/internal/tournament"
)

// MaxPenaltiesPerTeam bounds the binary record's per-team penalty list. The
// original source's wire format has no such bound (it walks a variable-length
// list); a fixed-length binary record needs one, so this picks a generous
// ceiling matching the real sport's maximum roster size.
const MaxPenaltiesPerTeam = 10

// totalDismissalSentinel marks a penalty entry's time field as "total
// dismissal, no remaining time" rather than an actual second count.
const totalDismissalSentinel = 0xFFFF

// penaltyEntryLen is playerNumber(1) + infraction(1) + time(2).
const penaltyEntryLen = 4

// EncodedLen is the fixed size of a binary TransmittedData record.
const EncodedLen = 12 + 2*MaxPenaltiesPerTeam*penaltyEntryLen

// TransmittedData is the full payload a binary sink receives: the
// snapshot plus presentation-only fields that have no place in the
// Tournament Manager's own state (display flags and brightness are a
// concern of whoever drives the physical scoreboard, not the referee
// engine).
type TransmittedData struct {
	WhiteOnRight bool
	Flash        bool
	BeepTest     bool
	Brightness   uint8 // 0-3
	Snapshot     tournament.Snapshot
}

// Encode renders t as a fixed-length binary record.
func (t TransmittedData) Encode() ([EncodedLen]byte, error) {
	var buf [EncodedLen]byte

	var flags byte
	if t.WhiteOnRight {
		flags |= 1 << 0
	}
	if t.Flash {
		flags |= 1 << 1
	}
	if t.BeepTest {
		flags |= 1 << 2
	}
	if t.Brightness > 3 {
		return buf, fmt.Errorf("wire: brightness %d exceeds 2-bit range", t.Brightness)
	}
	flags |= (t.Brightness & 0x3) << 3
	buf[0] = flags

	if int(t.Snapshot.Period) > 0xF {
		return buf, fmt.Errorf("wire: period %d exceeds 4-bit range", t.Snapshot.Period)
	}
	buf[1] = byte(t.Snapshot.Period)

	clockSecs, err := secondsU16(t.Snapshot.ClockTime)
	if err != nil {
		return buf, fmt.Errorf("wire: clock time: %w", err)
	}
	binary.BigEndian.PutUint16(buf[2:4], clockSecs)

	buf[4] = t.Snapshot.DarkScore
	buf[5] = t.Snapshot.LightScore

	buf[6] = byte(t.Snapshot.Timeout.Kind)
	buf[7] = byte(t.Snapshot.Timeout.Team)
	timeoutSecs, err := secondsU16(t.Snapshot.Timeout.Elapsed)
	if err != nil {
		return buf, fmt.Errorf("wire: timeout elapsed: %w", err)
	}
	binary.BigEndian.PutUint16(buf[8:10], timeoutSecs)

	if len(t.Snapshot.DarkPenalties) > MaxPenaltiesPerTeam {
		return buf, fmt.Errorf("wire: %d dark penalties exceeds max %d", len(t.Snapshot.DarkPenalties), MaxPenaltiesPerTeam)
	}
	if len(t.Snapshot.LightPenalties) > MaxPenaltiesPerTeam {
		return buf, fmt.Errorf("wire: %d light penalties exceeds max %d", len(t.Snapshot.LightPenalties), MaxPenaltiesPerTeam)
	}
	buf[10] = byte(len(t.Snapshot.DarkPenalties))
	buf[11] = byte(len(t.Snapshot.LightPenalties))

	offset := 12
	offset, err = encodePenalties(buf[:], offset, t.Snapshot.DarkPenalties)
	if err != nil {
		return buf, err
	}
	offset += (MaxPenaltiesPerTeam - len(t.Snapshot.DarkPenalties)) * penaltyEntryLen

	_, err = encodePenalties(buf[:], offset, t.Snapshot.LightPenalties)
	if err != nil {
		return buf, err
	}

	return buf, nil
}

func encodePenalties(buf []byte, offset int, penalties []tournament.PenaltySnapshot) (int, error) {
	for _, p := range penalties {
		buf[offset] = p.PlayerNumber
		buf[offset+1] = byte(p.Infraction)
		if p.Time.IsTotalDismissal {
			binary.BigEndian.PutUint16(buf[offset+2:offset+4], totalDismissalSentinel)
		} else {
			binary.BigEndian.PutUint16(buf[offset+2:offset+4], p.Time.Seconds)
		}
		offset += penaltyEntryLen
	}
	return offset, nil
}

// secondsU16 rounds d to the nearest whole second, half-up (2.6s encodes as
// 3, not 2, matching the displayed seconds field's rounding rule), then
// clamps/errors it into the wire format's u16 width.
func secondsU16(d time.Duration) (uint16, error) {
	if d < 0 {
		d = 0
	}
	secs := math.Floor(d.Seconds() + 0.5)
	if secs > float64(^uint16(0)) {
		return 0, fmt.Errorf("duration %s exceeds u16 seconds", d)
	}
	return uint16(secs), nil
}

// Decode parses a fixed-length binary record back into a TransmittedData.
// It does not attempt to recover every field of the original Snapshot
// (tournament/game numbers, team scores history, etc. are not carried over
// the binary wire); it's the display-facing subset that was encoded.
func Decode(buf []byte) (TransmittedData, error) {
	if len(buf) != EncodedLen {
		return TransmittedData{}, fmt.Errorf("wire: expected %d bytes, got %d", EncodedLen, len(buf))
	}

	var t TransmittedData
	flags := buf[0]
	t.WhiteOnRight = flags&(1<<0) != 0
	t.Flash = flags&(1<<1) != 0
	t.BeepTest = flags&(1<<2) != 0
	t.Brightness = (flags >> 3) & 0x3

	t.Snapshot.Period = period.GamePeriod(buf[1])
	t.Snapshot.ClockTime = time.Duration(binary.BigEndian.Uint16(buf[2:4])) * time.Second
	t.Snapshot.DarkScore = buf[4]
	t.Snapshot.LightScore = buf[5]
	t.Snapshot.Timeout.Kind = tournament.TimeoutKind(buf[6])
	t.Snapshot.Timeout.Team = tournament.Team(buf[7])
	t.Snapshot.Timeout.Elapsed = time.Duration(binary.BigEndian.Uint16(buf[8:10])) * time.Second

	darkCount := int(buf[10])
	lightCount := int(buf[11])
	if darkCount > MaxPenaltiesPerTeam || lightCount > MaxPenaltiesPerTeam {
		return t, fmt.Errorf("wire: penalty count exceeds max %d", MaxPenaltiesPerTeam)
	}

	offset := 12
	var err error
	t.Snapshot.DarkPenalties, offset, err = decodePenalties(buf, offset, darkCount, tournament.Dark)
	if err != nil {
		return t, err
	}
	offset += (MaxPenaltiesPerTeam - darkCount) * penaltyEntryLen

	t.Snapshot.LightPenalties, _, err = decodePenalties(buf, offset, lightCount, tournament.Light)
	if err != nil {
		return t, err
	}

	return t, nil
}

func decodePenalties(buf []byte, offset, count int, team tournament.Team) ([]tournament.PenaltySnapshot, int, error) {
	out := make([]tournament.PenaltySnapshot, 0, count)
	for i := 0; i < count; i++ {
		secs := binary.BigEndian.Uint16(buf[offset+2 : offset+4])
		pt := tournament.PenaltyTime{Seconds: secs}
		if secs == totalDismissalSentinel {
			pt = tournament.PenaltyTime{IsTotalDismissal: true}
		}
		out = append(out, tournament.PenaltySnapshot{
			PlayerNumber: buf[offset],
			Team:         team,
			Infraction:   tournament.Infraction(buf[offset+1]),
			Time:         pt,
		})
		offset += penaltyEntryLen
	}
	return out, offset, nil
}

// jsonSnapshot is the JSON-over-the-wire shape: snake_case field names of its
// own (e.g. "period", "clock_time_secs", "dark_score") rather than Go's
// exported-field casing, since sinks on the other end are external consumers,
// not Go code. Timeouts, warnings and fouls are not included.
type jsonSnapshot struct {
	TournamentID   string        `json:"tournament_id"`
	GameNumber     uint16        `json:"game_number"`
	NextGameNumber uint16        `json:"next_game_number"`
	CurrentGame    uint16        `json:"current_game"`
	Period         string        `json:"period"`
	ClockTimeSecs  uint32        `json:"clock_time_secs"`
	DarkScore      uint8         `json:"dark_score"`
	LightScore     uint8         `json:"light_score"`
	DarkPenalties  []jsonPenalty `json:"dark_penalties"`
	LightPenalties []jsonPenalty `json:"light_penalties"`
}

type jsonPenalty struct {
	PlayerNumber   uint8  `json:"player_number"`
	Infraction     string `json:"infraction"`
	TotalDismissal bool   `json:"total_dismissal"`
	Seconds        uint16 `json:"seconds,omitempty"`
}

// EncodeJSON renders a Snapshot as a newline-terminated JSON document, the
// shape the JSON sink writes to its sockets.
func EncodeJSON(s tournament.Snapshot) ([]byte, error) {
	out := jsonSnapshot{
		TournamentID:   s.TournamentID.String(),
		GameNumber:     s.GameNumber,
		NextGameNumber: s.NextGameNumber,
		CurrentGame:    s.CurrentGame,
		Period:         s.Period.String(),
		ClockTimeSecs:  uint32(s.ClockTime.Seconds()),
		DarkScore:      s.DarkScore,
		LightScore:     s.LightScore,
		DarkPenalties:  jsonPenalties(s.DarkPenalties),
		LightPenalties: jsonPenalties(s.LightPenalties),
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func jsonPenalties(ps []tournament.PenaltySnapshot) []jsonPenalty {
	out := make([]jsonPenalty, 0, len(ps))
	for _, p := range ps {
		out = append(out, jsonPenalty{
			PlayerNumber:   p.PlayerNumber,
			Infraction:     p.Infraction.String(),
			TotalDismissal: p.Time.IsTotalDismissal,
			Seconds:        p.Time.Seconds,
		})
	}
	return out
}
