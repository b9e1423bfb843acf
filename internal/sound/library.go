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

package sound

import "github.com/gopxl/beep/v2"

// Library produces a fresh beep.Streamer for a sound request each time one
// is started; "fresh" matters because a looped buzzer streamer is consumed
// as it plays and a finished one-shot streamer cannot be replayed.
type Library interface {
	// Buzzer returns a streamer for the given pattern. loop requests a
	// streamer that repeats indefinitely (button-held sounds); a non-loop
	// request returns one that plays once and ends (the timed auto-buzzer).
	Buzzer(sound BuzzerSound, loop bool) (beep.Streamer, error)
	// Whistle returns a one-shot streamer for the referee whistle sample.
	Whistle() (beep.Streamer, error)
	// SampleRate is the rate every streamer this Library returns is encoded
	// at; the controller's mixer and speaker are initialized at this rate.
	SampleRate() beep.SampleRate
}
