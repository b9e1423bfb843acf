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

import (
	"errors"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

// TestMain asserts the Controller's run loop goroutine is always gone by the
// time the test binary exits, not merely that Stop() was called.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// silentStreamer streams n samples of silence, then ends; it models a
// one-shot whistle sample. loop=true never ends, modeling a buzzer pattern.
type silentStreamer struct {
	remaining int
	loop      bool
}

func (s *silentStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.loop {
		return len(samples), true
	}
	if s.remaining <= 0 {
		return 0, false
	}
	n := len(samples)
	if n > s.remaining {
		n = s.remaining
	}
	s.remaining -= n
	return n, true
}

func (s *silentStreamer) Err() error { return nil }

type fakeLibrary struct {
	sr       beep.SampleRate
	failNext bool
}

func (f *fakeLibrary) Buzzer(sound BuzzerSound, loop bool) (beep.Streamer, error) {
	if f.failNext {
		f.failNext = false
		return nil, errors.New("device unavailable")
	}
	return &silentStreamer{remaining: f.sr.N(10 * time.Millisecond), loop: loop}, nil
}

func (f *fakeLibrary) Whistle() (beep.Streamer, error) {
	return &silentStreamer{remaining: f.sr.N(10 * time.Millisecond)}, nil
}

func (f *fakeLibrary) SampleRate() beep.SampleRate { return f.sr }

func TestQueueCoalescesDuplicateTriggers(t *testing.T) {
	var flashes []bool
	lib := &fakeLibrary{sr: beep.SampleRate(44100)}
	c := NewController(lib, DefaultSettings(), func(isBuzzer bool) {
		flashes = append(flashes, isBuzzer)
	})
	defer c.Stop()

	// S9: buzzer, whistle, buzzer arriving in that order must coalesce the
	// second buzzer request rather than re-ordering or duplicating it.
	c.TriggerBuzzer()
	c.TriggerWhistle()
	c.TriggerBuzzer()

	time.Sleep(20 * time.Millisecond)
	assert.NotEmpty(t, flashes)
	assert.True(t, flashes[0], "the first started sound must be the buzzer")
}

func TestWiredButtonStopRemovesFromQueue(t *testing.T) {
	lib := &fakeLibrary{sr: beep.SampleRate(44100)}
	c := NewController(lib, DefaultSettings(), func(bool) {})
	defer c.Stop()

	c.StartWiredButton()
	time.Sleep(5 * time.Millisecond)
	c.StopWiredButton()
	time.Sleep(5 * time.Millisecond)
	// No assertion beyond "does not deadlock or panic": queue state is
	// internal to the run loop and only externally observable via flashes
	// or audio output, both exercised by the other tests.
}

func TestWirelessButtonAutoReleases(t *testing.T) {
	settings := DefaultSettings()
	settings.Remotes = []RemoteInfo{{ID: 7}}
	lib := &fakeLibrary{sr: beep.SampleRate(44100)}

	var flashes int
	c := NewController(lib, settings, func(bool) { flashes++ })
	defer c.Stop()

	c.WirelessRemoteReceived(7)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, flashes)

	// Re-receiving before the timeout should refresh it, not restart playback.
	c.WirelessRemoteReceived(7)
	time.Sleep(ButtonTimeout + 50*time.Millisecond)
	assert.Equal(t, 1, flashes, "button release/re-trigger must not replay the same sound")
}

func TestUnknownRemoteIsIgnored(t *testing.T) {
	lib := &fakeLibrary{sr: beep.SampleRate(44100)}
	var flashes int
	c := NewController(lib, DefaultSettings(), func(bool) { flashes++ })
	defer c.Stop()

	c.WirelessRemoteReceived(99)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, flashes)
}
