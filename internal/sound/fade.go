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
	"sync/atomic"

	"github.com/gopxl/beep/v2"
)

// fadeState is the crossfade streamer's lifecycle, advanced only by Stream
// and Release: fading in, sustaining at full gain, fading out, and done.
type fadeState int32

const (
	fadingIn fadeState = iota
	sustaining
	fadingOut
	faded
)

// fadeStreamer wraps an inner beep.Streamer with a linear gain ramp at the
// start and, once Release is called, a second linear ramp back to silence.
// Unlike a fixed-duration envelope, the fade-out is triggered externally
// (the controller decides when a sound's queue position ends), matching
// crossfade-stop/crossfade-start rather than a scheduled decay.
type fadeStreamer struct {
	inner      beep.Streamer
	gain       float64
	fadeSamples int
	position    int
	released    int32 // atomic bool: Release() called
	releasedAt  int
	releaseGain float64 // envelope level the fade-out ramps down from
	state       fadeState
	done        bool
}

// newFadeStreamer wraps s, ramping from silence to gain over fadeSamples
// samples before sustaining at gain until Release is called.
func newFadeStreamer(s beep.Streamer, gain float64, fadeSamples int) *fadeStreamer {
	if fadeSamples < 1 {
		fadeSamples = 1
	}
	return &fadeStreamer{inner: s, gain: gain, fadeSamples: fadeSamples}
}

// Release begins the fade-out; safe to call from any goroutine, at most once
// meaningfully (later calls are no-ops).
func (f *fadeStreamer) Release() {
	atomic.StoreInt32(&f.released, 1)
}

func (f *fadeStreamer) isReleased() bool {
	return atomic.LoadInt32(&f.released) != 0
}

func (f *fadeStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if f.done {
		return 0, false
	}

	n, ok = f.inner.Stream(samples)

	for i := 0; i < n; i++ {
		if (f.state == fadingIn || f.state == sustaining) && f.isReleased() {
			// Released: ramp down from the level reached so far (a partial
			// gain if the fade-in had not completed) instead of jumping,
			// so the envelope stays continuous.
			f.releaseGain = float64(f.position) / float64(f.fadeSamples)
			if f.releaseGain > 1 {
				f.releaseGain = 1
			}
			f.state = fadingOut
			f.releasedAt = f.position
		}

		var mult float64
		switch f.state {
		case fadingIn:
			mult = float64(f.position) / float64(f.fadeSamples)
			if f.position >= f.fadeSamples {
				f.state = sustaining
				mult = 1
			}
		case sustaining:
			mult = 1
		case fadingOut:
			elapsed := f.position - f.releasedAt + 1
			mult = f.releaseGain - float64(elapsed)/float64(f.fadeSamples)
			if mult <= 0 {
				mult = 0
				f.done = true
			}
		}

		samples[i][0] *= mult * f.gain
		samples[i][1] *= mult * f.gain
		f.position++

		if f.done {
			return i + 1, true
		}
	}

	if !ok && f.state != fadingOut {
		// Inner stream ended on its own (a one-shot sample finishing) before
		// Release was ever called: treat that as an instant, silent stop
		// rather than leaving the envelope mid-ramp.
		f.done = true
	}

	return n, ok || !f.done
}

func (f *fadeStreamer) Err() error {
	return f.inner.Err()
}
