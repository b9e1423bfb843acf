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
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

type constStreamer struct{ n int }

func (c *constStreamer) Stream(samples [][2]float64) (int, bool) {
	for i := range samples {
		samples[i][0] = 1
		samples[i][1] = 1
	}
	c.n += len(samples)
	return len(samples), true
}

func (c *constStreamer) Err() error { return nil }

func TestFadeStreamerRampsInThenSustains(t *testing.T) {
	fs := newFadeStreamer(&constStreamer{}, 1.0, 10)

	buf := make([][2]float64, 10)
	n, ok := fs.Stream(buf)
	assert.True(t, ok)
	assert.Equal(t, 10, n)

	assert.InDelta(t, 0.0, buf[0][0], 1e-9, "first sample of the ramp is silent")
	assert.InDelta(t, 0.9, buf[9][0], 1e-9, "ramp is linear over fadeSamples")

	buf2 := make([][2]float64, 4)
	n, ok = fs.Stream(buf2)
	assert.True(t, ok)
	assert.Equal(t, 4, n)
	assert.InDelta(t, 1.0, buf2[0][0], 1e-9, "fully ramped in, sustaining at full gain")
}

func TestFadeStreamerReleaseRampsOutThenEnds(t *testing.T) {
	fs := newFadeStreamer(&constStreamer{}, 1.0, 10)

	// Run past the fade-in so we're sustaining.
	buf := make([][2]float64, 10)
	fs.Stream(buf)

	fs.Release()
	buf2 := make([][2]float64, 10)
	n, ok := fs.Stream(buf2)
	assert.True(t, n <= 10)
	_ = ok
	assert.InDelta(t, 0.0, buf2[n-1][0], 1e-9, "fade-out reaches silence")

	// A further Stream call after the fade-out completed reports done.
	buf3 := make([][2]float64, 4)
	_, ok = fs.Stream(buf3)
	assert.False(t, ok)
}

// TestFadeStreamerGainNeverExceedsTarget checks that, no matter when Release
// fires or how the caller chunks its Stream calls, the envelope never
// produces a sample louder than the streamer's target gain: there is never a
// moment where a crossfading sound is briefly louder than full volume.
func TestFadeStreamerGainNeverExceedsTarget(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		gain := rapid.Float64Range(0, 2).Draw(rt, "gain")
		fadeSamples := rapid.IntRange(1, 50).Draw(rt, "fadeSamples")
		releaseAfter := rapid.IntRange(0, 100).Draw(rt, "releaseAfter")
		chunkSize := rapid.IntRange(1, 20).Draw(rt, "chunkSize")

		fs := newFadeStreamer(&constStreamer{}, gain, fadeSamples)
		buf := make([][2]float64, chunkSize)

		produced := 0
		for i := 0; i < 200; i++ {
			n, ok := fs.Stream(buf)
			for j := 0; j < n; j++ {
				v := buf[j][0]
				assert.GreaterOrEqual(rt, v, -1e-9, "gain must never go negative")
				assert.LessOrEqual(rt, v, gain+1e-9, "gain must never exceed the target")
			}
			produced += n
			if produced >= releaseAfter {
				fs.Release()
			}
			if !ok {
				break
			}
		}
	})
}

func TestFadeStreamerReleaseDuringFadeInStaysContinuous(t *testing.T) {
	fs := newFadeStreamer(&constStreamer{}, 1.0, 100)

	buf := make([][2]float64, 5)
	fs.Stream(buf)
	fs.Release()

	// The gain must never jump back to 0 and then up; it should now be
	// ramping down from wherever the fade-in had reached.
	prev := buf[4][0]
	buf2 := make([][2]float64, 1)
	fs.Stream(buf2)
	assert.LessOrEqual(t, buf2[0][0], prev+1e-9)
}
