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
	"fmt"
	"os"
	"path/filepath"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// sampleRate is the rate every sample asset is resampled to on load and the
// rate the Controller initializes the speaker at.
const sampleRate = beep.SampleRate(44100)

// WAVLibrary loads buzzer and whistle samples as WAV files from a directory,
// one file per BuzzerSound plus whistle.wav. It is the production Library:
// every request decodes and resamples a fresh streamer so a looped or
// already-finished sample never gets replayed by accident.
type WAVLibrary struct {
	dir string
}

// NewWAVLibrary returns a Library that reads samples from dir. It performs
// no I/O itself; missing or malformed files surface as an error from
// Buzzer/Whistle at request time, which the controller logs and skips.
func NewWAVLibrary(dir string) *WAVLibrary {
	return &WAVLibrary{dir: dir}
}

func (l *WAVLibrary) SampleRate() beep.SampleRate { return sampleRate }

func (l *WAVLibrary) Buzzer(sound BuzzerSound, loop bool) (beep.Streamer, error) {
	s, err := l.decode(sound.String() + ".wav")
	if err != nil {
		return nil, err
	}
	if loop {
		return beep.Loop2(s), nil
	}
	return s, nil
}

func (l *WAVLibrary) Whistle() (beep.Streamer, error) {
	return l.decode("whistle.wav")
}

func (l *WAVLibrary) decode(name string) (beep.StreamSeeker, error) {
	//nolint:gosec // G304: filename is built from a closed BuzzerSound enum, not user input
	f, err := os.Open(filepath.Join(l.dir, name))
	if err != nil {
		return nil, fmt.Errorf("sound: open %s: %w", name, err)
	}
	streamer, format, err := wav.Decode(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("sound: decode %s: %w", name, err)
	}
	if format.SampleRate == sampleRate {
		return streamer, nil
	}
	return resampledSeeker{
		StreamSeeker: streamer,
		resampled:    beep.Resample(4, format.SampleRate, sampleRate, streamer),
	}, nil
}

// resampledSeeker streams through the resampler but still exposes the
// underlying decoder's Seek/Len/Position, matching what beep.Loop2 needs to
// restart a looped sample from the top.
type resampledSeeker struct {
	beep.StreamSeeker
	resampled beep.Streamer
}

func (r resampledSeeker) Stream(samples [][2]float64) (int, bool) {
	return r.resampled.Stream(samples)
}

func (r resampledSeeker) Err() error {
	if err := r.resampled.Err(); err != nil {
		return err
	}
	return r.StreamSeeker.Err()
}
