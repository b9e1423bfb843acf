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
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/rs/zerolog/log"
)

// FadeDuration is the linear crossfade applied whenever the queue head
// changes: the previously-playing sound ramps to silence over this span
// while the new head ramps up from it, so the two never click.
const FadeDuration = 50 * time.Millisecond

// AutoBuzzerDuration is how long the timed auto-buzzer sustains at full
// volume before its own scheduled fade-out begins.
const AutoBuzzerDuration = 2 * time.Second

// ButtonTimeout is how long a wireless remote's buzzer request stays queued
// after its most recent "received" signal before it is treated as released.
const ButtonTimeout = 600 * time.Millisecond

type soundKind int

const (
	kindAutoBuzzer soundKind = iota
	kindWhistle
	kindWiredButton
	kindWirelessButton
)

// SoundID names one request's identity in the FIFO; two requests with equal
// SoundIDs coalesce into the same queue slot.
type SoundID struct {
	kind   soundKind
	remote RemoteID
}

func AutoBuzzerID() SoundID               { return SoundID{kind: kindAutoBuzzer} }
func WhistleID() SoundID                  { return SoundID{kind: kindWhistle} }
func WiredButtonID() SoundID              { return SoundID{kind: kindWiredButton} }
func WirelessButtonID(r RemoteID) SoundID { return SoundID{kind: kindWirelessButton, remote: r} }

func (s SoundID) isBuzzer() bool { return s.kind != kindWhistle }

// playing tracks the one sound currently in the audio graph.
type playing struct {
	id       SoundID
	fade     *fadeStreamer
	endTimer *time.Timer
}

// event is the controller's single internal message type; every external
// trigger and every internal timer resolves to one of these, so the run
// loop only ever needs to select on one channel.
type event struct {
	kind         eventKind
	remote       RemoteID
	settings     Settings
	endedSoundID SoundID
	endedGen     uint64
}

type eventKind int

const (
	evTriggerBuzzer eventKind = iota
	evTriggerWhistle
	evStartWired
	evStopWired
	evWirelessReceived
	evSettingsChanged
	evSoundEnded
	evButtonTimedOut
	evStop
)

// Controller owns the sound request queue and the audio graph that plays
// it. There is never more than one sound audible: switching the queue head
// crossfades the old sound out and the new one in over FadeDuration.
type Controller struct {
	library      Library
	triggerFlash func(isBuzzer bool)
	mixer        *beep.Mixer

	events chan event
	done   chan struct{}

	// generation guards stale button-timeout timers: each (re)start of a
	// wireless button's timeout bumps generation, and a fired timer whose
	// generation no longer matches the live one is ignored.
	remoteGen map[RemoteID]uint64
}

// NewController initializes the speaker at the library's sample rate,
// starts the mixer playing, and starts the controller's run loop. Audio
// device failures are logged and the controller still runs: sound requests
// are simply never heard.
func NewController(library Library, settings Settings, triggerFlash func(isBuzzer bool)) *Controller {
	sr := library.SampleRate()
	if err := speaker.Init(sr, sr.N(100*time.Millisecond)); err != nil {
		log.Warn().Err(err).Msg("failed to initialize audio speaker - sound controller running muted")
	}

	mixer := &beep.Mixer{}
	speaker.Play(mixer)

	c := &Controller{
		library:      library,
		triggerFlash: triggerFlash,
		mixer:        mixer,
		events:       make(chan event, 16),
		done:         make(chan struct{}),
		remoteGen:    make(map[RemoteID]uint64),
	}
	go c.run(settings)
	return c
}

// Stop ends the run loop. It does not tear down the global speaker; the
// process that owns the Controller's lifetime also owns the speaker's.
func (c *Controller) Stop() {
	select {
	case c.events <- event{kind: evStop}:
	case <-c.done:
	}
	<-c.done
}

func (c *Controller) TriggerBuzzer() { c.events <- event{kind: evTriggerBuzzer} }
func (c *Controller) TriggerWhistle() { c.events <- event{kind: evTriggerWhistle} }
func (c *Controller) StartWiredButton() { c.events <- event{kind: evStartWired} }
func (c *Controller) StopWiredButton()  { c.events <- event{kind: evStopWired} }

func (c *Controller) WirelessRemoteReceived(r RemoteID) {
	c.events <- event{kind: evWirelessReceived, remote: r}
}

func (c *Controller) UpdateSettings(s Settings) {
	c.events <- event{kind: evSettingsChanged, settings: s}
}

func (c *Controller) run(settings Settings) {
	defer close(c.done)

	var queue []SoundID
	var current *playing
	buttonTimers := make(map[RemoteID]*time.Timer)

	enqueue := func(id SoundID) {
		for _, q := range queue {
			if q == id {
				return
			}
		}
		queue = append(queue, id)
	}
	dequeue := func(id SoundID) {
		out := queue[:0]
		for _, q := range queue {
			if q != id {
				out = append(out, q)
			}
		}
		queue = out
	}

	fadeSamples := c.library.SampleRate().N(FadeDuration)

	startHead := func() {
		if len(queue) == 0 {
			if current != nil {
				current.fade.Release()
				current = nil
			}
			return
		}
		head := queue[0]
		if current != nil && current.id == head {
			return
		}
		if current != nil {
			current.fade.Release()
		}

		var stream beep.Streamer
		var vol float64
		var err error
		switch head.kind {
		case kindAutoBuzzer:
			stream, err = c.library.Buzzer(settings.BuzzerSound, false)
			vol = settings.AboveWaterVolume.AsGain()
		case kindWhistle:
			stream, err = c.library.Whistle()
			vol = settings.WhistleVolume.AsGain()
		case kindWiredButton:
			stream, err = c.library.Buzzer(settings.BuzzerSound, true)
			vol = settings.AboveWaterVolume.AsGain()
		case kindWirelessButton:
			sound := settings.BuzzerSound
			for _, r := range settings.Remotes {
				if r.ID == head.remote && r.Sound != nil {
					sound = *r.Sound
				}
			}
			stream, err = c.library.Buzzer(sound, true)
			vol = settings.UnderWaterVolume.AsGain()
		}
		if err != nil {
			log.Warn().Err(err).Msg("sound backend failed to start request, will retry on next queue change")
			dequeue(head)
			return
		}
		if !settings.SoundEnabled || (head.kind == kindWhistle && !settings.WhistleEnabled) {
			dequeue(head)
			current = nil
			return
		}

		fs := newFadeStreamer(stream, vol, fadeSamples)
		p := &playing{id: head, fade: fs}
		if head.kind == kindAutoBuzzer {
			p.endTimer = time.AfterFunc(AutoBuzzerDuration, func() {
				c.events <- event{kind: evSoundEnded, endedSoundID: head}
			})
		}
		current = p
		c.mixer.Add(fs)

		if c.triggerFlash != nil {
			c.triggerFlash(head.isBuzzer())
		}
	}

	for ev := range c.events {
		switch ev.kind {
		case evStop:
			if current != nil {
				current.fade.Release()
			}
			return

		case evTriggerBuzzer:
			enqueue(AutoBuzzerID())

		case evTriggerWhistle:
			enqueue(WhistleID())

		case evStartWired:
			enqueue(WiredButtonID())

		case evStopWired:
			dequeue(WiredButtonID())
			if current != nil && current.id == WiredButtonID() {
				current.fade.Release()
				current = nil
			}

		case evWirelessReceived:
			id := WirelessButtonID(ev.remote)
			known := false
			for _, r := range settings.Remotes {
				if r.ID == ev.remote {
					known = true
				}
			}
			if !known {
				continue
			}
			enqueue(id)
			if t, ok := buttonTimers[ev.remote]; ok {
				t.Stop()
			}
			c.remoteGen[ev.remote]++
			gen := c.remoteGen[ev.remote]
			remote := ev.remote
			buttonTimers[ev.remote] = time.AfterFunc(ButtonTimeout, func() {
				c.events <- event{kind: evButtonTimedOut, remote: remote, endedGen: gen}
			})

		case evButtonTimedOut:
			if c.remoteGen[ev.remote] != ev.endedGen {
				continue // superseded by a newer receive before this timer fired
			}
			id := WirelessButtonID(ev.remote)
			dequeue(id)
			if current != nil && current.id == id {
				current.fade.Release()
				current = nil
			}
			delete(buttonTimers, ev.remote)

		case evSoundEnded:
			dequeue(ev.endedSoundID)
			if current != nil && current.id == ev.endedSoundID {
				current.fade.Release()
				current = nil
			}

		case evSettingsChanged:
			settings = ev.settings
		}

		startHead()
	}
}
