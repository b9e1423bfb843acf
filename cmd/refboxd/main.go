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

// Command refboxd is the headless tournament engine process: it owns the
// Tournament Manager, drives the time-updater, and fans out snapshots to
// whichever binary/JSON/serial sinks connect. The graphical refbox UI,
// schedule upload, and hardware button/reader drivers are separate
// processes that dial in as sinks or drive the Manager's command API; none
// of that lives here.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"

	"github.com/uwh-refbox/refboxd/internal/logging"
	"github.com/uwh-refbox/refboxd/internal/period"
	"github.com/uwh-refbox/refboxd/internal/scheduler"
	"github.com/uwh-refbox/refboxd/internal/sender"
	"github.com/uwh-refbox/refboxd/internal/sound"
	"github.com/uwh-refbox/refboxd/internal/tournament"
	"github.com/uwh-refbox/refboxd/internal/wire"
	"github.com/uwh-refbox/refboxd/pkg/config"
)

func main() {
	dataDir := flag.String("dir", defaultDataDir(), "directory holding refboxd.toml, logs, and sound assets")
	console := flag.Bool("console", false, "also log to stderr")
	flag.Parse()

	if err := logging.Init(filepath.Join(*dataDir, "logs"), *console); err != nil {
		fmt.Fprintf(os.Stderr, "refboxd: logging init: %v\n", err)
		os.Exit(1)
	}

	if err := run(*dataDir); err != nil {
		log.Error().Err(err).Msg("refboxd exiting")
		os.Exit(1)
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "refboxd")
	}
	return "."
}

// run wires every component described in SPEC_FULL.md §2 together and
// supervises them under one errgroup: a panic or fatal error in any
// long-lived task stops the others and run returns, matching §7's "Fatal"
// case.
func run(dataDir string) error {
	cfgInst, err := config.New(dataDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	vals := cfgInst.Current()

	mgr := tournament.NewManager(vals.Durations.AsTournamentConfig())
	mgr.SetTournamentID(uuid.New())

	snd := sender.New()

	library := sound.NewWAVLibrary(filepath.Join(dataDir, vals.Sound.AssetsDir))
	flasher := newFlashState()
	soundCtl := sound.NewController(library, vals.Sound.AsSoundSettings(), flasher.trigger)
	defer soundCtl.Stop()

	autoSoundTracker := newAutoSoundTracker(vals.Sound.AutoSoundStartPlay, vals.Sound.AutoSoundStopPlay, soundCtl)

	brightness := vals.Hardware.Brightness
	whiteOnRight := vals.Hardware.WhiteOnRight

	onSnapshot := func(snap tournament.Snapshot) {
		autoSoundTracker.observe(snap.Period)

		td := wire.TransmittedData{
			WhiteOnRight: whiteOnRight,
			Flash:        flasher.active(),
			Brightness:   brightness,
			Snapshot:     snap,
		}

		if snd.HasSinks(sender.Binary) || snd.HasSerialSinks() {
			if encoded, err := td.Encode(); err != nil {
				log.Warn().Err(err).Msg("binary snapshot encode failed, skipping frame")
			} else {
				if snd.HasSinks(sender.Binary) {
					snd.Broadcast(sender.Binary, encoded[:])
				}
				if snd.HasSerialSinks() {
					snd.BroadcastSerial(encoded[:])
				}
			}
		}

		if snd.HasSinks(sender.JSON) {
			if encoded, err := wire.EncodeJSON(snap); err != nil {
				log.Warn().Err(err).Msg("JSON snapshot encode failed, skipping frame")
			} else {
				snd.Broadcast(sender.JSON, encoded)
			}
		}
	}

	driver := scheduler.New(mgr, onSnapshot, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sigs:
			log.Info().Str("signal", s.String()).Msg("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return driver.Run(ctx)
	})

	if vals.Hardware.BinaryPort != 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", vals.Hardware.BinaryPort))
		if err != nil {
			return fmt.Errorf("listen binary port: %w", err)
		}
		g.Go(func() error { return acceptLoop(ctx, ln, snd, sender.Binary) })
	}

	if vals.Hardware.JSONPort != 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", vals.Hardware.JSONPort))
		if err != nil {
			return fmt.Errorf("listen json port: %w", err)
		}
		g.Go(func() error { return acceptLoop(ctx, ln, snd, sender.JSON) })
	}

	if vals.Hardware.SerialPort != "" {
		port, err := serial.Open(vals.Hardware.SerialPort, &serial.Mode{BaudRate: vals.Hardware.BaudRate})
		if err != nil {
			log.Warn().Err(err).Str("port", vals.Hardware.SerialPort).Msg("failed to open serial sink, continuing without it")
		} else {
			id := snd.AddSerialWriter(port)
			g.Go(func() error {
				<-ctx.Done()
				snd.RemoveSink(id)
				return port.Close()
			})
		}
	}

	return g.Wait()
}

// acceptLoop accepts connections on ln for the lifetime of ctx, registering
// each one as a new sink of kind. A transient accept error is logged and
// retried; ctx cancellation closes the listener and returns cleanly.
func acceptLoop(ctx context.Context, ln net.Listener, snd *sender.Sender, kind sender.Kind) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Warn().Err(err).Msg("accept failed, retrying")
				continue
			}
		}
		snd.AddTCPSink(conn, kind)
	}
}

// flashState tracks whether the scoreboard should presently show the
// all-8s flash pattern in response to a whistle or buzzer trigger, per
// SPEC_FULL.md §4.5 ("On whistle trigger, a flash signal is sent to the
// update sender"). The flash is held briefly rather than latched forever.
type flashState struct {
	until chan time.Time
	get   chan chan bool
}

func newFlashState() *flashState {
	f := &flashState{
		until: make(chan time.Time, 1),
		get:   make(chan chan bool),
	}
	go f.run()
	return f
}

const flashHoldDuration = 500 * time.Millisecond

func (f *flashState) run() {
	var deadline time.Time
	for {
		select {
		case d := <-f.until:
			deadline = d
		case reply := <-f.get:
			reply <- !deadline.IsZero() && time.Now().Before(deadline)
		}
	}
}

// trigger is passed to sound.NewController as the flash callback: any
// whistle always flashes; a buzzer flashes only when isBuzzer is true
// (i.e. the new queue head actually is a buzzer, not a button release).
func (f *flashState) trigger(isBuzzer bool) {
	_ = isBuzzer
	select {
	case f.until <- time.Now().Add(flashHoldDuration):
	default:
	}
}

func (f *flashState) active() bool {
	reply := make(chan bool, 1)
	f.get <- reply
	return <-reply
}

// buzzerTrigger is the one method autoSoundTracker needs from
// *sound.Controller; narrowing to an interface keeps the boundary-crossing
// logic testable without spinning up a real audio graph.
type buzzerTrigger interface {
	TriggerBuzzer()
}

// autoSoundTracker watches the stream of snapshots for a play-period
// boundary crossing and triggers the auto-buzzer, mirroring the physical
// refbox's "buzzer sounds at the start and end of play" behavior
// (config.Sound.AutoSoundStartPlay / AutoSoundStopPlay).
type autoSoundTracker struct {
	startEnabled bool
	stopEnabled  bool
	ctl          buzzerTrigger
	last         period.GamePeriod
	have         bool
}

func newAutoSoundTracker(start, stop bool, ctl buzzerTrigger) *autoSoundTracker {
	return &autoSoundTracker{startEnabled: start, stopEnabled: stop, ctl: ctl}
}

func isPlayPeriod(p period.GamePeriod) bool {
	switch p {
	case period.FirstHalf, period.SecondHalf, period.OvertimeFirstHalf, period.OvertimeSecondHalf, period.SuddenDeath:
		return true
	default:
		return false
	}
}

func (a *autoSoundTracker) observe(cur period.GamePeriod) {
	defer func() { a.last = cur; a.have = true }()
	if !a.have || cur == a.last {
		return
	}
	wasPlay, isPlay := isPlayPeriod(a.last), isPlayPeriod(cur)
	switch {
	case !wasPlay && isPlay && a.startEnabled:
		a.ctl.TriggerBuzzer()
	case wasPlay && !isPlay && a.stopEnabled:
		a.ctl.TriggerBuzzer()
	}
}
