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

// Package sender fans a single encoded snapshot out to every registered
// sink (binary TCP, JSON TCP, serial) without letting a slow or dead sink
// block the others or the Tournament Manager that produced the snapshot.
package sender

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/uwh-refbox/refboxd/internal/syncutil"
)

// workerQueueLen bounds how many pending snapshots a sink's worker will
// buffer before the broadcaster starts dropping for it.
const workerQueueLen = 4

// writeTimeout bounds a single sink write; a write that blocks longer than
// this is assumed to be talking to a wedged peer.
const writeTimeout = 500 * time.Millisecond

// serialSendSpacing is the minimum gap between writes to the serial sink,
// matching the physical scoreboard controller's expected update rate.
const serialSendSpacing = 100 * time.Millisecond

// Kind identifies which wire encoding a sink expects.
type Kind int

const (
	// Binary sinks receive wire.TransmittedData.Encode() records.
	Binary Kind = iota
	// JSON sinks receive wire.EncodeJSON documents.
	JSON
)

// sink is one registered destination and its worker's state.
type sink struct {
	id       uuid.UUID
	kind     Kind
	isSerial bool
	queue    chan []byte
	cancel   context.CancelFunc
	done     chan struct{}
}

// Sender holds the set of currently registered sinks and broadcasts
// payloads to all of them without blocking on any single one.
type Sender struct {
	mu    syncutil.RWMutex
	sinks map[uuid.UUID]*sink
}

// New returns an empty Sender ready to accept sinks.
func New() *Sender {
	return &Sender{sinks: make(map[uuid.UUID]*sink)}
}

// AddTCPSink registers conn as a new sink of the given kind and starts its
// worker goroutine. The returned id can later be passed to RemoveSink.
func (s *Sender) AddTCPSink(conn net.Conn, kind Kind) uuid.UUID {
	ctx, cancel := context.WithCancel(context.Background())
	sk := &sink{
		id:     uuid.New(),
		kind:   kind,
		queue:  make(chan []byte, workerQueueLen),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.sinks[sk.id] = sk
	s.mu.Unlock()

	go s.tcpWorkerLoop(ctx, conn, sk)
	return sk.id
}

// AddSerialWriter registers w (a serial port, or any io.Writer for testing)
// as a paced sink that always writes only the most recently broadcast
// payload: "latest wins", since there is no benefit replaying a stale
// scoreboard frame to hardware that samples at a fixed rate.
func (s *Sender) AddSerialWriter(w io.Writer) uuid.UUID {
	ctx, cancel := context.WithCancel(context.Background())
	sk := &sink{
		id:       uuid.New(),
		isSerial: true,
		queue:    make(chan []byte, workerQueueLen),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.sinks[sk.id] = sk
	s.mu.Unlock()

	go s.serialWorkerLoop(ctx, w, sk)
	return sk.id
}

// RemoveSink stops a sink's worker and drops it from the broadcast set. It
// blocks until the worker has actually exited, matching goleak's
// expectation that torn-down sinks leave no goroutine behind.
func (s *Sender) RemoveSink(id uuid.UUID) {
	s.mu.Lock()
	sk, ok := s.sinks[id]
	if ok {
		delete(s.sinks, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	sk.cancel()
	<-sk.done
}

// HasSinks reports whether at least one registered TCP sink of kind is
// presently connected. The broadcaster calls this before serialising a
// snapshot so that an encoding with no subscribers costs nothing (spec
// §4.4: "the broadcaster skips that encoding step").
func (s *Sender) HasSinks(kind Kind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sk := range s.sinks {
		if !sk.isSerial && sk.kind == kind {
			return true
		}
	}
	return false
}

// HasSerialSinks reports whether at least one serial sink is registered.
func (s *Sender) HasSerialSinks() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sk := range s.sinks {
		if sk.isSerial {
			return true
		}
	}
	return false
}

// Broadcast enqueues data for every sink whose kind matches, dropping the
// new payload (oldest-wins) for any sink whose queue is already full rather
// than blocking the caller — the Tournament Manager must never wait on a
// slow network peer.
func (s *Sender) Broadcast(kind Kind, data []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sk := range s.sinks {
		if sk.isSerial || sk.kind != kind {
			continue
		}
		select {
		case sk.queue <- data:
		default:
			log.Warn().Str("sink", sk.id.String()).Msg("sink queue full, dropping snapshot")
		}
	}
}

// BroadcastSerial enqueues data for every serial sink; serial has no
// JSON/binary distinction of its own, so it is addressed separately from
// Broadcast.
func (s *Sender) BroadcastSerial(data []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sk := range s.sinks {
		if !sk.isSerial {
			continue
		}
		select {
		case sk.queue <- data:
		default:
		}
	}
}

func (s *Sender) tcpWorkerLoop(ctx context.Context, conn net.Conn, sk *sink) {
	defer close(sk.done)
	defer conn.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-sk.queue:
			if err := writeWithTimeout(conn, data); err != nil {
				if isTimeout(err) {
					// A wedged sink is kept in the set and simply keeps
					// dropping frames rather than being torn down here;
					// only an outright IO error below removes it.
					log.Warn().Str("sink", sk.id.String()).Msg("write timed out, skipping frame")
					continue
				}
				log.Info().Str("sink", sk.id.String()).Err(err).Msg("sink write failed, closing")
				s.mu.Lock()
				delete(s.sinks, sk.id)
				s.mu.Unlock()
				return
			}
		}
	}
}

func writeWithTimeout(conn net.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err := conn.Write(data)
	return err
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}

// serialWorkerLoop holds only the latest payload and writes it out no more
// often than serialSendSpacing, racing the pacing timer against the next
// broadcast so a burst of snapshots collapses to one write per tick
// ("latest wins": an overwritten pending payload is simply dropped).
func (s *Sender) serialWorkerLoop(ctx context.Context, w io.Writer, sk *sink) {
	defer close(sk.done)
	limiter := rate.NewLimiter(rate.Every(serialSendSpacing), 1)

	var pending []byte
	for {
		if pending == nil {
			select {
			case <-ctx.Done():
				return
			case data := <-sk.queue:
				pending = data
			}
		}

		select {
		case <-ctx.Done():
			return
		case data := <-sk.queue:
			pending = data
			continue
		default:
		}

		if err := limiter.Wait(ctx); err != nil {
			return
		}
		if _, err := w.Write(pending); err != nil {
			log.Info().Str("sink", sk.id.String()).Err(err).Msg("serial sink write failed, closing")
			return
		}
		pending = nil
	}
}
