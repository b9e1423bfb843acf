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

package sender

import (
	"bytes"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"pgregory.net/rapid"
)

// TestMain asserts that every sink worker goroutine this package starts has
// actually exited by the time the test binary finishes, not merely that
// RemoveSink was called.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// pipeConn hands out one real TCP loopback connection pair, mirroring
// how AddTCPSink is actually used against a listening socket.
func pipeConn(t *testing.T) (server, client net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		server, err = ln.Accept()
		require.NoError(t, err)
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	wg.Wait()
	return server, client
}

func TestBroadcastDeliversToMatchingKindOnly(t *testing.T) {
	s := New()
	binSrv, binClient := pipeConn(t)
	jsonSrv, jsonClient := pipeConn(t)
	defer binClient.Close()
	defer jsonClient.Close()

	binID := s.AddTCPSink(binSrv, Binary)
	jsonID := s.AddTCPSink(jsonSrv, JSON)
	defer s.RemoveSink(binID)
	defer s.RemoveSink(jsonID)

	s.Broadcast(Binary, []byte("bin-payload"))

	binClient.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, len("bin-payload"))
	_, err := readFull(binClient, buf)
	require.NoError(t, err)
	assert.Equal(t, "bin-payload", string(buf))

	jsonClient.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	one := make([]byte, 1)
	_, err = jsonClient.Read(one)
	assert.Error(t, err, "json sink must not receive a binary-kind broadcast")
}

func TestHasSinksReflectsRegisteredKinds(t *testing.T) {
	s := New()
	assert.False(t, s.HasSinks(Binary))
	assert.False(t, s.HasSinks(JSON))
	assert.False(t, s.HasSerialSinks())

	binSrv, binClient := pipeConn(t)
	defer binClient.Close()
	binID := s.AddTCPSink(binSrv, Binary)

	assert.True(t, s.HasSinks(Binary))
	assert.False(t, s.HasSinks(JSON))

	var buf syncBuffer
	serialID := s.AddSerialWriter(&buf)
	assert.True(t, s.HasSerialSinks())

	s.RemoveSink(binID)
	s.RemoveSink(serialID)
	assert.False(t, s.HasSinks(Binary))
	assert.False(t, s.HasSerialSinks())
}

// TestBroadcastNeverBlocksOnADeadSink checks that a sink whose worker never
// drains its queue still lets Broadcast return promptly for any number of
// calls: the bounded queue fills and the broadcaster starts dropping for
// that sink instead of the caller ever waiting on it.
func TestBroadcastNeverBlocksOnADeadSink(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := New()
		srv, client := pipeConn(t)
		defer client.Close()
		id := s.AddTCPSink(srv, Binary)
		defer s.RemoveSink(id)

		calls := rapid.IntRange(1, 50).Draw(rt, "calls")
		deadline := time.Now().Add(2 * time.Second)
		for i := 0; i < calls; i++ {
			done := make(chan struct{})
			go func() {
				s.Broadcast(Binary, []byte("payload"))
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Until(deadline)):
				rt.Fatalf("Broadcast blocked past its deadline on call %d/%d", i+1, calls)
			}
		}
	})
}

func TestRemoveSinkStopsWorker(t *testing.T) {
	s := New()
	srv, client := pipeConn(t)
	defer client.Close()

	id := s.AddTCPSink(srv, Binary)
	s.RemoveSink(id)

	s.Broadcast(Binary, []byte("after-removal"))

	client.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	one := make([]byte, 1)
	_, err := client.Read(one)
	assert.Error(t, err, "removed sink's connection should be closed, not receiving")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSerialSinkLatestWins(t *testing.T) {
	s := New()
	var out syncBuffer
	id := s.AddSerialWriter(&out)
	defer s.RemoveSink(id)

	s.BroadcastSerial([]byte("a"))
	s.BroadcastSerial([]byte("b"))
	s.BroadcastSerial([]byte("c"))

	assert.Eventually(t, func() bool {
		return out.String() != ""
	}, time.Second, 10*time.Millisecond)

	// Only the most recently enqueued payload should ever reach the writer;
	// "a" and "b" were superseded before the pacing limiter let them through.
	time.Sleep(150 * time.Millisecond)
	assert.NotContains(t, out.String(), "a")
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
