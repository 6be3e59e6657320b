/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package channel

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"

	"github.com/nabbar/hxd/protocol"
)

// RecvResult is what a DetachableChannel's receive loop hands back through
// its channel: exactly one of Msg or Err is set, or both are nil to signal
// an expected detach completion.
type RecvResult[Rx any] struct {
	Msg *Rx
	Err error
}

// isExpectedDetach reports whether r represents a completed, expected
// detach rather than a message or an error.
func (r RecvResult[Rx]) isExpectedDetach() bool {
	return r.Msg == nil && r.Err == nil
}

// DetachableChannel is a Channel that can lose its peer without being
// destroyed. It models three states: Attached (conn present, not detaching),
// Detaching (conn present, detaching requested, waiting for the peer's
// close), and Detached (conn absent).
//
// Only the goroutine that owns a DetachableChannel (the session task, or the
// client's session loop) ever calls Send, Recv, Consume, Attach, Detach or
// Shutdown; a background goroutine spawned by Recv performs exactly one
// blocking read and reports the outcome back through a channel, touching
// nothing but its own local socket reference and the atomic detaching flag.
// A caller integrates DetachableChannel into a select loop via Recv, which
// yields a nil channel while Detached: a nil channel is never selectable, so
// the loop simply skips this source until a later Attach makes Recv return a
// real channel again.
type DetachableChannel[Tx, Rx any] struct {
	conn      *net.UnixConn
	detaching atomic.Bool
	pending   chan RecvResult[Rx]
}

// IsAttached reports whether a peer connection is currently present.
func (d *DetachableChannel[Tx, Rx]) IsAttached() bool {
	return d.conn != nil
}

// Send serializes msg and emits it to the attached peer. It fails with
// ErrSendOnDetached if there is currently no peer.
func (d *DetachableChannel[Tx, Rx]) Send(msg *Tx) error {
	if d.conn == nil {
		return ErrSendOnDetached
	}
	b, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if _, err := d.conn.Write(b); err != nil {
		return fmt.Errorf("channel: send failed: %w", err)
	}
	return nil
}

// Recv returns the channel a select statement should read the next message
// from. It lazily starts a background read of one datagram if none is
// already outstanding and a peer is attached; it returns nil if the channel
// is currently Detached, which is simply never selectable.
//
// After receiving a value from the returned channel, callers must call
// Consume (see its doc for when that also has to react to the result) so
// that the next call to Recv starts a fresh read.
func (d *DetachableChannel[Tx, Rx]) Recv() <-chan RecvResult[Rx] {
	if d.conn == nil {
		return nil
	}
	if d.pending == nil {
		d.pending = make(chan RecvResult[Rx], 1)
		go readOne[Rx](d.conn, &d.detaching, d.pending)
	}
	return d.pending
}

// Consume discards the outstanding read result so the next Recv call starts
// a new one, and -- if the result was an expected detach completion --
// transitions the channel to Detached. Call it immediately after reading a
// value from the channel Recv returned, before inspecting that value.
func (d *DetachableChannel[Tx, Rx]) Consume(r RecvResult[Rx]) {
	d.pending = nil
	if r.isExpectedDetach() && d.conn != nil {
		conn := d.conn
		d.conn = nil
		d.detaching.Store(false)
		_ = conn.Close()
	}
}

// readOne performs a single blocking read on conn and reports the outcome.
// It is the only function that runs on a goroutine other than the owner's,
// and it touches nothing but its own parameters: conn, the atomic detaching
// flag, and the result channel.
func readOne[Rx any](conn *net.UnixConn, detaching *atomic.Bool, out chan<- RecvResult[Rx]) {
	buf := make([]byte, protocol.MaxMessageSize)
	n, err := conn.Read(buf)
	if err != nil {
		if errors.Is(err, net.ErrClosed) && detaching.Load() {
			// Closed locally by Shutdown while this read was in flight.
			out <- RecvResult[Rx]{}
			return
		}
		if errors.Is(err, io.EOF) {
			if detaching.Load() {
				out <- RecvResult[Rx]{}
			} else {
				out <- RecvResult[Rx]{Err: ErrUnexpectedDisconnect}
			}
			return
		}
		out <- RecvResult[Rx]{Err: fmt.Errorf("channel: receive failed: %w", err)}
		return
	}

	var msg Rx
	if err := protocol.Decode(buf[:n], &msg); err != nil {
		out <- RecvResult[Rx]{Err: err}
		return
	}
	out <- RecvResult[Rx]{Msg: &msg}
}

// Attach binds a freshly accepted Channel to this DetachableChannel. It
// fails with ErrOccupied (after shutting the offered channel down) if a peer
// is already attached.
func (d *DetachableChannel[Tx, Rx]) Attach(c *Channel[Tx, Rx]) error {
	if d.conn != nil {
		_ = c.Shutdown()
		return ErrOccupied
	}
	d.conn = c.conn
	d.detaching.Store(false)
	d.pending = nil
	return nil
}

// Detach marks the channel as expecting its peer to close. It does not
// close the socket itself; the next peer close is then interpreted as an
// expected detach rather than an unexpected disconnect.
func (d *DetachableChannel[Tx, Rx]) Detach() {
	d.detaching.Store(true)
}

// Shutdown closes the inner connection, if any, and marks the channel
// detaching so that a concurrently in-flight read settles as an expected
// detach rather than an error.
func (d *DetachableChannel[Tx, Rx]) Shutdown() error {
	d.detaching.Store(true)
	if d.conn == nil {
		return nil
	}
	conn := d.conn
	d.conn = nil
	if err := conn.Close(); err != nil {
		return fmt.Errorf("channel: shutdown failed: %w", err)
	}
	return nil
}
