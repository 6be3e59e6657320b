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

// Package channel implements the framed, typed, bidirectional message
// channel that sits on top of a unix "unixpacket" (SOCK_SEQPACKET) socket:
// one message per datagram, no length prefix, the datagram boundary is the
// frame. Channel carries exactly one request/response pair at a time;
// DetachableChannel (in detachable.go) adds detach/reattach semantics for
// the session phase.
package channel

import (
	"fmt"
	"net"

	"github.com/nabbar/hxd/protocol"
)

// Channel carries Tx values out and Rx values in over a single unix
// datagram-sequenced socket. The type parameters exist purely to keep
// distinct phases of the protocol (control vs. session) from being mixed up
// at compile time; Reuse retargets an existing socket to a new pair without
// any byte exchange.
type Channel[Tx, Rx any] struct {
	conn *net.UnixConn
	buf  []byte
}

// New wraps an already-connected *net.UnixConn ("unixpacket") in a Channel.
func New[Tx, Rx any](conn *net.UnixConn) *Channel[Tx, Rx] {
	return &Channel[Tx, Rx]{
		conn: conn,
		buf:  make([]byte, protocol.MaxMessageSize),
	}
}

// Reuse retargets the socket owned by c to carry a different Tx/Rx pair,
// without any bytes being exchanged: the transition from control-phase to
// session-phase messages is implicit in protocol state, never on the wire.
func Reuse[Tx2, Rx2, Tx, Rx any](c *Channel[Tx, Rx]) *Channel[Tx2, Rx2] {
	return &Channel[Tx2, Rx2]{conn: c.conn, buf: c.buf}
}

// IntoDetachable consumes c and returns a DetachableChannel wrapping the
// same underlying socket.
func IntoDetachable[Tx, Rx any](c *Channel[Tx, Rx]) *DetachableChannel[Tx, Rx] {
	return &DetachableChannel[Tx, Rx]{conn: c.conn}
}

// Send serializes msg and emits exactly one datagram containing it.
func (c *Channel[Tx, Rx]) Send(msg *Tx) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("channel: send failed: %w", err)
	}
	return nil
}

// Recv reads exactly one datagram and deserializes it into an Rx value.
func (c *Channel[Tx, Rx]) Recv() (Rx, error) {
	var zero Rx
	n, err := c.conn.Read(c.buf)
	if err != nil {
		return zero, fmt.Errorf("channel: receive failed: %w", err)
	}
	var msg Rx
	if err := protocol.Decode(c.buf[:n], &msg); err != nil {
		return zero, err
	}
	return msg, nil
}

// Shutdown closes both directions of the underlying connection.
func (c *Channel[Tx, Rx]) Shutdown() error {
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("channel: shutdown failed: %w", err)
	}
	return nil
}
