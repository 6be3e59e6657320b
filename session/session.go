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

// Package session implements the per-session task: it owns a detachable
// channel toward a possibly-absent client, consumes events from the server,
// and reports its own lifecycle back to the server.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nabbar/hxd/channel"
	"github.com/nabbar/hxd/protocol"
)

// ErrForcedTermination is the terminate reason used when the server
// requests a forced termination.
var ErrForcedTermination = errors.New("session: forced termination")

// serverEventChanCap bounds the server->session event channel. Two is
// enough that a termination request is never blocked behind an attach
// request or vice versa.
const serverEventChanCap = 2

// Session is the per-session task. It is only ever driven by its own run
// goroutine; the Handle is the only thing other goroutines touch.
type Session struct {
	sid     protocol.SessionId
	channel *sessionChannel
	rx      <-chan ServerEvent
	events  chan<- SessionEvent
	log     *logrus.Entry
	run     bool
}

// Handle is the server-side handle to a spawned Session: the metadata the
// registry tracks, the event sender, and the means to wait for completion.
type Handle struct {
	sid       protocol.SessionId
	timestamp time.Time
	alias     protocol.Alias
	detached  bool

	tx   chan<- ServerEvent
	done <-chan error
}

// Spawn starts a new session task owning channel c, and returns a Handle
// for the server's registry. The session task runs until terminated.
func Spawn(sid protocol.SessionId, c *sessionChannel, events chan<- SessionEvent, log *logrus.Entry) *Handle {
	rx := make(chan ServerEvent, serverEventChanCap)
	done := make(chan error, 1)

	s := &Session{
		sid:     sid,
		channel: c,
		rx:      rx,
		events:  events,
		log:     log,
		run:     true,
	}

	go func() {
		done <- s.runLoop()
	}()

	if log != nil {
		log.Debugf("%s: new session started", sid)
	}

	return &Handle{
		sid:       sid,
		timestamp: time.Now(),
		alias:     "",
		detached:  false,
		tx:        rx,
		done:      done,
	}
}

// runLoop is the session's select loop: it alternates between
// server-originated events and inbound session-phase messages from the
// client channel. Neither source takes priority over the other here, unlike
// the server's and client's main loops, so a single unordered select is
// enough -- no priority pass is needed.
func (s *Session) runLoop() error {
	for s.run {
		recvCh := s.channel.Recv()

		select {
		case ev := <-s.rx:
			if reason, done := s.handleServerEvent(ev); done {
				return s.terminate(reason)
			}

		case r := <-recvCh:
			s.channel.Consume(r)
			if reason, done := s.handleRecv(r); done {
				return s.terminate(reason)
			}
		}
	}
	return nil
}

// handleServerEvent processes one ServerEvent. It returns (reason, true)
// when the session must terminate as a result.
func (s *Session) handleServerEvent(ev ServerEvent) (error, bool) {
	switch ev.Kind {
	case EvtRequestTermination:
		if ev.Forced {
			return ErrForcedTermination, true
		}
		return nil, true

	case EvtAttachRequest:
		if s.channel.IsAttached() {
			if s.log != nil {
				s.log.Errorf("%s: attach request on occupied session", s.sid)
			}
			_ = ev.Channel.Shutdown()
			return nil, false
		}
		if err := s.channel.Attach(ev.Channel); err != nil {
			if s.log != nil {
				s.log.Errorf("%s: failed to attach new channel: %v", s.sid, err)
			}
		}
		return nil, false
	}
	return nil, false
}

// handleRecv processes one read result from the client channel. It returns
// (reason, true) when the session must terminate as a result.
func (s *Session) handleRecv(r channel.RecvResult[protocol.SessionRequest]) (error, bool) {
	if r.Err != nil {
		return r.Err, true
	}
	if r.Msg == nil {
		// Expected detach completion: the session now has no peer.
		return nil, false
	}

	switch r.Msg.Variant {
	case protocol.SessReqTerminate:
		return nil, true

	case protocol.SessReqDetach:
		s.channel.Detach()
		if err := s.sendEvent(SessionEvent{Sid: s.sid, Kind: EvtClientDetached}); err != nil && s.log != nil {
			s.log.Errorf("%s: failed to notify server of detach: %v", s.sid, err)
		}
		return nil, false
	}
	return nil, false
}

// sendEvent delivers ev to the server's event channel. The channel is
// bounded; if it is full, this blocks, naturally throttling a session task
// against a server that is falling behind.
func (s *Session) sendEvent(ev SessionEvent) error {
	s.events <- ev
	return nil
}

// terminate runs the terminate protocol: notify the client, shut the
// channel down, notify the server, and return reason so runLoop's caller
// (Spawn's goroutine) can report it through the done channel.
func (s *Session) terminate(reason error) error {
	expected := reason == nil

	terminated := protocol.TerminatedResponse(!expected)
	if err := s.channel.Send(&terminated); err != nil && s.log != nil {
		s.log.Debugf("%s: failed to deliver final Terminated response: %v", s.sid, err)
	}

	s.channel.Detach()
	if err := s.channel.Shutdown(); err != nil && s.log != nil {
		s.log.Errorf("%s: failed to shut down session socket: %v", s.sid, err)
	}

	notifyErr := s.sendEvent(SessionEvent{Sid: s.sid, Kind: EvtTerminated, Expected: expected})
	if notifyErr != nil && s.log != nil {
		s.log.Errorf("%s: failed to notify server about termination: %v", s.sid, notifyErr)
	}

	s.run = false
	return reason
}

// Timestamp returns the session's creation time.
func (h *Handle) Timestamp() time.Time { return h.timestamp }

// Alias returns the session's current alias.
func (h *Handle) Alias() protocol.Alias { return h.alias }

// SetAlias reassigns the session's alias.
func (h *Handle) SetAlias(a protocol.Alias) { h.alias = a }

// IsDetached reports the server's cached view of whether the session
// currently has no attached client. It is only ever written by the server
// in response to a ClientDetached event or a successful Attach call.
func (h *Handle) IsDetached() bool { return h.detached }

// SetDetached updates the server's cached detached flag.
func (h *Handle) SetDetached(d bool) { h.detached = d }

// Terminate asks the session to terminate, forced or not. The event channel
// is bounded; a full channel blocks the caller rather than dropping the
// request, giving the server natural backpressure.
func (h *Handle) Terminate(forced bool) error {
	h.tx <- RequestTermination(forced)
	return nil
}

// Attach offers a freshly accepted channel to the session for attachment.
// The caller must already know the session is detached; Attach clears the
// handle's cached detached flag on success.
func (h *Handle) Attach(c *controlChannel) error {
	if !h.detached {
		return fmt.Errorf("session: attach called on a handle that is not marked detached")
	}
	h.tx <- AttachRequest(c)
	h.detached = false
	return nil
}

// Join blocks until the session task has fully stopped and returns its
// termination reason (nil for a graceful termination).
func (h *Handle) Join() error {
	return <-h.done
}
