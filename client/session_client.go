//go:build linux || darwin

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

package client

import (
	"os"
	"syscall"

	"github.com/nabbar/hxd/channel"
	"github.com/nabbar/hxd/internal/sigutil"
	"github.com/nabbar/hxd/protocol"
)

// SessionClient is the interactive loop hxc runs once attached to a
// session: it forwards SIGINT/SIGTERM as a graceful Terminate request and
// otherwise reacts to whatever the session sends back.
type SessionClient struct {
	sigCh   chan os.Signal
	channel *channel.DetachableChannel[protocol.SessionRequest, protocol.SessionResponse]
	sid     protocol.SessionId
	run     bool
}

// Sid returns the id of the attached session.
func (sc *SessionClient) Sid() protocol.SessionId { return sc.sid }

// Run drives the session loop until the session terminates or a signal
// forces an exit, returning the process exit code: 0 for a graceful
// termination, 1 if the session was force-terminated.
func (sc *SessionClient) Run() (int, error) {
	for sc.run {
		recvCh := sc.channel.Recv()

		// Pass 1: non-blocking, signals take priority over inbound
		// messages, so a pending signal is always handled before the next
		// session message this iteration.
		select {
		case sig := <-sc.sigCh:
			return sc.handleSignal(sig)
		default:
		}
		select {
		case r := <-recvCh:
			sc.channel.Consume(r)
			if code, err, done := sc.handleRecv(r); done {
				return code, err
			}
			continue
		default:
		}

		// Pass 2: nothing was immediately ready; block on both.
		select {
		case sig := <-sc.sigCh:
			return sc.handleSignal(sig)
		case r := <-recvCh:
			sc.channel.Consume(r)
			if code, err, done := sc.handleRecv(r); done {
				return code, err
			}
		}
	}
	return 0, nil
}

func (sc *SessionClient) handleRecv(r channel.RecvResult[protocol.SessionResponse]) (int, error, bool) {
	if r.Err != nil {
		code, err := sc.terminate(false, r.Err)
		return code, err, true
	}
	if r.Msg == nil {
		// Expected detach completion; nothing to act on.
		return 0, nil, false
	}

	switch r.Msg.Variant {
	case protocol.SessRspTerminated:
		code, err := sc.terminate(*r.Msg.Terminated, nil)
		return code, err, true
	case protocol.SessRspOk, protocol.SessRspErr:
		return 0, nil, false
	}
	return 0, nil, false
}

func (sc *SessionClient) handleSignal(sig os.Signal) (int, error) {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM:
		req := protocol.TerminateRequest()
		if err := sc.channel.Send(&req); err != nil {
			return 0, err
		}
		sigutil.ReraiseDefault(sc.sigCh, sig)
		return 0, nil
	default:
		return 0, nil
	}
}

// terminate runs the client-side termination protocol: shut the channel
// down and pick the exit code, unless reason is non-nil, in which case it
// is propagated as an error instead.
func (sc *SessionClient) terminate(forced bool, reason error) (int, error) {
	if reason != nil {
		return 0, reason
	}
	_ = sc.channel.Shutdown()
	sc.run = false
	if forced {
		return 1, nil
	}
	return 0, nil
}

// Detach asks the session to detach and closes the client's end
// immediately, without waiting for the session to acknowledge.
func (sc *SessionClient) Detach() error {
	req := protocol.DetachRequest()
	if err := sc.channel.Send(&req); err != nil {
		return err
	}
	_ = sc.channel.Shutdown()
	return nil
}
