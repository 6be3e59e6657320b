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

package session_test

import (
	"time"

	"github.com/nabbar/hxd/channel"
	"github.com/nabbar/hxd/protocol"
	"github.com/nabbar/hxd/session"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Session", func() {
	var cleanup func()

	AfterEach(func() {
		if cleanup != nil {
			cleanup()
			cleanup = nil
		}
	})

	It("terminates gracefully when the client sends Terminate", func() {
		srv, cli, cl := newAttachedSessionChannel()
		cleanup = cl

		events := make(chan session.SessionEvent, 10)
		h := session.Spawn(protocol.SessionId(1), srv, events, nil)

		req := protocol.TerminateRequest()
		Expect(cli.Send(&req)).To(Succeed())

		rsp, err := cli.Recv()
		Expect(err).ToNot(HaveOccurred())
		Expect(rsp.Variant).To(Equal(protocol.SessRspTerminated))
		Expect(*rsp.Terminated).To(BeFalse())

		var ev session.SessionEvent
		Eventually(events, time.Second).Should(Receive(&ev))
		Expect(ev.Sid).To(Equal(protocol.SessionId(1)))
		Expect(ev.Kind).To(Equal(session.EvtTerminated))
		Expect(ev.Expected).To(BeTrue())

		Expect(h.Join()).To(Succeed())
	})

	It("terminates with ErrForcedTermination and Terminated(true) when the server forces termination", func() {
		srv, cli, cl := newAttachedSessionChannel()
		cleanup = cl

		events := make(chan session.SessionEvent, 10)
		h := session.Spawn(protocol.SessionId(2), srv, events, nil)

		Expect(h.Terminate(true)).To(Succeed())

		rsp, err := cli.Recv()
		Expect(err).ToNot(HaveOccurred())
		Expect(rsp.Variant).To(Equal(protocol.SessRspTerminated))
		Expect(*rsp.Terminated).To(BeTrue())

		var ev session.SessionEvent
		Eventually(events, time.Second).Should(Receive(&ev))
		Expect(ev.Kind).To(Equal(session.EvtTerminated))
		Expect(ev.Expected).To(BeFalse())

		Expect(h.Join()).To(MatchError(session.ErrForcedTermination))
	})

	It("terminates gracefully when the server requests an unforced termination", func() {
		srv, cli, cl := newAttachedSessionChannel()
		cleanup = cl

		events := make(chan session.SessionEvent, 10)
		h := session.Spawn(protocol.SessionId(3), srv, events, nil)

		Expect(h.Terminate(false)).To(Succeed())

		rsp, err := cli.Recv()
		Expect(err).ToNot(HaveOccurred())
		Expect(*rsp.Terminated).To(BeFalse())

		Expect(h.Join()).To(Succeed())
	})

	It("handles Detach and a later reattach without terminating the session", func() {
		srv, cli, cl := newAttachedSessionChannel()
		cleanup = cl

		events := make(chan session.SessionEvent, 10)
		h := session.Spawn(protocol.SessionId(4), srv, events, nil)

		req := protocol.DetachRequest()
		Expect(cli.Send(&req)).To(Succeed())

		var ev session.SessionEvent
		Eventually(events, time.Second).Should(Receive(&ev))
		Expect(ev.Kind).To(Equal(session.EvtClientDetached))
		h.SetDetached(true)

		// The first client's orderly close completes the detach. Give the
		// session's background reader a moment to observe the EOF and settle
		// into the fully Detached state before offering a new channel.
		Expect(cli.Shutdown()).To(Succeed())
		time.Sleep(50 * time.Millisecond)

		// Attach a fresh channel and confirm the session is still alive.
		serverConn2, clientConn2, cl2 := socketPair()
		cleanup = func() {
			cl()
			cl2()
		}
		offered := channel.New[protocol.SessionResponse, protocol.SessionRequest](serverConn2)
		Expect(h.Attach(offered)).To(Succeed())
		Expect(h.IsDetached()).To(BeFalse())

		cli2 := channel.New[protocol.SessionRequest, protocol.SessionResponse](clientConn2)
		req2 := protocol.TerminateRequest()
		Expect(cli2.Send(&req2)).To(Succeed())

		rsp, err := cli2.Recv()
		Expect(err).ToNot(HaveOccurred())
		Expect(rsp.Variant).To(Equal(protocol.SessRspTerminated))

		Expect(h.Join()).To(Succeed())
	})

	It("rejects Attach via the handle's own guard when not marked detached", func() {
		srv, cli, cl := newAttachedSessionChannel()
		cleanup = cl

		events := make(chan session.SessionEvent, 10)
		h := session.Spawn(protocol.SessionId(5), srv, events, nil)
		Expect(h.IsDetached()).To(BeFalse())

		serverConn2, _, cl2 := socketPair()
		cleanup = func() {
			cl()
			cl2()
		}
		offered := channel.New[protocol.SessionResponse, protocol.SessionRequest](serverConn2)

		err := h.Attach(offered)
		Expect(err).To(HaveOccurred())

		// The original channel is unaffected.
		Expect(h.Terminate(false)).To(Succeed())
		rsp, recvErr := cli.Recv()
		Expect(recvErr).ToNot(HaveOccurred())
		Expect(rsp.Variant).To(Equal(protocol.SessRspTerminated))

		Expect(h.Join()).To(Succeed())
	})
})
