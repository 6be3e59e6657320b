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

package channel_test

import (
	"time"

	"github.com/nabbar/hxd/channel"
	"github.com/nabbar/hxd/protocol"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DetachableChannel", func() {
	var cleanup func()

	AfterEach(func() {
		if cleanup != nil {
			cleanup()
			cleanup = nil
		}
	})

	It("starts detached (nil Recv channel) and rejects Send", func() {
		d := &channel.DetachableChannel[protocol.SessionResponse, protocol.SessionRequest]{}
		Expect(d.IsAttached()).To(BeFalse())
		Expect(d.Recv()).To(BeNil())

		rsp := protocol.SessionOkResponse()
		Expect(d.Send(&rsp)).To(MatchError(channel.ErrSendOnDetached))
	})

	It("delivers a message received while attached and reports an expected detach as a nil Msg/Err result", func() {
		serverConn, clientConn, cl := socketPair(GinkgoT())
		cleanup = cl

		serverSide := channel.New[protocol.SessionResponse, protocol.SessionRequest](serverConn)
		d := channel.IntoDetachable[protocol.SessionResponse, protocol.SessionRequest](serverSide)
		Expect(d.IsAttached()).To(BeTrue())

		clientSide := channel.New[protocol.SessionRequest, protocol.SessionResponse](clientConn)

		req := protocol.TerminateRequest()
		Expect(clientSide.Send(&req)).To(Succeed())

		var r channel.RecvResult[protocol.SessionRequest]
		Eventually(d.Recv()).Should(Receive(&r))
		d.Consume(r)
		Expect(r.Err).ToNot(HaveOccurred())
		Expect(r.Msg).ToNot(BeNil())
		Expect(r.Msg.Variant).To(Equal(protocol.SessReqTerminate))

		// Mark the channel as detaching, then have the peer close its end:
		// the next read must surface as an expected detach (nil Msg, nil Err)
		// rather than ErrUnexpectedDisconnect.
		d.Detach()
		Expect(clientSide.Shutdown()).To(Succeed())

		var r2 channel.RecvResult[protocol.SessionRequest]
		Eventually(d.Recv(), time.Second).Should(Receive(&r2))
		Expect(r2.Msg).To(BeNil())
		Expect(r2.Err).ToNot(HaveOccurred())

		d.Consume(r2)
		Expect(d.IsAttached()).To(BeFalse())
		Expect(d.Recv()).To(BeNil())
	})

	It("surfaces an unannounced peer close as ErrUnexpectedDisconnect", func() {
		serverConn, clientConn, cl := socketPair(GinkgoT())
		cleanup = cl

		serverSide := channel.New[protocol.SessionResponse, protocol.SessionRequest](serverConn)
		d := channel.IntoDetachable[protocol.SessionResponse, protocol.SessionRequest](serverSide)

		clientSide := channel.New[protocol.SessionRequest, protocol.SessionResponse](clientConn)
		Expect(clientSide.Shutdown()).To(Succeed())

		var r channel.RecvResult[protocol.SessionRequest]
		Eventually(d.Recv(), time.Second).Should(Receive(&r))
		Expect(r.Msg).To(BeNil())
		Expect(r.Err).To(MatchError(channel.ErrUnexpectedDisconnect))
	})

	It("rejects Attach when already attached, shutting down the offered channel", func() {
		serverConn, clientConn, cl := socketPair(GinkgoT())
		cleanup = cl

		serverSide := channel.New[protocol.SessionResponse, protocol.SessionRequest](serverConn)
		d := channel.IntoDetachable[protocol.SessionResponse, protocol.SessionRequest](serverSide)

		otherConn, otherClient, cl2 := socketPair(GinkgoT())
		_ = otherClient
		cleanup = func() {
			cl()
			cl2()
		}

		offered := channel.New[protocol.SessionResponse, protocol.SessionRequest](otherConn)
		err := d.Attach(offered)
		Expect(err).To(MatchError(channel.ErrOccupied))

		// The offered channel was shut down: its peer reads end-of-stream.
		_, readErr := otherClient.Read(make([]byte, 16))
		Expect(readErr).To(HaveOccurred())

		_ = clientConn
	})
})
