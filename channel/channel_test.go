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
	"github.com/nabbar/hxd/channel"
	"github.com/nabbar/hxd/protocol"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Channel", func() {
	var cleanup func()

	AfterEach(func() {
		if cleanup != nil {
			cleanup()
			cleanup = nil
		}
	})

	It("round-trips a request/response pair over a real unixpacket socket", func() {
		serverConn, clientConn, cl := socketPair(GinkgoT())
		cleanup = cl

		serverSide := channel.New[protocol.Response, protocol.Request](serverConn)
		clientSide := channel.New[protocol.Request, protocol.Response](clientConn)

		req := protocol.NewSessionRequest()
		Expect(clientSide.Send(&req)).To(Succeed())

		got, err := serverSide.Recv()
		Expect(err).ToNot(HaveOccurred())
		Expect(got.Variant).To(Equal(protocol.ReqNewSession))

		rsp := protocol.NewSessionResponse(protocol.SessionId(7))
		Expect(serverSide.Send(&rsp)).To(Succeed())

		gotRsp, err := clientSide.Recv()
		Expect(err).ToNot(HaveOccurred())
		Expect(gotRsp.Variant).To(Equal(protocol.RspNewSession))
		Expect(*gotRsp.NewSession).To(Equal(protocol.SessionId(7)))

		Expect(serverSide.Shutdown()).To(Succeed())
	})

	It("Reuse retargets an existing socket without exchanging bytes", func() {
		serverConn, clientConn, cl := socketPair(GinkgoT())
		cleanup = cl

		serverSide := channel.New[protocol.Response, protocol.Request](serverConn)
		clientSide := channel.New[protocol.Request, protocol.Response](clientConn)

		sessionServerSide := channel.Reuse[protocol.SessionResponse, protocol.SessionRequest](serverSide)
		sessionClientSide := channel.Reuse[protocol.SessionRequest, protocol.SessionResponse](clientSide)

		req := protocol.TerminateRequest()
		Expect(sessionClientSide.Send(&req)).To(Succeed())

		got, err := sessionServerSide.Recv()
		Expect(err).ToNot(HaveOccurred())
		Expect(got.Variant).To(Equal(protocol.SessReqTerminate))
	})
})
