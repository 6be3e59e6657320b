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

package client_test

import (
	"time"

	"github.com/nabbar/hxd/client"
	"github.com/nabbar/hxd/protocol"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type runResult struct {
	code int
	err  error
}

var _ = Describe("Client", func() {
	var cleanup func()

	AfterEach(func() {
		if cleanup != nil {
			cleanup()
			cleanup = nil
		}
	})

	It("starts a session and the session client exits 0 on an unforced kill", func() {
		addr, cl := startTestServer()
		cleanup = cl

		c, err := client.Connect(addr)
		Expect(err).ToNot(HaveOccurred())

		sc, err := c.StartSession()
		Expect(err).ToNot(HaveOccurred())
		sid := sc.Sid()

		results := make(chan runResult, 1)
		go func() {
			defer GinkgoRecover()
			code, runErr := sc.Run()
			results <- runResult{code, runErr}
		}()

		killer, err := client.Connect(addr)
		Expect(err).ToNot(HaveOccurred())
		Expect(killer.KillSession(sid, false)).To(Succeed())

		var r runResult
		Eventually(results, time.Second).Should(Receive(&r))
		Expect(r.err).ToNot(HaveOccurred())
		Expect(r.code).To(Equal(0))
	})

	It("exits 1 when the session is force-killed", func() {
		addr, cl := startTestServer()
		cleanup = cl

		c, err := client.Connect(addr)
		Expect(err).ToNot(HaveOccurred())

		sc, err := c.StartSession()
		Expect(err).ToNot(HaveOccurred())
		sid := sc.Sid()

		results := make(chan runResult, 1)
		go func() {
			defer GinkgoRecover()
			code, runErr := sc.Run()
			results <- runResult{code, runErr}
		}()

		killer, err := client.Connect(addr)
		Expect(err).ToNot(HaveOccurred())
		Expect(killer.KillSession(sid, true)).To(Succeed())

		var r runResult
		Eventually(results, time.Second).Should(Receive(&r))
		Expect(r.err).ToNot(HaveOccurred())
		Expect(r.code).To(Equal(1))
	})

	It("aliases a session and lists it back", func() {
		addr, cl := startTestServer()
		cleanup = cl

		c, err := client.Connect(addr)
		Expect(err).ToNot(HaveOccurred())
		sc, err := c.StartSession()
		Expect(err).ToNot(HaveOccurred())
		sid := sc.Sid()

		admin, err := client.Connect(addr)
		Expect(err).ToNot(HaveOccurred())
		Expect(admin.AliasSession(sid, protocol.Alias("build"))).To(Succeed())

		lister, err := client.Connect(addr)
		Expect(err).ToNot(HaveOccurred())
		sessions, err := lister.ListSessions()
		Expect(err).ToNot(HaveOccurred())
		Expect(sessions).To(HaveLen(1))
		Expect(sessions[0].Sid).To(Equal(sid))
		Expect(sessions[0].Alias).To(Equal(protocol.Alias("build")))

		Expect(sc.Detach()).To(Succeed())
	})

	It("stops the server", func() {
		addr, cl := startTestServer()
		cleanup = cl

		c, err := client.Connect(addr)
		Expect(err).ToNot(HaveOccurred())
		Expect(c.StopServer(false)).To(Succeed())
	})

	It("reports a server error when killing an unknown session id", func() {
		addr, cl := startTestServer()
		cleanup = cl

		c, err := client.Connect(addr)
		Expect(err).ToNot(HaveOccurred())
		err = c.KillSession(protocol.SessionId(12345), false)
		Expect(err).To(HaveOccurred())
	})
})
