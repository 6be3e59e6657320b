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

package server

import "net"

// acceptResult is one outcome of a UnixListener.AcceptUnix call, carried
// across the accept goroutine boundary so Run's select loop can treat
// "a new connection arrived" as just another channel source.
type acceptResult struct {
	conn *net.UnixConn
	err  error
}

// acceptLoop repeatedly accepts connections on ln and reports each one
// (or the terminal error once the listener is closed) on out. It exits
// after the first error, since that is the listener having been closed by
// Server.cleanup.
func acceptLoop(ln *net.UnixListener, out chan<- acceptResult) {
	for {
		conn, err := ln.AcceptUnix()
		out <- acceptResult{conn: conn, err: err}
		if err != nil {
			return
		}
	}
}
