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

// Package sigutil re-raises a signal's default disposition after a
// cooperative shutdown handler has run, shared by hxd and hxc so both exit
// the way they would have with no handler installed at all.
package sigutil

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// ReraiseDefault restores sig's default disposition, stops delivering it to
// sigCh, and re-sends it to the current process -- the Go equivalent of
// signal_hook::low_level::emulate_default_handler.
func ReraiseDefault(sigCh chan os.Signal, sig os.Signal) {
	signal.Stop(sigCh)
	signal.Reset(sig)

	s, ok := sig.(syscall.Signal)
	if !ok {
		return
	}
	_ = unix.Kill(os.Getpid(), s)
}
