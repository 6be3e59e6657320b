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

// Command hxd is the session daemon: it binds the well-known control
// socket and multiplexes sessions behind it until a StopServer request or
// a signal tells it to quit.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nabbar/hxd/internal/logging"
	"github.com/nabbar/hxd/internal/version"
	"github.com/nabbar/hxd/protocol"
	"github.com/nabbar/hxd/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	var verbosity int
	exitCode := 0

	cmd := &cobra.Command{
		Use:           "hxd",
		Short:         "helix session daemon",
		Long:          "hxd owns a set of long-lived editor sessions behind a single control socket, handing a session to whichever hxc client attaches next.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			code, err := runDaemon(verbosity)
			exitCode = code
			return err
		},
	}
	cmd.Flags().CountVarP(&verbosity, "verbose", "v", "increase logging verbosity, up to three times (log file: $cache/helix-daemon.log)")
	// -v is taken by verbosity, so cobra's default version flag would get no
	// shorthand; declaring it here gives it -V and cobra still handles it.
	cmd.Flags().BoolP("version", "V", false, "print version information")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	return exitCode
}

func runDaemon(verbosity int) (int, error) {
	logPath, err := logging.DaemonLogPath()
	if err != nil {
		return 1, err
	}
	log, err := logging.New(logPath, verbosity)
	if err != nil {
		return 1, err
	}

	srv, err := server.New(protocol.Addr(), log)
	if err != nil {
		return 1, fmt.Errorf("hxd: failed to start: %w", err)
	}

	return srv.Run()
}
