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

// Command hxc is the session client: a one-shot administrative request, or
// an interactive attachment to a new or existing session.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/nabbar/hxd/client"
	"github.com/nabbar/hxd/internal/logging"
	"github.com/nabbar/hxd/internal/version"
	"github.com/nabbar/hxd/protocol"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// helpText prints the full flag surface this binary accepts.
func helpText() string {
	return fmt.Sprintf(`hxc %s
helix session client

USAGE:
    hxc [FLAGS]

FLAGS:
    -h, --help                  Prints help information
    -V, --version                Prints version information
    -v[vv] FILENAME               Increase logging verbosity each use for up to 3 times
    -f, --force                  Do not wait for sessions to quit gracefully
    -s, --stop                   Stops the daemon, and quits all sessions
    -k, --kill {ID|NAME}          Kills the client session
    -a, --attach {ID|NAME}        Attaches to an existing client session
    -A, --alias ID NAME           Sets the alias of the client session
    -l, --list                    List client sessions

With no command, a new session is started.
`, version.Version)
}

// target disambiguates an ID|NAME CLI argument: a nonzero unsigned integer
// is a SessionId, anything else is an Alias.
type target struct {
	sid     protocol.SessionId
	alias   protocol.Alias
	byAlias bool
}

func parseTarget(s string) target {
	if id, err := strconv.ParseUint(s, 10, 64); err == nil && id != 0 {
		return target{sid: protocol.SessionId(id)}
	}
	return target{alias: protocol.Alias(s), byAlias: true}
}

type verbosity struct {
	level    int
	filename string
}

type args struct {
	help     bool
	version  bool
	verbose  *verbosity
	force    bool
	stop     bool
	kill     *target
	attach   *target
	alias    *aliasArgs
	list     bool
}

type aliasArgs struct {
	sid   protocol.SessionId
	alias protocol.Alias
}

// parseArgs hand-scans argv instead of using a flag library: several flags
// here take a fixed number of trailing values (-v[vv] FILENAME, -A ID NAME,
// the {ID|NAME} argument to -k/-a), a shape pflag's one-value-per-flag model
// does not comfortably express.
func parseArgs(argv []string) (*args, error) {
	a := &args{}
	i := 0
	next := func(what string) (string, error) {
		if i >= len(argv) {
			return "", fmt.Errorf("hxc: expected %s", what)
		}
		v := argv[i]
		i++
		return v, nil
	}

	for i < len(argv) {
		arg := argv[i]
		i++
		switch {
		case arg == "-h" || arg == "--help":
			a.help = true
		case arg == "-V" || arg == "--version":
			a.version = true
		case arg == "-f" || arg == "--force":
			a.force = true
		case arg == "-s" || arg == "--stop":
			a.stop = true
		case arg == "-l" || arg == "--list":
			a.list = true
		case arg == "-k" || arg == "--kill":
			v, err := next("session id or name")
			if err != nil {
				return nil, err
			}
			t := parseTarget(v)
			a.kill = &t
		case arg == "-a" || arg == "--attach":
			v, err := next("session id or name")
			if err != nil {
				return nil, err
			}
			t := parseTarget(v)
			a.attach = &t
		case arg == "-A" || arg == "--alias":
			idStr, err := next("session id")
			if err != nil {
				return nil, err
			}
			id, err := strconv.ParseUint(idStr, 10, 64)
			if err != nil || id == 0 {
				return nil, fmt.Errorf("hxc: session id must be a nonzero number")
			}
			name, err := next("session alias")
			if err != nil {
				return nil, err
			}
			a.alias = &aliasArgs{sid: protocol.SessionId(id), alias: protocol.Alias(name)}
		case strings.HasPrefix(arg, "-v"):
			level := 1
			for _, ch := range arg[2:] {
				if ch != 'v' {
					return nil, fmt.Errorf("hxc: unexpected short argument %q", ch)
				}
				level++
			}
			filename, err := next("log file name")
			if err != nil {
				return nil, err
			}
			if strings.HasPrefix(filename, "-") {
				return nil, fmt.Errorf("hxc: expected log file name, but got %q", filename)
			}
			a.verbose = &verbosity{level: level, filename: filename}
		default:
			return nil, fmt.Errorf("hxc: unexpected argument %q", arg)
		}
	}
	return a, nil
}

func run(argv []string) int {
	a, err := parseArgs(argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if a.help {
		fmt.Print(helpText())
		return 0
	}
	if a.version {
		fmt.Printf("hxc %s\n", version.Version)
		return 0
	}

	if a.verbose != nil {
		logPath, err := logging.ClientLogPath(a.verbose.filename)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if _, err := logging.New(logPath, a.verbose.level); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	c, err := client.Connect(protocol.Addr())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	switch {
	case a.list:
		return doList(c)
	case a.kill != nil:
		return doKill(c, *a.kill, a.force)
	case a.stop:
		return doStop(c, a.force)
	case a.alias != nil:
		return doAlias(c, *a.alias)
	default:
		return doSession(c, a.attach)
	}
}

func doList(c *client.Client) int {
	sessions, err := c.ListSessions()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if len(sessions) == 0 {
		return 0
	}
	fmt.Printf("%-4s %-18s %-32s\n", "id", "connected", "alias")
	for _, s := range sessions {
		fmt.Printf("%-4d %-18s %-32s\n", s.Sid, s.Timestamp.Local().Format("2006-01-02 15:04"), s.Alias)
	}
	return 0
}

func doKill(c *client.Client, t target, force bool) int {
	var err error
	if t.byAlias {
		err = c.KillSessionByAlias(t.alias, force)
	} else {
		err = c.KillSession(t.sid, force)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if t.byAlias {
		fmt.Printf("session %s killed\n", t.alias)
	} else {
		fmt.Printf("session %d killed\n", t.sid)
	}
	return 0
}

func doStop(c *client.Client, force bool) int {
	if err := c.StopServer(force); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println("server stopped")
	return 0
}

func doAlias(c *client.Client, aa aliasArgs) int {
	if err := c.AliasSession(aa.sid, aa.alias); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("session %d aliased to %s\n", aa.sid, aa.alias)
	return 0
}

func doSession(c *client.Client, attach *target) int {
	var sc *client.SessionClient
	var err error

	switch {
	case attach == nil:
		sc, err = c.StartSession()
	case attach.byAlias:
		sc, err = c.AttachSessionByAlias(attach.alias)
	default:
		sc, err = c.AttachSession(attach.sid)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	code, err := sc.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return code
}
