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

// Package logging wires up the file-backed, level-filtered logrus logger
// shared by hxd and hxc: one sink, a level derived from a stackable -v
// flag, a text formatter carrying timestamp and level.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
)

// LevelFromVerbosity maps the stackable -v[vv] flag count onto a logrus
// level: 0 is warn, 1 is info, 2 is debug, 3 or more is trace.
func LevelFromVerbosity(v int) logrus.Level {
	switch {
	case v <= 0:
		return logrus.WarnLevel
	case v == 1:
		return logrus.InfoLevel
	case v == 2:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// CacheDir resolves the platform cache directory used for daemon and
// client log files, falling back to the user's home directory when
// os.UserCacheDir is unavailable, so a writable per-user directory is
// always found without requiring a config file to already exist.
func CacheDir() (string, error) {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "hxd"), nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("logging: failed to resolve cache directory: %w", err)
	}
	return filepath.Join(home, ".cache", "hxd"), nil
}

// New creates a logrus.Logger that writes to logPath (created, along with
// its parent directory, if necessary) at the given verbosity level.
func New(logPath string, verbosity int) (*logrus.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("logging: failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: failed to open log file %q: %w", logPath, err)
	}

	l := logrus.New()
	l.SetOutput(f)
	l.SetLevel(LevelFromVerbosity(verbosity))
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000",
	})
	return l, nil
}

// DaemonLogPath returns the fixed log path used by hxd.
func DaemonLogPath() (string, error) {
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "helix-daemon.log"), nil
}

// ClientLogPath returns the log path used by hxc for a user-supplied
// filename, appending ".log" if the caller did not already.
func ClientLogPath(filename string) (string, error) {
	if !strings.HasSuffix(filename, ".log") {
		filename += ".log"
	}
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filename), nil
}
