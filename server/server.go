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

// Package server implements the daemon side of the protocol: it listens on
// a "unixpacket" socket, keeps a registry of live sessions, dispatches every
// control-plane Request variant, and shuts the registry down on SIGINT or
// SIGTERM.
package server

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/nabbar/hxd/channel"
	"github.com/nabbar/hxd/internal/sigutil"
	"github.com/nabbar/hxd/protocol"
	"github.com/nabbar/hxd/session"
)

// eventsChanCap bounds the session->server event channel.
const eventsChanCap = 10

// Server is the daemon's main task: one listener, one signal subscription,
// one session registry, driven by a single biased select loop.
type Server struct {
	addr string
	ln   *net.UnixListener

	sigCh  chan os.Signal
	connCh chan acceptResult
	events chan session.SessionEvent

	nextSid  uint64
	sessions map[protocol.SessionId]*session.Handle

	run bool
	log *logrus.Logger
}

// New binds a listener on addr ("unixpacket") and subscribes to SIGINT and
// SIGTERM.
func New(addr string, log *logrus.Logger) (*Server, error) {
	resolved, err := net.ResolveUnixAddr("unixpacket", addr)
	if err != nil {
		return nil, fmt.Errorf("server: failed to resolve address %q: %w", addr, err)
	}

	ln, err := net.ListenUnix("unixpacket", resolved)
	if err != nil {
		return nil, fmt.Errorf("server: failed to bind to server address: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return &Server{
		addr:     addr,
		ln:       ln,
		sigCh:    sigCh,
		connCh:   make(chan acceptResult, 1),
		events:   make(chan session.SessionEvent, eventsChanCap),
		sessions: make(map[protocol.SessionId]*session.Handle),
		run:      true,
		log:      log,
	}, nil
}

// Run drives the server's main loop until a terminating signal or a
// StopServer request is processed, then cleans up and returns the process
// exit code.
func (s *Server) Run() (int, error) {
	go acceptLoop(s.ln, s.connCh)

	for s.run {
		// Pass 1: non-blocking, in priority order -- signals first, then
		// new connections, then session events -- so a pending signal is
		// always handled before anything else is drained this iteration.
		select {
		case sig := <-s.sigCh:
			return s.handleSignal(sig)
		default:
		}
		select {
		case ar := <-s.connCh:
			s.handleAccept(ar)
			continue
		default:
		}
		select {
		case ev := <-s.events:
			s.handleEvent(ev)
			continue
		default:
		}

		// Pass 2: nothing was immediately ready; block on all three.
		select {
		case sig := <-s.sigCh:
			return s.handleSignal(sig)
		case ar := <-s.connCh:
			s.handleAccept(ar)
		case ev := <-s.events:
			s.handleEvent(ev)
		}
	}

	s.cleanup()
	return 0, nil
}

// cleanup best-effort unlinks the socket file and closes the listener, which
// ends acceptLoop. Called on every exit path.
func (s *Server) cleanup() {
	if err := os.Remove(s.addr); err != nil && s.log != nil {
		s.log.Errorf("failed to unlink socket file (%s): %v", s.addr, err)
	}
	_ = s.ln.Close()
}

func (s *Server) handleSignal(sig os.Signal) (int, error) {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM:
		for sid, h := range s.sessions {
			_ = h.Terminate(true)
			if err := h.Join(); err != nil && s.log != nil {
				s.log.Errorf("%s: force terminated with: %v", sid, err)
			}
		}
		s.cleanup()
		sigutil.ReraiseDefault(s.sigCh, sig)
		return 0, nil
	default:
		return 0, fmt.Errorf("server: unexpected signal %v", sig)
	}
}

func (s *Server) handleAccept(ar acceptResult) {
	if ar.err != nil {
		if s.log != nil {
			s.log.Errorf("failed to accept new connection: %v", ar.err)
		}
		return
	}
	s.handleConnection(ar.conn)
}

// controlChannel is the control-plane Channel type used before a session is
// established: Request in, Response out.
type controlChannel = channel.Channel[protocol.Response, protocol.Request]

func (s *Server) handleConnection(conn *net.UnixConn) {
	ctl := channel.New[protocol.Response, protocol.Request](conn)

	req, err := ctl.Recv()
	if err != nil {
		if s.log != nil {
			s.log.Errorf("initial message exchange failed: %v", err)
		}
		_ = ctl.Shutdown()
		return
	}

	switch req.Variant {
	case protocol.ReqNewSession:
		s.handleNewSession(ctl)

	case protocol.ReqAttachSession:
		s.handleAttachSession(ctl, *req.AttachSession)

	case protocol.ReqAttachSessionByAlias:
		s.handleAttachSessionByAlias(ctl, *req.AttachSessionByName)

	case protocol.ReqAliasSession:
		s.handleAliasSession(ctl, req.AliasSession)

	case protocol.ReqListSessions:
		s.handleListSessions(ctl)

	case protocol.ReqKillSession:
		s.handleKillSession(ctl, req.KillSession)

	case protocol.ReqKillSessionByAlias:
		s.handleKillSessionByAlias(ctl, req.KillSessionByName)

	case protocol.ReqStopServer:
		s.handleStopServer(ctl, req.StopServer)

	default:
		if s.log != nil {
			s.log.Errorf("received unknown request variant %d", req.Variant)
		}
		s.sendErrAndShutdown(ctl)
	}
}

func (s *Server) handleNewSession(ctl *controlChannel) {
	s.nextSid++
	sid := protocol.SessionId(s.nextSid)

	rsp := protocol.NewSessionResponse(sid)
	if err := ctl.Send(&rsp); err != nil {
		if s.log != nil {
			s.log.Errorf("failed to send new session response: %v", err)
		}
		_ = ctl.Shutdown()
		return
	}

	sessCh := channel.Reuse[protocol.SessionResponse, protocol.SessionRequest](ctl)
	detachable := channel.IntoDetachable[protocol.SessionResponse, protocol.SessionRequest](sessCh)

	var entry *logrus.Entry
	if s.log != nil {
		entry = s.log.WithField("session", sid.String())
	}
	h := session.Spawn(sid, detachable, s.events, entry)
	s.sessions[sid] = h
}

func (s *Server) attach(ctl *controlChannel, sid protocol.SessionId, h *session.Handle) {
	rsp := protocol.NewSessionResponse(sid)
	if err := ctl.Send(&rsp); err != nil {
		if s.log != nil {
			s.log.Errorf("failed to send attach response: %v", err)
		}
		_ = ctl.Shutdown()
		return
	}

	sessCh := channel.Reuse[protocol.SessionResponse, protocol.SessionRequest](ctl)
	if err := h.Attach(sessCh); err != nil && s.log != nil {
		// FIXME: if the offered channel is not shut down on this path, the
		// client may be left hanging waiting for a response that never comes.
		s.log.Errorf("failed to send attach request to session: %v", err)
	}
}

func (s *Server) handleAttachSession(ctl *controlChannel, sid protocol.SessionId) {
	h, ok := s.sessions[sid]
	if !ok {
		if s.log != nil {
			s.log.Warnf("requested attach on %s which does not exist", sid)
		}
		s.sendErrAndShutdown(ctl)
		return
	}
	if !h.IsDetached() {
		if s.log != nil {
			s.log.Warnf("requested attach on %s which is occupied", sid)
		}
		s.sendErrAndShutdown(ctl)
		return
	}
	s.attach(ctl, sid, h)
}

func (s *Server) handleAttachSessionByAlias(ctl *controlChannel, alias protocol.Alias) {
	for sid, h := range s.sessions {
		if h.Alias() != alias {
			continue
		}
		if !h.IsDetached() {
			if s.log != nil {
				s.log.Warnf("requested attach on %s which is occupied", sid)
			}
			s.sendErrAndShutdown(ctl)
			return
		}
		s.attach(ctl, sid, h)
		return
	}

	if s.log != nil {
		s.log.Warnf("requested attach on %q which does not exist", string(alias))
	}
	s.sendErrAndShutdown(ctl)
}

func (s *Server) handleAliasSession(ctl *controlChannel, req *protocol.AliasSessionRequest) {
	if h, ok := s.sessions[req.Sid]; ok {
		h.SetAlias(req.Alias)
		s.sendOk(ctl)
	} else {
		if s.log != nil {
			s.log.Warn("alias request for non-existing session")
		}
		s.sendErr(ctl)
	}
	_ = ctl.Shutdown()
}

func (s *Server) handleListSessions(ctl *controlChannel) {
	infos := make([]protocol.SessionInfo, 0, len(s.sessions))
	for sid, h := range s.sessions {
		infos = append(infos, protocol.SessionInfo{
			Sid:       sid,
			Timestamp: h.Timestamp(),
			Alias:     h.Alias(),
		})
	}
	rsp := protocol.NewListSessionsResponse(infos)
	if err := ctl.Send(&rsp); err != nil && s.log != nil {
		s.log.Errorf("failed to send list sessions response: %v", err)
	}
	_ = ctl.Shutdown()
}

func (s *Server) handleKillSession(ctl *controlChannel, req *protocol.KillSessionRequest) {
	h, ok := s.sessions[req.Sid]
	if !ok {
		if s.log != nil {
			s.log.Warn("kill request for non-existing session")
		}
		s.sendErr(ctl)
		_ = ctl.Shutdown()
		return
	}
	if err := h.Terminate(req.Force); err != nil {
		if s.log != nil {
			s.log.Errorf("kill request for %s failed: %v", req.Sid, err)
		}
		s.sendErr(ctl)
	} else {
		s.sendOk(ctl)
	}
	_ = ctl.Shutdown()
}

func (s *Server) handleKillSessionByAlias(ctl *controlChannel, req *protocol.KillByAliasRequest) {
	for sid, h := range s.sessions {
		if h.Alias() != req.Alias {
			continue
		}
		if err := h.Terminate(req.Force); err != nil {
			if s.log != nil {
				s.log.Errorf("kill request for %s failed: %v", sid, err)
			}
			s.sendErr(ctl)
		} else {
			s.sendOk(ctl)
		}
		_ = ctl.Shutdown()
		return
	}

	if s.log != nil {
		s.log.Warnf("kill request for non-existing alias %q", string(req.Alias))
	}
	s.sendErr(ctl)
	_ = ctl.Shutdown()
}

func (s *Server) handleStopServer(ctl *controlChannel, req *protocol.StopServerRequest) {
	if s.log != nil {
		s.log.Info("stop request received")
	}

	for sid, h := range s.sessions {
		if err := h.Terminate(req.Force); err != nil && s.log != nil {
			s.log.Errorf("failed to terminate %s on stop request: %v", sid, err)
		}
	}
	// The registry is drained immediately, without waiting for the sessions
	// to actually join. Clearing the run flag below makes Run's loop exit
	// right after this returns, so the Terminated events these sessions send
	// afterwards are never read.
	s.sessions = make(map[protocol.SessionId]*session.Handle)

	s.sendOk(ctl)
	_ = ctl.Shutdown()
	s.run = false
}

func (s *Server) handleEvent(ev session.SessionEvent) {
	switch ev.Kind {
	case session.EvtTerminated:
		h := s.sessions[ev.Sid]
		delete(s.sessions, ev.Sid)
		err := h.Join()
		if ev.Expected {
			if s.log != nil {
				s.log.Infof("%s: terminated", ev.Sid)
			}
		} else {
			if s.log != nil {
				s.log.Errorf("%s: terminated unexpectedly, reason: %v", ev.Sid, err)
			}
		}

	case session.EvtClientDetached:
		h := s.sessions[ev.Sid]
		h.SetDetached(true)
		if s.log != nil {
			s.log.Infof("%s: client detached", ev.Sid)
		}
	}
}

func (s *Server) sendOk(ctl *controlChannel) {
	rsp := protocol.OkResponse()
	if err := ctl.Send(&rsp); err != nil && s.log != nil {
		s.log.Errorf("failed to send ok response: %v", err)
	}
}

func (s *Server) sendErr(ctl *controlChannel) {
	rsp := protocol.ErrResponse()
	if err := ctl.Send(&rsp); err != nil && s.log != nil {
		s.log.Errorf("failed to send err response: %v", err)
	}
}

func (s *Server) sendErrAndShutdown(ctl *controlChannel) {
	s.sendErr(ctl)
	_ = ctl.Shutdown()
}
