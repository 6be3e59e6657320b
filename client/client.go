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

// Package client implements the hxc side of the protocol: a one-shot
// administrative exchange for every control-plane Request, and the
// interactive SessionClient loop used once attached to a session.
package client

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/nabbar/hxd/channel"
	"github.com/nabbar/hxd/protocol"
)

// Client holds the control-plane connection before a session is started or
// in place of one, for the one-shot administrative requests.
type Client struct {
	sigCh chan os.Signal
	ctl   *channel.Channel[protocol.Request, protocol.Response]
}

// Connect dials addr ("unixpacket") and subscribes to SIGINT and SIGTERM.
func Connect(addr string) (*Client, error) {
	raddr, err := net.ResolveUnixAddr("unixpacket", addr)
	if err != nil {
		return nil, fmt.Errorf("client: failed to resolve address %q: %w", addr, err)
	}
	conn, err := net.DialUnix("unixpacket", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("client: failed to connect: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return &Client{
		sigCh: sigCh,
		ctl:   channel.New[protocol.Request, protocol.Response](conn),
	}, nil
}

func sessionIdFromResponse(rsp protocol.Response) (protocol.SessionId, error) {
	switch rsp.Variant {
	case protocol.RspNewSession:
		return *rsp.NewSession, nil
	case protocol.RspErr:
		return 0, fmt.Errorf("client: server returned an error")
	default:
		return 0, fmt.Errorf("client: unexpected server response")
	}
}

func (c *Client) intoSessionClient(sid protocol.SessionId) *SessionClient {
	sessCh := channel.Reuse[protocol.SessionRequest, protocol.SessionResponse](c.ctl)
	detachable := channel.IntoDetachable[protocol.SessionRequest, protocol.SessionResponse](sessCh)
	return &SessionClient{
		sigCh:   c.sigCh,
		channel: detachable,
		sid:     sid,
		run:     true,
	}
}

// StartSession asks the server for a brand new session and transitions this
// Client into the resulting SessionClient.
func (c *Client) StartSession() (*SessionClient, error) {
	req := protocol.NewSessionRequest()
	if err := c.ctl.Send(&req); err != nil {
		return nil, err
	}
	rsp, err := c.ctl.Recv()
	if err != nil {
		return nil, err
	}
	sid, err := sessionIdFromResponse(rsp)
	if err != nil {
		return nil, err
	}
	return c.intoSessionClient(sid), nil
}

// AttachSession attaches to an existing session by id.
func (c *Client) AttachSession(sid protocol.SessionId) (*SessionClient, error) {
	req := protocol.NewAttachSessionRequest(sid)
	if err := c.ctl.Send(&req); err != nil {
		return nil, err
	}
	rsp, err := c.ctl.Recv()
	if err != nil {
		return nil, err
	}
	got, err := sessionIdFromResponse(rsp)
	if err != nil {
		return nil, err
	}
	return c.intoSessionClient(got), nil
}

// AttachSessionByAlias attaches to an existing session by its alias.
func (c *Client) AttachSessionByAlias(alias protocol.Alias) (*SessionClient, error) {
	req := protocol.NewAttachSessionByAliasRequest(alias)
	if err := c.ctl.Send(&req); err != nil {
		return nil, err
	}
	rsp, err := c.ctl.Recv()
	if err != nil {
		return nil, err
	}
	sid, err := sessionIdFromResponse(rsp)
	if err != nil {
		return nil, err
	}
	return c.intoSessionClient(sid), nil
}

// AliasSession sets a session's alias.
func (c *Client) AliasSession(sid protocol.SessionId, alias protocol.Alias) error {
	req := protocol.NewAliasSessionRequest(sid, alias)
	if err := c.ctl.Send(&req); err != nil {
		return err
	}
	rsp, err := c.ctl.Recv()
	if err != nil {
		return err
	}
	defer func() { _ = c.ctl.Shutdown() }()

	switch rsp.Variant {
	case protocol.RspOk:
		return nil
	case protocol.RspErr:
		return fmt.Errorf("client: server returned an error")
	default:
		return fmt.Errorf("client: unexpected server response")
	}
}

// ListSessions lists every live session known to the server.
func (c *Client) ListSessions() ([]protocol.SessionInfo, error) {
	req := protocol.NewListSessionsRequest()
	if err := c.ctl.Send(&req); err != nil {
		return nil, err
	}
	rsp, err := c.ctl.Recv()
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.ctl.Shutdown() }()

	switch rsp.Variant {
	case protocol.RspListSessions:
		return rsp.ListSessions, nil
	case protocol.RspErr:
		return nil, fmt.Errorf("client: server returned an error")
	default:
		return nil, fmt.Errorf("client: unexpected server response")
	}
}

// KillSession terminates a session by id.
func (c *Client) KillSession(sid protocol.SessionId, force bool) error {
	req := protocol.NewKillSessionRequest(sid, force)
	if err := c.ctl.Send(&req); err != nil {
		return err
	}
	rsp, err := c.ctl.Recv()
	if err != nil {
		return err
	}
	defer func() { _ = c.ctl.Shutdown() }()

	switch rsp.Variant {
	case protocol.RspOk:
		return nil
	case protocol.RspErr:
		return fmt.Errorf("client: server returned an error")
	default:
		return fmt.Errorf("client: unexpected server response")
	}
}

// KillSessionByAlias terminates a session by its alias.
func (c *Client) KillSessionByAlias(alias protocol.Alias, force bool) error {
	req := protocol.NewKillSessionByAliasRequest(alias, force)
	if err := c.ctl.Send(&req); err != nil {
		return err
	}
	rsp, err := c.ctl.Recv()
	if err != nil {
		return err
	}
	defer func() { _ = c.ctl.Shutdown() }()

	switch rsp.Variant {
	case protocol.RspOk:
		return nil
	case protocol.RspErr:
		return fmt.Errorf("client: server returned an error")
	default:
		return fmt.Errorf("client: unexpected server response")
	}
}

// StopServer asks the daemon to terminate every session and exit.
func (c *Client) StopServer(force bool) error {
	req := protocol.NewStopServerRequest(force)
	if err := c.ctl.Send(&req); err != nil {
		return err
	}
	rsp, err := c.ctl.Recv()
	if err != nil {
		return err
	}
	defer func() { _ = c.ctl.Shutdown() }()

	if rsp.Variant != protocol.RspOk {
		return fmt.Errorf("client: unexpected server response")
	}
	return nil
}
