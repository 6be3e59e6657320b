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

// Package protocol defines the wire types exchanged between hxc and hxd: the
// session identifier and alias, the control request/response pair used
// before a session is attached, and the session-phase request/response pair
// used afterwards. Every value is encoded with the canonical CBOR mode, so
// that equal values always produce equal bytes.
package protocol

import (
	"fmt"
	"time"
)

// SessionId is a nonzero, monotonically increasing session identifier,
// assigned by the server starting at 1 and never reused within one daemon
// lifetime.
type SessionId uint64

// String renders a SessionId the way the daemon logs and the client prints it.
func (s SessionId) String() string {
	return fmt.Sprintf("session(%d)", uint64(s))
}

// aliasInlineCap is the common-case bound on an Alias: up to this length it
// is the expected common case, though longer aliases are still accepted.
const aliasInlineCap = 32

// Alias is a short, optional, human-assigned label for a session. It is
// bounded in the common case (aliasInlineCap bytes) but unbounded in
// principle: longer aliases are accepted, just not optimized for.
type Alias string

// IsInline reports whether the alias fits the common-case capacity.
func (a Alias) IsInline() bool {
	return len(a) <= aliasInlineCap
}

// Request is a control-plane message sent by the client before a session is
// established or in place of one (list/alias/kill/stop).
type Request struct {
	// Variant selects which of the fields below is meaningful. At most one
	// payload field is set per variant; NewSession and ListSessions carry
	// none.
	Variant RequestVariant `cbor:"0,keyasint"`

	AttachSession       *SessionId           `cbor:"1,keyasint,omitempty"`
	AttachSessionByName *Alias               `cbor:"2,keyasint,omitempty"`
	KillSession         *KillSessionRequest  `cbor:"3,keyasint,omitempty"`
	KillSessionByName   *KillByAliasRequest  `cbor:"4,keyasint,omitempty"`
	AliasSession        *AliasSessionRequest `cbor:"5,keyasint,omitempty"`
	StopServer          *StopServerRequest   `cbor:"6,keyasint,omitempty"`
}

// RequestVariant tags the logical request carried by a Request value.
type RequestVariant uint8

const (
	ReqNewSession RequestVariant = iota
	ReqAttachSession
	ReqAttachSessionByAlias
	ReqKillSession
	ReqKillSessionByAlias
	ReqAliasSession
	ReqListSessions
	ReqStopServer
)

// KillSessionRequest carries the payload of a KillSession request.
type KillSessionRequest struct {
	Sid   SessionId `cbor:"0,keyasint"`
	Force bool      `cbor:"1,keyasint"`
}

// KillByAliasRequest carries the payload of a KillSessionByAlias request.
type KillByAliasRequest struct {
	Alias Alias `cbor:"0,keyasint"`
	Force bool  `cbor:"1,keyasint"`
}

// AliasSessionRequest carries the payload of an AliasSession request.
type AliasSessionRequest struct {
	Sid   SessionId `cbor:"0,keyasint"`
	Alias Alias     `cbor:"1,keyasint"`
}

// StopServerRequest carries the payload of a StopServer request.
type StopServerRequest struct {
	Force bool `cbor:"0,keyasint"`
}

// NewSessionRequest builds the zero-payload NewSession request.
func NewSessionRequest() Request { return Request{Variant: ReqNewSession} }

// NewAttachSessionRequest builds an AttachSession(sid) request.
func NewAttachSessionRequest(sid SessionId) Request {
	return Request{Variant: ReqAttachSession, AttachSession: &sid}
}

// NewAttachSessionByAliasRequest builds an AttachSessionByAlias(alias) request.
func NewAttachSessionByAliasRequest(a Alias) Request {
	return Request{Variant: ReqAttachSessionByAlias, AttachSessionByName: &a}
}

// NewKillSessionRequest builds a KillSession{sid,force} request.
func NewKillSessionRequest(sid SessionId, force bool) Request {
	return Request{Variant: ReqKillSession, KillSession: &KillSessionRequest{Sid: sid, Force: force}}
}

// NewKillSessionByAliasRequest builds a KillSessionByAlias{alias,force} request.
func NewKillSessionByAliasRequest(a Alias, force bool) Request {
	return Request{Variant: ReqKillSessionByAlias, KillSessionByName: &KillByAliasRequest{Alias: a, Force: force}}
}

// NewAliasSessionRequest builds an AliasSession{sid,alias} request.
func NewAliasSessionRequest(sid SessionId, a Alias) Request {
	return Request{Variant: ReqAliasSession, AliasSession: &AliasSessionRequest{Sid: sid, Alias: a}}
}

// NewListSessionsRequest builds the zero-payload ListSessions request.
func NewListSessionsRequest() Request { return Request{Variant: ReqListSessions} }

// NewStopServerRequest builds a StopServer{force} request.
func NewStopServerRequest(force bool) Request {
	return Request{Variant: ReqStopServer, StopServer: &StopServerRequest{Force: force}}
}

// SessionInfo is one row of a ListSessions response: the identity, creation
// time and alias of a live session.
type SessionInfo struct {
	Sid       SessionId `cbor:"0,keyasint"`
	Timestamp time.Time `cbor:"1,keyasint"`
	Alias     Alias     `cbor:"2,keyasint"`
}

// Response is a control-plane reply sent by the server.
type Response struct {
	Variant      ResponseVariant `cbor:"0,keyasint"`
	NewSession   *SessionId      `cbor:"1,keyasint,omitempty"`
	ListSessions []SessionInfo   `cbor:"2,keyasint,omitempty"`
}

// ResponseVariant tags the logical response carried by a Response value.
type ResponseVariant uint8

const (
	RspNewSession ResponseVariant = iota
	RspListSessions
	RspOk
	RspErr
)

// NewSessionResponse builds the NewSession(sid) response, also used as the
// success reply to an attach request.
func NewSessionResponse(sid SessionId) Response {
	return Response{Variant: RspNewSession, NewSession: &sid}
}

// NewListSessionsResponse builds a ListSessions(...) response.
func NewListSessionsResponse(sessions []SessionInfo) Response {
	return Response{Variant: RspListSessions, ListSessions: sessions}
}

// OkResponse is the generic success reply.
func OkResponse() Response { return Response{Variant: RspOk} }

// ErrResponse is the generic failure reply. The server never transmits the
// failure reason; it only logs it.
func ErrResponse() Response { return Response{Variant: RspErr} }

// SessionRequest is a session-phase message sent by the client once it is
// attached to a session.
type SessionRequest struct {
	Variant SessionRequestVariant `cbor:"0,keyasint"`
}

// SessionRequestVariant tags a SessionRequest.
type SessionRequestVariant uint8

const (
	SessReqTerminate SessionRequestVariant = iota
	SessReqDetach
)

// TerminateRequest asks the session to terminate gracefully.
func TerminateRequest() SessionRequest { return SessionRequest{Variant: SessReqTerminate} }

// DetachRequest asks the session to detach the current client.
func DetachRequest() SessionRequest { return SessionRequest{Variant: SessReqDetach} }

// SessionResponse is a session-phase message sent by the server to an
// attached client.
type SessionResponse struct {
	Variant    SessionResponseVariant `cbor:"0,keyasint"`
	Terminated *bool                  `cbor:"1,keyasint,omitempty"`
}

// SessionResponseVariant tags a SessionResponse.
type SessionResponseVariant uint8

const (
	SessRspTerminated SessionResponseVariant = iota
	SessRspOk
	SessRspErr
)

// TerminatedResponse builds a Terminated(forced) response.
func TerminatedResponse(forced bool) SessionResponse {
	return SessionResponse{Variant: SessRspTerminated, Terminated: &forced}
}

// SessionOkResponse is the session-phase placeholder success reply.
func SessionOkResponse() SessionResponse { return SessionResponse{Variant: SessRspOk} }

// SessionErrResponse is the session-phase placeholder failure reply.
func SessionErrResponse() SessionResponse { return SessionResponse{Variant: SessRspErr} }
