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

package session

import (
	"github.com/nabbar/hxd/channel"
	"github.com/nabbar/hxd/protocol"
)

// sessionChannel is the detachable channel type a Session owns: it answers
// SessionResponse messages to SessionRequest messages sent by the client.
type sessionChannel = channel.DetachableChannel[protocol.SessionResponse, protocol.SessionRequest]

// controlChannel is the type of the channel the server hands to a session on
// attach: a freshly accepted connection already retargeted to session-phase
// messages, not yet wrapped in a DetachableChannel.
type controlChannel = channel.Channel[protocol.SessionResponse, protocol.SessionRequest]

// ServerEventKind tags the variant carried by a ServerEvent.
type ServerEventKind uint8

const (
	// EvtRequestTermination asks the session to terminate.
	EvtRequestTermination ServerEventKind = iota
	// EvtAttachRequest offers a freshly accepted channel to attach.
	EvtAttachRequest
)

// ServerEvent is a message sent by the server to a session task.
type ServerEvent struct {
	Kind ServerEventKind

	// Forced is meaningful for EvtRequestTermination.
	Forced bool

	// Channel is meaningful for EvtAttachRequest.
	Channel *controlChannel
}

// RequestTermination builds a termination request event.
func RequestTermination(forced bool) ServerEvent {
	return ServerEvent{Kind: EvtRequestTermination, Forced: forced}
}

// AttachRequest builds an attach-request event carrying the freshly
// accepted channel to attach.
func AttachRequest(c *controlChannel) ServerEvent {
	return ServerEvent{Kind: EvtAttachRequest, Channel: c}
}

// SessionEventKind tags the variant carried by a SessionEvent.
type SessionEventKind uint8

const (
	// EvtTerminated reports that the session task has stopped.
	EvtTerminated SessionEventKind = iota
	// EvtClientDetached reports that the client asked to detach.
	EvtClientDetached
)

// SessionEvent is a message sent by a session task to the server.
type SessionEvent struct {
	Sid  protocol.SessionId
	Kind SessionEventKind

	// Expected is meaningful for EvtTerminated: true if the session closed
	// itself down gracefully (client Terminate, or an unforced
	// RequestTermination), false if it closed because of an error (a
	// forced RequestTermination, or an unexpected client disconnect).
	Expected bool
}
