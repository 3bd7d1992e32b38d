package proxy

import (
	"github.com/embermc/ember/pkg/proxy/message"
)

// ServerLoginPluginMessageEvent is fired when a backend server sends a login
// plugin message to the proxy on a channel the proxy does not handle itself.
// Subscribers may produce a response to send back to the server.
// The proxy answers the message negatively if no subscriber set a response.
type ServerLoginPluginMessageEvent struct {
	id         message.ChannelIdentifier
	contents   []byte
	sequenceID int
	serverConn *serverConnection

	result *ServerLoginPluginMessageResult
}

// Contents returns the contents of the login plugin message sent by the server.
func (e *ServerLoginPluginMessageEvent) Contents() []byte { return e.contents }

// SequenceID returns the sequence id of the login plugin message sent by the server.
func (e *ServerLoginPluginMessageEvent) SequenceID() int { return e.sequenceID }

// Channel returns the identifier of the channel the message was sent on.
func (e *ServerLoginPluginMessageEvent) Channel() message.ChannelIdentifier { return e.id }

// Connection returns the backend connection that received the message.
func (e *ServerLoginPluginMessageEvent) Connection() ServerConnection { return e.serverConn }

// Result returns the result of this event.
func (e *ServerLoginPluginMessageEvent) Result() *ServerLoginPluginMessageResult {
	if e.result == nil {
		return forbiddenServerLoginPluginMessageResult
	}
	return e.result
}

// SetResult sets the result of this event.
func (e *ServerLoginPluginMessageEvent) SetResult(result *ServerLoginPluginMessageResult) {
	e.result = result
}

var forbiddenServerLoginPluginMessageResult = &ServerLoginPluginMessageResult{}

// ServerLoginPluginMessageResult is the result of a ServerLoginPluginMessageEvent.
type ServerLoginPluginMessageResult struct {
	// Response is the response to send to the server.
	// A nil response answers the message negatively.
	Response []byte
}

// Allowed returns true if a response will be sent to the server.
func (r *ServerLoginPluginMessageResult) Allowed() bool { return r.Response != nil }

// NewServerLoginPluginMessageResult wraps the given response bytes.
func NewServerLoginPluginMessageResult(response []byte) *ServerLoginPluginMessageResult {
	return &ServerLoginPluginMessageResult{Response: response}
}
