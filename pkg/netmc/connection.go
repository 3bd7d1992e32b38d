// Package netmc defines the contract of a Minecraft connection as consumed
// by the proxy's session handlers. The concrete framing layer (varint frames,
// compression, encryption) lives behind these interfaces.
package netmc

import (
	"context"
	"errors"
	"net"

	"github.com/embermc/ember/pkg/proto"
	"github.com/embermc/ember/pkg/proto/states"
	"github.com/embermc/ember/pkg/proxy/phase"
)

// ErrClosedConn indicates a connection is already closed.
var ErrClosedConn = errors.New("connection is closed")

// MinecraftConn is a Minecraft connection of a client or server.
// The connection is unusable after Close was called and must be recreated.
type MinecraftConn interface {
	// Context returns the context of the connection.
	// This context is canceled on Close and can be used to
	// attach more context values to a connection.
	Context() context.Context
	// Close closes the connection, if not already,
	// and calls SessionHandler.Disconnected.
	// It is okay to call this method multiple times.
	Close() error

	// State returns the current protocol state of the connection.
	State() states.State
	// Protocol returns the protocol version of the connection.
	Protocol() proto.Protocol
	// RemoteAddr returns the remote address of the connection.
	RemoteAddr() net.Addr
	// Type returns the connection type of the connection.
	Type() phase.ConnectionType
	// SetType sets the connection type of the connection.
	SetType(phase.ConnectionType)

	// SessionHandler returns the session handler of the connection.
	SessionHandler() SessionHandler
	// SetSessionHandler sets the session handler for this connection and calls
	// Deactivated() on the old handler and Activated() on the new handler.
	SetSessionHandler(SessionHandler)

	StateChanger
	PacketWriter
}

// Closed returns true if the connection is closed.
func Closed(c interface{ Context() context.Context }) bool {
	return c.Context().Err() != nil
}

// PacketWriter is the interface for writing packets to the underlying connection.
//
// All writes on a connection are serialized by the implementation so that
// packets written from any goroutine keep their relative order on the wire.
type PacketWriter interface {
	// WritePacket writes a packet to the connection's
	// write buffer and flushes the complete buffer afterwards.
	//
	// The connection will be closed on any error encountered!
	WritePacket(p proto.Packet) (err error)
}

// StateChanger updates state of a connection.
type StateChanger interface {
	// SetProtocol switches the connection's protocol version.
	SetProtocol(proto.Protocol)
	// SetState switches the connection's protocol state.
	SetState(states.State)
	// SetCompressionThreshold sets the compression threshold of the
	// connection. packet.SetCompression should be received/sent beforehand.
	SetCompressionThreshold(threshold int) error
}

// SessionHandler handles received packets from the associated connection.
//
// Since connections transition between protocol states packets need to be
// handled differently, this behaviour is divided between session handlers.
//
// All callbacks for a single connection are invoked sequentially in packet
// arrival order; a handler never sees concurrent invocations for the same
// connection.
type SessionHandler interface {
	HandlePacket(pc *proto.PacketContext) // Called to handle an incoming known or unknown packet.
	Disconnected()                        // Called when the connection is closing, to teardown the session.

	Activated()   // Called when the connection is now managed by this SessionHandler.
	Deactivated() // Called when the connection is no longer managed by this SessionHandler.
}
