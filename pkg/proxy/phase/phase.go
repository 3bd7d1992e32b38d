// Package phase tracks the modded-client (Forge) negotiation state of the
// client and backend sides of a player connection.
package phase

import (
	"github.com/embermc/ember/pkg/proto"
	"github.com/embermc/ember/pkg/proto/packet"
)

// PacketWriter can write a packet to one side of a player connection.
type PacketWriter interface {
	WritePacket(proto.Packet) error
}

type (
	// BackendConnectionPhaseSetter sets the phase of a backend connection.
	BackendConnectionPhaseSetter interface {
		SetPhase(BackendConnectionPhase)
	}
	// ClientConnectionPhaseSetter sets the phase of a client connection.
	ClientConnectionPhaseSetter interface {
		SetPhase(ClientConnectionPhase)
	}
)

// BackendConnectionPhase is the modded negotiation state of a
// backend server connection.
type BackendConnectionPhase interface {
	// HandleLoginWrapperMessage handles a login wrapper plugin message in the
	// context of this phase. Returns true if the message was fully handled.
	HandleLoginWrapperMessage(
		backend PacketWriter,
		player PacketWriter,
		msg *packet.LoginPluginMessage,
	) bool
	// OnDepartForNewServer is fired when this backend connection is about to
	// become obsolete because the player is connecting to a new server.
	OnDepartForNewServer(
		player PacketWriter,
		phase ClientConnectionPhase,
		setter ClientConnectionPhaseSetter,
	)
	// OnLoginSuccess performs mod specific bookkeeping once the
	// backend accepted the login.
	OnLoginSuccess(backend PacketWriter, player PacketWriter) error
	// ConsideredComplete indicates whether the negotiation is considered complete.
	ConsideredComplete() bool
}

// ClientConnectionPhase is the modded negotiation state of the
// client connection.
type ClientConnectionPhase interface {
	// ResetConnectionPhase instructs the proxy to reset the connection phase
	// back to its default for the connection type.
	ResetConnectionPhase(player PacketWriter, setter ClientConnectionPhaseSetter)
	// ConsideredComplete indicates whether the negotiation is considered complete.
	ConsideredComplete() bool
}

// The phases supported.
var (
	// VanillaBackendPhase is a vanilla backend connection.
	VanillaBackendPhase BackendConnectionPhase = &vanillaBackendPhase{}
	// UnknownBackendPhase indicates the backend connection type is
	// unknown at this time.
	UnknownBackendPhase BackendConnectionPhase = &unknownBackendPhase{}
	// InTransitionBackendPhase is a special backend phase used to indicate
	// that this connection is about to become obsolete (transfer to a new
	// server) and that Forge messages ought to be forwarded on to the client.
	InTransitionBackendPhase BackendConnectionPhase = &inTransitionBackendPhase{}

	// VanillaClientPhase is a vanilla client connection.
	VanillaClientPhase ClientConnectionPhase = &vanillaClientPhase{}
)

type vanillaBackendPhase struct{}

func (vanillaBackendPhase) HandleLoginWrapperMessage(PacketWriter, PacketWriter, *packet.LoginPluginMessage) bool {
	return false
}
func (vanillaBackendPhase) OnDepartForNewServer(PacketWriter, ClientConnectionPhase, ClientConnectionPhaseSetter) {
}
func (vanillaBackendPhase) OnLoginSuccess(PacketWriter, PacketWriter) error { return nil }
func (vanillaBackendPhase) ConsideredComplete() bool                        { return true }

type unknownBackendPhase struct{ vanillaBackendPhase }

func (unknownBackendPhase) ConsideredComplete() bool { return false }

type inTransitionBackendPhase struct{ vanillaBackendPhase }

// The client renegotiates the modded registries with the new backend,
// so wrapper messages from the old one are passed straight through.
func (inTransitionBackendPhase) HandleLoginWrapperMessage(
	_ PacketWriter, player PacketWriter, msg *packet.LoginPluginMessage,
) bool {
	_ = player.WritePacket(msg)
	return true
}

func (inTransitionBackendPhase) OnDepartForNewServer(
	player PacketWriter,
	phase ClientConnectionPhase,
	setter ClientConnectionPhaseSetter,
) {
	phase.ResetConnectionPhase(player, setter)
}

type vanillaClientPhase struct{}

func (vanillaClientPhase) ResetConnectionPhase(PacketWriter, ClientConnectionPhaseSetter) {}
func (vanillaClientPhase) ConsideredComplete() bool                                       { return true }
