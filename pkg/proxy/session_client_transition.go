package proxy

import (
	"github.com/go-logr/logr"

	"github.com/embermc/ember/pkg/netmc"
	"github.com/embermc/ember/pkg/proto"
)

// clientTransitionSessionHandler holds the client connection of a modern
// Forge player while a backend switch is in flight. Client packets during
// the switch have no live backend to go to and are dropped.
type clientTransitionSessionHandler struct {
	player *connectedPlayer
	log    logr.Logger

	nopSessionHandler
}

var _ netmc.SessionHandler = (*clientTransitionSessionHandler)(nil)

func newClientTransitionSessionHandler(player *connectedPlayer) netmc.SessionHandler {
	return &clientTransitionSessionHandler{
		player: player,
		log:    player.log.WithName("clientTransitionSession"),
	}
}

func (c *clientTransitionSessionHandler) HandlePacket(pc *proto.PacketContext) {
	c.log.V(1).Info("dropping client packet during server transition",
		"packetID", pc.PacketID)
}
