package proxy

import (
	"errors"
	"reflect"

	"github.com/go-logr/logr"

	"github.com/embermc/ember/pkg/netmc"
	"github.com/embermc/ember/pkg/proto"
	"github.com/embermc/ember/pkg/proto/packet"
)

// backendTransitionSessionHandler takes over a backend connection right
// after a successful login exchange. It marks the attempt as succeeded and
// covers the window until the server starts the game.
type backendTransitionSessionHandler struct {
	*sessionHandlerDeps

	serverConn    *serverConnection
	requestCtx    *connRequestCxt
	listenDoneCtx chan struct{}
	log           logr.Logger

	nopSessionHandler
}

var _ netmc.SessionHandler = (*backendTransitionSessionHandler)(nil)

func newBackendTransitionSessionHandler(
	serverConn *serverConnection,
	requestCtx *connRequestCxt,
	sessionHandlerDeps *sessionHandlerDeps,
) netmc.SessionHandler {
	return &backendTransitionSessionHandler{
		serverConn:         serverConn,
		requestCtx:         requestCtx,
		log:                serverConn.log.WithName("backendTransitionSession"),
		sessionHandlerDeps: sessionHandlerDeps,
	}
}

func (b *backendTransitionSessionHandler) Activated() {
	b.serverConn.player.setConnectedServer(b.serverConn)
	b.requestCtx.result(plainResult(SuccessConnectionStatus, b.serverConn.server), nil)

	b.listenDoneCtx = make(chan struct{})
	go func() {
		select {
		case <-b.listenDoneCtx:
		case <-b.serverConn.player.Context().Done():
			// Player left while we waited for the game to start.
			b.serverConn.disconnect()
		}
	}()
}

func (b *backendTransitionSessionHandler) Deactivated() {
	if b.listenDoneCtx != nil {
		close(b.listenDoneCtx)
	}
}

func (b *backendTransitionSessionHandler) HandlePacket(pc *proto.PacketContext) {
	if !pc.KnownPacket() {
		return // ignore unknown
	}
	switch p := pc.Packet.(type) {
	case *packet.Disconnect:
		b.handleDisconnect(p)
	default:
		b.log.V(1).Info("received unexpected packet from backend server in transition",
			"packetType", reflect.TypeOf(p))
	}
}

func (b *backendTransitionSessionHandler) handleDisconnect(p *packet.Disconnect) {
	result := disconnectResultForPacket(
		b.log.V(1), p, b.serverConn.player.Protocol(), b.serverConn.server, true)
	b.log.Info("backend server disconnected player in transition",
		"reason", result.Reason())
	b.serverConn.disconnect()
}

func (b *backendTransitionSessionHandler) Disconnected() {
	if b.serverConn.player.connectedServer() == b.serverConn {
		b.serverConn.player.setConnectedServer(nil)
	}
	// No-op if the attempt already resolved, which it has on this handler's
	// Activated. Kept for the theoretical close between handler swap and
	// activation.
	b.requestCtx.result(nil, errors.New("backend server closed connection in transition"))
}
