package proxy

import (
	"errors"
	"reflect"

	"github.com/go-logr/logr"
	"go.minekube.com/common/minecraft/component"
	"go.uber.org/atomic"

	"github.com/embermc/ember/pkg/netmc"
	"github.com/embermc/ember/pkg/proto"
	"github.com/embermc/ember/pkg/proto/packet"
	"github.com/embermc/ember/pkg/proto/states"
	protoutil "github.com/embermc/ember/pkg/proto/util"
	"github.com/embermc/ember/pkg/proxy/phase"
)

// loginPhase is the progress of a backend login exchange.
type loginPhase uint8

const (
	// awaitingEncryptionOrPlugin: nothing heard from the backend yet; the
	// next packet shows whether it wants to negotiate or reject outright.
	awaitingEncryptionOrPlugin loginPhase = iota
	// awaitingSuccess: negotiation started (identity forwarded or
	// compression applied), waiting for the backend to settle the login.
	awaitingSuccess
	// loginComplete: the backend accepted the login, the exchange resolved
	// successfully and the transition handler took over.
	loginComplete
	// loginFailed: the exchange resolved with a failure, the backend
	// connection is torn down.
	loginFailed
)

func (p loginPhase) terminal() bool { return p == loginComplete || p == loginFailed }

// backendLoginSessionHandler handles the login exchange with a backend
// server on behalf of a connecting player.
//
// All packet callbacks run sequentially on the connection's read loop;
// only the context watcher goroutine races them, synchronized through
// the write-once requestCtx.
type backendLoginSessionHandler struct {
	*sessionHandlerDeps

	serverConn    *serverConnection
	requestCtx    *connRequestCxt
	strategy      forwardingStrategy
	router        *loginPluginMessageRouter
	listenDoneCtx chan struct{}
	log           logr.Logger

	phase                loginPhase // only mutated on the read loop
	informationForwarded atomic.Bool

	nopSessionHandler
}

var _ netmc.SessionHandler = (*backendLoginSessionHandler)(nil)

func newBackendLoginSessionHandler(
	serverConn *serverConnection,
	requestCtx *connRequestCxt,
	sessionHandlerDeps *sessionHandlerDeps,
) netmc.SessionHandler {
	b := &backendLoginSessionHandler{
		serverConn:         serverConn,
		requestCtx:         requestCtx,
		strategy:           forwardingStrategyFor(sessionHandlerDeps.config()),
		log:                serverConn.log.WithName("backendLoginSession"),
		sessionHandlerDeps: sessionHandlerDeps,
	}
	b.router = &loginPluginMessageRouter{
		serverConn:           serverConn,
		strategy:             b.strategy,
		eventMgr:             sessionHandlerDeps.eventMgr,
		informationForwarded: &b.informationForwarded,
		log:                  b.log,
	}
	return b
}

func (b *backendLoginSessionHandler) Activated() {
	b.listenDoneCtx = make(chan struct{})
	go func() {
		select {
		case <-b.listenDoneCtx:
		case <-b.requestCtx.Done():
			// We must check again since request context
			// may be canceled before Deactivated() was run.
			select {
			case <-b.listenDoneCtx:
				return
			default:
				b.requestCtx.result(nil, errors.New(
					"context deadline exceeded while logging into backend server"))
				b.serverConn.disconnect()
			}
		}
	}()

	// Modern Forge clients renegotiate their modded registries with every
	// backend; when switching away from a live server we flush the old
	// backend's state to the client and reset the client side negotiation.
	if b.serverConn.player.Type() == phase.ModernForge {
		player := b.serverConn.player
		if existing := player.connectedServer(); existing != nil && existing != b.serverConn {
			existing.phase().OnDepartForNewServer(player, player.phase(), player)
			player.setConnectedServer(nil)
			existing.disconnect()
		} else {
			player.phase().ResetConnectionPhase(player, player)
		}
		player.SetSessionHandler(newClientTransitionSessionHandler(player))
	}
}

func (b *backendLoginSessionHandler) Deactivated() {
	if b.listenDoneCtx != nil {
		close(b.listenDoneCtx)
	}
}

func (b *backendLoginSessionHandler) HandlePacket(pc *proto.PacketContext) {
	if !pc.KnownPacket() {
		b.log.V(1).Info("received unknown packet from backend server while logging in",
			"packetID", pc.PacketID)
		return // forward compatible: tolerate and ignore
	}
	if b.phase.terminal() {
		return // attempt already settled
	}

	switch p := pc.Packet.(type) {
	case *packet.LoginPluginMessage:
		b.handleLoginPluginMessage(p)
	case *packet.Disconnect:
		b.handleDisconnect(p)
	case *packet.EncryptionRequest:
		b.handleEncryptionRequest()
	case *packet.SetCompression:
		b.handleSetCompression(p)
	case *packet.ServerLoginSuccess:
		b.handleServerLoginSuccess()
	default:
		b.log.V(1).Info("received unexpected packet from backend server while logging in",
			"packetType", reflect.TypeOf(p))
	}
}

// ErrServerOnlineMode indicates a connection request to a backend server
// that runs in online mode, which a proxied server must not.
var ErrServerOnlineMode = errors.New("backend server is online mode, but should be offline")

func (b *backendLoginSessionHandler) handleEncryptionRequest() {
	// If we get an encryption request we know the server is in online mode.
	b.fail(nil, ErrServerOnlineMode)
}

func (b *backendLoginSessionHandler) handleLoginPluginMessage(p *packet.LoginPluginMessage) {
	mc, ok := b.serverConn.ensureConnected()
	if !ok {
		return
	}
	res, err := b.router.route(mc, p)
	if err != nil {
		// A forwarding setup fault (e.g. unusable secret), not a
		// per-connection condition. Surface it instead of hiding it
		// behind a generic close.
		b.log.Error(err, "error answering identity forwarding request")
		b.fail(nil, err)
		return
	}
	if res == routedForwarding {
		b.phase = awaitingSuccess
	}
	b.log.V(1).Info("routed login plugin message",
		"channel", p.Channel, "id", p.ID, "route", res)
}

func (b *backendLoginSessionHandler) handleDisconnect(p *packet.Disconnect) {
	result := disconnectResultForPacket(
		b.log.V(1), p, b.serverConn.player.Protocol(), b.serverConn.server, true)
	b.fail(result, nil)
}

func (b *backendLoginSessionHandler) handleSetCompression(p *packet.SetCompression) {
	conn, ok := b.serverConn.ensureConnected()
	if !ok {
		return
	}
	if err := conn.SetCompressionThreshold(p.Threshold); err != nil {
		b.fail(nil, err)
		return
	}
	b.phase = awaitingSuccess
}

var ipForwardingFailure = &component.Text{
	Content: "Your server did not send a forwarding request to the proxy. " +
		"Is modern forwarding set up correctly?",
}

func (b *backendLoginSessionHandler) handleServerLoginSuccess() {
	if b.strategy.confirmationRequired() && !b.informationForwarded.Load() {
		b.fail(disconnectResult(ipForwardingFailure, b.serverConn.server, true), nil)
		return
	}

	// The player has been logged on to the backend server, but we're not
	// done yet. There could be other problems that arise before we get a
	// JoinGame packet from the server.

	// Move the backend into the Play state.
	serverMc, ok := b.serverConn.ensureConnected()
	if !ok {
		return
	}
	serverMc.SetState(states.PlayState)

	player := b.serverConn.player
	if err := b.serverConn.phase().OnLoginSuccess(serverMc, player); err != nil {
		b.fail(nil, err)
		return
	}
	if err := b.strategy.onLoginSuccess(b.serverConn); err != nil {
		b.fail(nil, err)
		return
	}

	// On the first backend the client itself is still logging in and gets
	// the proxy's own login success now. On a server switch the client is
	// in Play already and sees nothing of the exchange.
	if player.State() == states.LoginState {
		err := player.WritePacket(&packet.ServerLoginSuccess{
			UUID:       b.strategy.clientBoundID(player),
			Username:   player.Username(),
			Properties: player.GameProfile().Properties,
		})
		if err != nil {
			b.fail(nil, err)
			return
		}
		player.SetState(states.PlayState)
	}

	b.phase = loginComplete
	// Switch to the transition handler, which resolves the attempt.
	serverMc.SetSessionHandler(newBackendTransitionSessionHandler(
		b.serverConn, b.requestCtx, b.sessionHandlerDeps))
}

func (b *backendLoginSessionHandler) Disconnected() {
	b.requestCtx.result(nil, b.strategy.unexpectedCloseError())
}

// fail settles the attempt with the given result or error and tears the
// backend connection down. Safe to call at most once per exchange since the
// phase guard in HandlePacket blocks further packet handling.
func (b *backendLoginSessionHandler) fail(result *connectionResult, err error) {
	b.phase = loginFailed
	b.requestCtx.result(result, err)
	b.serverConn.disconnect()
}

func disconnectResultForPacket(
	errLog logr.Logger,
	p *packet.Disconnect,
	protocol proto.Protocol,
	server RegisteredServer,
	safe bool,
) *connectionResult {
	var reason string
	if p != nil && p.Reason != nil {
		reason = *p.Reason
	}
	r, err := protoutil.JsonCodec(protocol).Unmarshal([]byte(reason))
	if errLog.Enabled() && err != nil {
		errLog.Error(err, "error unmarshal disconnect reason from server",
			"safe", safe, "protocol", protocol,
			"reason", reason, "server", server.ServerInfo().Name())
	}
	return disconnectResult(r, server, safe)
}
