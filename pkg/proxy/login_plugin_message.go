package proxy

import (
	"github.com/go-logr/logr"
	"github.com/robinbraemer/event"
	"go.uber.org/atomic"

	"github.com/embermc/ember/internal/forwarding"
	"github.com/embermc/ember/pkg/forge/modernforge"
	"github.com/embermc/ember/pkg/netmc"
	"github.com/embermc/ember/pkg/proto/packet"
	"github.com/embermc/ember/pkg/proxy/message"
)

// routeResult says how a login plugin message from the backend was dispatched.
type routeResult uint8

const (
	// routedForwarding: the message was an identity request on the forwarding
	// channel and was answered with the signed forwarding payload.
	routedForwarding routeResult = iota
	// routedDelegated: the modded negotiation handled the message in full.
	routedDelegated
	// routedDeclined: nobody claimed the message,
	// it was answered with an unsuccessful response.
	routedDeclined
	// routedAwaitingDecision: extension subscribers were asked and will
	// answer asynchronously.
	routedAwaitingDecision
)

// String implements fmt.Stringer.
func (r routeResult) String() string {
	switch r {
	case routedForwarding:
		return "forwarding"
	case routedDelegated:
		return "delegated"
	case routedDeclined:
		return "declined"
	case routedAwaitingDecision:
		return "awaitingDecision"
	}
	return "unknown"
}

// loginPluginMessageRouter dispatches login plugin messages received from a
// backend server during the login exchange. Every message gets answered
// eventually: the backend blocks its login sequence until it hears back.
type loginPluginMessageRouter struct {
	serverConn           *serverConnection
	strategy             forwardingStrategy
	eventMgr             event.Manager
	informationForwarded *atomic.Bool
	log                  logr.Logger
}

func (r *loginPluginMessageRouter) route(
	serverMc netmc.MinecraftConn, p *packet.LoginPluginMessage,
) (routeResult, error) {
	if p.Channel == forwarding.IPForwardingChannel {
		requestedVersion := forwarding.DefaultForwardingVersion
		if len(p.Data) == 1 {
			requestedVersion = int(p.Data[0])
		}
		data, ok, err := r.strategy.forwardingRequest(r.serverConn, requestedVersion)
		if err != nil {
			return 0, err
		}
		if ok {
			err = serverMc.WritePacket(&packet.LoginPluginResponse{
				ID:      p.ID,
				Success: true,
				Data:    data,
			})
			if err == nil {
				r.informationForwarded.Store(true)
			}
			return routedForwarding, nil
		}
		// Not forwarding identity in this mode; treat the
		// request like any other unknown message.
	}

	if p.Channel == modernforge.LoginWrapperChannel &&
		r.serverConn.phase().HandleLoginWrapperMessage(serverMc, r.serverConn.player, p) {
		return routedDelegated, nil
	}

	if !r.eventMgr.HasSubscriber(&ServerLoginPluginMessageEvent{}) {
		_ = serverMc.WritePacket(declineLoginPluginMessage(p.ID))
		return routedDeclined, nil
	}

	identifier, err := message.ChannelIdentifierFrom(p.Channel)
	if err != nil {
		r.log.V(1).Info("backend sent login plugin message with invalid channel",
			"channel", p.Channel, "error", err)
		_ = serverMc.WritePacket(declineLoginPluginMessage(p.ID))
		return routedDeclined, nil
	}

	e := &ServerLoginPluginMessageEvent{
		id:         identifier,
		contents:   p.Data,
		sequenceID: p.ID,
		serverConn: r.serverConn,
	}
	event.FireParallel(r.eventMgr, e, func(e *ServerLoginPluginMessageEvent) {
		// The write path serializes packets, so answering from the event
		// goroutine keeps wire order.
		if result := e.Result(); result.Allowed() {
			_ = serverMc.WritePacket(&packet.LoginPluginResponse{
				ID:      p.ID,
				Success: true,
				Data:    result.Response,
			})
			return
		}
		_ = serverMc.WritePacket(declineLoginPluginMessage(p.ID))
	})
	return routedAwaitingDecision, nil
}

func declineLoginPluginMessage(id int) *packet.LoginPluginResponse {
	return &packet.LoginPluginResponse{ID: id, Success: false}
}
