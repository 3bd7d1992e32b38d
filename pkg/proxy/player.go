package proxy

import (
	"sync"

	"github.com/go-logr/logr"

	"github.com/embermc/ember/pkg/netmc"
	"github.com/embermc/ember/pkg/profile"
	"github.com/embermc/ember/pkg/proxy/phase"
	"github.com/embermc/ember/pkg/util/uuid"
)

// Player is a connected Minecraft player.
type Player interface {
	netmc.PacketWriter
	ID() uuid.UUID                    // The Minecraft UUID of the player.
	Username() string                 // The username of the player.
	GameProfile() profile.GameProfile // Returns the player's game profile.
	// CurrentServer returns the server connection the player
	// is connected to, or nil if none.
	CurrentServer() ServerConnection
}

// connectedPlayer is a player connected to the proxy.
type connectedPlayer struct {
	netmc.MinecraftConn // the client connection
	log                 logr.Logger
	profile             *profile.GameProfile

	mu               sync.RWMutex // protects following fields
	connectedServer_ *serverConnection
	connPhase        phase.ClientConnectionPhase
}

var _ Player = (*connectedPlayer)(nil)

func newConnectedPlayer(
	conn netmc.MinecraftConn,
	profile *profile.GameProfile,
	log logr.Logger,
) *connectedPlayer {
	return &connectedPlayer{
		MinecraftConn: conn,
		log:           log.WithName("player").WithValues("username", profile.Name),
		profile:       profile,
		connPhase:     conn.Type().InitialClientPhase(),
	}
}

func (p *connectedPlayer) ID() uuid.UUID                    { return p.profile.ID }
func (p *connectedPlayer) Username() string                 { return p.profile.Name }
func (p *connectedPlayer) GameProfile() profile.GameProfile { return *p.profile }

func (p *connectedPlayer) CurrentServer() ServerConnection {
	if s := p.connectedServer(); s != nil {
		return s
	}
	// We must return an explicit nil, not a (*serverConnection)(nil).
	return nil
}

func (p *connectedPlayer) connectedServer() *serverConnection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connectedServer_
}

func (p *connectedPlayer) setConnectedServer(conn *serverConnection) {
	p.mu.Lock()
	p.connectedServer_ = conn
	p.mu.Unlock()
}

func (p *connectedPlayer) phase() phase.ClientConnectionPhase {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connPhase
}

// SetPhase sets the client connection phase.
func (p *connectedPlayer) SetPhase(phase phase.ClientConnectionPhase) {
	p.mu.Lock()
	p.connPhase = phase
	p.mu.Unlock()
}

var _ phase.ClientConnectionPhaseSetter = (*connectedPlayer)(nil)
