package proxy

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"

	"github.com/go-logr/logr"

	"github.com/embermc/ember/pkg/netmc"
	"github.com/embermc/ember/pkg/proto/packet"
	"github.com/embermc/ember/pkg/proxy/phase"
	"github.com/embermc/ember/pkg/util/netutil"
)

// ServerInfo is the info of a backend server.
type ServerInfo interface {
	Name() string   // Returns the server name.
	Addr() net.Addr // Returns the server address.
}

type serverInfo struct {
	name string
	addr net.Addr
}

func (i *serverInfo) Name() string   { return i.name }
func (i *serverInfo) Addr() net.Addr { return i.addr }

// NewServerInfo creates a new server info.
func NewServerInfo(name string, addr net.Addr) ServerInfo {
	return &serverInfo{name: name, addr: addr}
}

// RegisteredServer is a backend server registered with the proxy.
type RegisteredServer interface {
	ServerInfo() ServerInfo
}

type registeredServer struct {
	info ServerInfo
}

func (r *registeredServer) ServerInfo() ServerInfo { return r.info }

// NewRegisteredServer returns a RegisteredServer for the given info.
func NewRegisteredServer(info ServerInfo) RegisteredServer {
	return &registeredServer{info: info}
}

var _ RegisteredServer = (*registeredServer)(nil)

// ServerConnection is a connection to a backend server from the
// proxy for a client.
type ServerConnection interface {
	Server() RegisteredServer // Returns the server this connection is for.
	Player() Player           // Returns the player of this connection.
}

// serverConnection is a connection to a backend server on behalf of a player.
type serverConnection struct {
	server *registeredServer
	player *connectedPlayer
	log    logr.Logger

	mu         sync.RWMutex // protects following fields
	connection netmc.MinecraftConn
	connPhase  phase.BackendConnectionPhase
}

var _ ServerConnection = (*serverConnection)(nil)

func newServerConnection(server *registeredServer, player *connectedPlayer) *serverConnection {
	return &serverConnection{
		server: server,
		player: player,
		log: player.log.WithName("serverConn").WithValues(
			"serverName", server.ServerInfo().Name(),
			"serverAddr", server.ServerInfo().Addr()),
	}
}

func (s *serverConnection) Server() RegisteredServer { return s.server }
func (s *serverConnection) Player() Player           { return s.player }

func (s *serverConnection) phase() phase.BackendConnectionPhase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connPhase
}

// SetPhase sets the backend connection phase.
func (s *serverConnection) SetPhase(phase phase.BackendConnectionPhase) {
	s.mu.Lock()
	s.connPhase = phase
	s.mu.Unlock()
}

var _ phase.BackendConnectionPhaseSetter = (*serverConnection)(nil)

func (s *serverConnection) conn() netmc.MinecraftConn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connection
}

// ensureConnected returns the backend connection or false if it is gone.
func (s *serverConnection) ensureConnected() (netmc.MinecraftConn, bool) {
	conn := s.conn()
	return conn, conn != nil
}

func (s *serverConnection) setConnection(conn netmc.MinecraftConn) {
	s.mu.Lock()
	s.connection = conn
	s.connPhase = conn.Type().InitialBackendPhase()
	s.mu.Unlock()
}

// disconnect closes the backend connection, if any.
// It is not an error to call this method when already disconnected.
func (s *serverConnection) disconnect() {
	s.mu.Lock()
	conn := s.connection
	s.connection = nil // nil means not connected
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// loginToBackend runs the login exchange with the backend on an established
// connection that is in the Login state. It sends the initial login packet,
// installs the login session handler and blocks until the attempt resolves,
// the connection dies or ctx expires, whichever comes first.
//
// Exactly one result is ever produced per attempt.
func (s *serverConnection) loginToBackend(
	ctx context.Context,
	serverMc netmc.MinecraftConn,
	deps *sessionHandlerDeps,
) (ConnectionResult, error) {
	if ctx.Err() != nil {
		return plainResult(CanceledConnectionStatus, s.server), nil
	}
	resultChan := make(chan *connResponse, 1)
	reqCtx := &connRequestCxt{Context: ctx, response: resultChan}

	s.setConnection(serverMc)
	serverMc.SetSessionHandler(newBackendLoginSessionHandler(s, reqCtx, deps))

	err := serverMc.WritePacket(&packet.ServerLogin{
		Username: s.player.Username(),
		HolderID: s.player.ID(),
	})
	if err != nil {
		reqCtx.result(nil, err)
	}

	r := <-resultChan
	return r.connectionResult, r.error
}

// createLegacyForwardingAddress builds the BungeeCord-style handshake address
// carrying the player identity: the fields are joined with null bytes and the
// receiving server splits them back out.
func (s *serverConnection) createLegacyForwardingAddress(virtualHost string) string {
	b := new(strings.Builder)
	b.WriteString(virtualHost)
	b.WriteString("\000")
	b.WriteString(netutil.Host(s.player.RemoteAddr()))
	b.WriteString("\000")
	b.WriteString(s.player.GameProfile().ID.Undashed())
	b.WriteString("\000")
	props, err := json.Marshal(s.player.GameProfile().Properties)
	if err != nil { // should never happen
		s.log.Error(err, "error marshaling player game profile properties")
	}
	b.WriteString(string(props))
	return b.String()
}
