package proxy

import (
	"github.com/embermc/ember/internal/forwarding"
	"github.com/embermc/ember/pkg/config"
	"github.com/embermc/ember/pkg/util/errs"
	"github.com/embermc/ember/pkg/util/netutil"
	"github.com/embermc/ember/pkg/util/uuid"
)

// forwardingStrategy is the forwarding-mode specific behavior of a backend
// login attempt. It is selected once per attempt from the proxy config so a
// concurrent config reload cannot change the mode mid-login.
type forwardingStrategy interface {
	// confirmationRequired indicates whether the backend must have requested
	// the forwarded identity before its login success is accepted.
	confirmationRequired() bool
	// forwardingRequest answers an identity request on the forwarding channel.
	// It returns false if this mode does not answer such requests.
	forwardingRequest(serverConn *serverConnection, requestedVersion int) ([]byte, bool, error)
	// handshakeAddr returns the server address field to put into the
	// handshake sent to the backend.
	handshakeAddr(virtualHost string, serverConn *serverConnection) string
	// onLoginSuccess performs mode specific bookkeeping once the backend
	// accepted the login. A non-nil error fails the attempt.
	onLoginSuccess(serverConn *serverConnection) error
	// clientBoundID is the player id presented to the client in the
	// proxy's own login success packet.
	clientBoundID(player *connectedPlayer) uuid.UUID
	// unexpectedCloseError diagnoses a backend connection that closed
	// before the login exchange resolved.
	unexpectedCloseError() error
}

func forwardingStrategyFor(cfg *config.Config) forwardingStrategy {
	switch cfg.Forwarding.Mode {
	case config.ModernForwardingMode:
		return &modernForwardingStrategy{secret: []byte(cfg.Forwarding.Secret)}
	case config.LegacyForwardingMode:
		return &legacyForwardingStrategy{}
	default:
		return &noneForwardingStrategy{}
	}
}

var errServerUnexpectedlyClosed = errs.NewSilentErr("The connection to the remote server was unexpectedly closed.")

// noneForwardingStrategy communicates no player identity. The backend runs
// its own offline-mode name hashing, so the proxy mirrors it client-bound.
type noneForwardingStrategy struct{}

func (noneForwardingStrategy) confirmationRequired() bool { return false }
func (noneForwardingStrategy) forwardingRequest(*serverConnection, int) ([]byte, bool, error) {
	return nil, false, nil
}
func (noneForwardingStrategy) handshakeAddr(virtualHost string, _ *serverConnection) string {
	return virtualHost
}
func (noneForwardingStrategy) onLoginSuccess(*serverConnection) error { return nil }
func (noneForwardingStrategy) clientBoundID(player *connectedPlayer) uuid.UUID {
	return uuid.OfflinePlayerUUID(player.Username())
}
func (noneForwardingStrategy) unexpectedCloseError() error { return errServerUnexpectedlyClosed }

// legacyForwardingStrategy injects the player identity into the handshake
// address, BungeeCord style.
type legacyForwardingStrategy struct{}

func (legacyForwardingStrategy) confirmationRequired() bool { return false }
func (legacyForwardingStrategy) forwardingRequest(*serverConnection, int) ([]byte, bool, error) {
	return nil, false, nil
}
func (legacyForwardingStrategy) handshakeAddr(virtualHost string, serverConn *serverConnection) string {
	return serverConn.createLegacyForwardingAddress(virtualHost)
}
func (legacyForwardingStrategy) onLoginSuccess(*serverConnection) error { return nil }
func (legacyForwardingStrategy) clientBoundID(player *connectedPlayer) uuid.UUID {
	return player.ID()
}

// A backend without BungeeCord support enabled closes the connection right
// after the oversized handshake address, so the close gets a pointed message.
func (legacyForwardingStrategy) unexpectedCloseError() error {
	return errs.NewSilentErr("The connection to the remote server was unexpectedly closed.\n" +
		"This is usually because the remote server does not have BungeeCord IP forwarding " +
		"correctly enabled.")
}

// modernForwardingStrategy answers the backend's identity request on the
// forwarding channel with an HMAC-signed payload.
type modernForwardingStrategy struct {
	secret []byte
}

func (modernForwardingStrategy) confirmationRequired() bool { return true }

func (m *modernForwardingStrategy) forwardingRequest(
	serverConn *serverConnection, requestedVersion int,
) ([]byte, bool, error) {
	data, err := forwarding.CreateForwardingData(
		m.secret,
		netutil.Host(serverConn.player.RemoteAddr()),
		serverConn.player,
		requestedVersion,
	)
	if err != nil {
		return nil, true, err
	}
	return data, true, nil
}

func (modernForwardingStrategy) handshakeAddr(virtualHost string, _ *serverConnection) string {
	return virtualHost
}
func (modernForwardingStrategy) onLoginSuccess(*serverConnection) error { return nil }
func (modernForwardingStrategy) clientBoundID(player *connectedPlayer) uuid.UUID {
	return player.ID()
}
func (modernForwardingStrategy) unexpectedCloseError() error { return errServerUnexpectedlyClosed }

var (
	_ forwardingStrategy = (*noneForwardingStrategy)(nil)
	_ forwardingStrategy = (*legacyForwardingStrategy)(nil)
	_ forwardingStrategy = (*modernForwardingStrategy)(nil)
)
