// Package states defines the protocol states a connection passes through.
package states

// State represents the state of the protocol in which a connection can be present.
type State int

const (
	// HandshakeState is the initial connection state.
	HandshakeState State = 0
	// StatusState is the ping state of a connection.
	StatusState State = 1
	// LoginState is the authentication state of a connection.
	LoginState State = 2
	// PlayState is the game state of a connection.
	PlayState State = 3
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case HandshakeState:
		return "Handshake"
	case StatusState:
		return "Status"
	case LoginState:
		return "Login"
	case PlayState:
		return "Play"
	}
	return "UnknownState"
}
