package phase

// The connection types supported.
var (
	// Undetermined indicates that the connection has yet to reach the point
	// where we have a definitive answer as to what type of connection it is.
	Undetermined ConnectionType = &connType{
		initialClientPhase:  VanillaClientPhase,
		initialBackendPhase: UnknownBackendPhase,
	}
	// Vanilla indicates that a connection is a vanilla connection.
	Vanilla ConnectionType = &connType{
		initialClientPhase:  VanillaClientPhase,
		initialBackendPhase: VanillaBackendPhase,
	}
	// ModernForge indicates that the connection is a 1.13+ Forge connection.
	// These clients renegotiate their registries with every backend and need
	// a transition round-trip on every server switch.
	ModernForge ConnectionType = &connType{
		initialClientPhase:  VanillaClientPhase,
		initialBackendPhase: VanillaBackendPhase,
	}
)

// ConnectionType is a connection type.
type ConnectionType interface {
	InitialClientPhase() ClientConnectionPhase
	InitialBackendPhase() BackendConnectionPhase
}

type connType struct {
	initialClientPhase  ClientConnectionPhase
	initialBackendPhase BackendConnectionPhase
}

var _ ConnectionType = (*connType)(nil)

func (c *connType) InitialClientPhase() ClientConnectionPhase {
	return c.initialClientPhase
}

func (c *connType) InitialBackendPhase() BackendConnectionPhase {
	return c.initialBackendPhase
}
