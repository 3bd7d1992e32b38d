// Package config is the proxy configuration relevant to backend logins.
package config

import (
	"fmt"
	"net"

	"github.com/spf13/viper"
)

// Config is the configuration of the proxy.
type Config struct {
	Bind string // The address to listen for connections.

	OnlineMode bool

	Forwarding Forwarding

	ConnectionTimeout int // Backend dial/login timeout in milliseconds.
}

// Forwarding configures how player identity is communicated to backend servers.
type Forwarding struct {
	Mode   ForwardingMode
	Secret string // The shared HMAC secret, used with "modern" mode.
}

// ForwardingMode is a player info forwarding mode.
type ForwardingMode string

const (
	// NoneForwardingMode communicates no player identity;
	// backend servers see offline-mode UUIDs and the proxy's IP.
	NoneForwardingMode ForwardingMode = "none"
	// LegacyForwardingMode is the BungeeCord-compatible scheme
	// injecting identity into the handshake address.
	LegacyForwardingMode ForwardingMode = "legacy"
	// ModernForwardingMode is the Velocity-compatible scheme sending an
	// HMAC-signed identity payload over a login plugin message channel.
	// Supported by PaperSpigot for versions starting at 1.13.
	ModernForwardingMode ForwardingMode = "modern"
)

// SetDefaults sets Config defaults used with Viper.
func SetDefaults(i *viper.Viper) {
	i.SetDefault("bind", "0.0.0.0:25565")
	i.SetDefault("onlineMode", true)
	i.SetDefault("forwarding.mode", LegacyForwardingMode)
	i.SetDefault("connectiontimeout", 5000)
}

// Validate validates Config.
func (c *Config) Validate() (warns []error, errs []error) {
	e := func(m string, args ...any) { errs = append(errs, fmt.Errorf(m, args...)) }
	w := func(m string, args ...any) { warns = append(warns, fmt.Errorf(m, args...)) }

	if c == nil {
		e("config must not be nil")
		return
	}

	if len(c.Bind) == 0 {
		e("Bind is empty")
	} else if _, _, err := net.SplitHostPort(c.Bind); err != nil {
		e("Invalid bind %q: %v", c.Bind, err)
	}

	if !c.OnlineMode {
		w("Proxy is running in offline mode!")
	}

	switch c.Forwarding.Mode {
	case NoneForwardingMode:
		w("Player forwarding is disabled! Backend servers will have players with " +
			"offline-mode UUIDs and the same IP as the proxy.")
	case LegacyForwardingMode:
	case ModernForwardingMode:
		if len(c.Forwarding.Secret) == 0 {
			e("Forwarding secret must not be empty with %q forwarding mode", c.Forwarding.Mode)
		}
	default:
		e("Unknown forwarding mode %q, must be one of none,legacy,modern", c.Forwarding.Mode)
	}

	return
}
