// Package proxy implements the backend side of a player login: connecting a
// proxied player to a backend server, forwarding the player's identity and
// supervising the login exchange until the backend switches to the Play state.
package proxy

import (
	"github.com/robinbraemer/event"

	"github.com/embermc/ember/pkg/config"
	"github.com/embermc/ember/pkg/proto"
)

// configProvider gives access to the current proxy config.
type configProvider interface {
	config() *config.Config
}

// sessionHandlerDeps holds the shared dependencies session handlers get
// injected at construction time.
type sessionHandlerDeps struct {
	eventMgr event.Manager
	configProvider
}

// staticConfigProvider is a configProvider backed by a fixed config.
type staticConfigProvider config.Config

func (c *staticConfigProvider) config() *config.Config { return (*config.Config)(c) }

// nopSessionHandler is a no-operation session handler to embed in other
// session handlers that do not care about all callbacks.
type nopSessionHandler struct{}

func (nopSessionHandler) HandlePacket(*proto.PacketContext) {}
func (nopSessionHandler) Disconnected()                     {}
func (nopSessionHandler) Activated()                        {}
func (nopSessionHandler) Deactivated()                      {}
