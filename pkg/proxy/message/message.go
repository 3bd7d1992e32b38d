// Package message provides channel identifiers for plugin messaging.
package message

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ChannelIdentifier is a channel identifier for use with plugin messaging.
type ChannelIdentifier interface {
	// ID returns the channel identifier.
	ID() string
}

// DefaultNamespace is the namespace used when none is given.
const DefaultNamespace = "minecraft"

// channelIdentifier is a Minecraft 1.13+ plugin channel identifier.
type channelIdentifier struct {
	namespace, name string
}

var ValidIdentifierRegex = regexp.MustCompile(`^[a-z0-9\-_.]*$`)

var (
	ErrNamespaceEmpty   = errors.New("namespace cannot be empty")
	ErrNameEmpty        = errors.New("name cannot be empty")
	ErrNamespaceInvalid = fmt.Errorf("namespace does not match regex %s", ValidIdentifierRegex)
	ErrNameInvalid      = fmt.Errorf("name does not match regex %s", ValidIdentifierRegex)
)

// NewChannelIdentifier returns a new validated channel identifier.
func NewChannelIdentifier(namespace, name string) (ChannelIdentifier, error) {
	if len(namespace) == 0 {
		return nil, ErrNamespaceEmpty
	}
	if len(name) == 0 {
		return nil, ErrNameEmpty
	}
	if !ValidIdentifierRegex.MatchString(namespace) {
		return nil, ErrNamespaceInvalid
	}
	if !ValidIdentifierRegex.MatchString(name) {
		return nil, ErrNameInvalid
	}
	return &channelIdentifier{
		namespace: namespace,
		name:      name,
	}, nil
}

// ChannelIdentifierFrom creates a channel identifier from the given
// "namespace:name" string representation. A missing namespace defaults
// to DefaultNamespace.
func ChannelIdentifierFrom(identifier string) (ChannelIdentifier, error) {
	colonPos := strings.Index(identifier, ":")
	switch {
	case colonPos == -1:
		return NewChannelIdentifier(DefaultNamespace, identifier)
	case colonPos == 0:
		return NewChannelIdentifier(DefaultNamespace, identifier[1:])
	default:
		namespace, name := identifier[:colonPos], identifier[colonPos+1:]
		if strings.Contains(name, ":") {
			return nil, ErrNameInvalid
		}
		return NewChannelIdentifier(namespace, name)
	}
}

func (m *channelIdentifier) Namespace() string {
	return m.namespace
}

func (m *channelIdentifier) Name() string {
	return m.name
}

func (m *channelIdentifier) ID() string {
	return fmt.Sprintf("%s:%s", m.namespace, m.name)
}

var _ ChannelIdentifier = (*channelIdentifier)(nil)
