// Package forwarding builds the signed identity payload sent to backend
// servers that trust proxy-forwarded player identity (modern forwarding).
//
// The byte layout is bit-exact with what Paper-family servers verify:
// a 32-byte HMAC-SHA256 signature immediately followed by the serialized
// payload, no length prefix on the signature.
package forwarding

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"errors"

	"github.com/embermc/ember/pkg/profile"
	"github.com/embermc/ember/pkg/proto"
	protoutil "github.com/embermc/ember/pkg/proto/util"
	"github.com/embermc/ember/pkg/proto/version"
	"github.com/embermc/ember/pkg/util/uuid"
)

const (
	// IPForwardingChannel is the reserved login plugin message channel a
	// proxy-aware backend requests forwarded identity on.
	// Kept compatible with Velocity modern forwarding.
	IPForwardingChannel = "velocity:player_info"

	DefaultForwardingVersion = 1
	// Versions 2 and 3 carry the player's signing key, which the proxy does
	// not hold; they are negotiated down to the default version.
	withKeyForwardingVersion     = 2
	LazySessionForwardingVersion = 4
	ForwardingMaxVersion         = LazySessionForwardingVersion
)

// ErrInvalidSecret indicates the configured forwarding secret cannot key the
// MAC. This is a deployment error, not a per-connection fault.
var ErrInvalidSecret = errors.New("forwarding secret is empty")

// ConnectedPlayer is the player identity a forwarding payload is built from.
type ConnectedPlayer interface {
	ID() uuid.UUID
	Username() string
	GameProfile() profile.GameProfile
	Protocol() proto.Protocol
}

// CreateForwardingData creates the signed forwarding data for the given player.
//
// The payload field order (version, address, uuid, username, properties) is
// part of the wire contract: a verifying backend re-serializes it byte for
// byte to check the signature.
func CreateForwardingData(
	hmacSecret []byte, address string,
	player ConnectedPlayer, requestedVersion int,
) ([]byte, error) {
	if len(hmacSecret) == 0 {
		return nil, ErrInvalidSecret
	}
	forwarded := bytes.NewBuffer(make([]byte, 0, 2048))

	actualVersion := findForwardingVersion(requestedVersion, player)

	err := protoutil.WriteVarInt(forwarded, actualVersion)
	if err != nil {
		return nil, err
	}
	err = protoutil.WriteString(forwarded, address)
	if err != nil {
		return nil, err
	}
	err = protoutil.WriteUUID(forwarded, player.ID())
	if err != nil {
		return nil, err
	}
	err = protoutil.WriteString(forwarded, player.Username())
	if err != nil {
		return nil, err
	}
	err = protoutil.WriteProperties(forwarded, player.GameProfile().Properties)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, hmacSecret)
	_, err = mac.Write(forwarded.Bytes())
	if err != nil {
		return nil, err
	}

	// signature then payload, no separator
	data := bytes.NewBuffer(make([]byte, 0, mac.Size()+forwarded.Len()))
	_, err = data.Write(mac.Sum(nil))
	if err != nil {
		return nil, err
	}
	_, err = data.Write(forwarded.Bytes())
	if err != nil {
		return nil, err
	}
	return data.Bytes(), nil
}

// findForwardingVersion clamps the version the backend requested to what this
// player session supports.
func findForwardingVersion(requested int, player ConnectedPlayer) int {
	requested = min(requested, ForwardingMaxVersion)
	if requested > DefaultForwardingVersion &&
		player.Protocol().GreaterEqual(version.Minecraft_1_19_3) &&
		requested >= LazySessionForwardingVersion {
		return LazySessionForwardingVersion
	}
	return DefaultForwardingVersion
}
