// Package proto defines the edition agnostic packet contract
// shared by every protocol state of a connection.
package proto

import (
	"fmt"
	"io"
	"reflect"
	"strconv"
)

// Packet represents a packet type of the Minecraft Java protocol.
//
// It is the data layer of a packet and shall support multiple protocols
// up- and/or downwards by testing the Protocol contained in the passed
// PacketContext.
//
// The passed PacketContext is read-only and must not be modified.
type Packet interface {
	// Encode encodes the packet data into the writer.
	Encode(c *PacketContext, wr io.Writer) error
	// Decode expected data from a reader into the packet.
	Decode(c *PacketContext, rd io.Reader) (err error)
}

// PacketWriter can write packets.
type PacketWriter interface {
	WritePacket(Packet) error
}

// PacketContext carries context information for a
// received packet or a packet that is about to be sent.
type PacketContext struct {
	Direction Direction // The direction the packet is bound to.
	Protocol  Protocol  // The protocol version of the packet.
	PacketID  PacketID  // The ID of the packet, is always set.

	// Packet is the decoded type found by PacketID in the connection's
	// current state registry. It is nil if the PacketID is unknown,
	// in which case the payload is proxied through untouched.
	Packet Packet

	// Payload is the unencrypted and uncompressed form of packet id + data.
	Payload []byte // Empty when encoding.
}

// KnownPacket indicates whether the PacketID is known
// in the connection's current state registry.
func (c *PacketContext) KnownPacket() bool {
	return c != nil && c.Packet != nil
}

// PacketID identifies a packet in a protocol version.
type PacketID int

// String implements fmt.Stringer.
func (id PacketID) String() string {
	return fmt.Sprintf("%x", int(id))
}

// String implements fmt.Stringer.
func (c *PacketContext) String() string {
	return fmt.Sprintf("PacketContext:direction=%s,protocol=%s,"+
		"knownPacket=%t,packetID=%s,packetType=%s,payloadLen=%d",
		c.Direction, c.Protocol, c.KnownPacket(), c.PacketID,
		reflect.TypeOf(c.Packet), len(c.Payload))
}

// Direction is the direction a packet is bound to.
//   - Receiving a packet from a client is ServerBound.
//   - Receiving a packet from a server is ClientBound.
//   - Sending a packet to a client is ClientBound.
//   - Sending a packet to a server is ServerBound.
type Direction uint8

// Available packet bound directions.
const (
	ClientBound Direction = iota // A packet is bound to a client.
	ServerBound                  // A packet is bound to a server.
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case ServerBound:
		return "ServerBound"
	case ClientBound:
		return "ClientBound"
	}
	return "UnknownBound"
}

// Version is a named protocol version.
type Version struct {
	Protocol          // The protocol number of the version.
	Names    []string // The names in this protocol version (at least one).
}

// Protocol is a protocol version id specified by Mojang.
type Protocol int

// String implements fmt.Stringer.
func (p Protocol) String() string {
	return strconv.Itoa(int(p))
}

// String returns the user-friendly name of this version.
func (v Version) String() string {
	if len(v.Names) == 0 {
		return v.Protocol.String()
	}
	if len(v.Names) > 1 {
		return fmt.Sprintf("%s-%s", v.Names[0], v.Names[len(v.Names)-1])
	}
	return v.Names[0]
}

// GreaterEqual is true when this Protocol is
// greater or equal than another Version's Protocol.
func (p Protocol) GreaterEqual(then *Version) bool {
	return p >= then.Protocol
}

// LowerEqual is true when this Protocol is
// lower or equal than another Version's Protocol.
func (p Protocol) LowerEqual(then *Version) bool {
	return p <= then.Protocol
}

// Lower is true when this Protocol is
// lower than another Version's Protocol.
func (p Protocol) Lower(then *Version) bool {
	return p < then.Protocol
}

// Greater is true when this Protocol is
// greater than another Version's Protocol.
func (p Protocol) Greater(then *Version) bool {
	return p > then.Protocol
}
