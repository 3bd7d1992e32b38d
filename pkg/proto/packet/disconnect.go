package packet

import (
	"errors"
	"io"

	"go.minekube.com/common/minecraft/component"

	"github.com/embermc/ember/pkg/proto"
	"github.com/embermc/ember/pkg/proto/util"
)

// Disconnect is sent by a server to kick the connection,
// carrying a JSON chat component as the reason.
type Disconnect struct {
	Reason *string // JSON chat component, nil-able
}

func (d *Disconnect) Encode(_ *proto.PacketContext, wr io.Writer) error {
	if d.Reason == nil {
		return errors.New("no reason specified")
	}
	return util.WriteString(wr, *d.Reason)
}

func (d *Disconnect) Decode(_ *proto.PacketContext, rd io.Reader) error {
	reason, err := util.ReadString(rd)
	if err != nil {
		return err
	}
	d.Reason = &reason
	return nil
}

var _ proto.Packet = (*Disconnect)(nil)

// NewDisconnect creates a new Disconnect packet for the protocol version.
func NewDisconnect(reason component.Component, protocol proto.Protocol) (*Disconnect, error) {
	b, err := util.Marshal(protocol, reason)
	if err != nil {
		return nil, err
	}
	reasonStr := string(b)
	return &Disconnect{Reason: &reasonStr}, nil
}
