package util

import (
	"bytes"

	"go.minekube.com/common/minecraft/component"
	"go.minekube.com/common/minecraft/component/codec"

	"github.com/embermc/ember/pkg/proto"
	"github.com/embermc/ember/pkg/proto/version"
)

// JsonCodec returns the appropriate chat component codec for the
// given protocol version. This is used to constrain messages sent
// to older clients.
func JsonCodec(protocol proto.Protocol) codec.Codec {
	if protocol.GreaterEqual(version.Minecraft_1_16) {
		return jsonCodecModern
	}
	return jsonCodecLegacy
}

// Marshal marshals a component into JSON bytes.
func Marshal(protocol proto.Protocol, c component.Component) ([]byte, error) {
	buf := new(bytes.Buffer)
	err := JsonCodec(protocol).Marshal(buf, c)
	return buf.Bytes(), err
}

var (
	// Json component codec supporting pre-1.16 clients.
	jsonCodecLegacy = &codec.Json{}
	// Json component codec for 1.16+ clients.
	jsonCodecModern = &codec.Json{
		NoDownsampleColor: true,
		NoLegacyHover:     true,
	}
)
