// Package version lists the named protocol versions relevant to the proxy.
package version

import (
	"github.com/embermc/ember/pkg/proto"
)

var (
	Minecraft_1_7_2  = v(4, "1.7.2", "1.7.3", "1.7.4", "1.7.5")
	Minecraft_1_7_6  = v(5, "1.7.6", "1.7.7", "1.7.8", "1.7.9", "1.7.10")
	Minecraft_1_8    = v(47, "1.8", "1.8.1", "1.8.2", "1.8.3", "1.8.4", "1.8.5", "1.8.6", "1.8.7", "1.8.8", "1.8.9")
	Minecraft_1_13   = v(393, "1.13")
	Minecraft_1_16   = v(735, "1.16")
	Minecraft_1_19   = v(759, "1.19")
	Minecraft_1_19_3 = v(761, "1.19.3")
	Minecraft_1_20_2 = v(764, "1.20.2")

	// MinimumVersion is the lowest supported protocol version.
	MinimumVersion = Minecraft_1_7_2
)

func v(protocol proto.Protocol, names ...string) *proto.Version {
	return &proto.Version{Protocol: protocol, Names: names}
}
