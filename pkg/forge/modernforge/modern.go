// Package modernforge contains constants of the modern (1.13+) Forge handshake.
package modernforge

import (
	"strconv"
	"strings"
)

// Token is the token used in the modern Forge handshake.
const Token = "FORGE"

// LoginWrapperChannel is the plugin message channel modern Forge
// wraps its login-phase payloads in.
const LoginWrapperChannel = "fml:loginwrapper"

// ModernToken aligns the host token acquisition with the internal code of Forge.
func ModernToken(hostName string) string {
	natVersion := 0
	if strings.Contains(hostName, "\000") {
		for _, pt := range strings.Split(hostName, "\000") {
			if strings.HasPrefix(pt, Token) && len(pt) > len(Token) {
				natVersion, _ = strconv.Atoi(pt[len(Token):])
			}
		}
	}
	if natVersion == 0 {
		return "\000" + Token
	}
	return "\000" + Token + strconv.Itoa(natVersion)
}
