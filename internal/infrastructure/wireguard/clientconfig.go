package wireguard

import (
	"fmt"
	"strings"

	"github.com/maxnet-vpn/maxnet/internal/shared/config"
)

// ClientConfigBuilder renders the configuration text delivered to a subject
// for their phone or desktop client.
type ClientConfigBuilder struct {
	cfg *config.WireGuardConfig
}

// NewClientConfigBuilder creates a builder from the interface settings.
func NewClientConfigBuilder(cfg *config.WireGuardConfig) *ClientConfigBuilder {
	return &ClientConfigBuilder{cfg: cfg}
}

// Build renders the full client configuration for the given private key and
// tunnel address.
func (b *ClientConfigBuilder) Build(privateKey, address string) string {
	prefixLen := clientPrefixLength(b.cfg.ClientNetwork)
	dns := b.cfg.ClientDNS
	if dns == "" {
		dns = "1.1.1.1"
	}

	return fmt.Sprintf(`[Interface]
PrivateKey = %s
Address = %s/%s
DNS = %s

[Peer]
PublicKey = %s
Endpoint = %s
AllowedIPs = 0.0.0.0/0
PersistentKeepalive = 25
`, privateKey, address, prefixLen, dns, b.cfg.ServerPublicKey, b.cfg.ServerEndpoint)
}

// AllowedAddress returns the address/32 form installed on the server side
// for a single client.
func (b *ClientConfigBuilder) AllowedAddress(address string) string {
	return address + "/32"
}

func clientPrefixLength(cidr string) string {
	if idx := strings.LastIndex(cidr, "/"); idx >= 0 {
		return cidr[idx+1:]
	}
	return "24"
}
