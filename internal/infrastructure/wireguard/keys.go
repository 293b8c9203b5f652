// Package wireguard keeps the live WireGuard daemon and its persisted
// configuration file in sync with the entitlement ledger.
package wireguard

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
)

// KeyGenerator produces Curve25519 key pairs in the format WireGuard
// expects: 32 bytes, base64-encoded, with the private scalar clamped.
type KeyGenerator struct{}

// NewKeyGenerator creates a new key generator.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{}
}

// Generate returns a fresh key pair.
func (g *KeyGenerator) Generate() (entitlement.KeyPair, error) {
	var private [32]byte
	if _, err := rand.Read(private[:]); err != nil {
		return entitlement.KeyPair{}, fmt.Errorf("failed to read random bytes: %w", err)
	}

	// Clamp per Curve25519 key generation.
	private[0] &= 248
	private[31] &= 127
	private[31] |= 64

	public, err := curve25519.X25519(private[:], curve25519.Basepoint)
	if err != nil {
		return entitlement.KeyPair{}, fmt.Errorf("failed to derive public key: %w", err)
	}

	return entitlement.KeyPair{
		PrivateKey: base64.StdEncoding.EncodeToString(private[:]),
		PublicKey:  base64.StdEncoding.EncodeToString(public),
	}, nil
}
