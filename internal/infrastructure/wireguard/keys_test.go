package wireguard

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyGenerator_Generate(t *testing.T) {
	gen := NewKeyGenerator()

	keys, err := gen.Generate()
	require.NoError(t, err)

	priv, err := base64.StdEncoding.DecodeString(keys.PrivateKey)
	require.NoError(t, err)
	assert.Len(t, priv, 32)

	pub, err := base64.StdEncoding.DecodeString(keys.PublicKey)
	require.NoError(t, err)
	assert.Len(t, pub, 32)

	// Clamping per Curve25519.
	assert.Equal(t, byte(0), priv[0]&7)
	assert.Equal(t, byte(64), priv[31]&192)
}

func TestKeyGenerator_Distinct(t *testing.T) {
	gen := NewKeyGenerator()

	a, err := gen.Generate()
	require.NoError(t, err)
	b, err := gen.Generate()
	require.NoError(t, err)

	assert.NotEqual(t, a.PrivateKey, b.PrivateKey)
	assert.NotEqual(t, a.PublicKey, b.PublicKey)
}
