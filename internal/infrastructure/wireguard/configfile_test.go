package wireguard

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

func newTestStore(t *testing.T) (*ConfigStore, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "wg0.conf")
	log := logger.NewLoggerWithSlog(slog.New(slog.DiscardHandler))
	return NewConfigStore(path, log), path
}

func readConfig(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

const foreignBlock = `[Interface]
PrivateKey = server-private-key
Address = 10.8.0.1/24
ListenPort = 51820

# added by hand, do not touch
[Peer]
PublicKey = foreign-peer-key
AllowedIPs = 10.8.0.250/32
`

func TestAppendPeer_CreatesBlock(t *testing.T) {
	store, path := newTestStore(t)

	require.NoError(t, store.AppendPeer(context.Background(), "pub-a", "10.8.0.10/32", "alice"))

	content := readConfig(t, path)
	assert.Contains(t, content, markerPrefix+" owner=alice")
	assert.Contains(t, content, "PublicKey = pub-a")
	assert.Contains(t, content, "AllowedIPs = 10.8.0.10/32")
}

func TestRemovePeer_RemovesOnlyManagedBlock(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte(foreignBlock), 0o600))

	require.NoError(t, store.AppendPeer(context.Background(), "pub-a", "10.8.0.10/32", "alice"))

	removed, err := store.RemovePeer(context.Background(), "pub-a")
	require.NoError(t, err)
	assert.True(t, removed)

	// The foreign block must survive byte-for-byte.
	content := readConfig(t, path)
	assert.Contains(t, content, foreignBlock)
	assert.NotContains(t, content, "pub-a")
}

func TestRemovePeer_AbsentIsNoop(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte(foreignBlock), 0o600))

	removed, err := store.RemovePeer(context.Background(), "never-installed")
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Equal(t, foreignBlock, readConfig(t, path))
}

func TestRemovePeer_MissingFileIsNoop(t *testing.T) {
	store, _ := newTestStore(t)

	removed, err := store.RemovePeer(context.Background(), "pub-a")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRemovePeer_IgnoresForeignBlockWithSameKey(t *testing.T) {
	store, path := newTestStore(t)

	// A hand-added block holding the same key but no marker.
	unmanaged := "[Peer]\nPublicKey = shared-key\nAllowedIPs = 10.8.0.99/32\n"
	require.NoError(t, os.WriteFile(path, []byte(unmanaged), 0o600))

	removed, err := store.RemovePeer(context.Background(), "shared-key")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, unmanaged, readConfig(t, path))
}

func TestRemovePeer_Twice(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.AppendPeer(context.Background(), "pub-a", "10.8.0.10/32", "alice"))

	removed, err := store.RemovePeer(context.Background(), "pub-a")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.RemovePeer(context.Background(), "pub-a")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestAppendRemove_MultiplePeers(t *testing.T) {
	store, path := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendPeer(ctx, "pub-a", "10.8.0.10/32", "alice"))
	require.NoError(t, store.AppendPeer(ctx, "pub-b", "10.8.0.11/32", "bob"))

	removed, err := store.RemovePeer(ctx, "pub-a")
	require.NoError(t, err)
	assert.True(t, removed)

	content := readConfig(t, path)
	assert.NotContains(t, content, "pub-a")
	assert.Contains(t, content, "PublicKey = pub-b")
	assert.Contains(t, content, "owner=bob")
}

func TestConfigStore_ConcurrentAppends(t *testing.T) {
	store, path := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	keys := []string{"pub-1", "pub-2", "pub-3", "pub-4", "pub-5"}
	for _, key := range keys {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			assert.NoError(t, store.AppendPeer(ctx, k, "10.8.0.10/32", "owner-"+k))
		}(key)
	}
	wg.Wait()

	content := readConfig(t, path)
	for _, key := range keys {
		assert.Contains(t, content, "PublicKey = "+key)
	}
}
