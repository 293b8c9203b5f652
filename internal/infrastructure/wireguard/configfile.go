package wireguard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// markerPrefix tags every peer block this service owns. Blocks without the
// marker are foreign (hand-maintained) entries and are never touched.
const markerPrefix = "# maxnet-managed peer"

// ConfigStore edits the daemon's persisted configuration file. All edits
// happen under an exclusive advisory lock on a sentinel file and are written
// via temp-file plus atomic rename, so concurrent writers cannot interleave
// and a crash mid-write cannot truncate the config.
type ConfigStore struct {
	path        string
	lockTimeout time.Duration
	logger      logger.Interface

	// mu serializes writers inside this process; the fcntl lock only
	// excludes other processes.
	mu sync.Mutex
}

// NewConfigStore creates a store for the given configuration file path.
func NewConfigStore(path string, log logger.Interface) *ConfigStore {
	return &ConfigStore{
		path:        path,
		lockTimeout: 5 * time.Second,
		logger:      log,
	}
}

// AppendPeer appends a managed peer block:
//
//	# maxnet-managed peer owner=<label>
//	[Peer]
//	PublicKey = <key>
//	AllowedIPs = <address>
func (s *ConfigStore) AppendPeer(ctx context.Context, publicKey, allowedAddress, ownerLabel string) error {
	return s.withLock(ctx, func() error {
		content, err := s.read()
		if err != nil {
			return err
		}

		var b strings.Builder
		b.WriteString(content)
		if content != "" && !strings.HasSuffix(content, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s owner=%s\n", markerPrefix, ownerLabel)
		b.WriteString("[Peer]\n")
		fmt.Fprintf(&b, "PublicKey = %s\n", publicKey)
		fmt.Fprintf(&b, "AllowedIPs = %s\n", allowedAddress)

		return s.writeAtomic(b.String())
	})
}

// RemovePeer deletes the managed block holding publicKey. The block must
// carry the marker; a matching public key inside a foreign block is left
// alone. Removing an absent peer is a no-op. Reports whether a block was
// removed.
func (s *ConfigStore) RemovePeer(ctx context.Context, publicKey string) (bool, error) {
	removed := false
	err := s.withLock(ctx, func() error {
		content, err := s.read()
		if err != nil {
			return err
		}
		if content == "" {
			return nil
		}

		lines := strings.SplitAfter(content, "\n")
		target := "PublicKey = " + publicKey

		var kept []string
		i := 0
		for i < len(lines) {
			line := lines[i]
			if strings.HasPrefix(line, markerPrefix) && i+2 < len(lines) &&
				strings.TrimRight(lines[i+1], "\n") == "[Peer]" &&
				strings.TrimRight(lines[i+2], "\n") == target {
				// Skip the managed block up to and including the blank
				// separator line that follows it.
				i += 3
				for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
					i++
				}
				if i < len(lines) && strings.TrimSpace(lines[i]) == "" {
					i++
				}
				removed = true
				continue
			}
			kept = append(kept, line)
			i++
		}

		if !removed {
			return nil
		}
		return s.writeAtomic(strings.Join(kept, ""))
	})
	return removed, err
}

func (s *ConfigStore) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	lockPath := s.path + ".lock"
	lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}
	defer lock.Close()

	if err := lockFile(lockCtx, lock); err != nil {
		return fmt.Errorf("failed to lock %s: %w", lockPath, err)
	}
	defer func() {
		if err := unlockFile(lock); err != nil {
			s.logger.Warnw("failed to unlock config file", "path", lockPath, "error", err)
		}
	}()

	return fn()
}

func (s *ConfigStore) read() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config %s: %w", s.path, err)
	}
	return string(data), nil
}

// writeAtomic replaces the config via temp file and rename so readers never
// observe a partially-written file.
func (s *ConfigStore) writeAtomic(content string) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp config: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temp config: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace config %s: %w", s.path, err)
	}
	return nil
}
