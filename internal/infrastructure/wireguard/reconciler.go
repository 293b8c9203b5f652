package wireguard

import (
	"context"

	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// PeerReconciler keeps the live daemon peer table and the persisted
// configuration file in step for one credential at a time. The live control
// operation always runs first: if it fails nothing is written to the file,
// so the file can never get ahead of the daemon. A file failure after a
// successful control operation is reconciliation drift; it is logged loudly
// and surfaced to the caller's logs, never retried in-band, because an
// automatic retry could race a concurrent edit and a daemon restart would
// silently drop the live-only change.
type PeerReconciler struct {
	controller *DeviceController
	store      *ConfigStore
	logger     logger.Interface
}

// NewPeerReconciler creates a reconciler over the controller and config
// store.
func NewPeerReconciler(controller *DeviceController, store *ConfigStore, log logger.Interface) *PeerReconciler {
	return &PeerReconciler{
		controller: controller,
		store:      store,
		logger:     log,
	}
}

// InstallPeer adds the peer to the live interface, then persists it.
func (r *PeerReconciler) InstallPeer(ctx context.Context, publicKey, allowedAddress, ownerLabel string) error {
	if err := r.controller.AddPeer(ctx, publicKey, allowedAddress); err != nil {
		return err
	}

	if err := r.store.AppendPeer(ctx, publicKey, allowedAddress, ownerLabel); err != nil {
		// The daemon now has a peer the file does not: drift. The live
		// install stands; losing the ledger-side grant over a file error
		// would be worse than a restart losing this one peer.
		r.logger.Errorw("reconciliation drift: peer installed on daemon but not persisted",
			"public_key", publicKey,
			"allowed_address", allowedAddress,
			"error", err)
		return nil
	}

	r.logger.Infow("peer installed",
		"public_key", publicKey,
		"allowed_address", allowedAddress,
		"owner", ownerLabel)
	return nil
}

// RemovePeer removes the peer from the live interface, then from the file.
// Removing a peer that is not installed is a no-op.
func (r *PeerReconciler) RemovePeer(ctx context.Context, publicKey string) error {
	if err := r.controller.RemovePeer(ctx, publicKey); err != nil {
		return err
	}

	removed, err := r.store.RemovePeer(ctx, publicKey)
	if err != nil {
		r.logger.Errorw("reconciliation drift: peer removed from daemon but still persisted",
			"public_key", publicKey,
			"error", err)
		return nil
	}

	r.logger.Infow("peer removed", "public_key", publicKey, "persisted_block_removed", removed)
	return nil
}
