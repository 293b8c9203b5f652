package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/addralloc"
	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/dto"
	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/shared/constants"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// ManualGrantCommand issues access by administrative decision rather than a
// payment event.
type ManualGrantCommand struct {
	SubjectID    int64
	SubjectLabel string
	Duration     time.Duration
}

// ManualGrantUseCase issues a fresh entitlement for a subject. Any prior
// active entitlements of the subject are replaced: deactivated and their
// addresses released before the new one is allocated.
type ManualGrantUseCase struct {
	entitlementRepo entitlement.Repository
	allocator       addralloc.Allocator
	keyGen          KeyGenerator
	peers           PeerManager
	renderer        CredentialRenderer
	locker          Locker
	notifier        SubjectNotifier
	logger          logger.Interface
}

// NewManualGrantUseCase creates a new ManualGrantUseCase.
func NewManualGrantUseCase(
	entitlementRepo entitlement.Repository,
	allocator addralloc.Allocator,
	keyGen KeyGenerator,
	peers PeerManager,
	renderer CredentialRenderer,
	locker Locker,
	notifier SubjectNotifier,
	log logger.Interface,
) *ManualGrantUseCase {
	return &ManualGrantUseCase{
		entitlementRepo: entitlementRepo,
		allocator:       allocator,
		keyGen:          keyGen,
		peers:           peers,
		renderer:        renderer,
		locker:          locker,
		notifier:        notifier,
		logger:          log,
	}
}

// Execute replaces the subject's current entitlements with a new manual one.
func (uc *ManualGrantUseCase) Execute(ctx context.Context, cmd ManualGrantCommand) (*dto.GrantResultDTO, error) {
	if cmd.SubjectID == 0 {
		return nil, fmt.Errorf("subject ID is required")
	}
	if cmd.Duration <= 0 {
		return nil, fmt.Errorf("grant duration must be positive")
	}

	release, err := uc.locker.Acquire(ctx, constants.LockGrantSequence)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize grant: %w", err)
	}

	result, expiresAt, err := uc.issue(ctx, cmd)
	release()
	if err != nil {
		return nil, err
	}

	// Delivery runs after the grant lock is dropped so a slow send cannot
	// stall concurrent grants.
	if err := uc.notifier.DeliverCredential(ctx, cmd.SubjectID, result.ConfigText, expiresAt); err != nil {
		uc.logger.Warnw("failed to deliver credential",
			"subject_id", cmd.SubjectID, "error", err)
	}

	return result, nil
}

// issue runs the replace-allocate-install-insert sequence under the grant
// lock held by Execute.
func (uc *ManualGrantUseCase) issue(ctx context.Context, cmd ManualGrantCommand) (*dto.GrantResultDTO, time.Time, error) {
	if err := uc.replaceExisting(ctx, cmd.SubjectID); err != nil {
		return nil, time.Time{}, err
	}

	address, err := uc.allocator.Allocate(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}

	keys, err := uc.keyGen.Generate()
	if err != nil {
		uc.releaseAddress(ctx, address)
		return nil, time.Time{}, fmt.Errorf("failed to generate key pair: %w", err)
	}

	if err := uc.peers.InstallPeer(ctx, keys.PublicKey, uc.renderer.AllowedAddress(address), cmd.SubjectLabel); err != nil {
		uc.releaseAddress(ctx, address)
		return nil, time.Time{}, err
	}

	expiresAt := time.Now().UTC().Add(cmd.Duration)
	ent, err := entitlement.NewEntitlement(
		0, 0, 0, "", 0, "",
		cmd.SubjectID,
		cmd.SubjectLabel,
		address,
		keys,
		expiresAt,
		entitlement.EventManualGrant,
	)
	if err != nil {
		uc.rollbackInstall(ctx, keys.PublicKey, address)
		return nil, time.Time{}, fmt.Errorf("failed to build entitlement: %w", err)
	}

	if err := uc.entitlementRepo.Create(ctx, ent); err != nil {
		uc.rollbackInstall(ctx, keys.PublicKey, address)
		return nil, time.Time{}, fmt.Errorf("failed to persist entitlement: %w", err)
	}

	uc.logger.Infow("manual entitlement granted",
		"entitlement_id", ent.ID(),
		"subject_id", cmd.SubjectID,
		"address", address,
		"expires_at", expiresAt)

	configText := uc.renderer.Build(keys.PrivateKey, address)
	return &dto.GrantResultDTO{
		Outcome:     dto.GrantOutcomeGranted,
		Entitlement: dto.ToEntitlementDTO(ent),
		ConfigText:  configText,
	}, expiresAt, nil
}

// replaceExisting deactivates the subject's current entitlements so a
// manual grant supersedes whatever they held before.
func (uc *ManualGrantUseCase) replaceExisting(ctx context.Context, subjectID int64) error {
	current, err := uc.entitlementRepo.FindCurrentBySubject(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("failed to find current entitlements: %w", err)
	}

	for _, ent := range current {
		if err := ent.Deactivate(entitlement.EventReplaced); err != nil {
			return err
		}
		if err := uc.entitlementRepo.Update(ctx, ent); err != nil {
			return fmt.Errorf("failed to replace entitlement %d: %w", ent.ID(), err)
		}
		uc.releaseAddress(ctx, ent.Address())
		if err := uc.peers.RemovePeer(ctx, ent.Keys().PublicKey); err != nil {
			uc.logger.Errorw("failed to remove replaced peer",
				"entitlement_id", ent.ID(), "error", err)
		}
		uc.logger.Infow("entitlement replaced by manual grant",
			"entitlement_id", ent.ID(), "subject_id", subjectID)
	}
	return nil
}

func (uc *ManualGrantUseCase) releaseAddress(ctx context.Context, address string) {
	if err := uc.allocator.Release(ctx, address); err != nil {
		uc.logger.Errorw("failed to release address",
			"address", address, "error", err)
	}
}

func (uc *ManualGrantUseCase) rollbackInstall(ctx context.Context, publicKey, address string) {
	if err := uc.peers.RemovePeer(ctx, publicKey); err != nil {
		uc.logger.Errorw("failed to remove peer after grant failure",
			"public_key", publicKey, "error", err)
	}
	uc.releaseAddress(ctx, address)
}
