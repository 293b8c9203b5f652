package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/addralloc"
	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/dto"
	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/shared/constants"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// GrantNewCommand is the normalized grant-new event handed in by the
// transport layer. ExpiresAt takes precedence; when zero, Duration is added
// to the current time.
type GrantNewCommand struct {
	Kind                   entitlement.GrantKind
	Provider               string
	EventID                string
	ExternalUserID         int64
	ExternalSubscriptionID int64
	PeriodID               int64
	PeriodLabel            string
	ChannelID              int64
	ChannelLabel           string
	SubjectID              int64
	SubjectLabel           string
	ExpiresAt              time.Time
	Duration               time.Duration
}

func (c GrantNewCommand) expiry() time.Time {
	if !c.ExpiresAt.IsZero() {
		return c.ExpiresAt.UTC()
	}
	return time.Now().UTC().Add(c.Duration)
}

// GrantNewUseCase runs the grant-new transition: idempotency gate, duplicate
// match, then renew or allocate. The entire allocate-install-insert sequence
// is serialized under one named lock so a concurrent grant can never observe
// a half-completed one.
type GrantNewUseCase struct {
	entitlementRepo entitlement.Repository
	events          EventRegistry
	allocator       addralloc.Allocator
	keyGen          KeyGenerator
	peers           PeerManager
	renderer        CredentialRenderer
	locker          Locker
	notifier        SubjectNotifier
	logger          logger.Interface
}

// NewGrantNewUseCase creates a new GrantNewUseCase.
func NewGrantNewUseCase(
	entitlementRepo entitlement.Repository,
	events EventRegistry,
	allocator addralloc.Allocator,
	keyGen KeyGenerator,
	peers PeerManager,
	renderer CredentialRenderer,
	locker Locker,
	notifier SubjectNotifier,
	log logger.Interface,
) *GrantNewUseCase {
	return &GrantNewUseCase{
		entitlementRepo: entitlementRepo,
		events:          events,
		allocator:       allocator,
		keyGen:          keyGen,
		peers:           peers,
		renderer:        renderer,
		locker:          locker,
		notifier:        notifier,
		logger:          log,
	}
}

// Execute processes one grant-new event. Outcomes: a fresh allocation, a
// renewal of a matching active entitlement, or an idempotent re-delivery of
// the stored credential when the same (provider, event_id) arrives again.
func (uc *GrantNewUseCase) Execute(ctx context.Context, cmd GrantNewCommand) (*dto.GrantResultDTO, error) {
	if !cmd.Kind.IsValid() {
		return nil, fmt.Errorf("invalid grant kind: %s", cmd.Kind)
	}
	if cmd.SubjectID == 0 {
		return nil, fmt.Errorf("subject ID is required")
	}
	expiresAt := cmd.expiry()
	if !expiresAt.After(time.Now()) {
		return nil, fmt.Errorf("grant expiry %s is not in the future", expiresAt.Format(time.RFC3339))
	}

	release, err := uc.locker.Acquire(ctx, constants.LockGrantSequence)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize grant: %w", err)
	}

	result, notify, err := uc.executeLocked(ctx, cmd, expiresAt)
	release()
	if err != nil {
		return nil, err
	}

	if notify != nil {
		notify(ctx)
	}
	return result, nil
}

// executeLocked runs under the grant lock, which covers everything up to
// the durable ledger write. Subject notification happens after the caller
// drops the lock, so a slow delivery never stalls concurrent grants.
func (uc *GrantNewUseCase) executeLocked(ctx context.Context, cmd GrantNewCommand, expiresAt time.Time) (*dto.GrantResultDTO, func(context.Context), error) {
	if err := uc.events.Register(ctx, cmd.Provider, cmd.EventID); err != nil {
		if errors.Is(err, entitlement.ErrDuplicateEvent) {
			return uc.redeliver(ctx, cmd)
		}
		return nil, nil, err
	}

	existing, err := uc.findMatch(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}

	if existing != nil && existing.IsCurrent() {
		return uc.renew(ctx, existing, expiresAt)
	}

	return uc.allocate(ctx, cmd, expiresAt)
}

// findMatch applies the kind-specific duplicate-matching rule. Manual grants
// never match.
func (uc *GrantNewUseCase) findMatch(ctx context.Context, cmd GrantNewCommand) (*entitlement.Entitlement, error) {
	var (
		match *entitlement.Entitlement
		err   error
	)

	switch cmd.Kind {
	case entitlement.GrantKindSubscription:
		match, err = uc.entitlementRepo.FindCurrentSubscription(ctx,
			cmd.ExternalUserID, cmd.PeriodID, cmd.ChannelID)
	case entitlement.GrantKindDonation:
		match, err = uc.entitlementRepo.FindLatestDonation(ctx,
			cmd.ExternalUserID, cmd.ExternalSubscriptionID)
	default:
		return nil, nil
	}

	if err != nil {
		if errors.Is(err, entitlement.ErrEntitlementNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up matching entitlement: %w", err)
	}
	return match, nil
}

func (uc *GrantNewUseCase) renew(ctx context.Context, existing *entitlement.Entitlement, expiresAt time.Time) (*dto.GrantResultDTO, func(context.Context), error) {
	if err := existing.Renew(expiresAt, entitlement.EventRenewed); err != nil {
		return nil, nil, fmt.Errorf("failed to renew entitlement %d: %w", existing.ID(), err)
	}
	if err := uc.entitlementRepo.Update(ctx, existing); err != nil {
		return nil, nil, fmt.Errorf("failed to persist renewal: %w", err)
	}

	uc.logger.Infow("entitlement renewed",
		"entitlement_id", existing.ID(),
		"subject_id", existing.SubjectID(),
		"expires_at", existing.ExpiresAt())

	notify := func(ctx context.Context) {
		if err := uc.notifier.NotifyRenewal(ctx, existing.SubjectID(), existing.ExpiresAt()); err != nil {
			uc.logger.Warnw("failed to notify subject of renewal",
				"subject_id", existing.SubjectID(), "error", err)
		}
	}

	return &dto.GrantResultDTO{
		Outcome:     dto.GrantOutcomeRenewed,
		Entitlement: dto.ToEntitlementDTO(existing),
	}, notify, nil
}

// redeliver handles at-least-once redelivery of an already-processed event:
// it resends the stored credential without any allocation or ledger
// mutation. If the first delivery crashed before a ledger row was written,
// the duplicate is surfaced to the caller instead.
func (uc *GrantNewUseCase) redeliver(ctx context.Context, cmd GrantNewCommand) (*dto.GrantResultDTO, func(context.Context), error) {
	existing, err := uc.findMatch(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}
	if existing == nil {
		existing, err = uc.latestForSubject(ctx, cmd.SubjectID)
		if err != nil {
			return nil, nil, err
		}
	}
	if existing == nil {
		return nil, nil, entitlement.ErrDuplicateEvent
	}

	configText := uc.renderer.Build(existing.Keys().PrivateKey, existing.Address())

	uc.logger.Infow("re-delivering stored credential for duplicate event",
		"provider", cmd.Provider,
		"event_id", cmd.EventID,
		"entitlement_id", existing.ID())

	notify := func(ctx context.Context) {
		if err := uc.notifier.DeliverCredential(ctx, existing.SubjectID(), configText, existing.ExpiresAt()); err != nil {
			uc.logger.Warnw("failed to re-deliver credential",
				"subject_id", existing.SubjectID(), "error", err)
		}
	}

	return &dto.GrantResultDTO{
		Outcome:     dto.GrantOutcomeRedelivered,
		Entitlement: dto.ToEntitlementDTO(existing),
		ConfigText:  configText,
	}, notify, nil
}

func (uc *GrantNewUseCase) latestForSubject(ctx context.Context, subjectID int64) (*entitlement.Entitlement, error) {
	latest, err := uc.entitlementRepo.FindLatestCurrentBySubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, entitlement.ErrEntitlementNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up subject entitlement: %w", err)
	}
	return latest, nil
}

// allocate runs the claim-before-use sequence: address first, then keys,
// then the peer install, then the ledger row. Any failure releases the
// address before the grant lock is dropped, so a failed grant never starves
// the pool.
func (uc *GrantNewUseCase) allocate(ctx context.Context, cmd GrantNewCommand, expiresAt time.Time) (*dto.GrantResultDTO, func(context.Context), error) {
	address, err := uc.allocator.Allocate(ctx)
	if err != nil {
		if errors.Is(err, entitlement.ErrPoolExhausted) {
			uc.logger.Warnw("grant rejected, address pool exhausted",
				"subject_id", cmd.SubjectID)
		}
		return nil, nil, err
	}

	keys, err := uc.keyGen.Generate()
	if err != nil {
		uc.releaseAddress(ctx, address)
		return nil, nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	allowed := uc.renderer.AllowedAddress(address)
	if err := uc.peers.InstallPeer(ctx, keys.PublicKey, allowed, cmd.SubjectLabel); err != nil {
		uc.releaseAddress(ctx, address)
		return nil, nil, err
	}

	ent, err := entitlement.NewEntitlement(
		cmd.ExternalUserID,
		cmd.ExternalSubscriptionID,
		cmd.PeriodID,
		cmd.PeriodLabel,
		cmd.ChannelID,
		cmd.ChannelLabel,
		cmd.SubjectID,
		cmd.SubjectLabel,
		address,
		keys,
		expiresAt,
		cmd.Kind.GrantEvent(),
	)
	if err != nil {
		uc.rollbackInstall(ctx, keys.PublicKey, address)
		return nil, nil, fmt.Errorf("failed to build entitlement: %w", err)
	}

	if err := uc.entitlementRepo.Create(ctx, ent); err != nil {
		uc.rollbackInstall(ctx, keys.PublicKey, address)
		return nil, nil, fmt.Errorf("failed to persist entitlement: %w", err)
	}

	uc.logger.Infow("entitlement granted",
		"entitlement_id", ent.ID(),
		"subject_id", ent.SubjectID(),
		"address", address,
		"kind", cmd.Kind.String(),
		"expires_at", expiresAt)

	configText := uc.renderer.Build(keys.PrivateKey, address)
	notify := func(ctx context.Context) {
		if err := uc.notifier.DeliverCredential(ctx, ent.SubjectID(), configText, expiresAt); err != nil {
			uc.logger.Warnw("failed to deliver credential",
				"subject_id", ent.SubjectID(), "error", err)
		}
	}

	return &dto.GrantResultDTO{
		Outcome:     dto.GrantOutcomeGranted,
		Entitlement: dto.ToEntitlementDTO(ent),
		ConfigText:  configText,
	}, notify, nil
}

func (uc *GrantNewUseCase) releaseAddress(ctx context.Context, address string) {
	if err := uc.allocator.Release(ctx, address); err != nil {
		uc.logger.Errorw("failed to release address after grant failure",
			"address", address, "error", err)
	}
}

func (uc *GrantNewUseCase) rollbackInstall(ctx context.Context, publicKey, address string) {
	if err := uc.peers.RemovePeer(ctx, publicKey); err != nil {
		uc.logger.Errorw("failed to remove peer after grant failure",
			"public_key", publicKey, "error", err)
	}
	uc.releaseAddress(ctx, address)
}
