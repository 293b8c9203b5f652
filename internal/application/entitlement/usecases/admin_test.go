package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
)

func TestAdminDeactivateUseCase_ReleasesAndRemoves(t *testing.T) {
	repo := newFakeEntitlementRepo()
	allocator := newFakeAllocator("10.8.0.2")
	peers := newFakePeers()
	uc := NewAdminDeactivateUseCase(repo, allocator, peers, newTestLogger())

	ent := seedActive(t, repo, allocator, 42, 1001, "10.8.0.2", "pub-a")

	result, err := uc.Execute(context.Background(), ent.ID())
	require.NoError(t, err)

	assert.False(t, result.Active)
	assert.Equal(t, entitlement.EventAdminDeactivate.String(), result.LastEvent)
	assert.False(t, allocator.isAllocated("10.8.0.2"))
	assert.Equal(t, 1, peers.removalsFor("pub-a"))
}

func TestAdminDeactivateUseCase_AlreadyInactiveIsNoOp(t *testing.T) {
	repo := newFakeEntitlementRepo()
	allocator := newFakeAllocator("10.8.0.2")
	peers := newFakePeers()
	uc := NewAdminDeactivateUseCase(repo, allocator, peers, newTestLogger())

	ent := seedActive(t, repo, allocator, 42, 1001, "10.8.0.2", "pub-a")
	require.NoError(t, ent.Deactivate(entitlement.EventCancelled))
	require.NoError(t, repo.Update(context.Background(), ent))

	result, err := uc.Execute(context.Background(), ent.ID())
	require.NoError(t, err)

	assert.False(t, result.Active)
	// The original cause stays; no removal or release is attempted.
	assert.Equal(t, entitlement.EventCancelled.String(), result.LastEvent)
	assert.Equal(t, 0, peers.removalsFor("pub-a"))
}

func TestAdminActivateUseCase_ReclaimsAddressAndReinstalls(t *testing.T) {
	repo := newFakeEntitlementRepo()
	allocator := newFakeAllocator("10.8.0.2")
	peers := newFakePeers()
	uc := NewAdminActivateUseCase(repo, allocator, peers, fakeRenderer{}, newTestLogger())

	ent := seedActive(t, repo, allocator, 42, 1001, "10.8.0.2", "pub-a")
	require.NoError(t, ent.Deactivate(entitlement.EventAdminDeactivate))
	require.NoError(t, repo.Update(context.Background(), ent))
	require.NoError(t, allocator.Release(context.Background(), "10.8.0.2"))

	result, err := uc.Execute(context.Background(), ent.ID())
	require.NoError(t, err)

	assert.True(t, result.Active)
	assert.Equal(t, entitlement.EventAdminActivate.String(), result.LastEvent)
	assert.Equal(t, "10.8.0.2", result.Address)
	assert.True(t, allocator.isAllocated("10.8.0.2"))
	assert.Equal(t, "10.8.0.2/32", peers.installed["pub-a"])
}

func TestAdminActivateUseCase_AddressHeldByAnotherRejected(t *testing.T) {
	repo := newFakeEntitlementRepo()
	allocator := newFakeAllocator("10.8.0.2")
	peers := newFakePeers()
	uc := NewAdminActivateUseCase(repo, allocator, peers, fakeRenderer{}, newTestLogger())

	ent := seedActive(t, repo, allocator, 42, 1001, "10.8.0.2", "pub-a")
	require.NoError(t, ent.Deactivate(entitlement.EventAdminDeactivate))
	require.NoError(t, repo.Update(context.Background(), ent))
	require.NoError(t, allocator.Release(context.Background(), "10.8.0.2"))

	// Another subject now actively holds the same address.
	seedActive(t, repo, allocator, 43, 1002, "10.8.0.2", "pub-b")
	require.NoError(t, allocator.Release(context.Background(), "10.8.0.2"))

	_, err := uc.Execute(context.Background(), ent.ID())
	assert.ErrorIs(t, err, entitlement.ErrAddressUnavailable)
	assert.Equal(t, 0, peers.installs)
}

func TestAdminActivateUseCase_ActiveEntitlementRejected(t *testing.T) {
	repo := newFakeEntitlementRepo()
	allocator := newFakeAllocator("10.8.0.2")
	uc := NewAdminActivateUseCase(repo, allocator, newFakePeers(), fakeRenderer{}, newTestLogger())

	ent := seedActive(t, repo, allocator, 42, 1001, "10.8.0.2", "pub-a")

	_, err := uc.Execute(context.Background(), ent.ID())
	assert.ErrorIs(t, err, entitlement.ErrEntitlementActive)
}

func TestAdminActivateUseCase_InstallFailureReleasesClaim(t *testing.T) {
	repo := newFakeEntitlementRepo()
	allocator := newFakeAllocator("10.8.0.2")
	peers := newFakePeers()
	peers.installErr = entitlement.ErrControlPlaneUnavailable
	uc := NewAdminActivateUseCase(repo, allocator, peers, fakeRenderer{}, newTestLogger())

	ent := seedActive(t, repo, allocator, 42, 1001, "10.8.0.2", "pub-a")
	require.NoError(t, ent.Deactivate(entitlement.EventAdminDeactivate))
	require.NoError(t, repo.Update(context.Background(), ent))
	require.NoError(t, allocator.Release(context.Background(), "10.8.0.2"))

	_, err := uc.Execute(context.Background(), ent.ID())
	assert.ErrorIs(t, err, entitlement.ErrControlPlaneUnavailable)

	assert.False(t, allocator.isAllocated("10.8.0.2"))
	got, err := repo.GetByID(context.Background(), ent.ID())
	require.NoError(t, err)
	assert.False(t, got.Active())
}

func TestAdminDeleteUseCase_RemovesRowAndPeer(t *testing.T) {
	repo := newFakeEntitlementRepo()
	allocator := newFakeAllocator("10.8.0.2")
	peers := newFakePeers()
	uc := NewAdminDeleteUseCase(repo, allocator, peers, newTestLogger())

	ent := seedActive(t, repo, allocator, 42, 1001, "10.8.0.2", "pub-a")

	result, err := uc.Execute(context.Background(), ent.ID())
	require.NoError(t, err)
	assert.Equal(t, ent.ID(), result.ID)

	_, err = repo.GetByID(context.Background(), ent.ID())
	assert.ErrorIs(t, err, entitlement.ErrEntitlementNotFound)
	assert.False(t, allocator.isAllocated("10.8.0.2"))
	assert.Equal(t, 1, peers.removalsFor("pub-a"))
}

func TestAdminDeleteUseCase_InactiveStillAttemptsRemoval(t *testing.T) {
	repo := newFakeEntitlementRepo()
	allocator := newFakeAllocator("10.8.0.2")
	peers := newFakePeers()
	uc := NewAdminDeleteUseCase(repo, allocator, peers, newTestLogger())

	ent := seedActive(t, repo, allocator, 42, 1001, "10.8.0.2", "pub-a")
	require.NoError(t, ent.Deactivate(entitlement.EventCancelled))
	require.NoError(t, repo.Update(context.Background(), ent))

	_, err := uc.Execute(context.Background(), ent.ID())
	require.NoError(t, err)

	assert.Equal(t, 1, peers.removalsFor("pub-a"))
	_, err = repo.GetByID(context.Background(), ent.ID())
	assert.ErrorIs(t, err, entitlement.ErrEntitlementNotFound)
}

func TestAdminUseCases_NotFound(t *testing.T) {
	repo := newFakeEntitlementRepo()
	allocator := newFakeAllocator()
	peers := newFakePeers()
	log := newTestLogger()

	_, err := NewAdminDeactivateUseCase(repo, allocator, peers, log).Execute(context.Background(), 99)
	assert.ErrorIs(t, err, entitlement.ErrEntitlementNotFound)

	_, err = NewAdminActivateUseCase(repo, allocator, peers, fakeRenderer{}, log).Execute(context.Background(), 99)
	assert.ErrorIs(t, err, entitlement.ErrEntitlementNotFound)

	_, err = NewAdminDeleteUseCase(repo, allocator, peers, log).Execute(context.Background(), 99)
	assert.ErrorIs(t, err, entitlement.ErrEntitlementNotFound)
}

func TestManualGrantUseCase_ReplacesExisting(t *testing.T) {
	repo := newFakeEntitlementRepo()
	allocator := newFakeAllocator("10.8.0.2", "10.8.0.3")
	peers := newFakePeers()
	notifier := &fakeNotifier{}
	uc := NewManualGrantUseCase(repo, allocator, &fakeKeyGen{}, peers,
		fakeRenderer{}, &fakeLocker{}, notifier, newTestLogger())

	prior := seedActive(t, repo, allocator, 42, 1001, "10.8.0.2", "pub-a")

	result, err := uc.Execute(context.Background(), ManualGrantCommand{
		SubjectID:    1001,
		SubjectLabel: "alice",
		Duration:     30 * 24 * time.Hour,
	})
	require.NoError(t, err)

	assert.True(t, result.Entitlement.Active)
	assert.Equal(t, "10.8.0.3", result.Entitlement.Address)
	assert.Equal(t, entitlement.EventManualGrant.String(), result.Entitlement.LastEvent)

	replaced, err := repo.GetByID(context.Background(), prior.ID())
	require.NoError(t, err)
	assert.False(t, replaced.Active())
	assert.Equal(t, entitlement.EventReplaced, replaced.LastEvent())
	assert.False(t, allocator.isAllocated("10.8.0.2"))
	assert.Equal(t, 1, peers.removalsFor("pub-a"))
	assert.Len(t, notifier.credentials, 1)
}

func TestManualGrantUseCase_DeliveryRunsAfterLockRelease(t *testing.T) {
	repo := newFakeEntitlementRepo()
	allocator := newFakeAllocator("10.8.0.2")
	locker := &fakeLocker{}
	notifier := &fakeNotifier{}
	uc := NewManualGrantUseCase(repo, allocator, &fakeKeyGen{}, newFakePeers(),
		fakeRenderer{}, locker, notifier, newTestLogger())

	heldAtSend := true
	notifier.onSend = func() { heldAtSend = locker.isHeld() }

	_, err := uc.Execute(context.Background(), ManualGrantCommand{
		SubjectID:    1001,
		SubjectLabel: "alice",
		Duration:     30 * 24 * time.Hour,
	})
	require.NoError(t, err)

	require.Len(t, notifier.credentials, 1)
	assert.False(t, heldAtSend, "credential delivery must not run under the grant lock")
}

func TestManualGrantUseCase_Validation(t *testing.T) {
	uc := NewManualGrantUseCase(newFakeEntitlementRepo(), newFakeAllocator(), &fakeKeyGen{},
		newFakePeers(), fakeRenderer{}, &fakeLocker{}, &fakeNotifier{}, newTestLogger())

	_, err := uc.Execute(context.Background(), ManualGrantCommand{Duration: time.Hour})
	assert.Error(t, err)

	_, err = uc.Execute(context.Background(), ManualGrantCommand{SubjectID: 1})
	assert.Error(t, err)
}
