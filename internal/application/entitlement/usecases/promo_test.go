package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
)

type promoFixture struct {
	repo      *fakeEntitlementRepo
	promoRepo *fakePromoRepo
	locker    *fakeLocker
	notifier  *fakeNotifier
	tx        *fakeTransactor
	redeem    *RedeemPromoUseCase
	create    *CreatePromoCodesUseCase
}

func newPromoFixture() *promoFixture {
	f := &promoFixture{
		repo:      newFakeEntitlementRepo(),
		promoRepo: newFakePromoRepo(),
		locker:    &fakeLocker{},
		notifier:  &fakeNotifier{},
		tx:        &fakeTransactor{},
	}
	f.redeem = NewRedeemPromoUseCase(f.repo, f.promoRepo, f.locker, f.notifier, f.tx, newTestLogger())
	f.create = NewCreatePromoCodesUseCase(f.promoRepo, newTestLogger())
	return f
}

func (f *promoFixture) seedCode(t *testing.T, value string, extraDays, maxUses, perUser int, allowedSubject int64) *entitlement.PromoCode {
	t.Helper()
	p, err := entitlement.NewPromoCode(value, extraDays, true, maxUses, perUser, time.Time{}, allowedSubject, "", "ops")
	require.NoError(t, err)
	require.NoError(t, f.promoRepo.Create(context.Background(), p))
	return p
}

func (f *promoFixture) seedEntitlement(t *testing.T, subject int64, expires time.Time) *entitlement.Entitlement {
	t.Helper()
	ent, err := entitlement.NewEntitlement(
		42, 0, 7, "monthly", 3, "main",
		subject, "subject",
		"10.8.0.2",
		entitlement.KeyPair{PrivateKey: "priv", PublicKey: "pub"},
		expires,
		entitlement.EventNewSubscription,
	)
	require.NoError(t, err)
	require.NoError(t, f.repo.Create(context.Background(), ent))
	return ent
}

func TestCreatePromoCodesUseCase_MultiUse(t *testing.T) {
	f := newPromoFixture()

	out, err := f.create.Execute(context.Background(), CreatePromoCodesCommand{
		ExtraDays:  14,
		MultiUse:   true,
		ManualCode: "summer deal",
		MaxUses:    50,
		CreatedBy:  "ops",
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "SUMMER_DEAL", out[0].Code)
	assert.Equal(t, 14, out[0].ExtraDays)
	assert.Equal(t, 1, out[0].PerUserLimit)

	stored, err := f.promoRepo.GetByCode(context.Background(), "SUMMER_DEAL")
	require.NoError(t, err)
	assert.Equal(t, 50, stored.MaxUses())
}

func TestCreatePromoCodesUseCase_OneShotBatch(t *testing.T) {
	f := newPromoFixture()

	out, err := f.create.Execute(context.Background(), CreatePromoCodesCommand{
		ExtraDays: 7,
		Count:     5,
	})
	require.NoError(t, err)
	require.Len(t, out, 5)

	seen := map[string]bool{}
	for _, c := range out {
		assert.Len(t, c.Code, entitlement.DefaultPromoCodeLength)
		assert.Equal(t, 1, c.MaxUses)
		assert.Equal(t, 1, c.PerUserLimit)
		assert.False(t, seen[c.Code])
		seen[c.Code] = true
	}
}

func TestCreatePromoCodesUseCase_Validation(t *testing.T) {
	f := newPromoFixture()

	_, err := f.create.Execute(context.Background(), CreatePromoCodesCommand{ExtraDays: 0, Count: 1})
	require.Error(t, err)

	_, err = f.create.Execute(context.Background(), CreatePromoCodesCommand{ExtraDays: 7, MultiUse: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a code value")

	_, err = f.create.Execute(context.Background(), CreatePromoCodesCommand{ExtraDays: 7, Count: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive count")
}

func TestRedeemPromoUseCase_ExtendsCurrentEntitlement(t *testing.T) {
	f := newPromoFixture()
	expires := time.Now().Add(24 * time.Hour).UTC()
	ent := f.seedEntitlement(t, 1001, expires)
	f.seedCode(t, "BONUS", 7, 0, 1, 0)

	result, err := f.redeem.Execute(context.Background(), RedeemPromoCommand{SubjectID: 1001, Code: " bonus "})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "BONUS", result.Code)
	assert.Equal(t, 7, result.ExtraDays)
	assert.WithinDuration(t, expires.AddDate(0, 0, 7), ent.ExpiresAt(), time.Second)
	assert.Equal(t, entitlement.EventPromoRedeemed, ent.LastEvent())

	assert.Equal(t, 1, f.tx.runCount())
	assert.Equal(t, 1, f.promoRepo.trailLen())
	assert.Equal(t, []int64{1001}, f.notifier.renewals)

	stored, err := f.promoRepo.GetByCode(context.Background(), "BONUS")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsedCount())
}

func TestRedeemPromoUseCase_NoticeRunsAfterLockRelease(t *testing.T) {
	f := newPromoFixture()
	f.seedEntitlement(t, 1001, time.Now().Add(24*time.Hour))
	f.seedCode(t, "BONUS", 7, 0, 1, 0)

	heldAtSend := true
	f.notifier.onSend = func() { heldAtSend = f.locker.isHeld() }

	_, err := f.redeem.Execute(context.Background(), RedeemPromoCommand{SubjectID: 1001, Code: "BONUS"})
	require.NoError(t, err)
	assert.False(t, heldAtSend)
}

func TestRedeemPromoUseCase_UnknownCode(t *testing.T) {
	f := newPromoFixture()
	f.seedEntitlement(t, 1001, time.Now().Add(24*time.Hour))

	_, err := f.redeem.Execute(context.Background(), RedeemPromoCommand{SubjectID: 1001, Code: "NOPE"})
	assert.ErrorIs(t, err, entitlement.ErrPromoCodeNotFound)
	assert.Empty(t, f.notifier.renewals)
}

func TestRedeemPromoUseCase_PerUserLimitEnforced(t *testing.T) {
	f := newPromoFixture()
	f.seedEntitlement(t, 1001, time.Now().Add(24*time.Hour))
	f.seedCode(t, "BONUS", 7, 0, 1, 0)

	_, err := f.redeem.Execute(context.Background(), RedeemPromoCommand{SubjectID: 1001, Code: "BONUS"})
	require.NoError(t, err)

	_, err = f.redeem.Execute(context.Background(), RedeemPromoCommand{SubjectID: 1001, Code: "BONUS"})
	assert.ErrorIs(t, err, entitlement.ErrPromoCodeExhausted)
	assert.Len(t, f.notifier.renewals, 1)
}

func TestRedeemPromoUseCase_OverallLimitEnforced(t *testing.T) {
	f := newPromoFixture()
	f.seedEntitlement(t, 1001, time.Now().Add(24*time.Hour))
	f.seedEntitlement(t, 1002, time.Now().Add(24*time.Hour))
	f.seedCode(t, "BONUS", 7, 1, 1, 0)

	_, err := f.redeem.Execute(context.Background(), RedeemPromoCommand{SubjectID: 1001, Code: "BONUS"})
	require.NoError(t, err)

	_, err = f.redeem.Execute(context.Background(), RedeemPromoCommand{SubjectID: 1002, Code: "BONUS"})
	assert.ErrorIs(t, err, entitlement.ErrPromoCodeExhausted)
}

func TestRedeemPromoUseCase_ReservedForAnotherSubject(t *testing.T) {
	f := newPromoFixture()
	f.seedEntitlement(t, 1001, time.Now().Add(24*time.Hour))
	f.seedCode(t, "PERSONAL", 7, 0, 1, 2002)

	_, err := f.redeem.Execute(context.Background(), RedeemPromoCommand{SubjectID: 1001, Code: "PERSONAL"})
	assert.ErrorIs(t, err, entitlement.ErrPromoCodeNotRedeemable)
}

func TestRedeemPromoUseCase_NoCurrentEntitlement(t *testing.T) {
	f := newPromoFixture()
	f.seedCode(t, "BONUS", 7, 0, 1, 0)

	_, err := f.redeem.Execute(context.Background(), RedeemPromoCommand{SubjectID: 1001, Code: "BONUS"})
	assert.ErrorIs(t, err, entitlement.ErrEntitlementNotFound)

	stored, err := f.promoRepo.GetByCode(context.Background(), "BONUS")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.UsedCount())
	assert.Zero(t, f.tx.runCount())
}

func TestRedeemPromoUseCase_RequiresSubjectAndCode(t *testing.T) {
	f := newPromoFixture()

	_, err := f.redeem.Execute(context.Background(), RedeemPromoCommand{SubjectID: 0, Code: "BONUS"})
	require.Error(t, err)

	_, err = f.redeem.Execute(context.Background(), RedeemPromoCommand{SubjectID: 1001, Code: "   "})
	require.Error(t, err)
}
