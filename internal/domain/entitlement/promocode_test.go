package entitlement

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMultiUseCode(t *testing.T) *PromoCode {
	t.Helper()
	p, err := NewPromoCode("spring sale", 7, true, 100, 2, time.Time{}, 0, "spring campaign", "ops")
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func TestNewPromoCode_NormalizesValue(t *testing.T) {
	p := newMultiUseCode(t)
	assert.Equal(t, "SPRING_SALE", p.Code())
	assert.True(t, p.Active())
	assert.Equal(t, 7, p.ExtraDays())
	assert.Equal(t, 0, p.UsedCount())
}

func TestNewPromoCode_Validation(t *testing.T) {
	_, err := NewPromoCode("   ", 7, true, 0, 1, time.Time{}, 0, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value is required")

	_, err = NewPromoCode("CODE", 0, true, 0, 1, time.Time{}, 0, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one extra day")

	_, err = NewPromoCode("CODE", 7, true, 0, 0, time.Time{}, 0, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "per-user limit")

	_, err = NewPromoCode("CODE", 7, true, -1, 1, time.Time{}, 0, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max uses")
}

func TestPromoCode_RedeemableBy(t *testing.T) {
	p := newMultiUseCode(t)
	now := time.Now().UTC()

	assert.NoError(t, p.RedeemableBy(42, 0, now))

	p.Deactivate()
	assert.ErrorIs(t, p.RedeemableBy(42, 0, now), ErrPromoCodeNotRedeemable)
}

func TestPromoCode_RedeemableBy_ValidityWindow(t *testing.T) {
	until := time.Now().UTC().Add(24 * time.Hour)
	p, err := NewPromoCode("WINDOWED", 3, true, 0, 1, until, 0, "", "")
	require.NoError(t, err)

	assert.NoError(t, p.RedeemableBy(42, 0, time.Now().UTC()))
	assert.ErrorIs(t, p.RedeemableBy(42, 0, until.Add(time.Minute)), ErrPromoCodeNotRedeemable)
	assert.ErrorIs(t, p.RedeemableBy(42, 0, p.ValidFrom().Add(-time.Minute)), ErrPromoCodeNotRedeemable)
}

func TestPromoCode_RedeemableBy_ReservedSubject(t *testing.T) {
	p, err := NewPromoCode("PERSONAL", 3, true, 0, 1, time.Time{}, 42, "", "")
	require.NoError(t, err)

	assert.NoError(t, p.RedeemableBy(42, 0, time.Now().UTC()))
	assert.ErrorIs(t, p.RedeemableBy(43, 0, time.Now().UTC()), ErrPromoCodeNotRedeemable)
}

func TestPromoCode_RedeemableBy_Limits(t *testing.T) {
	p, err := NewPromoCode("LIMITED", 3, true, 2, 1, time.Time{}, 0, "", "")
	require.NoError(t, err)
	now := time.Now().UTC()

	p.MarkRedeemed()
	assert.NoError(t, p.RedeemableBy(42, 0, now))

	p.MarkRedeemed()
	assert.ErrorIs(t, p.RedeemableBy(42, 0, now), ErrPromoCodeExhausted)
}

func TestPromoCode_RedeemableBy_PerUserLimit(t *testing.T) {
	p := newMultiUseCode(t)
	now := time.Now().UTC()

	assert.NoError(t, p.RedeemableBy(42, 1, now))
	assert.ErrorIs(t, p.RedeemableBy(42, 2, now), ErrPromoCodeExhausted)
}

func TestNormalizePromoCode(t *testing.T) {
	assert.Equal(t, "SUMMER_2026", NormalizePromoCode("  summer 2026 "))
	assert.Equal(t, "PLAIN", NormalizePromoCode("plain"))
	assert.Equal(t, "", NormalizePromoCode("   "))
}

func TestGeneratePromoCode(t *testing.T) {
	code, err := GeneratePromoCode(DefaultPromoCodeLength)
	require.NoError(t, err)
	assert.Len(t, code, DefaultPromoCodeLength)
	for _, r := range code {
		assert.True(t, strings.ContainsRune(promoAlphabet, r), "unexpected character %q", r)
	}

	other, err := GeneratePromoCode(0)
	require.NoError(t, err)
	assert.Len(t, other, DefaultPromoCodeLength)
}
