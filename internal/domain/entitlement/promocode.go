package entitlement

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// promoAlphabet excludes characters that read alike (O/0, I/1) so a code
// can be dictated without ambiguity.
const promoAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultPromoCodeLength is the length of generated one-shot codes.
const DefaultPromoCodeLength = 10

// PromoCode grants extra days on a subject's current entitlement. A
// one-shot code carries a random value and a single use; a multi-use code
// carries an operator-chosen value with an overall and a per-subject limit.
type PromoCode struct {
	id               uint
	code             string
	extraDays        int
	multiUse         bool
	maxUses          int // 0 means unlimited
	perUserLimit     int
	usedCount        int
	validFrom        time.Time
	validUntil       time.Time // zero means no end of validity
	allowedSubjectID int64     // 0 means any subject
	active           bool
	comment          string
	createdBy        string
	createdAt        time.Time
}

// NewPromoCode creates an active promo code. The code value is stored
// normalized.
func NewPromoCode(
	code string,
	extraDays int,
	multiUse bool,
	maxUses int,
	perUserLimit int,
	validUntil time.Time,
	allowedSubjectID int64,
	comment string,
	createdBy string,
) (*PromoCode, error) {
	normalized := NormalizePromoCode(code)
	if normalized == "" {
		return nil, fmt.Errorf("promo code value is required")
	}
	if extraDays <= 0 {
		return nil, fmt.Errorf("promo code must grant at least one extra day")
	}
	if perUserLimit <= 0 {
		return nil, fmt.Errorf("per-user limit must be positive")
	}
	if maxUses < 0 {
		return nil, fmt.Errorf("max uses cannot be negative")
	}

	now := time.Now().UTC()
	return &PromoCode{
		code:             normalized,
		extraDays:        extraDays,
		multiUse:         multiUse,
		maxUses:          maxUses,
		perUserLimit:     perUserLimit,
		validFrom:        now,
		validUntil:       validUntil.UTC(),
		allowedSubjectID: allowedSubjectID,
		active:           true,
		comment:          comment,
		createdBy:        createdBy,
		createdAt:        now,
	}, nil
}

// ReconstructPromoCode rebuilds a promo code from persistence.
func ReconstructPromoCode(
	id uint,
	code string,
	extraDays int,
	multiUse bool,
	maxUses int,
	perUserLimit int,
	usedCount int,
	validFrom time.Time,
	validUntil time.Time,
	allowedSubjectID int64,
	active bool,
	comment string,
	createdBy string,
	createdAt time.Time,
) (*PromoCode, error) {
	if id == 0 {
		return nil, fmt.Errorf("promo code ID cannot be zero")
	}
	if code == "" {
		return nil, fmt.Errorf("promo code value is required")
	}
	return &PromoCode{
		id:               id,
		code:             code,
		extraDays:        extraDays,
		multiUse:         multiUse,
		maxUses:          maxUses,
		perUserLimit:     perUserLimit,
		usedCount:        usedCount,
		validFrom:        validFrom,
		validUntil:       validUntil,
		allowedSubjectID: allowedSubjectID,
		active:           active,
		comment:          comment,
		createdBy:        createdBy,
		createdAt:        createdAt,
	}, nil
}

// SetID assigns the persistence identity after the initial insert.
func (p *PromoCode) SetID(id uint) error {
	if p.id != 0 {
		return fmt.Errorf("promo code ID already set")
	}
	if id == 0 {
		return fmt.Errorf("promo code ID cannot be zero")
	}
	p.id = id
	return nil
}

func (p *PromoCode) ID() uint                { return p.id }
func (p *PromoCode) Code() string            { return p.code }
func (p *PromoCode) ExtraDays() int          { return p.extraDays }
func (p *PromoCode) MultiUse() bool          { return p.multiUse }
func (p *PromoCode) MaxUses() int            { return p.maxUses }
func (p *PromoCode) PerUserLimit() int       { return p.perUserLimit }
func (p *PromoCode) UsedCount() int          { return p.usedCount }
func (p *PromoCode) ValidFrom() time.Time    { return p.validFrom }
func (p *PromoCode) ValidUntil() time.Time   { return p.validUntil }
func (p *PromoCode) AllowedSubjectID() int64 { return p.allowedSubjectID }
func (p *PromoCode) Active() bool            { return p.active }
func (p *PromoCode) Comment() string         { return p.comment }
func (p *PromoCode) CreatedBy() string       { return p.createdBy }
func (p *PromoCode) CreatedAt() time.Time    { return p.createdAt }

// RedeemableBy checks every redemption precondition for the subject:
// activation state, validity window, subject restriction, the overall use
// limit and the per-subject limit given the subject's prior redemptions.
func (p *PromoCode) RedeemableBy(subjectID int64, priorUses int, now time.Time) error {
	if !p.active {
		return fmt.Errorf("%w: code disabled", ErrPromoCodeNotRedeemable)
	}
	if now.Before(p.validFrom) {
		return fmt.Errorf("%w: not yet valid", ErrPromoCodeNotRedeemable)
	}
	if !p.validUntil.IsZero() && now.After(p.validUntil) {
		return fmt.Errorf("%w: validity window ended", ErrPromoCodeNotRedeemable)
	}
	if p.allowedSubjectID != 0 && p.allowedSubjectID != subjectID {
		return fmt.Errorf("%w: reserved for another subject", ErrPromoCodeNotRedeemable)
	}
	if p.maxUses > 0 && p.usedCount >= p.maxUses {
		return ErrPromoCodeExhausted
	}
	if priorUses >= p.perUserLimit {
		return ErrPromoCodeExhausted
	}
	return nil
}

// MarkRedeemed counts one redemption.
func (p *PromoCode) MarkRedeemed() {
	p.usedCount++
}

// Deactivate disables the code for further redemptions.
func (p *PromoCode) Deactivate() {
	p.active = false
}

// NormalizePromoCode canonicalizes an operator- or subject-entered code:
// surrounding whitespace is dropped, letters are uppercased and inner
// spaces become underscores.
func NormalizePromoCode(code string) string {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	return strings.ReplaceAll(normalized, " ", "_")
}

// GeneratePromoCode returns a random code of the given length drawn from
// the unambiguous alphabet.
func GeneratePromoCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultPromoCodeLength
	}
	max := big.NewInt(int64(len(promoAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate promo code: %w", err)
		}
		out[i] = promoAlphabet[n.Int64()]
	}
	return string(out), nil
}
