package dto

import (
	"time"
)

// EntitlementDTO is the read projection of one entitlement exposed to the
// admin and transport surfaces. The private key never leaves the grant path.
type EntitlementDTO struct {
	ID                     uint      `json:"id"`
	ExternalUserID         int64     `json:"external_user_id,omitempty"`
	ExternalSubscriptionID int64     `json:"external_subscription_id,omitempty"`
	PeriodID               int64     `json:"period_id,omitempty"`
	PeriodLabel            string    `json:"period_label,omitempty"`
	ChannelID              int64     `json:"channel_id,omitempty"`
	ChannelLabel           string    `json:"channel_label,omitempty"`
	SubjectID              int64     `json:"subject_id"`
	SubjectLabel           string    `json:"subject_label,omitempty"`
	Address                string    `json:"address"`
	PublicKey              string    `json:"public_key"`
	CreatedAt              time.Time `json:"created_at"`
	ExpiresAt              time.Time `json:"expires_at"`
	Active                 bool      `json:"active"`
	LastEvent              string    `json:"last_event"`
}

// GrantResultDTO is returned by the grant path. Outcome tells the caller
// which branch ran: a fresh allocation, a renewal of an existing
// entitlement, or an idempotent re-delivery of a stored credential.
type GrantResultDTO struct {
	Outcome     GrantOutcome `json:"outcome"`
	Entitlement *EntitlementDTO `json:"entitlement"`
	// ConfigText is the rendered client configuration, set on granted and
	// redelivered outcomes.
	ConfigText string `json:"config_text,omitempty"`
}

// GrantOutcome enumerates the grant branches.
type GrantOutcome string

const (
	GrantOutcomeGranted     GrantOutcome = "granted"
	GrantOutcomeRenewed     GrantOutcome = "renewed"
	GrantOutcomeRedelivered GrantOutcome = "redelivered"
)

// PromoCodeDTO is the read projection of one promo code.
type PromoCodeDTO struct {
	ID               uint      `json:"id"`
	Code             string    `json:"code"`
	ExtraDays        int       `json:"extra_days"`
	MultiUse         bool      `json:"multi_use"`
	MaxUses          int       `json:"max_uses,omitempty"`
	PerUserLimit     int       `json:"per_user_limit"`
	UsedCount        int       `json:"used_count"`
	ValidFrom        time.Time `json:"valid_from"`
	ValidUntil       time.Time `json:"valid_until,omitempty"`
	AllowedSubjectID int64     `json:"allowed_subject_id,omitempty"`
	Active           bool      `json:"active"`
	Comment          string    `json:"comment,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// RedemptionResultDTO is returned after a promo code is applied to an
// entitlement.
type RedemptionResultDTO struct {
	Code        string          `json:"code"`
	ExtraDays   int             `json:"extra_days"`
	Entitlement *EntitlementDTO `json:"entitlement"`
}
