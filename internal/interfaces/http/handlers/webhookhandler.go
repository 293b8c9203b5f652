package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	entitlementUsecases "github.com/maxnet-vpn/maxnet/internal/application/entitlement/usecases"
	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
	"github.com/maxnet-vpn/maxnet/internal/shared/utils"
)

// WebhookHandler receives normalized lifecycle events from upstream payment
// providers. Every delivery is authenticated with an HMAC-SHA256 signature
// over the raw request body.
type WebhookHandler struct {
	grantNewUC *entitlementUsecases.GrantNewUseCase
	cancelUC   *entitlementUsecases.CancelUseCase
	secret     string
	logger     logger.Interface
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(
	grantNewUC *entitlementUsecases.GrantNewUseCase,
	cancelUC *entitlementUsecases.CancelUseCase,
	secret string,
	log logger.Interface,
) *WebhookHandler {
	return &WebhookHandler{
		grantNewUC: grantNewUC,
		cancelUC:   cancelUC,
		secret:     secret,
		logger:     log,
	}
}

// WebhookEvent is the normalized payload accepted on the webhook endpoint.
type WebhookEvent struct {
	EventID                string    `json:"event_id" binding:"required"`
	EventType              string    `json:"event_type" binding:"required"`
	ExternalUserID         int64     `json:"external_user_id"`
	ExternalSubscriptionID int64     `json:"external_subscription_id"`
	PeriodID               int64     `json:"period_id"`
	PeriodLabel            string    `json:"period_label"`
	ChannelID              int64     `json:"channel_id"`
	ChannelLabel           string    `json:"channel_label"`
	SubjectID              int64     `json:"subject_id"`
	SubjectLabel           string    `json:"subject_label"`
	ExpiresAt              time.Time `json:"expires_at"`
	DurationDays           int       `json:"duration_days"`
}

const (
	eventTypeNewSubscription = "new_subscription"
	eventTypeNewDonation     = "new_donation"
	eventTypeCancelled       = "cancelled_subscription"
)

// Handle processes one webhook delivery.
func (h *WebhookHandler) Handle(c *gin.Context) {
	provider := c.Param("provider")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "failed to read request body")
		return
	}

	if !h.verifySignature(body, c.GetHeader("X-Signature")) {
		h.logger.Warnw("webhook signature verification failed",
			"provider", provider, "client_ip", c.ClientIP())
		utils.ErrorResponse(c, http.StatusUnauthorized, "invalid signature")
		return
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid event payload: "+err.Error())
		return
	}
	if event.EventID == "" || event.EventType == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "event_id and event_type are required")
		return
	}

	switch event.EventType {
	case eventTypeNewSubscription:
		h.handleGrant(c, provider, event, entitlement.GrantKindSubscription)
	case eventTypeNewDonation:
		h.handleGrant(c, provider, event, entitlement.GrantKindDonation)
	case eventTypeCancelled:
		h.handleCancel(c, provider, event)
	default:
		utils.ErrorResponse(c, http.StatusBadRequest, "unknown event type: "+event.EventType)
	}
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if h.secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

func (h *WebhookHandler) handleGrant(c *gin.Context, provider string, event WebhookEvent, kind entitlement.GrantKind) {
	cmd := entitlementUsecases.GrantNewCommand{
		Kind:                   kind,
		Provider:               provider,
		EventID:                event.EventID,
		ExternalUserID:         event.ExternalUserID,
		ExternalSubscriptionID: event.ExternalSubscriptionID,
		PeriodID:               event.PeriodID,
		PeriodLabel:            event.PeriodLabel,
		ChannelID:              event.ChannelID,
		ChannelLabel:           event.ChannelLabel,
		SubjectID:              event.SubjectID,
		SubjectLabel:           event.SubjectLabel,
		ExpiresAt:              event.ExpiresAt,
		Duration:               time.Duration(event.DurationDays) * 24 * time.Hour,
	}

	result, err := h.grantNewUC.Execute(c.Request.Context(), cmd)
	if err != nil {
		if errors.Is(err, entitlement.ErrDuplicateEvent) {
			// Already handled and nothing left to re-deliver. Still a
			// success from the provider's point of view.
			utils.SuccessResponse(c, http.StatusOK, "event already processed", nil)
			return
		}
		h.respondGrantError(c, provider, event.EventID, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "event processed", result)
}

func (h *WebhookHandler) handleCancel(c *gin.Context, provider string, event WebhookEvent) {
	cmd := entitlementUsecases.CancelCommand{
		Provider:       provider,
		EventID:        event.EventID,
		ExternalUserID: event.ExternalUserID,
		PeriodID:       event.PeriodID,
		ChannelID:      event.ChannelID,
	}

	deactivated, err := h.cancelUC.Execute(c.Request.Context(), cmd)
	if err != nil {
		h.logger.Errorw("failed to process cancellation",
			"provider", provider, "event_id", event.EventID, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to process event")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "event processed", gin.H{
		"deactivated": deactivated,
	})
}

func (h *WebhookHandler) respondGrantError(c *gin.Context, provider, eventID string, err error) {
	switch {
	case errors.Is(err, entitlement.ErrPoolExhausted):
		utils.ErrorResponse(c, http.StatusConflict, "no free address available, try again later")
	case errors.Is(err, entitlement.ErrControlPlaneUnavailable):
		utils.ErrorResponse(c, http.StatusBadGateway, "network daemon unavailable")
	default:
		h.logger.Errorw("failed to process grant",
			"provider", provider, "event_id", eventID, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to process event")
	}
}
