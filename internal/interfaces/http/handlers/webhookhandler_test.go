package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

func newWebhookTestRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(nil, nil, secret,
		logger.NewLoggerWithSlog(slog.New(slog.DiscardHandler)))
	r := gin.New()
	r.POST("/webhooks/:provider", h.Handle)
	return r
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookHandler_RejectsMissingSignature(t *testing.T) {
	r := newWebhookTestRouter("topsecret")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing",
		strings.NewReader(`{"event_id":"e1","event_type":"new_subscription"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookHandler_RejectsTamperedBody(t *testing.T) {
	r := newWebhookTestRouter("topsecret")

	body := `{"event_id":"e1","event_type":"new_subscription"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing",
		strings.NewReader(`{"event_id":"e2","event_type":"new_subscription"}`))
	req.Header.Set("X-Signature", sign("topsecret", body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookHandler_RejectsWhenSecretUnset(t *testing.T) {
	r := newWebhookTestRouter("")

	body := `{"event_id":"e1","event_type":"new_subscription"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", strings.NewReader(body))
	req.Header.Set("X-Signature", sign("", body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookHandler_RejectsUnknownEventType(t *testing.T) {
	r := newWebhookTestRouter("topsecret")

	body := `{"event_id":"e1","event_type":"mystery"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", strings.NewReader(body))
	req.Header.Set("X-Signature", sign("topsecret", body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_RejectsMalformedPayload(t *testing.T) {
	r := newWebhookTestRouter("topsecret")

	body := `not json`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", strings.NewReader(body))
	req.Header.Set("X-Signature", sign("topsecret", body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
