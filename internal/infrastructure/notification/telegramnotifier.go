// Package notification delivers credential artifacts and lifecycle notices
// to subjects over the Telegram Bot API. Delivery is always best-effort from
// the caller's point of view and never runs under an allocation or file
// lock.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/maxnet-vpn/maxnet/internal/shared/config"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// TelegramNotifier sends messages to subjects, addressed by their chat ID.
type TelegramNotifier struct {
	httpClient *http.Client
	baseURL    string
	logger     logger.Interface
}

// NewTelegramNotifier creates a new TelegramNotifier.
func NewTelegramNotifier(cfg config.TelegramConfig, log logger.Interface) *TelegramNotifier {
	return &TelegramNotifier{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: fmt.Sprintf("https://api.telegram.org/bot%s", cfg.BotToken),
		logger:  log,
	}
}

// DeliverCredential sends the rendered configuration as a file attachment
// so the subject can import it directly into their client.
func (n *TelegramNotifier) DeliverCredential(ctx context.Context, subjectID int64, configText string, expiresAt time.Time) error {
	caption := fmt.Sprintf("Your VPN access is ready. Valid until %s.",
		expiresAt.Format("2006-01-02 15:04 MST"))
	return n.sendDocument(ctx, subjectID, "wg-client.conf", configText, caption)
}

// NotifyRenewal informs the subject their existing access was extended.
func (n *TelegramNotifier) NotifyRenewal(ctx context.Context, subjectID int64, expiresAt time.Time) error {
	text := fmt.Sprintf("Your VPN access has been extended until %s. Your existing configuration keeps working.",
		expiresAt.Format("2006-01-02 15:04 MST"))
	return n.sendMessage(ctx, subjectID, text)
}

// NotifyCancelled informs the subject their access was cancelled.
func (n *TelegramNotifier) NotifyCancelled(ctx context.Context, subjectID int64) error {
	return n.sendMessage(ctx, subjectID, "Your VPN access has been cancelled.")
}

// NotifyExpired informs the subject their access lapsed.
func (n *TelegramNotifier) NotifyExpired(ctx context.Context, subjectID int64) error {
	return n.sendMessage(ctx, subjectID, "Your VPN access has expired.")
}

// NotifyExpiring warns the subject ahead of expiry.
func (n *TelegramNotifier) NotifyExpiring(ctx context.Context, subjectID int64, expiresAt time.Time) error {
	text := fmt.Sprintf("Your VPN access expires on %s. Renew to keep your connection.",
		expiresAt.Format("2006-01-02 15:04 MST"))
	return n.sendMessage(ctx, subjectID, text)
}

func (n *TelegramNotifier) sendMessage(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		n.baseURL+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return n.do(req)
}

func (n *TelegramNotifier) sendDocument(ctx context.Context, chatID int64, filename, content, caption string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("chat_id", fmt.Sprintf("%d", chatID)); err != nil {
		return fmt.Errorf("failed to write chat_id field: %w", err)
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return fmt.Errorf("failed to write caption field: %w", err)
		}
	}
	part, err := w.CreateFormFile("document", filename)
	if err != nil {
		return fmt.Errorf("failed to create document part: %w", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		return fmt.Errorf("failed to write document content: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		n.baseURL+"/sendDocument", &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return n.do(req)
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (n *TelegramNotifier) do(req *http.Request) error {
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram API error: %s", result.Description)
	}
	return nil
}
