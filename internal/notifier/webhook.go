package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alaraf/fleet-finance/internal/domain"
	"go.uber.org/zap"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body
const SignatureHeader = "X-Signature-256"

// WebhookNotifier posts notifications as JSON to a single endpoint
type WebhookNotifier struct {
	url    string
	secret []byte
	client *http.Client
	logger *zap.Logger
}

type webhookBody struct {
	Type       domain.NotificationType `json:"type"`
	ContractID string                  `json:"contractId"`
	CompanyID  domain.CompanyID        `json:"companyId"`
	Payload    map[string]interface{}  `json:"payload"`
	SentAt     time.Time               `json:"sentAt"`
}

func NewWebhookNotifier(url, secret string, timeout time.Duration, logger *zap.Logger) (*WebhookNotifier, error) {
	if url == "" {
		return nil, domain.NewConfigurationError("notifications.webhookUrl", "is required for the webhook channel")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// Sign returns the signature header value for a body
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (w *WebhookNotifier) Notify(ctx context.Context, n *domain.Notification) error {
	body, err := json.Marshal(webhookBody{
		Type:       n.Type,
		ContractID: n.ContractID.String(),
		CompanyID:  n.CompanyID,
		Payload:    n.Payload,
		SentAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if len(w.secret) > 0 {
		req.Header.Set(SignatureHeader, Sign(w.secret, body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	w.logger.Debug("webhook notification delivered",
		zap.String("type", string(n.Type)),
		zap.String("contract_id", n.ContractID.String()),
	)
	return nil
}
