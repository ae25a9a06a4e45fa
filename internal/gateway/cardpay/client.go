package cardpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Client struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	httpClient    *http.Client
	logger        *zap.Logger
}

func NewClient(baseURL, secretKey, webhookSecret string, l *zap.Logger) *Client {
	return &Client{
		baseURL:       baseURL,
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		logger:        l,
	}
}

func (c *Client) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	url := fmt.Sprintf("%s/v1/payment_intents/%s", c.baseURL, intentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build intent request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Card gateway request failed", zap.String("intent_id", intentID), zap.Error(err))
		return nil, fmt.Errorf("retrieve intent %s: %w", intentID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrIntentNotFound
	case resp.StatusCode != http.StatusOK:
		c.logger.Error("Card gateway returned unexpected status",
			zap.String("intent_id", intentID),
			zap.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("retrieve intent %s: gateway status %d", intentID, resp.StatusCode)
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("decode intent %s: %w", intentID, err)
	}
	return &intent, nil
}

// ParseWebhook checks an HMAC-SHA256 hex signature over the raw body before
// decoding. Comparison is constant time.
func (c *Client) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(payload)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return nil, ErrInvalidSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}
	if event.Type == "" || event.Intent.ID == "" {
		return nil, ErrMalformedWebhook
	}
	return &event, nil
}
