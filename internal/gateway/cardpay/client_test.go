package cardpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRetrieveIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/payment_intents/pi_1":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"pi_1","status":"succeeded","amount":"125000","currency":"vnd","metadata":{"orderId":"ord-1"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk_test_123", "whsec", zap.NewNop())

	intent, err := client.RetrieveIntent(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", intent.ID)
	assert.Equal(t, IntentStatusSucceeded, intent.Status)

	orderID, ok := intent.OrderID()
	assert.True(t, ok)
	assert.Equal(t, "ord-1", orderID)

	_, err = client.RetrieveIntent(context.Background(), "pi_missing")
	assert.ErrorIs(t, err, ErrIntentNotFound)
}

func TestRetrieveIntentGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk", "whsec", zap.NewNop())
	_, err := client.RetrieveIntent(context.Background(), "pi_1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrIntentNotFound)
}

func TestParseWebhook(t *testing.T) {
	const secret = "whsec_test"
	client := NewClient("http://gateway", "sk", secret, zap.NewNop())

	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"id":"pi_1","status":"succeeded","metadata":{"orderId":"ord-1"}}}`)

	event, err := client.ParseWebhook(payload, sign(secret, payload))
	require.NoError(t, err)
	assert.Equal(t, EventPaymentSucceeded, event.Type)
	assert.Equal(t, "pi_1", event.Intent.ID)
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	const secret = "whsec_test"
	client := NewClient("http://gateway", "sk", secret, zap.NewNop())
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"id":"pi_1"}}`)

	// Signed with the wrong secret.
	_, err := client.ParseWebhook(payload, sign("whsec_other", payload))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// Signature over a different body.
	_, err = client.ParseWebhook(payload, sign(secret, []byte(`{}`)))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// Not hex at all.
	_, err = client.ParseWebhook(payload, "not-hex!")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseWebhookRejectsMalformedPayload(t *testing.T) {
	const secret = "whsec_test"
	client := NewClient("http://gateway", "sk", secret, zap.NewNop())

	for _, payload := range [][]byte{
		[]byte(`not json`),
		[]byte(`{"id":"evt_1"}`),
		[]byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{}}`),
	} {
		_, err := client.ParseWebhook(payload, sign(secret, payload))
		assert.ErrorIs(t, err, ErrMalformedWebhook, "payload %s", payload)
	}
}
