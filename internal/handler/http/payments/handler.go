package payments

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/app/banktransfer"
	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/app/cardpayment"
	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/gateway/cardpay"
)

// SignatureHeader carries the card gateway's HMAC over the webhook body.
const SignatureHeader = "X-Gateway-Signature"

type PaymentHandler struct {
	cardService *cardpayment.Service
	bankService *banktransfer.Service

	// bankAPIKey is the shared secret for the bank-transfer webhook. An
	// empty key is accepted only outside production.
	bankAPIKey string
	production bool

	logger *zap.Logger
}

func NewPaymentHandler(
	cardService *cardpayment.Service,
	bankService *banktransfer.Service,
	bankAPIKey string,
	production bool,
	logger *zap.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		cardService: cardService,
		bankService: bankService,
		bankAPIKey:  bankAPIKey,
		production:  production,
		logger:      logger,
	}
}

type confirmRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

func (h *PaymentHandler) ConfirmCardPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentIntentID == "" {
		h.logger.Warn("Invalid request body for ConfirmCardPayment", zap.Error(err))
		http.Error(w, "payment_intent_id is required", http.StatusBadRequest)
		return
	}

	res, err := h.cardService.ConfirmFromClient(r.Context(), req.PaymentIntentID)
	if err != nil {
		if errors.Is(err, cardpayment.ErrIntentNotFound) {
			http.Error(w, "Payment intent not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Error confirming card payment",
			zap.String("intent_id", req.PaymentIntentID),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (h *PaymentHandler) CardGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	err = h.cardService.HandleGatewayWebhook(r.Context(), payload, r.Header.Get(SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, cardpay.ErrInvalidSignature):
			h.logger.Warn("Card gateway webhook with invalid signature")
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
		case errors.Is(err, cardpay.ErrMalformedWebhook):
			h.logger.Warn("Malformed card gateway webhook", zap.Error(err))
			http.Error(w, "Malformed payload", http.StatusBadRequest)
		default:
			h.logger.Error("Error handling card gateway webhook", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"received":true}`))
}

// BankTransferWebhook authenticates the aggregator, runs the reconciliation
// pipeline, and acknowledges every business outcome with 200 so the sender
// never retries a transfer that cannot match. Only infrastructure failures
// return 5xx.
func (h *PaymentHandler) BankTransferWebhook(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeBankWebhook(r) {
		h.logger.Warn("Bank transfer webhook rejected: bad or missing API key")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var transfer banktransfer.TransferWebhook
	if err := json.NewDecoder(r.Body).Decode(&transfer); err != nil {
		h.logger.Warn("Invalid bank transfer webhook body", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := h.bankService.Process(r.Context(), &transfer)
	if err != nil {
		if errors.Is(err, banktransfer.ErrInvalidPayload) {
			h.logger.Warn("Bank transfer webhook failed validation", zap.Error(err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("Error processing bank transfer webhook", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"outcome": string(outcome),
	})
}

// authorizeBankWebhook checks "Authorization: Apikey <key>" in constant
// time. With no key configured the check is bypassed outside production.
func (h *PaymentHandler) authorizeBankWebhook(r *http.Request) bool {
	if h.bankAPIKey == "" {
		return !h.production
	}

	auth := r.Header.Get("Authorization")
	const prefix = "Apikey "
	if !strings.HasPrefix(auth, prefix) {
		return false
	}
	provided := strings.TrimPrefix(auth, prefix)
	return subtle.ConstantTimeCompare([]byte(provided), []byte(h.bankAPIKey)) == 1
}
