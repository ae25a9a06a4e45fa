package payments

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/app/banktransfer"
	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/app/cardpayment"
)

func RegisterRoutes(
	r chi.Router,
	cardService *cardpayment.Service,
	bankService *banktransfer.Service,
	bankAPIKey string,
	production bool,
	l *zap.Logger,
) {
	handler := NewPaymentHandler(cardService, bankService, bankAPIKey, production,
		l.With(zap.String("component", "PaymentHTTPHandler")))

	r.Route("/payments", func(r chi.Router) {
		r.Post("/card/confirm", handler.ConfirmCardPayment)
		r.Post("/card/webhook", handler.CardGatewayWebhook)
		r.Post("/bank/webhook", handler.BankTransferWebhook)
	})
}
