package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/chineduo/solarhub/internal/adapters/payments/paystack"
	"github.com/chineduo/solarhub/internal/domain"
	"github.com/chineduo/solarhub/internal/metrics"
	"github.com/chineduo/solarhub/internal/usecase"
)

// paystackWebhook is the push leg of payment confirmation. The signature
// check happens on the raw body before anything is parsed or looked up;
// processing errors after authentication still return 200 so the gateway
// does not retry forever against a bug.
func (s *Server) paystackWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		metrics.WebhookRejected.WithLabelValues("body").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "unreadable body"})
		return
	}
	if err := s.Webhook.ValidateSignature(body, r.Header.Get("x-paystack-signature")); err != nil {
		metrics.WebhookRejected.WithLabelValues("signature").Inc()
		log.Warn().Str("remote", r.RemoteAddr).Msg("webhook signature rejected")
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "invalid signature"})
		return
	}
	event, err := paystack.ParseWebhookEvent(body)
	if err != nil {
		metrics.WebhookRejected.WithLabelValues("payload").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "malformed payload"})
		return
	}

	switch event.Event {
	case "charge.success":
		s.dispatchChargeSuccess(r, *event, body)
	case "charge.failed":
		if err := s.Orders.HandleGatewayFailure(r.Context(), event.Data.Reference, body); err != nil {
			log.Error().Err(err).Str("reference", event.Data.Reference).Msg("webhook order failure handling")
		}
		if err := s.PreOrders.HandleGatewayFailure(r.Context(), event.Data.Reference, body); err != nil {
			log.Error().Err(err).Str("reference", event.Data.Reference).Msg("webhook pre-order failure handling")
		}
	default:
		log.Debug().Str("event", event.Event).Msg("webhook event ignored")
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// dispatchChargeSuccess routes a confirmed charge to the right lifecycle.
// The metadata discriminator decides for session traffic; references
// attached to existing rows are recognized by prefix and then by lookup.
func (s *Server) dispatchChargeSuccess(r *http.Request, event paystack.WebhookEvent, raw []byte) {
	ctx := r.Context()
	reference := event.Data.Reference

	var err error
	switch usecase.SessionType(event.Data.Metadata) {
	case "order_session":
		_, err = s.Orders.HandleGatewaySuccess(ctx, event, raw)
	case "pre_order_session", "pre_order_payment":
		_, err = s.PreOrders.HandleGatewaySuccess(ctx, event, raw)
	default:
		if strings.HasPrefix(reference, "pre_") {
			_, err = s.PreOrders.HandleGatewaySuccess(ctx, event, raw)
		} else {
			_, err = s.Orders.HandleGatewaySuccess(ctx, event, raw)
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrMalformedSession) {
				_, err = s.PreOrders.HandleGatewaySuccess(ctx, event, raw)
			}
		}
	}
	if err != nil {
		log.Error().Err(err).Str("reference", reference).Msg("webhook charge.success handling")
	}
}
