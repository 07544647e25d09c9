package api

import (
	"encoding/json"
	"net/http"

	"github.com/xraph/checkout"
	"github.com/xraph/checkout/payment"
)

// webhook acknowledges every notification it could process or that can
// never credit an order. Only internal failures answer 5xx so the
// provider redelivers.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	var ev payment.WebhookEvent
	body := http.MaxBytesReader(w, r.Body, maxWebhookBody)
	if err := json.NewDecoder(body).Decode(&ev); err != nil {
		h.logger.Warn("webhook: undecodable body", "error", err)
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid json body")
		return
	}

	err := h.reconciler.HandleWebhook(r.Context(), ev)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, "ok")
	case checkout.IsDroppable(err):
		h.logger.Warn("webhook: dropped",
			"payment_ref", ev.Object.ID,
			"error", err,
		)
		writeMessage(w, http.StatusOK, "ignored")
	default:
		h.logger.Error("webhook: processing failed",
			"payment_ref", ev.Object.ID,
			"event", ev.Event,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.logger.Error("healthz: store unreachable", "error", err)
			writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "store unavailable")
			return
		}
	}
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}
