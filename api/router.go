// Package api exposes the inbound HTTP surface of checkout: the payment
// provider webhook and a health probe.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/checkout/payment"
)

// WebhookPath is the route the provider posts payment notifications to.
const WebhookPath = "/webhook/yookassa"

// maxWebhookBody bounds the accepted notification size.
const maxWebhookBody = 1 << 20

// Reconciler consumes decoded webhook notifications.
type Reconciler interface {
	HandleWebhook(ctx context.Context, ev payment.WebhookEvent) error
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the checkout HTTP routes.
type Handler struct {
	reconciler Reconciler
	pinger     Pinger
	logger     *slog.Logger
}

// NewHandler binds the routes to r. p may be nil, in which case /healthz
// always reports ok.
func NewHandler(r Reconciler, p Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{reconciler: r, pinger: p, logger: logger}
}

// NewRouter registers the routes under basePath ("" mounts at the root).
func NewRouter(h *Handler, basePath string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.recoverer)
	r.Use(h.requestLogger)

	r.Get("/healthz", h.healthz)

	routes := func(r chi.Router) {
		r.Post(WebhookPath, h.webhook)
	}
	if basePath == "" || basePath == "/" {
		routes(r)
	} else {
		r.Route(basePath, routes)
	}

	return r
}
