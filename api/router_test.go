package api_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/checkout"
	"github.com/xraph/checkout/api"
	"github.com/xraph/checkout/payment"
	"github.com/xraph/checkout/store/memory"
)

type stubReconciler struct {
	err    error
	events []payment.WebhookEvent
}

func (s *stubReconciler) HandleWebhook(_ context.Context, ev payment.WebhookEvent) error {
	s.events = append(s.events, ev)
	return s.err
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const succeededBody = `{"event":"payment.succeeded","object":{"id":"pay-1","status":"succeeded"}}`

func TestWebhookStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"handled", succeededBody, nil, http.StatusOK},
		{"droppable", succeededBody, checkout.ErrUnknownPaymentRef, http.StatusOK},
		{"internal failure", succeededBody, errors.New("disk full"), http.StatusInternalServerError},
		{"bad json", `{"event":`, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &stubReconciler{err: tt.err}
			h := api.NewRouter(api.NewHandler(rec, nil, quietLogger()), "")

			resp := post(t, h, api.WebhookPath, tt.body)
			assert.Equal(t, tt.want, resp.Code)
		})
	}
}

func TestWebhookDecodesEvent(t *testing.T) {
	rec := &stubReconciler{}
	h := api.NewRouter(api.NewHandler(rec, nil, quietLogger()), "/checkout")

	resp := post(t, h, "/checkout"+api.WebhookPath, succeededBody)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, rec.events, 1)
	assert.Equal(t, "payment.succeeded", rec.events[0].Event)
	assert.Equal(t, "pay-1", rec.events[0].Object.ID)
	assert.Equal(t, payment.StatusSucceeded, rec.events[0].Object.Status)
}

func TestWebhookOutsideBasePathIsNotFound(t *testing.T) {
	h := api.NewRouter(api.NewHandler(&stubReconciler{}, nil, quietLogger()), "/checkout")

	resp := post(t, h, api.WebhookPath, succeededBody)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHealthz(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"store down", errors.New("conn refused"), http.StatusServiceUnavailable},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := api.NewRouter(api.NewHandler(&stubReconciler{}, stubPinger{err: tc.err}, quietLogger()), "")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestWebhookUnknownRefAgainstEngine(t *testing.T) {
	s := memory.New()
	c := checkout.New(s,
		checkout.WithLogger(quietLogger()),
		checkout.WithSweepInterval(0),
	)
	h := api.NewRouter(api.NewHandler(c, s, quietLogger()), "")

	for range 2 {
		resp := post(t, h, api.WebhookPath,
			`{"event":"payment.succeeded","object":{"id":"never-created","status":"succeeded"}}`)
		assert.Equal(t, http.StatusOK, resp.Code)
	}

	pending, err := s.ListPendingOrders(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
