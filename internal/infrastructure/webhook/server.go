// Package webhook exposes the HTTP surface: the payment webhook endpoint,
// liveness and prometheus metrics.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/application/reconcile"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/pkg/metrics"
)

const signatureHeader = "X-Webhook-Signature"

// Handler applies a verified webhook event.
type Handler interface {
	Handle(ctx context.Context, ev reconcile.Event) error
}

type Server struct {
	handler Handler
	secret  string
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewServer builds the HTTP handler tree. An empty secret disables signature
// checking; reconciliation still re-verifies every event with the provider.
func NewServer(handler Handler, secret string, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		handler: handler,
		secret:  secret,
		metrics: m,
		log:     logger.With(zap.String("component", "webhook_server")),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Post("/webhook", s.handleWebhook)
	return r
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		s.metrics.WebhookDuration.Observe(time.Since(start).Seconds())
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if s.secret != "" && !s.verifySignature(body, r.Header.Get(signatureHeader)) {
		s.log.Warn("webhook_signature_rejected", zap.String("remote", r.RemoteAddr))
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var ev reconcile.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		s.log.Warn("webhook_payload_unparsable", zap.Error(err))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := s.handler.Handle(r.Context(), ev); err != nil {
		// a 5xx makes the provider redeliver the event later
		s.log.Error("webhook_processing_failed",
			zap.String("payment_id", ev.Object.ID),
			zap.Error(err),
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) verifySignature(body []byte, got string) bool {
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(got))
}
