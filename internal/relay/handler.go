package relay

import (
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/0xReLogic/Tandem/internal/logging"
	"github.com/0xReLogic/Tandem/internal/peer"
	"github.com/0xReLogic/Tandem/internal/tracing"
)

const contentType = "text/html; charset=utf-8"

var (
	relayTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tandem_relay_total",
			Help: "Relayed requests by outcome",
		},
		[]string{"outcome"},
	)
	peerCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tandem_peer_call_latency_seconds",
			Help:    "Latency of the outbound call to the peer",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

// Handler serves the root route: one call to the peer, then a relayed answer.
type Handler struct {
	identity Identity
	caller   peer.Caller
	peerName string
}

// NewHandler returns a Handler answering as identity and fetching through caller.
func NewHandler(identity Identity, caller peer.Caller) *Handler {
	return &Handler{identity: identity, caller: caller, peerName: caller.URL()}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "relay")
	defer span.End()
	span.SetAttributes(
		attribute.String("relay.service_id", h.identity.ServiceID),
		attribute.String("relay.peer", h.peerName),
	)

	logging.LogPeerCall(ctx, h.identity.ServiceID, h.peerName)

	start := time.Now()
	body, err := h.caller.Fetch(ctx)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	peerCallLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	relayTotal.WithLabelValues(outcome).Inc()

	w.Header().Set("Content-Type", contentType)
	if err != nil {
		logging.LogPeerUnavailable(ctx, h.peerName, err)
		span.SetStatus(codes.Error, "peer unavailable")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, h.identity.Failure())
		return
	}

	span.SetStatus(codes.Ok, "")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, h.identity.Success(body))
}

var _ http.Handler = (*Handler)(nil)
