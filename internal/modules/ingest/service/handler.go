package service

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"signal_ledger/internal/ledger"
	"signal_ledger/internal/matcher"
	"signal_ledger/internal/models"
	"signal_ledger/pkg/logger"

	broadcast "signal_ledger/internal/modules/broadcast/service"
	dispatch "signal_ledger/internal/modules/dispatch/service"
	health "signal_ledger/internal/modules/health/service"
	store "signal_ledger/internal/modules/store/service"
)

const maxBodyBytes = 1 << 20

// Handler is the ingestion boundary: webhooks in, ledger state out.
// Alert-text parsing happens upstream; the webhook receives decoded JSON.
type Handler struct {
	ledger     *ledger.Ledger
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	hub        *broadcast.Hub
	state      *health.State
}

func NewHandler(l *ledger.Ledger, st *store.Store, d *dispatch.Dispatcher, hub *broadcast.Hub, state *health.State) *Handler {
	return &Handler{ledger: l, store: st, dispatcher: d, hub: hub, state: state}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", h.handleWebhook)
	mux.HandleFunc("/signals", h.handleSignals)
	mux.HandleFunc("/trades", h.handleTrades)
	mux.HandleFunc("/stats", h.handleStats)
	mux.HandleFunc("/ws", h.hub.Handle)
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	var sig models.RawSignal
	if err := sonic.Unmarshal(body, &sig); err != nil {
		logger.Warn("webhook decode failed: %v", err)
		http.Error(w, "invalid signal payload", http.StatusBadRequest)
		return
	}
	if sig.ID == "" {
		sig.ID = fmt.Sprintf("sig_%d", time.Now().UnixNano())
	}
	if sig.Timestamp.IsZero() {
		sig.Timestamp = time.Now()
	}

	res := h.ledger.Process(r.Context(), sig)
	h.state.TouchSignal(time.Now())
	h.dispatcher.PublishResult(r.Context(), sig, res)

	writeJSON(w, res)
}

func (h *Handler) handleSignals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.store.GetAllSignals())
}

func (h *Handler) handleTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.store.Trades())
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	trades := h.store.Trades()
	writeJSON(w, map[string]any{
		"store":     h.store.Stats(),
		"trades":    matcher.Summarize(trades),
		"wsClients": h.hub.Count(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
