package httpserver

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/internal/risk"
)

// balancesHandler exposes the bankroll ledger for debugging.
type balancesHandler struct {
	gate   *risk.Gate
	logger *zap.Logger
}

func newBalancesHandler(gate *risk.Gate, logger *zap.Logger) *balancesHandler {
	return &balancesHandler{gate: gate, logger: logger}
}

type balancesResponse struct {
	Available float64 `json:"available"`
	Reserved  float64 `json:"reserved"`
	Total     float64 `json:"total"`
}

// handleBalances handles GET /api/balances.
func (h *balancesHandler) handleBalances(w http.ResponseWriter, _ *http.Request) {
	available, reserved := h.gate.Balances()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(balancesResponse{
		Available: available,
		Reserved:  reserved,
		Total:     available + reserved,
	})
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}
