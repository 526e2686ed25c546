package httpapi

import (
	"database/sql"
	"log/slog"
	"net/http"

	"wotkit-dashboard/internal/utils"
)

// BrokerStatus reports the MQTT session state; *mqtt.Client satisfies it.
type BrokerStatus interface {
	IsConnected() bool
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	db     *sql.DB
	broker BrokerStatus
}

func NewHealthchecker(db *sql.DB, broker BrokerStatus) healthchecker {
	return &healthcheckerImpl{db: db, broker: broker}
}

// handleHealthz fails only when the database is unreachable. The broker is
// optional and only reported.
func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		slog.Error("failed to check database connectivity", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to check database connectivity")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"mqtt":   h.brokerState(),
	})
}

func (h *healthcheckerImpl) brokerState() string {
	switch {
	case h.broker == nil:
		return "disabled"
	case h.broker.IsConnected():
		return "connected"
	default:
		return "disconnected"
	}
}

func registerHealthcheck(mux *http.ServeMux, db *sql.DB, broker BrokerStatus) {
	healthchecker := NewHealthchecker(db, broker)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
