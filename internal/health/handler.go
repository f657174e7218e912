// Package health exposes the service health endpoint, reporting database
// and storage reachability.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cargohold/service/internal/response"
	"github.com/cargohold/service/internal/storage"
)

// Handler serves health checks.
type Handler struct {
	db    *pgxpool.Pool
	store storage.Storage
}

// NewHandler creates a new health Handler.
func NewHandler(db *pgxpool.Pool, store storage.Storage) *Handler {
	return &Handler{db: db, store: store}
}

type serviceStatus struct {
	Healthy bool `json:"healthy"`
}

type healthData struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Services  map[string]serviceStatus `json:"services"`
}

// Check godoc
//
//	@Summary	Health check
//	@Produce	json
//	@Success	200	{object}	response.Envelope{data=healthData}
//	@Failure	503	{object}	response.Envelope{data=healthData}
//	@Router		/health [get]
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	data := healthData{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  map[string]serviceStatus{},
	}

	data.Services["database"] = serviceStatus{Healthy: h.db.Ping(ctx) == nil}

	_, err := h.store.Exists(ctx, "healthcheck")
	data.Services["storage"] = serviceStatus{Healthy: err == nil}

	status := http.StatusOK
	for _, s := range data.Services {
		if !s.Healthy {
			data.Status = "degraded"
			status = http.StatusServiceUnavailable
			break
		}
	}

	response.JSON(w, status, response.Envelope{Success: true, Data: data})
}
