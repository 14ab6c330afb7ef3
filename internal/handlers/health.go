package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/otcheredev/ris-dicom-connector/internal/database"
)

// AssociationCounter reports how many associations the local AE is
// currently servicing; satisfied by *ae.AE.
type AssociationCounter interface {
	ActiveAssociationCount() int
}

type HealthHandler struct {
	ae AssociationCounter
}

func NewHealthHandler(ae AssociationCounter) *HealthHandler {
	return &HealthHandler{ae: ae}
}

type healthResponse struct {
	Status             string            `json:"status"`
	Timestamp          time.Time         `json:"timestamp"`
	Services           map[string]string `json:"services"`
	ActiveAssociations int               `json:"active_associations"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := healthResponse{
		Status:             "healthy",
		Timestamp:          time.Now(),
		Services:           make(map[string]string),
		ActiveAssociations: h.ae.ActiveAssociationCount(),
	}

	// Check database
	sqlDB, err := database.DB.DB()
	if err != nil || sqlDB.Ping() != nil {
		response.Services["database"] = "unhealthy"
		response.Status = "degraded"
	} else {
		response.Services["database"] = "healthy"
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	// Check if service is ready to accept requests
	sqlDB, err := database.DB.DB()
	if err != nil || sqlDB.Ping() != nil {
		http.Error(w, "Service not ready", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
