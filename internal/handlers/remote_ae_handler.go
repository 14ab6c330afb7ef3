package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/otcheredev/ris-dicom-connector/internal/models"
	"github.com/otcheredev/ris-dicom-connector/internal/repository"
	"github.com/rs/zerolog/log"
)

// EchoVerifier performs a live C-ECHO against a remote AE; satisfied
// by *ae.AE.
type EchoVerifier interface {
	VerifyEcho(ctx context.Context, peerAddr, calledAET string) (time.Duration, error)
}

// RemoteAEHandler exposes CRUD over the remote-AE directory and a
// connection-test endpoint backed by a real C-ECHO exchange. Adapted
// from the teacher's ManagementHandler, dropping tenant scoping (the
// directory is global to this AE) and replacing the DICOMweb-adapter
// connection test with SendCEcho.
type RemoteAEHandler struct {
	repo *repository.RemoteAERepository
	echo EchoVerifier
}

func NewRemoteAEHandler(repo *repository.RemoteAERepository, echo EchoVerifier) *RemoteAEHandler {
	return &RemoteAEHandler{repo: repo, echo: echo}
}

// Create adds a new remote AE directory entry.
func (h *RemoteAEHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.RemoteAERequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	entry := &models.RemoteAEConfig{
		Name:           req.Name,
		AETitle:        req.AETitle,
		Host:           req.Host,
		Port:           req.Port,
		IsActive:       true,
		AllowRequestor: req.AllowRequestor,
		AllowAcceptor:  req.AllowAcceptor,
	}
	if err := h.repo.Create(ctx, entry); err != nil {
		log.Error().Err(err).Msg("failed to create remote AE config")
		http.Error(w, "Failed to create remote AE config", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

// List returns every active remote AE directory entry.
func (h *RemoteAEHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.repo.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list remote AE configs")
		http.Error(w, "Failed to list remote AE configs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// Get retrieves a single remote AE directory entry.
func (h *RemoteAEHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid config ID", http.StatusBadRequest)
		return
	}

	entry, err := h.repo.GetByID(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("config_id", idStr).Msg("failed to get remote AE config")
		http.Error(w, "Failed to get remote AE config", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

// Delete removes a remote AE directory entry.
func (h *RemoteAEHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid config ID", http.StatusBadRequest)
		return
	}

	if err := h.repo.Delete(ctx, id); err != nil {
		log.Error().Err(err).Str("config_id", idStr).Msg("failed to delete remote AE config")
		http.Error(w, "Failed to delete remote AE config", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TestConnection dials the named remote AE and issues a C-ECHO,
// recording the outcome against its directory entry.
func (h *RemoteAEHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid config ID", http.StatusBadRequest)
		return
	}

	entry, err := h.repo.GetByID(ctx, id)
	if err != nil {
		http.Error(w, "Remote AE config not found", http.StatusNotFound)
		return
	}

	status := &models.ConnectionStatus{LastChecked: time.Now()}
	peerAddr := fmt.Sprintf("%s:%d", entry.Host, entry.Port)
	rtt, err := h.echo.VerifyEcho(ctx, peerAddr, entry.AETitle)
	if err != nil {
		log.Warn().Err(err).Str("ae_title", entry.AETitle).Msg("connection test failed")
		status.IsConnected = false
		status.ErrorMessage = err.Error()
	} else {
		status.IsConnected = true
		status.ResponseTime = rtt.Milliseconds()
	}

	if err := h.repo.UpdateConnectionStatus(ctx, id, status); err != nil {
		log.Error().Err(err).Msg("failed to persist connection status")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}
