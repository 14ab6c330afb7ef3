package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-dicom-connector/internal/database"
	"github.com/otcheredev/ris-dicom-connector/internal/models"
)

// RemoteAERepository handles remote-AE directory database operations.
// Adapted from the teacher's PACSRepository: CRUD query chains kept,
// tenant scoping and the primary/SetPrimary concept dropped (an AE
// directory has no "primary PACS" notion), replaced with a unique
// AE-title lookup.
type RemoteAERepository struct{}

// NewRemoteAERepository creates a new remote-AE repository.
func NewRemoteAERepository() *RemoteAERepository {
	return &RemoteAERepository{}
}

func (r *RemoteAERepository) Create(ctx context.Context, ae *models.RemoteAEConfig) error {
	if err := database.DB.WithContext(ctx).Create(ae).Error; err != nil {
		return fmt.Errorf("failed to create remote AE config: %w", err)
	}
	return nil
}

func (r *RemoteAERepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RemoteAEConfig, error) {
	var ae models.RemoteAEConfig
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&ae).Error; err != nil {
		return nil, fmt.Errorf("failed to get remote AE config: %w", err)
	}
	return &ae, nil
}

// GetByAETitle resolves an active remote AE by its title. Neither the
// C-MOVE helper nor the admission policy calls it.
func (r *RemoteAERepository) GetByAETitle(ctx context.Context, aeTitle string) (*models.RemoteAEConfig, error) {
	var ae models.RemoteAEConfig
	if err := database.DB.WithContext(ctx).
		Where("ae_title = ? AND is_active = ?", aeTitle, true).
		First(&ae).Error; err != nil {
		return nil, fmt.Errorf("failed to get remote AE config by title: %w", err)
	}
	return &ae, nil
}

func (r *RemoteAERepository) List(ctx context.Context) ([]models.RemoteAEConfig, error) {
	var aes []models.RemoteAEConfig
	if err := database.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&aes).Error; err != nil {
		return nil, fmt.Errorf("failed to list remote AE configs: %w", err)
	}
	return aes, nil
}

func (r *RemoteAERepository) Update(ctx context.Context, ae *models.RemoteAEConfig) error {
	if err := database.DB.WithContext(ctx).Save(ae).Error; err != nil {
		return fmt.Errorf("failed to update remote AE config: %w", err)
	}
	return nil
}

func (r *RemoteAERepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := database.DB.WithContext(ctx).Delete(&models.RemoteAEConfig{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete remote AE config: %w", err)
	}
	return nil
}

// UpdateConnectionStatus records the outcome of a C-ECHO verification
// test against this remote AE.
func (r *RemoteAERepository) UpdateConnectionStatus(ctx context.Context, id uuid.UUID, status *models.ConnectionStatus) error {
	updates := map[string]interface{}{
		"last_connection_test":   status.LastChecked,
		"last_connection_status": status.IsConnected,
		"last_error":             status.ErrorMessage,
	}

	if err := database.DB.WithContext(ctx).
		Model(&models.RemoteAEConfig{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update connection status: %w", err)
	}

	return nil
}
