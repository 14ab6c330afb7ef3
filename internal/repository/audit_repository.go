package repository

import (
	"context"
	"fmt"

	"github.com/otcheredev/ris-dicom-connector/internal/database"
	"github.com/otcheredev/ris-dicom-connector/internal/models"
)

// AuditRepository handles association-audit-log database operations.
// Adapted from the teacher's AuditRepository with tenant scoping
// dropped and ResourceUID replaced by AssociationID.
type AuditRepository struct{}

// NewAuditRepository creates a new audit repository
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Create creates a new association audit log entry.
func (r *AuditRepository) Create(ctx context.Context, log *models.AssociationAuditLog) error {
	if err := database.DB.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// List retrieves recent audit logs, most recent first.
func (r *AuditRepository) List(ctx context.Context, limit, offset int) ([]models.AssociationAuditLog, error) {
	var logs []models.AssociationAuditLog
	query := database.DB.WithContext(ctx).Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}

	return logs, nil
}

// GetByAssociationID retrieves the audit trail for one association.
func (r *AuditRepository) GetByAssociationID(ctx context.Context, associationID string) ([]models.AssociationAuditLog, error) {
	var logs []models.AssociationAuditLog
	if err := database.DB.WithContext(ctx).
		Where("association_id = ?", associationID).
		Order("created_at DESC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}
	return logs, nil
}
