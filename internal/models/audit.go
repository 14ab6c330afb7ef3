package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssociationAuditLog records one association lifecycle event. Adapted
// from the teacher's AuditLog, with the tenant scoping removed (this
// engine runs one local AE, not a multi-tenant gateway) and Action
// repurposed to association lifecycle events.
type AssociationAuditLog struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	AssociationID  string    `gorm:"type:varchar(64);index" json:"association_id"`
	Action         string    `gorm:"type:varchar(20);not null;index" json:"action"` // accepted, rejected, released, aborted, failed
	Role           string    `gorm:"type:varchar(20)" json:"role"`                  // requestor, acceptor
	PeerAETitle    string    `gorm:"type:varchar(16)" json:"peer_ae_title"`
	PeerAddress    string    `gorm:"type:varchar(255)" json:"peer_address"`
	RejectReason   string    `gorm:"type:varchar(100)" json:"reject_reason,omitempty"`
	ErrorMessage   string    `gorm:"type:text" json:"error_message,omitempty"`
	DurationMillis int64     `json:"duration_ms"`
	CreatedAt      time.Time `gorm:"index" json:"timestamp"`
}

func (AssociationAuditLog) TableName() string {
	return "association_audit_logs"
}

func (a *AssociationAuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// CacheMetrics tracks the admission/query-result cache's hit rate.
// Kept from the teacher, tenant scoping dropped for the same reason as
// AssociationAuditLog.
type CacheMetrics struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CacheKey  string    `gorm:"type:varchar(500);not null" json:"cache_key"`
	CacheHit  bool      `gorm:"not null;index" json:"cache_hit"`
	CacheTier string    `gorm:"type:varchar(20)" json:"cache_tier"` // redis, memory
	Size      int64     `json:"size_bytes"`
	Duration  int64     `json:"duration_ms"`
	CreatedAt time.Time `gorm:"index" json:"timestamp"`
}

func (CacheMetrics) TableName() string {
	return "cache_metrics"
}

func (c *CacheMetrics) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
