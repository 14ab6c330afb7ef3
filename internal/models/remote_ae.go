package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RemoteAEConfig is a directory entry for a peer Application Entity
// this engine can either accept associations from or initiate
// associations to. Adapted from the teacher's PACSConfig, dropping the
// multi-tenant/backend-type fields (dicomweb/orthanc) that a single
// DIMSE engine has no use for.
type RemoteAEConfig struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name     string    `gorm:"type:varchar(255);not null" json:"name"`
	AETitle  string    `gorm:"type:varchar(16);not null;uniqueIndex" json:"ae_title"`
	Host     string    `gorm:"type:varchar(255);not null" json:"host"`
	Port     int       `gorm:"not null" json:"port"`
	IsActive bool      `gorm:"default:true" json:"is_active"`

	// AllowRequestor records whether this remote AE may initiate
	// associations against us. It is stored only; the admission policy
	// does not read it.
	AllowRequestor bool `gorm:"default:true" json:"allow_requestor"`
	// AllowAcceptor records whether we may initiate associations toward
	// this remote AE. It is stored only; Dial in internal/ae does not
	// read it.
	AllowAcceptor bool `gorm:"default:true" json:"allow_acceptor"`

	LastConnectionTest   time.Time `json:"last_connection_test,omitempty"`
	LastConnectionStatus bool      `json:"last_connection_status,omitempty"`
	LastError            string    `gorm:"type:text" json:"last_error,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (RemoteAEConfig) TableName() string {
	return "remote_ae_configs"
}

func (r *RemoteAEConfig) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ConnectionStatus reports the outcome of a C-ECHO verification test
// against a remote AE (spec §4.F SendCEcho exposed over the admin
// surface).
type ConnectionStatus struct {
	IsConnected  bool      `json:"is_connected"`
	LastChecked  time.Time `json:"last_checked"`
	ResponseTime int64     `json:"response_time_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// RemoteAERequest is the create/update payload for the management API.
type RemoteAERequest struct {
	Name           string `json:"name" binding:"required"`
	AETitle        string `json:"ae_title" binding:"required"`
	Host           string `json:"host" binding:"required"`
	Port           int    `json:"port" binding:"required"`
	AllowRequestor bool   `json:"allow_requestor"`
	AllowAcceptor  bool   `json:"allow_acceptor"`
}
