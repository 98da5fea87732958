package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SystemLog stores ERROR+ log records. Rows with Escalated set are the
// manual-intervention queue and survive retention cleanup.
type SystemLog struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Timestamp     time.Time      `gorm:"not null;index" json:"timestamp"`
	Level         string         `gorm:"size:10;not null;index" json:"level"`
	Message       string         `gorm:"type:text" json:"message"`
	CorrelationID string         `gorm:"size:64;index" json:"correlation_id"`
	PaymentID     string         `gorm:"size:64;index" json:"payment_id"`
	OrderID       string         `gorm:"size:64;index" json:"order_id"`
	ContractID    *string        `gorm:"size:36" json:"contract_id"`
	Action        string         `gorm:"size:100" json:"action"`
	Error         string         `gorm:"type:text" json:"error"`
	Escalated     bool           `gorm:"not null;default:false;index" json:"escalated"`
	LatencyMs     int            `json:"latency_ms"`
	Extra         datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"extra"`
	CreatedAt     time.Time      `json:"created_at"`
}
