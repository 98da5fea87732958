package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan prices are in minor currency units (centavos) per billing period.
type Plan struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Family    string    `gorm:"size:30;not null;index" json:"family"`
	BasePrice int64     `gorm:"not null" json:"base_price"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
