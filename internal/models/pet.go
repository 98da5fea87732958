package models

import (
	"time"

	"github.com/google/uuid"
)

type Pet struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"client_id"`
	PlanID    uuid.UUID  `gorm:"type:uuid;index" json:"plan_id"`
	Name      string     `gorm:"size:100;not null" json:"name"`
	Species   string     `gorm:"size:50" json:"species"`
	Breed     string     `gorm:"size:100" json:"breed"`
	Sex       string     `gorm:"size:10" json:"sex"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	WeightKg  float64    `json:"weight_kg"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Client    Client     `gorm:"foreignKey:ClientID" json:"-"`
}
