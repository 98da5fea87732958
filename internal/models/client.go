package models

import (
	"time"

	"github.com/google/uuid"
)

// Client is the paying customer. TaxID holds the CPF/CNPJ digits only.
type Client struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	FullName   string    `gorm:"size:255;not null" json:"full_name"`
	Email      string    `gorm:"size:255;index" json:"email"`
	Phone      string    `gorm:"size:30" json:"phone"`
	TaxID      string    `gorm:"size:14;not null;uniqueIndex" json:"tax_id"`
	CEP        string    `gorm:"size:9" json:"cep"`
	Address    string    `gorm:"size:255" json:"address"`
	Number     string    `gorm:"size:20" json:"number"`
	Complement string    `gorm:"size:100" json:"complement"`
	District   string    `gorm:"size:100" json:"district"`
	City       string    `gorm:"size:100" json:"city"`
	State      string    `gorm:"size:2" json:"state"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
