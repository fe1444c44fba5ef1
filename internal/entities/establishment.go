package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Establishment is a school. Every user and room belongs to exactly one.
type Establishment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Code      string    `gorm:"uniqueIndex;size:64" json:"code"`
	Name      string    `gorm:"size:255" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Establishment) TableName() string {
	return "establishments"
}

func (e *Establishment) BeforeCreate(_ *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
