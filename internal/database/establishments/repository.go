// Package establishments provides tenant lookups.
//
// # Usage
//
//	repo := establishments.NewRepository(db)
//	school, err := repo.GetByCode(ctx, "STM14000")
package establishments

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/espace-classe/internal/database"
	"github.com/mrlokans/espace-classe/internal/entities"
)

// Repository handles establishment database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new establishments repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new establishment, assigning an ID when empty.
func (r *Repository) Create(ctx context.Context, establishment *entities.Establishment) error {
	if err := r.db.WithContext(ctx).Create(establishment).Error; err != nil {
		return fmt.Errorf("failed to create establishment %s: %w", establishment.Code, err)
	}
	return nil
}

// GetByCode retrieves an establishment by its exact code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*entities.Establishment, error) {
	var establishment entities.Establishment
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&establishment).Error
	if err != nil {
		return nil, database.Translate(err)
	}
	return &establishment, nil
}

// GetByID retrieves an establishment by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*entities.Establishment, error) {
	var establishment entities.Establishment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&establishment).Error
	if err != nil {
		return nil, database.Translate(err)
	}
	return &establishment, nil
}

// GetOrCreate returns the establishment with the given code, creating it when absent.
func (r *Repository) GetOrCreate(ctx context.Context, code, name string) (*entities.Establishment, error) {
	establishment := entities.Establishment{Code: code, Name: name}
	err := r.db.WithContext(ctx).Where("code = ?", code).FirstOrCreate(&establishment).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get or create establishment %s: %w", code, err)
	}
	return &establishment, nil
}
