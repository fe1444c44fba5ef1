// Package rooms provides tenant-scoped classroom layout storage.
package rooms

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/espace-classe/internal/database"
	"github.com/mrlokans/espace-classe/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns the establishment's rooms ordered by name. A non-empty query
// filters on name or code, case-insensitively.
func (r *Repository) List(ctx context.Context, establishmentID, query string) ([]entities.Room, error) {
	var rooms []entities.Room
	q := r.db.WithContext(ctx).Where("establishment_id = ?", establishmentID)
	if query = strings.TrimSpace(query); query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", pattern, pattern)
	}
	err := q.Order("name ASC").Find(&rooms).Error
	return rooms, err
}

// Get retrieves one room of the establishment.
func (r *Repository) Get(ctx context.Context, establishmentID, id string) (*entities.Room, error) {
	var room entities.Room
	err := r.db.WithContext(ctx).
		Where("establishment_id = ? AND id = ?", establishmentID, id).
		First(&room).Error
	if err != nil {
		return nil, database.Translate(err)
	}
	return &room, nil
}

func (r *Repository) Create(ctx context.Context, room *entities.Room) error {
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// Update saves name, code, board position and layout of an existing room.
func (r *Repository) Update(ctx context.Context, room *entities.Room) error {
	result := r.db.WithContext(ctx).Model(&entities.Room{}).
		Where("establishment_id = ? AND id = ?", room.EstablishmentID, room.ID).
		Select("name", "code", "board_position", "config", "updated_at").
		Updates(room)
	if result.Error != nil {
		return fmt.Errorf("failed to update room: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return database.ErrNotFound
	}
	return nil
}

// Delete removes the given rooms of the establishment and returns how many were deleted.
func (r *Repository) Delete(ctx context.Context, establishmentID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("establishment_id = ? AND id IN ?", establishmentID, ids).
		Delete(&entities.Room{})
	return result.RowsAffected, result.Error
}

// Duplicate copies a room under a new ID, suffixing its name and code.
func (r *Repository) Duplicate(ctx context.Context, establishmentID, id string, createdBy *string) (*entities.Room, error) {
	src, err := r.Get(ctx, establishmentID, id)
	if err != nil {
		return nil, err
	}

	columns := make([]entities.RoomColumn, len(src.Config.Columns))
	copy(columns, src.Config.Columns)

	dup := &entities.Room{
		EstablishmentID: src.EstablishmentID,
		Name:            src.Name + " (copie)",
		Code:            src.Code + "_copy",
		BoardPosition:   src.BoardPosition,
		Config:          entities.RoomConfig{Columns: columns},
		CreatedBy:       createdBy,
	}
	if err := r.Create(ctx, dup); err != nil {
		return nil, err
	}
	return dup, nil
}

// Count returns the number of rooms in the establishment.
func (r *Repository) Count(ctx context.Context, establishmentID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.Room{}).
		Where("establishment_id = ?", establishmentID).
		Count(&n).Error
	return n, err
}
