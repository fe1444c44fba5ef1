// Package identities provides database operations for the per-role account
// tables: staff profiles, teachers and students.
//
// Lookups are always scoped by establishment. A username may repeat across
// tables and across establishments.
package identities

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/espace-classe/internal/database"
	"github.com/mrlokans/espace-classe/internal/entities"
)

// Repository handles all identity database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new identities repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindStaff returns the vie-scolaire profile with the given username in the establishment.
func (r *Repository) FindStaff(ctx context.Context, establishmentID, username string) (*entities.Profile, error) {
	var profile entities.Profile
	err := r.db.WithContext(ctx).
		Where("establishment_id = ? AND username = ? AND role = ?", establishmentID, username, entities.RoleStaff).
		First(&profile).Error
	if err != nil {
		return nil, database.Translate(err)
	}
	return &profile, nil
}

func (r *Repository) FindTeacher(ctx context.Context, establishmentID, username string) (*entities.Teacher, error) {
	var teacher entities.Teacher
	err := r.db.WithContext(ctx).
		Where("establishment_id = ? AND username = ?", establishmentID, username).
		First(&teacher).Error
	if err != nil {
		return nil, database.Translate(err)
	}
	return &teacher, nil
}

func (r *Repository) FindStudent(ctx context.Context, establishmentID, username string) (*entities.Student, error) {
	var student entities.Student
	err := r.db.WithContext(ctx).
		Where("establishment_id = ? AND username = ?", establishmentID, username).
		First(&student).Error
	if err != nil {
		return nil, database.Translate(err)
	}
	return &student, nil
}

// GetProfileByID retrieves a profile of any role by ID.
func (r *Repository) GetProfileByID(ctx context.Context, id string) (*entities.Profile, error) {
	var profile entities.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if err != nil {
		return nil, database.Translate(err)
	}
	return &profile, nil
}

func (r *Repository) CreateProfile(ctx context.Context, profile *entities.Profile) error {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return fmt.Errorf("failed to create profile %s: %w", profile.Username, err)
	}
	return nil
}

func (r *Repository) CreateTeacher(ctx context.Context, teacher *entities.Teacher) error {
	if err := r.db.WithContext(ctx).Create(teacher).Error; err != nil {
		return fmt.Errorf("failed to create teacher %s: %w", teacher.Username, err)
	}
	return nil
}

func (r *Repository) CreateStudent(ctx context.Context, student *entities.Student) error {
	if err := r.db.WithContext(ctx).Create(student).Error; err != nil {
		return fmt.Errorf("failed to create student %s: %w", student.Username, err)
	}
	return nil
}

// UpdatePasswordHash replaces the stored hash of an identity in the given table.
func (r *Repository) UpdatePasswordHash(ctx context.Context, role entities.Role, id, hash string) error {
	var model any
	switch role {
	case entities.RoleStaff:
		model = &entities.Profile{}
	case entities.RoleTeacher:
		model = &entities.Teacher{}
	case entities.RoleDelegate:
		model = &entities.Student{}
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	result := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Update("password_hash", hash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return database.ErrNotFound
	}
	return nil
}

// OrphanedProfiles returns profiles whose establishment is missing or empty.
func (r *Repository) OrphanedProfiles(ctx context.Context) ([]entities.Profile, error) {
	var profiles []entities.Profile
	err := r.db.WithContext(ctx).
		Where("establishment_id = '' OR establishment_id IS NULL OR establishment_id NOT IN (?)",
			r.db.Model(&entities.Establishment{}).Select("id")).
		Find(&profiles).Error
	return profiles, err
}

// OrphanedStudents returns students whose establishment is missing or empty.
func (r *Repository) OrphanedStudents(ctx context.Context) ([]entities.Student, error) {
	var students []entities.Student
	err := r.db.WithContext(ctx).
		Where("establishment_id = '' OR establishment_id IS NULL OR establishment_id NOT IN (?)",
			r.db.Model(&entities.Establishment{}).Select("id")).
		Find(&students).Error
	return students, err
}
