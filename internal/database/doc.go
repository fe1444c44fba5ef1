// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup (sqlite or postgres), migrations
//	├── establishments/  # Tenant lookup by code or ID
//	├── identities/      # Staff profiles, teachers and students
//	├── rooms/           # Classroom layouts
//	└── audit/           # Audit event storage and retention
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase(cfg.Database)
//
//	establishmentRepo := establishments.NewRepository(db.DB)
//	identityRepo := identities.NewRepository(db.DB)
//
//	school, err := establishmentRepo.GetByCode(ctx, "STM14000")
//	teacher, err := identityRepo.FindTeacher(ctx, school.ID, "j.martin.stm")
//
// Repositories return database.ErrNotFound when a row does not exist, so
// callers can tell a miss from a backend failure with errors.Is.
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Register its entities in database.Tables
//  5. Add compile-time interface check in internal/interfaces
package database
