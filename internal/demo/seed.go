package demo

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/mrlokans/espace-classe/internal/auth"
	"github.com/mrlokans/espace-classe/internal/config"
	"github.com/mrlokans/espace-classe/internal/database"
	"github.com/mrlokans/espace-classe/internal/database/establishments"
	"github.com/mrlokans/espace-classe/internal/database/identities"
	"github.com/mrlokans/espace-classe/internal/database/rooms"
	"github.com/mrlokans/espace-classe/internal/entities"
)

// EstablishmentName is the name of the seeded school.
const EstablishmentName = "ST-MARIE 14000"

// Account is one seeded demo login.
type Account struct {
	Role      entities.Role
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
}

// Accounts are the demo logins, one per role.
var Accounts = []Account{
	{Role: entities.RoleStaff, Username: "vs.stmarie", Password: "VieScol2024!", FirstName: "Sophie", LastName: "Durand", Email: "vie-scolaire@stmarie.example"},
	{Role: entities.RoleTeacher, Username: "j.martin.stm", Password: "Prof2024!", FirstName: "Jean", LastName: "Martin", Email: "j.martin@stmarie.example"},
	{Role: entities.RoleDelegate, Username: "l.petit.del", Password: "Delegue2024!", FirstName: "Léa", LastName: "Petit"},
}

// Rooms are the seeded classroom layouts.
var Rooms = []entities.Room{
	{
		Name:          "Salle 101",
		Code:          "S101",
		BoardPosition: entities.BoardTop,
		Config: entities.RoomConfig{Columns: []entities.RoomColumn{
			{ID: "col-1", Tables: 5, SeatsPerTable: 2},
			{ID: "col-2", Tables: 5, SeatsPerTable: 2},
			{ID: "col-3", Tables: 5, SeatsPerTable: 2},
		}},
	},
	{
		Name:          "Laboratoire de sciences",
		Code:          "LAB1",
		BoardPosition: entities.BoardLeft,
		Config: entities.RoomConfig{Columns: []entities.RoomColumn{
			{ID: "col-1", Tables: 4, SeatsPerTable: 3},
			{ID: "col-2", Tables: 4, SeatsPerTable: 3},
		}},
	},
}

// SeedResult reports what Seed created.
type SeedResult struct {
	Establishment *entities.Establishment
	Accounts      int
	Rooms         int
}

// Seed creates the demo establishment with its accounts and rooms. It is
// idempotent: existing accounts keep their row and get their demo password
// back, and rooms are only created for an establishment without any.
func Seed(ctx context.Context, db *gorm.DB, bcryptCost int) (*SeedResult, error) {
	schools := establishments.NewRepository(db)
	people := identities.NewRepository(db)
	roomRepo := rooms.NewRepository(db)

	school, err := schools.GetOrCreate(ctx, config.DemoEstablishmentCode, EstablishmentName)
	if err != nil {
		return nil, err
	}
	result := &SeedResult{Establishment: school}

	for _, account := range Accounts {
		created, err := seedAccount(ctx, people, school.ID, account, bcryptCost)
		if err != nil {
			return nil, err
		}
		if created {
			result.Accounts++
		}
	}

	existing, err := roomRepo.Count(ctx, school.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count rooms: %w", err)
	}
	if existing == 0 {
		for _, tmpl := range Rooms {
			room := tmpl
			room.EstablishmentID = school.ID
			room.Config.Columns = append([]entities.RoomColumn(nil), tmpl.Config.Columns...)
			if err := roomRepo.Create(ctx, &room); err != nil {
				return nil, err
			}
			result.Rooms++
		}
	}

	log.Printf("Demo data seeded for %s (%s): %d accounts, %d rooms created",
		school.Name, school.Code, result.Accounts, result.Rooms)
	return result, nil
}

func seedAccount(ctx context.Context, repo *identities.Repository, establishmentID string, account Account, cost int) (bool, error) {
	hash, err := auth.HashPassword(account.Password, cost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password for %s: %w", account.Username, err)
	}

	identity := entities.Identity{
		EstablishmentID: establishmentID,
		Username:        account.Username,
		PasswordHash:    hash,
		FirstName:       account.FirstName,
		LastName:        account.LastName,
		Email:           account.Email,
	}

	existingID, err := findAccount(ctx, repo, establishmentID, account)
	switch {
	case err == nil:
		return false, repo.UpdatePasswordHash(ctx, account.Role, existingID, hash)
	case !errors.Is(err, database.ErrNotFound):
		return false, err
	}

	switch account.Role {
	case entities.RoleStaff:
		return true, repo.CreateProfile(ctx, &entities.Profile{Identity: identity, Role: entities.RoleStaff})
	case entities.RoleTeacher:
		return true, repo.CreateTeacher(ctx, &entities.Teacher{Identity: identity})
	default:
		return true, repo.CreateStudent(ctx, &entities.Student{Identity: identity})
	}
}

func findAccount(ctx context.Context, repo *identities.Repository, establishmentID string, account Account) (string, error) {
	switch account.Role {
	case entities.RoleStaff:
		p, err := repo.FindStaff(ctx, establishmentID, account.Username)
		if err != nil {
			return "", err
		}
		return p.ID, nil
	case entities.RoleTeacher:
		t, err := repo.FindTeacher(ctx, establishmentID, account.Username)
		if err != nil {
			return "", err
		}
		return t.ID, nil
	default:
		s, err := repo.FindStudent(ctx, establishmentID, account.Username)
		if err != nil {
			return "", err
		}
		return s.ID, nil
	}
}
