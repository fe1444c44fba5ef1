package rooms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/espace-classe/internal/database"
	"github.com/mrlokans/espace-classe/internal/entities"
)

const school = "school-1"

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	db, err := database.NewTestDatabase()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db.DB)
}

func newRoom(name, code string) *entities.Room {
	return &entities.Room{
		EstablishmentID: school,
		Name:            name,
		Code:            code,
		BoardPosition:   entities.BoardTop,
		Config: entities.RoomConfig{Columns: []entities.RoomColumn{
			{ID: "col-1", Tables: 5, SeatsPerTable: 2},
			{ID: "col-2", Tables: 5, SeatsPerTable: 2},
		}},
	}
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	room := newRoom("Salle 101", "S101")
	require.NoError(t, repo.Create(ctx, room))
	assert.NotEmpty(t, room.ID)

	found, err := repo.Get(ctx, school, room.ID)

	require.NoError(t, err)
	assert.Equal(t, "Salle 101", found.Name)
	assert.Equal(t, 20, found.Config.TotalSeats())
	require.Len(t, found.Config.Columns, 2)
	assert.Equal(t, "col-2", found.Config.Columns[1].ID)
}

func TestRepository_Get_OtherEstablishment(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	room := newRoom("Salle", "S")
	require.NoError(t, repo.Create(ctx, room))

	_, err := repo.Get(ctx, "school-2", room.ID)

	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRepository_List_OrderAndFilter(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRoom("Labo Chimie", "LAB1")))
	require.NoError(t, repo.Create(ctx, newRoom("Amphi", "AMP")))
	require.NoError(t, repo.Create(ctx, newRoom("Salle 12", "lab2")))
	other := newRoom("Labo ailleurs", "LAB9")
	other.EstablishmentID = "school-2"
	require.NoError(t, repo.Create(ctx, other))

	all, err := repo.List(ctx, school, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Amphi", all[0].Name)
	assert.Equal(t, "Labo Chimie", all[1].Name)

	filtered, err := repo.List(ctx, school, "  LAB ")
	require.NoError(t, err)
	assert.Len(t, filtered, 2)
}

func TestRepository_Update(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	room := newRoom("Old", "OLD")
	require.NoError(t, repo.Create(ctx, room))

	room.Name = "New"
	room.BoardPosition = entities.BoardLeft
	room.Config.Columns = room.Config.Columns[:1]
	require.NoError(t, repo.Update(ctx, room))

	found, err := repo.Get(ctx, school, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", found.Name)
	assert.Equal(t, entities.BoardLeft, found.BoardPosition)
	assert.Len(t, found.Config.Columns, 1)

	missing := newRoom("x", "x")
	missing.ID = "nope"
	assert.ErrorIs(t, repo.Update(ctx, missing), database.ErrNotFound)
}

func TestRepository_Delete(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	a, b, c := newRoom("A", "A"), newRoom("B", "B"), newRoom("C", "C")
	for _, r := range []*entities.Room{a, b, c} {
		require.NoError(t, repo.Create(ctx, r))
	}

	n, err := repo.Delete(ctx, school, []string{a.ID, b.ID, "unknown"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := repo.Count(ctx, school)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	n, err = repo.Delete(ctx, school, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepository_Duplicate(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	room := newRoom("Salle 101", "S101")
	require.NoError(t, repo.Create(ctx, room))

	creator := "user-1"
	dup, err := repo.Duplicate(ctx, school, room.ID, &creator)

	require.NoError(t, err)
	assert.NotEqual(t, room.ID, dup.ID)
	assert.Equal(t, "Salle 101 (copie)", dup.Name)
	assert.Equal(t, "S101_copy", dup.Code)
	assert.Equal(t, room.Config, dup.Config)
	require.NotNil(t, dup.CreatedBy)
	assert.Equal(t, "user-1", *dup.CreatedBy)

	_, err = repo.Duplicate(ctx, school, "missing", nil)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
