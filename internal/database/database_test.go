package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/espace-classe/internal/config"
	"github.com/mrlokans/espace-classe/internal/entities"
)

func TestNewDatabase_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := NewDatabase(config.Database{Driver: config.DatabaseDriverSQLite, Path: path})
	require.NoError(t, err)
	defer db.Close()

	for _, model := range Tables {
		assert.True(t, db.DB.Migrator().HasTable(model), "%T should be migrated", model)
	}
	assert.NoError(t, db.Ping(context.Background()))
}

func TestNewDatabase_UnknownDriver(t *testing.T) {
	_, err := NewDatabase(config.Database{Driver: "oracle"})
	assert.Error(t, err)
}

func TestTableCounts(t *testing.T) {
	db, err := NewTestDatabase()
	require.NoError(t, err)
	defer db.Close()

	school := &entities.Establishment{Code: "T1", Name: "Test"}
	require.NoError(t, db.DB.Create(school).Error)

	counts, failures := db.TableCounts(context.Background())

	assert.Empty(t, failures)
	assert.Equal(t, int64(1), counts["establishments"])
	assert.Equal(t, int64(0), counts["profiles"])
	assert.Len(t, counts, len(Tables))
}

func TestTableCounts_MissingTable(t *testing.T) {
	db, err := NewTestDatabase()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.DB.Migrator().DropTable(&entities.Room{}))

	counts, failures := db.TableCounts(context.Background())

	assert.Contains(t, failures, "rooms")
	assert.NotContains(t, counts, "rooms")
}

func TestTranslate(t *testing.T) {
	assert.ErrorIs(t, Translate(gorm.ErrRecordNotFound), ErrNotFound)

	other := errors.New("boom")
	assert.Equal(t, other, Translate(other))
	assert.NoError(t, Translate(nil))
}
