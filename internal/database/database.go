package database

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/espace-classe/internal/config"
	"github.com/mrlokans/espace-classe/internal/entities"
)

// ErrNotFound is returned by repositories when the requested row does not exist.
var ErrNotFound = errors.New("record not found")

// Tables lists every table the service owns, in migration order.
var Tables = []any{
	&entities.Establishment{},
	&entities.Profile{},
	&entities.Teacher{},
	&entities.Student{},
	&entities.Room{},
	&entities.AuditEvent{},
}

type Database struct {
	DB     *gorm.DB
	driver config.DatabaseDriver
}

// NewDatabase opens the configured backend and migrates the service tables.
func NewDatabase(cfg config.Database) (*Database, error) {
	return open(cfg, logger.Default.LogMode(logger.Warn))
}

// NewTestDatabase opens a private in-memory sqlite database with every table migrated.
func NewTestDatabase() (*Database, error) {
	return open(config.Database{Driver: config.DatabaseDriverSQLite, Path: ":memory:"}, logger.Default.LogMode(logger.Silent))
}

func open(cfg config.Database, gormLogger logger.Interface) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DatabaseDriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DatabaseDriverSQLite, "":
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver != config.DatabaseDriverPostgres {
		// A :memory: database exists per connection, so the pool must not grow.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(Tables...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	location := cfg.Path
	if cfg.Driver == config.DatabaseDriverPostgres {
		location = "postgres"
	}
	log.Printf("Database initialized successfully at %s", location)

	return &Database{DB: db, driver: cfg.Driver}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks database connectivity.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// TableCounts returns the row count of every service table keyed by table name.
// A table that is missing reports an error for that entry.
func (d *Database) TableCounts(ctx context.Context) (map[string]int64, map[string]error) {
	counts := make(map[string]int64, len(Tables))
	failures := make(map[string]error)

	for _, model := range Tables {
		stmt := &gorm.Statement{DB: d.DB}
		if err := stmt.Parse(model); err != nil {
			failures[fmt.Sprintf("%T", model)] = err
			continue
		}
		name := stmt.Schema.Table

		if !d.DB.Migrator().HasTable(model) {
			failures[name] = fmt.Errorf("table %s does not exist", name)
			continue
		}

		var n int64
		if err := d.DB.WithContext(ctx).Model(model).Count(&n).Error; err != nil {
			failures[name] = err
			continue
		}
		counts[name] = n
	}

	return counts, failures
}

// Translate maps gorm's not-found error to ErrNotFound and leaves others untouched.
func Translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
