package http

import (
	"context"

	"github.com/mrlokans/espace-classe/internal/auth"
	"github.com/mrlokans/espace-classe/internal/database/audit"
	"github.com/mrlokans/espace-classe/internal/entities"
)

// This file gathers the storage ports of the HTTP controllers. Every method
// that touches tenant data takes the establishment ID first.

// RoomStore is the classroom layout storage used by RoomsController.
type RoomStore interface {
	List(ctx context.Context, establishmentID, query string) ([]entities.Room, error)
	Get(ctx context.Context, establishmentID, id string) (*entities.Room, error)
	Create(ctx context.Context, room *entities.Room) error
	Update(ctx context.Context, room *entities.Room) error
	Delete(ctx context.Context, establishmentID string, ids []string) (int64, error)
	Duplicate(ctx context.Context, establishmentID, id string, createdBy *string) (*entities.Room, error)
}

// RoomEvents records room mutations in the audit trail.
type RoomEvents interface {
	LogRoom(ctx context.Context, user *auth.AuthUser, action, roomID, roomName string, err error)
}

// AuditReader lists audit events.
type AuditReader interface {
	GetEvents(ctx context.Context, filter audit.Filter, limit, offset int) ([]entities.AuditEvent, int64, error)
}

// AuditCleanupRunner triggers an audit retention run outside its schedule.
type AuditCleanupRunner interface {
	RunNow(ctx context.Context) error
}
