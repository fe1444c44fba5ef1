package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/alexedwards/scs/v2"

	"github.com/mrlokans/espace-classe/internal/audit"
	"github.com/mrlokans/espace-classe/internal/auth"
	"github.com/mrlokans/espace-classe/internal/database"
	"github.com/mrlokans/espace-classe/internal/database/establishments"
	"github.com/mrlokans/espace-classe/internal/database/identities"
	"github.com/mrlokans/espace-classe/internal/database/rooms"
	"github.com/mrlokans/espace-classe/internal/http"
	"github.com/mrlokans/espace-classe/internal/idp"
	"github.com/mrlokans/espace-classe/internal/scheduler"
	"github.com/mrlokans/espace-classe/internal/tasks"
)

// =============================================================================
// Directory lookups
// =============================================================================

var _ auth.EstablishmentFinder = (*establishments.Repository)(nil)
var _ auth.IdentityFinder = (*identities.Repository)(nil)
var _ auth.ProfileStore = (*identities.Repository)(nil)

// =============================================================================
// Session locations
// =============================================================================

var _ auth.SessionStore = (*auth.CookieStore)(nil)
var _ auth.SessionStore = (*auth.LocalStore)(nil)
var _ auth.SessionStore = (*auth.MemoryStore)(nil)

// Twin session backends
var _ scs.Store = (*auth.RedisStore)(nil)
var _ scs.CtxStore = (*auth.RedisStore)(nil)

// =============================================================================
// Identity providers
// =============================================================================

var _ auth.IdentityProvider = (*idp.OIDCProvider)(nil)
var _ auth.RedirectLogin = (*idp.OIDCProvider)(nil)
var _ auth.IdentityProvider = (*idp.TokenProvider)(nil)
var _ auth.TokenLogin = (*idp.TokenProvider)(nil)

// =============================================================================
// Audit trail
// =============================================================================

var _ auth.EventRecorder = (*audit.Service)(nil)
var _ http.RoomEvents = (*audit.Service)(nil)
var _ http.AuditReader = (*audit.Service)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)

// =============================================================================
// HTTP stores
// =============================================================================

var _ http.RoomStore = (*rooms.Repository)(nil)
var _ http.Pinger = (*database.Database)(nil)
var _ http.Pinger = (*tasks.Client)(nil)

// =============================================================================
// Background work
// =============================================================================

var _ scheduler.AuditCleanupEnqueuer = (*tasks.Client)(nil)
var _ http.TaskStatuser = (*tasks.Client)(nil)
var _ http.AuditCleanupRunner = (*scheduler.AuditCleanupScheduler)(nil)
