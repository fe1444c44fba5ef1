package audit

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/mrlokans/espace-classe/internal/auth"
	"github.com/mrlokans/espace-classe/internal/database/audit"
	"github.com/mrlokans/espace-classe/internal/entities"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo    *audit.Repository
	pending sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(ctx context.Context, event *entities.AuditEvent) error {
	return s.repo.LogEvent(ctx, event)
}

// LogAsync records an audit event in the background (non-blocking).
// The write outlives the request that triggered it.
func (s *Service) LogAsync(ctx context.Context, event *entities.AuditEvent) {
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.repo.LogEvent(ctx, event); err != nil {
			log.Printf("[AUDIT] Failed to log %s event: %v", event.Action, err)
		}
	}()
}

// Wait blocks until every LogAsync write has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func userEvent(user *auth.AuthUser, eventType entities.AuditEventType, action string) *entities.AuditEvent {
	event := &entities.AuditEvent{
		EventType: eventType,
		Action:    action,
		Status:    entities.AuditStatusSuccess,
	}
	if user != nil {
		event.UserID = user.ID
		event.EstablishmentID = user.EstablishmentID
		event.AuthType = string(user.AuthType)
	}
	return event
}

// LoginSucceeded records a completed sign-in of any kind.
func (s *Service) LoginSucceeded(ctx context.Context, user *auth.AuthUser, ip, userAgent string) {
	if user == nil {
		return
	}
	event := userEvent(user, entities.AuditEventLogin, actionFor(user.AuthType, "login"))
	event.Description = "Signed in as " + user.Username
	event.IPAddress = ip
	event.UserAgent = truncate(userAgent, 500)
	s.LogAsync(ctx, event)
}

// LoginFailed records a rejected sign-in. The attempted username is kept,
// never the password.
func (s *Service) LoginFailed(ctx context.Context, authType auth.AuthType, username, establishmentCode, ip, userAgent string, err error) {
	event := &entities.AuditEvent{
		EventType: entities.AuditEventLogin,
		Action:    actionFor(authType, "login_failed"),
		AuthType:  string(authType),
		IPAddress: ip,
		UserAgent: truncate(userAgent, 500),
		Status:    entities.AuditStatusFailed,
	}
	metadata := map[string]string{}
	if username != "" {
		metadata["username"] = username
	}
	if establishmentCode != "" {
		metadata["establishment_code"] = establishmentCode
	}
	if len(metadata) > 0 {
		if b, e := json.Marshal(metadata); e == nil {
			event.Metadata = string(b)
		}
	}
	if err != nil {
		event.ErrorMsg = truncate(err.Error(), 500)
	}
	s.LogAsync(ctx, event)
}

func (s *Service) LoggedOut(ctx context.Context, user *auth.AuthUser, ip, userAgent string) {
	event := userEvent(user, entities.AuditEventLogout, "logout")
	event.IPAddress = ip
	event.UserAgent = truncate(userAgent, 500)
	s.LogAsync(ctx, event)
}

// Forbidden records a request refused for lack of role.
func (s *Service) Forbidden(ctx context.Context, path string, required []entities.Role, user *auth.AuthUser, ip, userAgent string) {
	event := userEvent(user, entities.AuditEventForbidden, "forbidden")
	event.Status = entities.AuditStatusFailed
	event.Description = truncate("Access denied to "+path, 500)
	event.IPAddress = ip
	event.UserAgent = truncate(userAgent, 500)
	if b, err := json.Marshal(map[string]any{"path": path, "required_roles": required}); err == nil {
		event.Metadata = string(b)
	}
	s.LogAsync(ctx, event)
}

// LogRoom records a room mutation. action is one of create, update, delete, duplicate.
func (s *Service) LogRoom(ctx context.Context, user *auth.AuthUser, action, roomID, roomName string, err error) {
	event := userEvent(user, entities.AuditEventRoom, "room_"+action)
	event.EntityType = "room"
	event.EntityID = roomID
	if roomName != "" {
		event.Description = truncate("Room "+action+": "+roomName, 500)
	}
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
	s.LogAsync(ctx, event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(ctx context.Context, filter audit.Filter, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(ctx, filter, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(ctx, cutoff)
}

func actionFor(authType auth.AuthType, suffix string) string {
	switch authType {
	case auth.AuthTypeLocal:
		return "local_" + suffix
	case auth.AuthTypeAdmin:
		return "admin_" + suffix
	case auth.AuthTypeProvider:
		return "provider_" + suffix
	}
	return suffix
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
