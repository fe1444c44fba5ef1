package entities

import "time"

type AuditEventType string

const (
	AuditEventLogin     AuditEventType = "login"
	AuditEventLogout    AuditEventType = "logout"
	AuditEventForbidden AuditEventType = "forbidden"
	AuditEventRoom      AuditEventType = "room"
)

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)

type AuditEvent struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UserID          string         `gorm:"index;size:64" json:"user_id"`
	EstablishmentID string         `gorm:"index;size:36" json:"establishment_id"`
	EventType       AuditEventType `gorm:"index;size:50" json:"event_type"`
	Action          string         `gorm:"size:100" json:"action"`    // e.g., "local_login", "room_delete"
	AuthType        string         `gorm:"size:32" json:"auth_type"`  // Provenance of the session, if any
	Description     string         `gorm:"size:500" json:"description"`
	EntityType      string         `gorm:"size:50" json:"entity_type"`
	EntityID        string         `gorm:"index;size:64" json:"entity_id,omitempty"`
	Metadata        string         `gorm:"type:text" json:"metadata,omitempty"` // JSON for extra data
	IPAddress       string         `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent       string         `gorm:"size:500" json:"user_agent,omitempty"`
	Status          AuditStatus    `gorm:"size:20" json:"status"`
	ErrorMsg        string         `gorm:"size:500" json:"error_msg,omitempty"`
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
