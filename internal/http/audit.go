package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/espace-classe/internal/database/audit"
	"github.com/mrlokans/espace-classe/internal/entities"
)

type AuditController struct {
	events  AuditReader
	cleanup AuditCleanupRunner
}

// NewAuditController creates the audit endpoints. cleanup may be nil when the
// task queue is disabled.
func NewAuditController(events AuditReader, cleanup AuditCleanupRunner) *AuditController {
	return &AuditController{events: events, cleanup: cleanup}
}

// GetAuditEvents returns the establishment's audit events, most recent first.
// GET /api/audit?type=&user_id=&limit=&offset=
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	limit, offset := parsePagination(c, 25, 100)
	filter := audit.Filter{
		EstablishmentID: user.EstablishmentID,
		UserID:          c.Query("user_id"),
		EventType:       entities.AuditEventType(c.Query("type")),
	}

	events, total, err := ac.events.GetEvents(c.Request.Context(), filter, limit, offset)
	if err != nil {
		respondInternalError(c, err, "load audit events")
		return
	}
	if events == nil {
		events = []entities.AuditEvent{}
	}
	c.JSON(http.StatusOK, newPaginatedResponse(events, total, limit, offset))
}

// RunCleanup enqueues an audit retention run.
// POST /api/audit/cleanup
func (ac *AuditController) RunCleanup(c *gin.Context) {
	if ac.cleanup == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "task queue is disabled"})
		return
	}
	if err := ac.cleanup.RunNow(c.Request.Context()); err != nil {
		respondInternalError(c, err, "enqueue audit cleanup")
		return
	}
	respondAccepted(c, "audit cleanup enqueued", nil)
}
