package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/espace-classe/internal/auth"
	"github.com/mrlokans/espace-classe/internal/database"
	"github.com/mrlokans/espace-classe/internal/entities"
)

// RoomsController serves the classroom layouts of the caller's establishment.
// The establishment always comes from the resolved session, never from the request.
type RoomsController struct {
	store  RoomStore
	events RoomEvents
}

func NewRoomsController(store RoomStore, events RoomEvents) *RoomsController {
	return &RoomsController{store: store, events: events}
}

// RoomRequest is the create/update payload.
type RoomRequest struct {
	Name          string                 `json:"name"`
	Code          string                 `json:"code"`
	BoardPosition entities.BoardPosition `json:"board_position"`
	Config        entities.RoomConfig    `json:"config"`
}

type DeleteRoomsRequest struct {
	IDs []string `json:"ids"`
}

func (req RoomRequest) room(establishmentID string) *entities.Room {
	return &entities.Room{
		EstablishmentID: establishmentID,
		Name:            strings.TrimSpace(req.Name),
		Code:            strings.TrimSpace(req.Code),
		BoardPosition:   req.BoardPosition,
		Config:          req.Config,
	}
}

// List handles GET /api/rooms?q=
func (rc *RoomsController) List(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	rooms, err := rc.store.List(c.Request.Context(), user.EstablishmentID, c.Query("q"))
	if err != nil {
		respondInternalError(c, err, "list rooms")
		return
	}
	if rooms == nil {
		rooms = []entities.Room{}
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms, "total": len(rooms)})
}

// Get handles GET /api/rooms/:id
func (rc *RoomsController) Get(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	room, err := rc.store.Get(c.Request.Context(), user.EstablishmentID, c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondNotFound(c, "room")
			return
		}
		respondInternalError(c, err, "get room")
		return
	}
	c.JSON(http.StatusOK, room)
}

// Create handles POST /api/rooms
func (rc *RoomsController) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid room payload")
		return
	}
	room := req.room(user.EstablishmentID)
	if err := room.Validate(); err != nil {
		respondValidation(c, err)
		return
	}
	createdBy := user.ID
	room.CreatedBy = &createdBy

	err := rc.store.Create(c.Request.Context(), room)
	rc.log(c, "create", room.ID, room.Name, err)
	if err != nil {
		respondInternalError(c, err, "create room")
		return
	}
	respondCreated(c, room)
}

// Update handles PUT /api/rooms/:id
func (rc *RoomsController) Update(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid room payload")
		return
	}
	room := req.room(user.EstablishmentID)
	room.ID = c.Param("id")
	if err := room.Validate(); err != nil {
		respondValidation(c, err)
		return
	}

	err := rc.store.Update(c.Request.Context(), room)
	rc.log(c, "update", room.ID, room.Name, err)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondNotFound(c, "room")
			return
		}
		respondInternalError(c, err, "update room")
		return
	}

	updated, err := rc.store.Get(c.Request.Context(), user.EstablishmentID, room.ID)
	if err != nil {
		respondInternalError(c, err, "reload room")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /api/rooms with a batch of IDs.
func (rc *RoomsController) Delete(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req DeleteRoomsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		respondBadRequest(c, "ids is required")
		return
	}

	deleted, err := rc.store.Delete(c.Request.Context(), user.EstablishmentID, req.IDs)
	for _, id := range req.IDs {
		rc.log(c, "delete", id, "", err)
	}
	if err != nil {
		respondInternalError(c, err, "delete rooms")
		return
	}
	respondSuccess(c, "rooms deleted", gin.H{"deleted": deleted})
}

// Duplicate handles POST /api/rooms/:id/duplicate
func (rc *RoomsController) Duplicate(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	createdBy := user.ID
	dup, err := rc.store.Duplicate(c.Request.Context(), user.EstablishmentID, c.Param("id"), &createdBy)
	if err != nil {
		rc.log(c, "duplicate", c.Param("id"), "", err)
		if errors.Is(err, database.ErrNotFound) {
			respondNotFound(c, "room")
			return
		}
		respondInternalError(c, err, "duplicate room")
		return
	}
	rc.log(c, "duplicate", dup.ID, dup.Name, nil)
	respondCreated(c, dup)
}

func (rc *RoomsController) log(c *gin.Context, action, id, name string, err error) {
	if rc.events == nil {
		return
	}
	rc.events.LogRoom(c.Request.Context(), auth.CurrentUser(c), action, id, name, err)
}
