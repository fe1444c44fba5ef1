package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BoardPosition string

const (
	BoardTop    BoardPosition = "top"
	BoardBottom BoardPosition = "bottom"
	BoardLeft   BoardPosition = "left"
	BoardRight  BoardPosition = "right"
)

func (b BoardPosition) Valid() bool {
	switch b {
	case BoardTop, BoardBottom, BoardLeft, BoardRight:
		return true
	}
	return false
}

// RoomColumn is one column of tables in a classroom layout.
type RoomColumn struct {
	ID            string `json:"id"`
	Tables        int    `json:"tables"`
	SeatsPerTable int    `json:"seatsPerTable"`
}

type RoomConfig struct {
	Columns []RoomColumn `json:"columns"`
}

// TotalSeats is the seat count across every column.
func (c RoomConfig) TotalSeats() int {
	total := 0
	for _, col := range c.Columns {
		total += col.Tables * col.SeatsPerTable
	}
	return total
}

// TotalWidth is the number of seats in one row across the room.
func (c RoomConfig) TotalWidth() int {
	total := 0
	for _, col := range c.Columns {
		total += col.SeatsPerTable
	}
	return total
}

// Room is a classroom layout scoped to an establishment.
type Room struct {
	ID              string        `gorm:"primaryKey;size:36" json:"id"`
	EstablishmentID string        `gorm:"index;size:36" json:"establishment_id"`
	Name            string        `gorm:"size:255" json:"name"`
	Code            string        `gorm:"index;size:64" json:"code"`
	BoardPosition   BoardPosition `gorm:"size:16" json:"board_position"`
	Config          RoomConfig    `gorm:"serializer:json;type:text" json:"config"`
	CreatedBy       *string       `gorm:"size:64" json:"created_by"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (Room) TableName() string {
	return "rooms"
}

func (r *Room) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Layout limits.
const (
	MinRoomColumns = 1
	MaxRoomColumns = 4
	MaxRoomSeats   = 350
	MaxRoomWidth   = 10 // Seats in one row across every column
)

var (
	ErrRoomNameRequired  = errors.New("room name is required")
	ErrRoomCodeRequired  = errors.New("room code is required")
	ErrRoomColumns       = fmt.Errorf("a room has between %d and %d columns", MinRoomColumns, MaxRoomColumns)
	ErrRoomColumnShape   = errors.New("each column needs at least one table and one seat per table")
	ErrRoomTooManySeats  = fmt.Errorf("a room holds at most %d seats", MaxRoomSeats)
	ErrRoomTooWide       = fmt.Errorf("a row holds at most %d seats", MaxRoomWidth)
	ErrRoomBoardPosition = errors.New("board position must be top, bottom, left or right")
)

// Validate checks the room against the layout limits.
func (r *Room) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrRoomNameRequired
	}
	if strings.TrimSpace(r.Code) == "" {
		return ErrRoomCodeRequired
	}
	if !r.BoardPosition.Valid() {
		return ErrRoomBoardPosition
	}
	n := len(r.Config.Columns)
	if n < MinRoomColumns || n > MaxRoomColumns {
		return ErrRoomColumns
	}
	for _, col := range r.Config.Columns {
		if col.Tables < 1 || col.SeatsPerTable < 1 {
			return ErrRoomColumnShape
		}
		// Bounded per column so the totals below cannot overflow.
		if col.Tables > MaxRoomSeats {
			return ErrRoomTooManySeats
		}
		if col.SeatsPerTable > MaxRoomWidth {
			return ErrRoomTooWide
		}
	}
	if r.Config.TotalSeats() > MaxRoomSeats {
		return ErrRoomTooManySeats
	}
	if r.Config.TotalWidth() > MaxRoomWidth {
		return ErrRoomTooWide
	}
	return nil
}
