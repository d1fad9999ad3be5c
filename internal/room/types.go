package room

import (
	"strings"
	"time"

	"github.com/park285/cheese-chess-rooms/internal/chess"
)

// Role is the access a user holds in a room.
type Role string

const (
	RoleWhite     Role = "white"
	RoleBlack     Role = "black"
	RoleSpectator Role = "spectator"
)

// Color returns the chess side of a player role, or "" for spectators.
func (r Role) Color() chess.Color {
	switch r {
	case RoleWhite:
		return chess.White
	case RoleBlack:
		return chess.Black
	}
	return ""
}

// Seat is an occupied player slot.
type Seat struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// Room is stored as JSON in Redis under room:<id>. Revision grows by one on
// every committed mutation.
type Room struct {
	ID            string           `json:"id"`
	Name          string           `json:"name,omitempty"`
	Code          string           `json:"code"`
	SpectatorCode string           `json:"spectatorCode"`
	TimeControl   string           `json:"timeControl"`
	CreatorID     string           `json:"creatorId"`
	White         *Seat            `json:"white,omitempty"`
	Black         *Seat            `json:"black,omitempty"`
	Game          *chess.GameState `json:"game"`
	Revision      int64            `json:"revision"`
	TurnStartedAt time.Time        `json:"turnStartedAt"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// SeatOf returns the seat of color c, nil when free.
func (r *Room) SeatOf(c chess.Color) *Seat {
	switch c {
	case chess.White:
		return r.White
	case chess.Black:
		return r.Black
	}
	return nil
}

// RoleOf reports the player role of userID, or RoleSpectator for anyone else.
func (r *Room) RoleOf(userID string) Role {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return RoleSpectator
	}
	if r.White != nil && r.White.UserID == userID {
		return RoleWhite
	}
	if r.Black != nil && r.Black.UserID == userID {
		return RoleBlack
	}
	return RoleSpectator
}

// Full reports whether both seats are taken.
func (r *Room) Full() bool { return r.White != nil && r.Black != nil }

func (r *Room) clone() *Room {
	cp := *r
	if r.White != nil {
		w := *r.White
		cp.White = &w
	}
	if r.Black != nil {
		b := *r.Black
		cp.Black = &b
	}
	if r.Game != nil {
		cp.Game = r.Game.Clone()
	}
	return &cp
}

// ChatMessage is one entry of a room's chat list.
type ChatMessage struct {
	ID          string    `json:"id"`
	Sender      string    `json:"sender"`
	Text        string    `json:"text"`
	IsSpectator bool      `json:"isSpectator"`
	Timestamp   time.Time `json:"timestamp"`
}

// EventType discriminates room events on the pub/sub channel.
type EventType string

const (
	EventSnapshot EventType = "snapshot"
	EventChat     EventType = "chat"
)

// Event is published on room:<id>:events after a change is persisted.
type Event struct {
	Type   EventType    `json:"type"`
	RoomID string       `json:"roomId"`
	Room   *Room        `json:"room,omitempty"`
	Chat   *ChatMessage `json:"chat,omitempty"`
}

// CreateRequest opens a room with the creator seated.
type CreateRequest struct {
	UserID      string
	Name        string
	RoomName    string
	TimeControl string
	// Color is "white", "black" or anything else for random.
	Color string
}

// MoveRequest submits a move. Revision, when non-zero, must match the room's
// current revision.
type MoveRequest struct {
	RoomID    string
	UserID    string
	From      string
	To        string
	Promotion string
	Revision  int64
}

// Errors
var (
	ErrInvalidArgs        = errf("invalid arguments")
	ErrRoomNotFound       = errf("room not found or expired")
	ErrRoomFull           = errf("room already has two players")
	ErrNotPlayer          = errf("user is not a player in this room")
	ErrNotYourTurn        = errf("not your turn")
	ErrWaitingForOpponent = errf("waiting for an opponent")
	ErrGameOver           = errf("game is over")
	ErrConflict           = errf("room changed concurrently")
	ErrNoDrawOffer        = errf("no pending draw offer from the opponent")
	ErrCodeAllocation     = errf("failed to allocate room code")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
