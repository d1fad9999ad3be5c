package roomdto

import "time"

type SeatView struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type MoveView struct {
	UCI       string `json:"uci"`
	Notation  string `json:"notation"`
	Color     string `json:"color"`
	Captured  string `json:"captured,omitempty"`
	Castling  string `json:"castling,omitempty"`
	EnPassant bool   `json:"enPassant,omitempty"`
}

// RoomView is the snapshot sent to clients over HTTP and WebSocket.
// WhiteTime and BlackTime already account for the running clock.
type RoomView struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"`
	Code          string     `json:"code,omitempty"`
	SpectatorCode string     `json:"spectatorCode"`
	TimeControl   string     `json:"timeControl"`
	White         *SeatView  `json:"white,omitempty"`
	Black         *SeatView  `json:"black,omitempty"`
	Status        string     `json:"status"`
	Turn          string     `json:"turn"`
	Winner        string     `json:"winner,omitempty"`
	DrawOffer     string     `json:"drawOffer,omitempty"`
	InCheck       bool       `json:"inCheck"`
	FEN           string     `json:"fen"`
	Moves         []MoveView `json:"moves"`
	LastMove      *MoveView  `json:"lastMove,omitempty"`
	WhiteTime     int        `json:"whiteTime"`
	BlackTime     int        `json:"blackTime"`
	WhiteClock    string     `json:"whiteClock"`
	BlackClock    string     `json:"blackClock"`
	StatusText    string     `json:"statusText"`
	Revision      int64      `json:"revision"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type ChatView struct {
	ID          string    `json:"id"`
	Sender      string    `json:"sender"`
	Text        string    `json:"text"`
	IsSpectator bool      `json:"isSpectator"`
	Timestamp   time.Time `json:"timestamp"`
}

// StreamFrame is one WebSocket message. Type is "snapshot", "chat" or "error".
type StreamFrame struct {
	Type  string       `json:"type"`
	Room  *RoomView    `json:"room,omitempty"`
	Chat  *ChatView    `json:"chat,omitempty"`
	Error *DomainError `json:"error,omitempty"`
}
