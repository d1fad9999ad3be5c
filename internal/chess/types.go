package chess

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrIllegalMove is the single rejection produced by ApplyMove.
var ErrIllegalMove = errors.New("illegal move")

// Color identifies a side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) Valid() bool { return c == White || c == Black }

// ForwardDirection returns the row delta of a pawn advance for c.
// White starts on row 7 and moves toward row 0.
func ForwardDirection(c Color) int {
	if c == White {
		return -1
	}
	return 1
}

func homeRow(c Color) int {
	if c == White {
		return 7
	}
	return 0
}

func pawnStartRow(c Color) int { return homeRow(c) + ForwardDirection(c) }

func promotionRow(c Color) int { return homeRow(c.Opposite()) }

// PieceType names a kind of piece.
type PieceType string

const (
	King   PieceType = "king"
	Queen  PieceType = "queen"
	Rook   PieceType = "rook"
	Bishop PieceType = "bishop"
	Knight PieceType = "knight"
	Pawn   PieceType = "pawn"
)

// Letter returns the algebraic letter; pawns have none.
func (t PieceType) Letter() string {
	switch t {
	case King:
		return "K"
	case Queen:
		return "Q"
	case Rook:
		return "R"
	case Bishop:
		return "B"
	case Knight:
		return "N"
	default:
		return ""
	}
}

// Promotable reports whether a pawn may become t.
func (t PieceType) Promotable() bool {
	return t == Queen || t == Rook || t == Bishop || t == Knight
}

// ParsePieceType accepts full names ("knight") and letters ("n", "N").
func ParsePieceType(s string) (PieceType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "king", "k":
		return King, true
	case "queen", "q":
		return Queen, true
	case "rook", "r":
		return Rook, true
	case "bishop", "b":
		return Bishop, true
	case "knight", "n":
		return Knight, true
	case "pawn", "p":
		return Pawn, true
	default:
		return "", false
	}
}

// Piece is a single man on the board. HasMoved is the only history it carries.
type Piece struct {
	Type     PieceType `json:"type"`
	Color    Color     `json:"color"`
	HasMoved bool      `json:"hasMoved"`
}

// Position addresses a square. Row 0 is rank 8, col 0 is file a.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Position) Valid() bool {
	return p.Row >= 0 && p.Row < 8 && p.Col >= 0 && p.Col < 8
}

func (p Position) offset(dr, dc int) Position {
	return Position{Row: p.Row + dr, Col: p.Col + dc}
}

func (p Position) file() byte { return byte('a' + p.Col) }

// Square renders p as "e4".
func (p Position) Square() string {
	if !p.Valid() {
		return ""
	}
	return string(p.file()) + strconv.Itoa(8-p.Row)
}

func (p Position) String() string { return p.Square() }

// ParseSquare parses "e4" style coordinates.
func ParseSquare(s string) (Position, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return Position{}, fmt.Errorf("invalid square %q", s)
	}
	return Position{Row: 8 - int(s[1]-'0'), Col: int(s[0] - 'a')}, nil
}

// CastlingSide marks a castling move.
type CastlingSide string

const (
	Kingside  CastlingSide = "kingside"
	Queenside CastlingSide = "queenside"
)

// Move is the historical record of one ply. It is never modified after creation.
type Move struct {
	From      Position     `json:"from"`
	To        Position     `json:"to"`
	Piece     Piece        `json:"piece"`
	Captured  *Piece       `json:"captured,omitempty"`
	Promotion PieceType    `json:"promotion,omitempty"`
	Castling  CastlingSide `json:"castling,omitempty"`
	EnPassant bool         `json:"enPassant,omitempty"`
	Notation  string       `json:"notation"`
}

// UCI renders the move in long algebraic form, e.g. "e7e8q".
func (m Move) UCI() string {
	s := m.From.Square() + m.To.Square()
	if m.Promotion != "" {
		s += strings.ToLower(m.Promotion.Letter())
	}
	return s
}

func (m Move) clone() Move {
	if m.Captured != nil {
		captured := *m.Captured
		m.Captured = &captured
	}
	return m
}

// Status is the lifecycle state of a game.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusPlaying   Status = "playing"
	StatusCheckmate Status = "checkmate"
	StatusStalemate Status = "stalemate"
	StatusDraw      Status = "draw"
	StatusResigned  Status = "resigned"
	StatusTimeout   Status = "timeout"
)

// IsTerminal reports whether no further moves are accepted.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCheckmate, StatusStalemate, StatusDraw, StatusResigned, StatusTimeout:
		return true
	default:
		return false
	}
}

// GameState is the complete, serializable state of one game.
type GameState struct {
	Board           Board     `json:"board"`
	Turn            Color     `json:"turn"`
	Status          Status    `json:"status"`
	Moves           []Move    `json:"moves"`
	WhiteTime       int       `json:"whiteTime"`
	BlackTime       int       `json:"blackTime"`
	Increment       int       `json:"increment"`
	LastMove        *Move     `json:"lastMove,omitempty"`
	EnPassantTarget *Position `json:"enPassantTarget,omitempty"`
	Winner          Color     `json:"winner,omitempty"`
	DrawOffer       Color     `json:"drawOffer,omitempty"`
}

// Clone returns a deep copy sharing no memory with s.
func (s *GameState) Clone() *GameState {
	c := *s
	c.Board = s.Board.Clone()
	c.Moves = make([]Move, len(s.Moves))
	for i, m := range s.Moves {
		c.Moves[i] = m.clone()
	}
	if s.LastMove != nil {
		last := s.LastMove.clone()
		c.LastMove = &last
	}
	if s.EnPassantTarget != nil {
		target := *s.EnPassantTarget
		c.EnPassantTarget = &target
	}
	return &c
}

// TimeOf returns the remaining seconds of c.
func (s *GameState) TimeOf(c Color) int {
	if c == White {
		return s.WhiteTime
	}
	return s.BlackTime
}

// SetTimeOf overwrites the remaining seconds of c.
func (s *GameState) SetTimeOf(c Color, seconds int) {
	if c == White {
		s.WhiteTime = seconds
		return
	}
	s.BlackTime = seconds
}
