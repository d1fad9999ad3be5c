package httpapi

import (
	"github.com/park285/cheese-chess-rooms/internal/chess"
	"github.com/park285/cheese-chess-rooms/internal/room"
	"github.com/park285/cheese-chess-rooms/pkg/roomdto"
)

// roomView renders r for viewerID. The player code is only shown to seated
// players; everyone else gets the spectator code alone.
func (s *Server) roomView(r *room.Room, viewerID string) *roomdto.RoomView {
	g := r.Game
	white, black := s.rooms.Remaining(r)
	v := &roomdto.RoomView{
		ID:            r.ID,
		Name:          r.Name,
		SpectatorCode: r.SpectatorCode,
		TimeControl:   r.TimeControl,
		White:         seatView(r.White),
		Black:         seatView(r.Black),
		Status:        string(g.Status),
		Turn:          string(g.Turn),
		Winner:        string(g.Winner),
		DrawOffer:     string(g.DrawOffer),
		InCheck:       !g.Status.IsTerminal() && chess.IsInCheck(&g.Board, g.Turn),
		FEN:           chess.FEN(g),
		Moves:         make([]roomdto.MoveView, 0, len(g.Moves)),
		WhiteTime:     white,
		BlackTime:     black,
		WhiteClock:    chess.FormatTime(white),
		BlackClock:    chess.FormatTime(black),
		Revision:      r.Revision,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.RoleOf(viewerID) != room.RoleSpectator {
		v.Code = r.Code
	}
	for _, m := range g.Moves {
		v.Moves = append(v.Moves, moveView(m))
	}
	if g.LastMove != nil {
		last := moveView(*g.LastMove)
		v.LastMove = &last
	}
	v.StatusText = s.statusText(g, v.InCheck)
	return v
}

func (s *Server) statusText(g *chess.GameState, inCheck bool) string {
	key := "status." + string(g.Status)
	if g.Status == chess.StatusPlaying && inCheck {
		key = "status.check"
	}
	data := map[string]any{
		"Turn":   string(g.Turn),
		"Winner": string(g.Winner),
		"Loser":  string(g.Winner.Opposite()),
	}
	return s.msgs.Text(key, data, string(g.Status))
}

func seatView(seat *room.Seat) *roomdto.SeatView {
	if seat == nil {
		return nil
	}
	return &roomdto.SeatView{UserID: seat.UserID, Name: seat.Name}
}

func moveView(m chess.Move) roomdto.MoveView {
	v := roomdto.MoveView{
		UCI:       m.UCI(),
		Notation:  m.Notation,
		Color:     string(m.Piece.Color),
		Castling:  string(m.Castling),
		EnPassant: m.EnPassant,
	}
	if m.Captured != nil {
		v.Captured = string(m.Captured.Type)
	}
	return v
}

func chatView(m room.ChatMessage) roomdto.ChatView {
	return roomdto.ChatView{ID: m.ID, Sender: m.Sender, Text: m.Text, IsSpectator: m.IsSpectator, Timestamp: m.Timestamp}
}
