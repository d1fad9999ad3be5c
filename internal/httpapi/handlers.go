package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/park285/cheese-chess-rooms/internal/archive"
	"github.com/park285/cheese-chess-rooms/internal/render"
	"github.com/park285/cheese-chess-rooms/internal/room"
	"github.com/park285/cheese-chess-rooms/pkg/roomdto"
)

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	var req roomdto.CreateRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	uid := userID(r)
	rm, err := s.rooms.Create(r.Context(), room.CreateRequest{
		UserID:      uid,
		Name:        userName(r),
		RoomName:    req.Name,
		TimeControl: req.TimeControl,
		Color:       req.Color,
	})
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, s.roomView(rm, uid))
}

func (s *Server) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req roomdto.JoinRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	uid := userID(r)
	rm, role, err := s.rooms.Join(r.Context(), req.Code, uid, userName(r))
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, roomdto.JoinRoomResponse{Role: string(role), Room: s.roomView(rm, uid)})
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	id := roomID(r)
	rm, err := s.rooms.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, id)
		return
	}
	writeJSON(w, http.StatusOK, s.roomView(rm, userID(r)))
}

func (s *Server) legalMoves(w http.ResponseWriter, r *http.Request) {
	id := roomID(r)
	from := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("from")))
	targets, err := s.rooms.Legal(r.Context(), id, from)
	if err != nil {
		s.writeError(w, r, err, id)
		return
	}
	writeJSON(w, http.StatusOK, roomdto.LegalResponse{From: from, Targets: targets})
}

func (s *Server) makeMove(w http.ResponseWriter, r *http.Request) {
	id := roomID(r)
	var req roomdto.MoveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err, id)
		return
	}
	uid := userID(r)
	rm, err := s.rooms.Move(r.Context(), room.MoveRequest{
		RoomID:    id,
		UserID:    uid,
		From:      strings.ToLower(req.From),
		To:        strings.ToLower(req.To),
		Promotion: req.Promotion,
		Revision:  req.Revision,
	})
	if err != nil {
		s.writeError(w, r, err, id)
		return
	}
	writeJSON(w, http.StatusOK, s.roomView(rm, uid))
}

func (s *Server) resign(w http.ResponseWriter, r *http.Request) {
	id := roomID(r)
	uid := userID(r)
	rm, err := s.rooms.Resign(r.Context(), id, uid)
	if err != nil {
		s.writeError(w, r, err, id)
		return
	}
	writeJSON(w, http.StatusOK, s.roomView(rm, uid))
}

func (s *Server) draw(w http.ResponseWriter, r *http.Request) {
	id := roomID(r)
	var req roomdto.DrawRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err, id)
		return
	}
	uid := userID(r)
	var (
		rm  *room.Room
		err error
	)
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "offer":
		rm, err = s.rooms.OfferDraw(r.Context(), id, uid)
	case "accept":
		rm, err = s.rooms.RespondDraw(r.Context(), id, uid, true)
	case "decline":
		rm, err = s.rooms.RespondDraw(r.Context(), id, uid, false)
	default:
		err = room.ErrInvalidArgs
	}
	if err != nil {
		s.writeError(w, r, err, id)
		return
	}
	writeJSON(w, http.StatusOK, s.roomView(rm, uid))
}

func (s *Server) chatHistory(w http.ResponseWriter, r *http.Request) {
	id := roomID(r)
	msgs, err := s.rooms.ChatHistory(r.Context(), id, queryInt(r, "limit", 50))
	if err != nil {
		s.writeError(w, r, err, id)
		return
	}
	out := roomdto.ChatHistoryResponse{Messages: make([]roomdto.ChatView, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, chatView(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// postChat accepts messages from players and spectators alike. The sender is
// X-User-Name, falling back to X-User-ID.
func (s *Server) postChat(w http.ResponseWriter, r *http.Request) {
	id := roomID(r)
	var req roomdto.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err, id)
		return
	}
	rm, err := s.rooms.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, id)
		return
	}
	uid := userID(r)
	sender := userName(r)
	if sender == "" {
		sender = uid
	}
	msg, err := s.rooms.Chat(r.Context(), id, room.ChatMessage{
		Sender:      sender,
		Text:        req.Text,
		IsSpectator: rm.RoleOf(uid) == room.RoleSpectator,
	})
	if err != nil {
		s.writeError(w, r, err, id)
		return
	}
	writeJSON(w, http.StatusCreated, chatView(*msg))
}

// boardPNG draws the position from the viewer's side; ?flip=1 forces black's view.
func (s *Server) boardPNG(w http.ResponseWriter, r *http.Request) {
	id := roomID(r)
	rm, err := s.rooms.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, id)
		return
	}
	flip := rm.RoleOf(userID(r)) == room.RoleBlack
	if v := r.URL.Query().Get("flip"); v != "" {
		flip = v == "1" || strings.EqualFold(v, "true")
	}
	png, err := s.renderer.RenderPNG(r.Context(), rm.Game, render.Options{Title: rm.Name, Flip: flip})
	if err != nil {
		s.writeError(w, r, err, id)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// pgn exports the live room, or the archived record once the room expired.
func (s *Server) pgn(w http.ResponseWriter, r *http.Request) {
	id := roomID(r)
	var rec *archive.Record
	rm, err := s.rooms.Get(r.Context(), id)
	switch {
	case err == nil:
		rec, err = archive.BuildRecord(rm)
	case errors.Is(err, room.ErrRoomNotFound) && s.archive != nil:
		rec, err = s.archive.Get(r.Context(), id)
	}
	if err != nil {
		s.writeError(w, r, err, id)
		return
	}
	w.Header().Set("Content-Type", "application/x-chess-pgn")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "game-"+id+".pgn"))
	_, _ = w.Write([]byte(rec.PGN))
}

func (s *Server) userGames(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["userId"]
	if s.archive == nil {
		writeJSON(w, http.StatusOK, map[string]any{"games": []*archive.Record{}})
		return
	}
	recs, err := s.archive.RecentByUser(r.Context(), uid, queryInt(r, "limit", 20))
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	if recs == nil {
		recs = []*archive.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": recs})
}
