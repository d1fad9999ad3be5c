package httpapi

import (
	"errors"
	"net/http"

	"github.com/park285/cheese-chess-rooms/internal/archive"
	"github.com/park285/cheese-chess-rooms/internal/chess"
	"github.com/park285/cheese-chess-rooms/internal/obslog"
	"github.com/park285/cheese-chess-rooms/internal/room"
	"github.com/park285/cheese-chess-rooms/pkg/roomdto"
	"go.uber.org/zap"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorTable = []errorMapping{
	{room.ErrInvalidArgs, http.StatusBadRequest, "invalid_args"},
	{room.ErrRoomNotFound, http.StatusNotFound, "room_not_found"},
	{room.ErrRoomFull, http.StatusConflict, "room_full"},
	{room.ErrNotPlayer, http.StatusForbidden, "not_player"},
	{room.ErrNotYourTurn, http.StatusConflict, "not_your_turn"},
	{room.ErrWaitingForOpponent, http.StatusConflict, "waiting_for_opponent"},
	{room.ErrGameOver, http.StatusConflict, "game_over"},
	{room.ErrConflict, http.StatusConflict, "conflict"},
	{room.ErrNoDrawOffer, http.StatusConflict, "no_draw_offer"},
	{room.ErrCodeAllocation, http.StatusServiceUnavailable, "code_allocation"},
	{chess.ErrIllegalMove, http.StatusUnprocessableEntity, "illegal_move"},
	{archive.ErrNotFound, http.StatusNotFound, "archive_not_found"},
}

// domainError maps err to an HTTP status and the wire error body.
func (s *Server) domainError(err error, roomID string) (int, roomdto.DomainError) {
	status, code := http.StatusInternalServerError, "internal"
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			status, code = m.status, m.code
			break
		}
	}
	data := map[string]any{"RoomID": roomID}
	return status, roomdto.DomainError{
		Code:      code,
		Message:   s.msgs.Text("errors."+code, data, err.Error()),
		Retryable: room.IsRetryable(err) || errors.Is(err, room.ErrCodeAllocation),
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, roomID string) {
	status, body := s.domainError(err, roomID)
	if status >= http.StatusInternalServerError {
		obslog.L().Error("http_error", zap.String("path", r.URL.Path), zap.String("room_id", roomID), zap.Error(err))
	} else {
		obslog.L().Debug("http_rejected", zap.String("path", r.URL.Path), zap.String("code", body.Code), zap.Error(err))
	}
	writeJSON(w, status, body)
}
