package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/park285/cheese-chess-rooms/internal/obslog"
	"github.com/park285/cheese-chess-rooms/internal/room"
	"github.com/park285/cheese-chess-rooms/pkg/roomdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	streamBuffer = 32
	writeTimeout = 5 * time.Second
)

// streamRoom upgrades to a WebSocket that is read-only for the client. The
// first frame is the current snapshot; committed events follow in order.
// A client that cannot keep up is disconnected.
func (s *Server) streamRoom(w http.ResponseWriter, r *http.Request) {
	id := roomID(r)
	viewer := streamViewer(r)
	if _, err := s.rooms.Get(r.Context(), id); err != nil {
		s.writeError(w, r, err, id)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.origins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("room_id", id), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	events := make(chan room.Event, streamBuffer)
	overflow := make(chan struct{})
	var overflowed bool
	unsubscribe, err := s.rooms.Subscribe(ctx, id, func(ev room.Event) {
		if overflowed {
			return
		}
		select {
		case events <- ev:
		default:
			overflowed = true
			close(overflow)
		}
	})
	if err != nil {
		obslog.L().Warn("ws_subscribe_error", zap.String("room_id", id), zap.Error(err))
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer unsubscribe()

	// Loaded after subscribing so no committed change falls between the two.
	cur, err := s.rooms.Get(ctx, id)
	if err != nil {
		_, body := s.domainError(err, id)
		_ = s.writeFrame(ctx, conn, roomdto.StreamFrame{Type: "error", Error: &body})
		_ = conn.Close(websocket.StatusPolicyViolation, body.Code)
		return
	}
	if err := s.writeFrame(ctx, conn, roomdto.StreamFrame{Type: string(room.EventSnapshot), Room: s.roomView(cur, viewer)}); err != nil {
		return
	}
	obslog.L().Debug("ws_open", zap.String("room_id", id), zap.String("viewer", viewer))

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()
	lastRev := cur.Revision
	for {
		select {
		case <-ctx.Done():
			obslog.L().Debug("ws_close", zap.String("room_id", id), zap.Error(ctx.Err()))
			return
		case <-overflow:
			_ = conn.Close(websocket.StatusPolicyViolation, "slow consumer")
			return
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		case ev := <-events:
			frame, ok := s.frameFor(ev, viewer, &lastRev)
			if !ok {
				continue
			}
			if err := s.writeFrame(ctx, conn, frame); err != nil {
				if !errors.Is(err, context.Canceled) {
					obslog.L().Debug("ws_write_error", zap.String("room_id", id), zap.Error(err))
				}
				return
			}
		}
	}
}

// streamViewer prefers X-User-ID; browsers cannot set headers on an upgrade
// request, so the userId query parameter is accepted in its place.
func streamViewer(r *http.Request) string {
	if uid := userID(r); uid != "" {
		return uid
	}
	return strings.TrimSpace(r.URL.Query().Get("userId"))
}

// frameFor converts ev, dropping snapshots not newer than the last one sent.
func (s *Server) frameFor(ev room.Event, viewer string, lastRev *int64) (roomdto.StreamFrame, bool) {
	switch ev.Type {
	case room.EventSnapshot:
		if ev.Room == nil || ev.Room.Game == nil || ev.Room.Revision <= *lastRev {
			return roomdto.StreamFrame{}, false
		}
		*lastRev = ev.Room.Revision
		return roomdto.StreamFrame{Type: string(ev.Type), Room: s.roomView(ev.Room, viewer)}, true
	case room.EventChat:
		if ev.Chat == nil {
			return roomdto.StreamFrame{}, false
		}
		v := chatView(*ev.Chat)
		return roomdto.StreamFrame{Type: string(ev.Type), Chat: &v}, true
	}
	return roomdto.StreamFrame{}, false
}

func (s *Server) writeFrame(ctx context.Context, conn *websocket.Conn, frame roomdto.StreamFrame) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, frame)
}
