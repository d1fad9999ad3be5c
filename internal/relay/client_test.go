package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/cheese-chess-rooms/internal/chess"
	"github.com/park285/cheese-chess-rooms/internal/room"
)

func finishedRoom() *room.Room {
	g := chess.CreateInitialState("10+0")
	g.Status, g.Winner = chess.StatusResigned, chess.Black
	return &room.Room{
		ID:    "r1",
		White: &room.Seat{UserID: "u1", Name: "Alice"},
		Black: &room.Seat{UserID: "u2", Name: "Bob"},
		Game:  g,
	}
}

func TestNotifyRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	var got Payload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/hook", WithBackoff(time.Millisecond), WithBearerToken("s3cret"))
	r := finishedRoom()
	if err := c.Notify(context.Background(), room.Event{Type: room.EventSnapshot, RoomID: r.ID, Room: r}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls=%d want 3", calls.Load())
	}
	if auth != "Bearer s3cret" {
		t.Fatalf("authorization %q", auth)
	}
	if got.RoomID != "r1" || got.Status != chess.StatusResigned || got.Winner != chess.Black || got.White != "Alice" {
		t.Fatalf("payload %+v", got)
	}
	if got.FEN != "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1" {
		t.Fatalf("fen %q", got.FEN)
	}
}

func TestNotifyDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithBackoff(time.Millisecond))
	msg := &room.ChatMessage{ID: "m1", Sender: "Carol", Text: "gg"}
	err := c.Notify(context.Background(), room.Event{Type: room.EventChat, RoomID: "r1", Chat: msg})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls=%d want 1", calls.Load())
	}
}

func TestNotifyGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithBackoff(time.Millisecond), WithRetry(2))
	if err := c.Notify(context.Background(), room.Event{Type: room.EventChat, RoomID: "r1"}); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 2 {
		t.Fatalf("calls=%d want 2", calls.Load())
	}
}

func TestNotifyWithoutURLIsNoop(t *testing.T) {
	if err := NewClient("").Notify(context.Background(), room.Event{}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
}
