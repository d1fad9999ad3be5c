package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/cheese-chess-rooms/internal/archive"
	"github.com/park285/cheese-chess-rooms/internal/room"
	"github.com/park285/cheese-chess-rooms/pkg/roomdto"
	"github.com/redis/go-redis/v9"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type testEnv struct {
	srv  *httptest.Server
	mr   *miniredis.Miniredis
	repo *archive.MemoryRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := archive.NewMemoryRepository()
	m := room.NewManager(room.NewStore(rdb), room.WithArchiver(repo))
	srv := httptest.NewServer(New(m, WithArchive(repo)).Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, mr: mr, repo: repo}
}

// call sends a JSON request as userID and decodes the response into out when non-nil.
func (e *testEnv) call(t *testing.T, method, path, userID string, body, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(headerUserID, userID)
		req.Header.Set(headerUserName, strings.ToUpper(userID))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// startGame creates a room with u1 as white and seats u2 as black.
func (e *testEnv) startGame(t *testing.T) *roomdto.RoomView {
	t.Helper()
	var created roomdto.RoomView
	if code := e.call(t, http.MethodPost, "/api/rooms", "u1", roomdto.CreateRoomRequest{Color: "white", TimeControl: "5+3"}, &created); code != http.StatusCreated {
		t.Fatalf("create status %d", code)
	}
	if created.Code == "" || created.SpectatorCode == "" || created.TimeControl != "5+3" {
		t.Fatalf("created %+v", created)
	}
	var joined roomdto.JoinRoomResponse
	if code := e.call(t, http.MethodPost, "/api/rooms/join", "u2", roomdto.JoinRoomRequest{Code: strings.ToLower(created.Code)}, &joined); code != http.StatusOK {
		t.Fatalf("join status %d", code)
	}
	if joined.Role != "black" || joined.Room.Black == nil || joined.Room.Black.Name != "U2" {
		t.Fatalf("joined %+v", joined)
	}
	return joined.Room
}

func TestMoveFlowAndErrors(t *testing.T) {
	e := newTestEnv(t)
	rv := e.startGame(t)
	base := "/api/rooms/" + rv.ID

	var after roomdto.RoomView
	if code := e.call(t, http.MethodPost, base+"/move", "u1", roomdto.MoveRequest{From: "E2", To: "e4"}, &after); code != http.StatusOK {
		t.Fatalf("move status %d", code)
	}
	if after.Turn != "black" || len(after.Moves) != 1 || after.Moves[0].UCI != "e2e4" || after.Status != "playing" {
		t.Fatalf("after move %+v", after)
	}
	if after.StatusText != "black to move." {
		t.Fatalf("status text %q", after.StatusText)
	}

	cases := []struct {
		name   string
		user   string
		req    roomdto.MoveRequest
		status int
		code   string
	}{
		{"wrong turn", "u1", roomdto.MoveRequest{From: "d2", To: "d4"}, http.StatusConflict, "not_your_turn"},
		{"illegal", "u2", roomdto.MoveRequest{From: "e7", To: "e3"}, http.StatusUnprocessableEntity, "illegal_move"},
		{"stranger", "u9", roomdto.MoveRequest{From: "e7", To: "e5"}, http.StatusForbidden, "not_player"},
		{"bad square", "u2", roomdto.MoveRequest{From: "z9", To: "e5"}, http.StatusBadRequest, "invalid_args"},
		{"stale revision", "u2", roomdto.MoveRequest{From: "e7", To: "e5", Revision: 1}, http.StatusConflict, "conflict"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var de roomdto.DomainError
			if got := e.call(t, http.MethodPost, base+"/move", tc.user, tc.req, &de); got != tc.status {
				t.Fatalf("status %d want %d", got, tc.status)
			}
			if de.Code != tc.code || de.Message == "" {
				t.Fatalf("error body %+v", de)
			}
			if de.Retryable != (tc.code == "conflict") {
				t.Fatalf("retryable %+v", de)
			}
		})
	}

	var de roomdto.DomainError
	if code := e.call(t, http.MethodPost, base+"/move", "u1", roomdto.MoveRequest{From: "d2", To: "d4"}, &de); code != http.StatusConflict {
		t.Fatalf("status %d", code)
	}
	if de.Message != "Wait for your opponent to move." {
		t.Fatalf("message %q", de.Message)
	}
}

func TestUnknownRoomMessage(t *testing.T) {
	e := newTestEnv(t)
	var de roomdto.DomainError
	if code := e.call(t, http.MethodGet, "/api/rooms/nope", "", nil, &de); code != http.StatusNotFound {
		t.Fatalf("status %d", code)
	}
	if de.Code != "room_not_found" || de.Message != "Room nope does not exist or has expired." {
		t.Fatalf("body %+v", de)
	}
	if code := e.call(t, http.MethodPost, "/api/rooms/join", "u1", roomdto.JoinRoomRequest{Code: "ZZZZZZ"}, &de); code != http.StatusNotFound {
		t.Fatalf("join unknown code status %d", code)
	}
}

func TestSpectatorViewHidesPlayerCode(t *testing.T) {
	e := newTestEnv(t)
	rv := e.startGame(t)

	var joined roomdto.JoinRoomResponse
	if code := e.call(t, http.MethodPost, "/api/rooms/join", "", roomdto.JoinRoomRequest{Code: rv.SpectatorCode}, &joined); code != http.StatusOK {
		t.Fatalf("spectator join %d", code)
	}
	if joined.Role != "spectator" || joined.Room.Code != "" {
		t.Fatalf("spectator view %+v", joined)
	}
	var own roomdto.RoomView
	e.call(t, http.MethodGet, "/api/rooms/"+rv.ID, "u2", nil, &own)
	if own.Code == "" {
		t.Fatalf("player should see the room code")
	}
	var de roomdto.DomainError
	if code := e.call(t, http.MethodPost, "/api/rooms/join", "u3", roomdto.JoinRoomRequest{Code: own.Code}, &de); code != http.StatusConflict || de.Code != "room_full" {
		t.Fatalf("third player %d %+v", code, de)
	}
}

func TestLegalEndpoint(t *testing.T) {
	e := newTestEnv(t)
	rv := e.startGame(t)
	var legal roomdto.LegalResponse
	if code := e.call(t, http.MethodGet, "/api/rooms/"+rv.ID+"/legal?from=g1", "", nil, &legal); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if strings.Join(legal.Targets, ",") != "f3,h3" && strings.Join(legal.Targets, ",") != "h3,f3" {
		t.Fatalf("targets %v", legal.Targets)
	}
	var de roomdto.DomainError
	if code := e.call(t, http.MethodGet, "/api/rooms/"+rv.ID+"/legal?from=x", "", nil, &de); code != http.StatusBadRequest {
		t.Fatalf("bad square status %d", code)
	}
}

func TestDrawFlow(t *testing.T) {
	e := newTestEnv(t)
	rv := e.startGame(t)
	base := "/api/rooms/" + rv.ID
	e.call(t, http.MethodPost, base+"/move", "u1", roomdto.MoveRequest{From: "e2", To: "e4"}, nil)

	var de roomdto.DomainError
	if code := e.call(t, http.MethodPost, base+"/draw", "u2", roomdto.DrawRequest{Action: "accept"}, &de); code != http.StatusConflict || de.Code != "no_draw_offer" {
		t.Fatalf("accept without offer %d %+v", code, de)
	}
	var v roomdto.RoomView
	e.call(t, http.MethodPost, base+"/draw", "u1", roomdto.DrawRequest{Action: "offer"}, &v)
	if v.DrawOffer != "white" {
		t.Fatalf("offer %+v", v)
	}
	e.call(t, http.MethodPost, base+"/draw", "u2", roomdto.DrawRequest{Action: "accept"}, &v)
	if v.Status != "draw" || v.StatusText != "Draw agreed." {
		t.Fatalf("accepted %+v", v)
	}
	if code := e.call(t, http.MethodPost, base+"/draw", "u2", roomdto.DrawRequest{Action: "shrug"}, &de); code != http.StatusBadRequest {
		t.Fatalf("unknown action %d", code)
	}
}

func TestChatFlagsSpectators(t *testing.T) {
	e := newTestEnv(t)
	rv := e.startGame(t)
	base := "/api/rooms/" + rv.ID + "/chat"

	var msg roomdto.ChatView
	if code := e.call(t, http.MethodPost, base, "u1", roomdto.ChatRequest{Text: "good luck"}, &msg); code != http.StatusCreated {
		t.Fatalf("status %d", code)
	}
	if msg.Sender != "U1" || msg.IsSpectator || msg.ID == "" {
		t.Fatalf("player message %+v", msg)
	}
	e.call(t, http.MethodPost, base, "fan", roomdto.ChatRequest{Text: "go white"}, &msg)
	if !msg.IsSpectator {
		t.Fatalf("spectator message %+v", msg)
	}
	var de roomdto.DomainError
	if code := e.call(t, http.MethodPost, base, "", roomdto.ChatRequest{Text: "anon"}, &de); code != http.StatusBadRequest {
		t.Fatalf("anonymous chat %d", code)
	}

	var hist roomdto.ChatHistoryResponse
	e.call(t, http.MethodGet, base+"?limit=10", "", nil, &hist)
	if len(hist.Messages) != 2 || hist.Messages[0].Text != "good luck" || hist.Messages[1].Text != "go white" {
		t.Fatalf("history %+v", hist)
	}
}

func TestBoardPNG(t *testing.T) {
	e := newTestEnv(t)
	rv := e.startGame(t)
	resp, err := http.Get(e.srv.URL + "/api/rooms/" + rv.ID + "/board.png?flip=1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("status %d type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(body, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatalf("not a png")
	}
}

func TestPGNAndArchiveFallback(t *testing.T) {
	e := newTestEnv(t)
	rv := e.startGame(t)
	base := "/api/rooms/" + rv.ID
	e.call(t, http.MethodPost, base+"/move", "u1", roomdto.MoveRequest{From: "e2", To: "e4"}, nil)
	e.call(t, http.MethodPost, base+"/move", "u2", roomdto.MoveRequest{From: "e7", To: "e5"}, nil)
	e.call(t, http.MethodPost, base+"/resign", "u2", nil, nil)

	fetch := func() (int, string) {
		resp, err := http.Get(e.srv.URL + base + "/pgn")
		if err != nil {
			t.Fatalf("get pgn: %v", err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}
	code, live := fetch()
	if code != http.StatusOK || !strings.Contains(live, "1. e4 e5 1-0") || !strings.Contains(live, `[White "U1"]`) {
		t.Fatalf("live pgn %d %q", code, live)
	}

	e.mr.Del("room:" + rv.ID)
	code, archived := fetch()
	if code != http.StatusOK || archived != live {
		t.Fatalf("archived pgn %d %q", code, archived)
	}

	var games struct {
		Games []archive.Record `json:"games"`
	}
	e.call(t, http.MethodGet, "/api/users/u2/games", "", nil, &games)
	if len(games.Games) != 1 || games.Games[0].Result != "1-0" {
		t.Fatalf("history %+v", games)
	}
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	var body map[string]string
	if code := e.call(t, http.MethodGet, "/healthz", "", nil, &body); code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz %d %v", code, body)
	}
}

func TestWebSocketStream(t *testing.T) {
	e := newTestEnv(t)
	rv := e.startGame(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/rooms/" + rv.ID + "?userId=u1"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	var first roomdto.StreamFrame
	if err := wsjson.Read(ctx, conn, &first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Type != "snapshot" || first.Room == nil || first.Room.Revision != rv.Revision || first.Room.Code == "" {
		t.Fatalf("first frame %+v", first)
	}

	e.call(t, http.MethodPost, "/api/rooms/"+rv.ID+"/move", "u1", roomdto.MoveRequest{From: "d2", To: "d4"}, nil)
	var next roomdto.StreamFrame
	if err := wsjson.Read(ctx, conn, &next); err != nil {
		t.Fatalf("read move: %v", err)
	}
	if next.Type != "snapshot" || next.Room.Revision != rv.Revision+1 || next.Room.LastMove == nil || next.Room.LastMove.UCI != "d2d4" {
		t.Fatalf("move frame %+v", next)
	}

	e.call(t, http.MethodPost, "/api/rooms/"+rv.ID+"/chat", "u2", roomdto.ChatRequest{Text: "hi"}, nil)
	var chat roomdto.StreamFrame
	if err := wsjson.Read(ctx, conn, &chat); err != nil {
		t.Fatalf("read chat: %v", err)
	}
	if chat.Type != "chat" || chat.Chat == nil || chat.Chat.Text != "hi" || chat.Chat.Sender != "U2" {
		t.Fatalf("chat frame %+v", chat)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func TestWebSocketViewerIdentity(t *testing.T) {
	e := newTestEnv(t)
	rv := e.startGame(t)
	base := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/rooms/" + rv.ID

	firstFrame := func(url string, hdr http.Header) roomdto.StreamFrame {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: hdr})
		if err != nil {
			t.Fatalf("dial %s: %v", url, err)
		}
		defer conn.CloseNow()
		var f roomdto.StreamFrame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("read snapshot: %v", err)
		}
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return f
	}

	if f := firstFrame(base, http.Header{"X-User-ID": []string{"u2"}}); f.Room == nil || f.Room.Code == "" {
		t.Fatalf("header viewer frame %+v", f)
	}
	if f := firstFrame(base+"?userId=u9", http.Header{"X-User-ID": []string{"u1"}}); f.Room == nil || f.Room.Code == "" {
		t.Fatalf("header should win over query: %+v", f)
	}
	if f := firstFrame(base, nil); f.Room == nil || f.Room.Code != "" || f.Room.SpectatorCode == "" {
		t.Fatalf("anonymous viewer frame %+v", f)
	}
}

func TestWebSocketUnknownRoom(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/rooms/missing"
	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	if err == nil {
		t.Fatalf("expected dial failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("response %+v", resp)
	}
}
