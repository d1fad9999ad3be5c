package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/park285/cheese-chess-rooms/internal/archive"
	"github.com/park285/cheese-chess-rooms/internal/msgcat"
	"github.com/park285/cheese-chess-rooms/internal/obslog"
	"github.com/park285/cheese-chess-rooms/internal/render"
	"github.com/park285/cheese-chess-rooms/internal/room"
	"go.uber.org/zap"
)

const (
	headerUserID   = "X-User-ID"
	headerUserName = "X-User-Name"

	maxBodyBytes = 16 << 10
)

// Server exposes a room.Manager over HTTP and WebSocket.
type Server struct {
	rooms    *room.Manager
	archive  archive.Repository
	renderer render.Renderer
	msgs     *msgcat.Catalog
	origins  []string

	pingInterval time.Duration
}

type Option func(*Server)

// WithArchive enables PGN fallback for expired rooms and the user history route.
func WithArchive(repo archive.Repository) Option { return func(s *Server) { s.archive = repo } }

func WithRenderer(r render.Renderer) Option { return func(s *Server) { s.renderer = r } }

func WithCatalog(c *msgcat.Catalog) Option { return func(s *Server) { s.msgs = c } }

// WithAllowedOrigins enables CORS and cross-origin WebSocket upgrades for the
// given origins.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

func WithPingInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

func New(rooms *room.Manager, opts ...Option) *Server {
	s := &Server{rooms: rooms, renderer: render.NewRenderer(), pingInterval: 30 * time.Second}
	for _, o := range opts {
		o(s)
	}
	if s.msgs == nil {
		s.msgs = msgcat.Default()
	}
	return s
}

// Handler returns the routed handler wrapped with recovery, access logging
// and, when origins are configured, CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rooms", s.createRoom).Methods(http.MethodPost)
	api.HandleFunc("/rooms/join", s.joinRoom).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}", s.getRoom).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/legal", s.legalMoves).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/move", s.makeMove).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/resign", s.resign).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/draw", s.draw).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/chat", s.chatHistory).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/chat", s.postChat).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/board.png", s.boardPNG).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/pgn", s.pgn).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId}/games", s.userGames).Methods(http.MethodGet)
	r.HandleFunc("/ws/rooms/{id}", s.streamRoom).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)

	var h http.Handler = r
	h = handlers.CustomLoggingHandler(io.Discard, h, logRequest)
	if len(s.origins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.origins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", headerUserID, headerUserName}),
		)(h)
	}
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}), handlers.PrintRecoveryStack(true))(h)
}

func logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	obslog.L().Debug("http_request",
		zap.String("method", p.Request.Method),
		zap.String("path", p.URL.Path),
		zap.Int("status", p.StatusCode),
		zap.Int("size", p.Size),
		zap.Duration("elapsed", time.Since(p.TimeStamp)),
	)
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	obslog.L().Error("http_panic", zap.Any("recovered", v))
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.rooms.Store().Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "redis unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func userID(r *http.Request) string   { return strings.TrimSpace(r.Header.Get(headerUserID)) }
func userName(r *http.Request) string { return strings.TrimSpace(r.Header.Get(headerUserName)) }

func roomID(r *http.Request) string { return mux.Vars(r)["id"] }

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return room.ErrInvalidArgs
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obslog.L().Debug("http_write_error", zap.Error(err))
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
