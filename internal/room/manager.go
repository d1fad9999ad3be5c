package room

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/park285/cheese-chess-rooms/internal/chess"
	"github.com/park285/cheese-chess-rooms/internal/obslog"
	"go.uber.org/zap"
)

const (
	maxChatRunes  = 500
	finishTimeout = 10 * time.Second
)

// Archiver stores finished games.
type Archiver interface {
	Archive(ctx context.Context, r *Room) error
}

// Notifier forwards committed events outside the process.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Manager owns the canonical state of every room. Each mutation goes through
// Store.Update so that only one change per revision can commit.
type Manager struct {
	store     *Store
	archiver  Archiver
	notifier  Notifier
	defaultTC string
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

func WithArchiver(a Archiver) Option { return func(m *Manager) { m.archiver = a } }
func WithNotifier(n Notifier) Option { return func(m *Manager) { m.notifier = n } }

// WithDefaultTimeControl is used when a create request carries none.
func WithDefaultTimeControl(tc string) Option {
	return func(m *Manager) {
		if strings.TrimSpace(tc) != "" {
			m.defaultTC = tc
		}
	}
}

// WithNow replaces the wall clock.
func WithNow(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func NewManager(store *Store, opts ...Option) *Manager {
	m := &Manager{store: store, defaultTC: chess.DefaultTimeControl.String(), now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Store exposes the underlying store.
func (m *Manager) Store() *Store { return m.store }

// Create opens a room, seats the creator and allocates the player and
// spectator codes.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Room, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, ErrInvalidArgs
	}
	tc := strings.TrimSpace(req.TimeControl)
	if tc == "" {
		tc = m.defaultTC
	}
	now := m.now()
	r := &Room{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.RoomName),
		TimeControl: chess.ParseTimeControl(tc).String(),
		CreatorID:   userID,
		Game:        chess.CreateInitialState(tc),
		Revision:    1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	seat := &Seat{UserID: userID, Name: displayName(req.Name, userID)}
	if pickColor(req.Color) == chess.White {
		r.White = seat
	} else {
		r.Black = seat
	}

	var err error
	if r.Code, err = m.allocateCode(ctx, r.ID); err != nil {
		return nil, err
	}
	if r.SpectatorCode, err = m.allocateCode(ctx, r.ID); err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, r); err != nil {
		return nil, err
	}
	obslog.L().Info("room_create",
		zap.String("room_id", r.ID),
		zap.String("code", r.Code),
		zap.String("creator_id", userID),
		zap.String("time_control", r.TimeControl),
	)
	return r, nil
}

func (m *Manager) allocateCode(ctx context.Context, roomID string) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		c, err := codeGen()
		if err != nil {
			return "", err
		}
		ok, err := m.store.ReserveCode(ctx, c, roomID)
		if err != nil {
			return "", err
		}
		if ok {
			return c, nil
		}
	}
	return "", ErrCodeAllocation
}

// Join resolves a code. The spectator code grants RoleSpectator; the player
// code seats userID in the free color or returns the seat it already holds.
func (m *Manager) Join(ctx context.Context, code, userID, name string) (*Room, Role, error) {
	code = NormalizeCode(code)
	if !ValidCode(code) {
		return nil, "", ErrInvalidArgs
	}
	roomID, err := m.store.ResolveCode(ctx, code)
	if err != nil {
		return nil, "", err
	}
	r, err := m.store.Load(ctx, roomID)
	if err != nil {
		return nil, "", err
	}
	if code == r.SpectatorCode {
		obslog.L().Info("room_join", zap.String("room_id", r.ID), zap.String("user_id", userID), zap.String("role", string(RoleSpectator)))
		return r, RoleSpectator, nil
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, "", ErrInvalidArgs
	}
	var role Role
	seated := false
	r, err = m.store.Update(ctx, roomID, m.now(), func(cur *Room) error {
		if role = cur.RoleOf(userID); role != RoleSpectator {
			return errUnchanged
		}
		seat := &Seat{UserID: userID, Name: displayName(name, userID)}
		switch {
		case cur.White == nil:
			cur.White, role = seat, RoleWhite
		case cur.Black == nil:
			cur.Black, role = seat, RoleBlack
		default:
			return ErrRoomFull
		}
		seated = true
		return nil
	})
	if err != nil {
		obslog.L().Warn("room_join_error", zap.String("room_id", roomID), zap.String("user_id", userID), zap.Error(err))
		return nil, "", err
	}
	obslog.L().Info("room_join", zap.String("room_id", r.ID), zap.String("user_id", userID), zap.String("role", string(role)), zap.Bool("seated", seated))
	if seated {
		m.broadcast(ctx, r)
	}
	return r, role, nil
}

// Get returns the room snapshot.
func (m *Manager) Get(ctx context.Context, roomID string) (*Room, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, ErrInvalidArgs
	}
	return m.store.Load(ctx, roomID)
}

// Legal lists the destinations of the piece on square in the current
// position. Finished games and empty squares yield nothing.
func (m *Manager) Legal(ctx context.Context, roomID, square string) ([]string, error) {
	from, err := chess.ParseSquare(square)
	if err != nil {
		return nil, ErrInvalidArgs
	}
	r, err := m.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := []string{}
	if r.Game.Status.IsTerminal() {
		return out, nil
	}
	for _, to := range chess.LegalMoves(&r.Game.Board, from, r.Game.EnPassantTarget) {
		out = append(out, to.Square())
	}
	return out, nil
}

// Move validates seat and turn ownership, charges the mover's clock and
// applies the move through the engine. A flag that fell before the move
// arrived is committed as a timeout and reported as ErrGameOver.
func (m *Manager) Move(ctx context.Context, req MoveRequest) (*Room, error) {
	from, err := chess.ParseSquare(req.From)
	if err != nil {
		return nil, ErrInvalidArgs
	}
	to, err := chess.ParseSquare(req.To)
	if err != nil {
		return nil, ErrInvalidArgs
	}
	promotion, _ := chess.ParsePieceType(req.Promotion)
	userID := strings.TrimSpace(req.UserID)
	now := m.now()

	flagged := false
	r, err := m.store.Update(ctx, req.RoomID, now, func(cur *Room) error {
		g := cur.Game
		if g.Status.IsTerminal() {
			return ErrGameOver
		}
		color := cur.RoleOf(userID).Color()
		if color == "" {
			return ErrNotPlayer
		}
		if !cur.Full() {
			return ErrWaitingForOpponent
		}
		if req.Revision != 0 && req.Revision != cur.Revision {
			return ErrConflict
		}
		if g.Turn != color {
			return ErrNotYourTurn
		}
		remaining := g.TimeOf(color)
		if g.Status == chess.StatusPlaying {
			remaining -= elapsedSeconds(cur.TurnStartedAt, now)
			if remaining <= 0 {
				flagTimeout(cur, color)
				flagged = true
				return nil
			}
		}
		next, err := chess.ApplyMove(g, from, to, promotion)
		if err != nil {
			return err
		}
		if g.Status == chess.StatusPlaying {
			next.SetTimeOf(color, remaining+next.Increment)
		}
		cur.Game = next
		cur.TurnStartedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if flagged {
		obslog.L().Info("room_timeout", zap.String("room_id", r.ID), zap.String("winner", string(r.Game.Winner)), zap.String("trigger", "move"))
		m.finish(ctx, r)
		return r, fmt.Errorf("%w: %s ran out of time", ErrGameOver, r.Game.Winner.Opposite())
	}
	last := r.Game.LastMove
	obslog.L().Info("room_move",
		zap.String("room_id", r.ID),
		zap.String("user_id", userID),
		zap.String("uci", last.UCI()),
		zap.String("notation", last.Notation),
		zap.String("turn", string(r.Game.Turn)),
		zap.String("status", string(r.Game.Status)),
		zap.Int64("revision", r.Revision),
	)
	if r.Game.Status.IsTerminal() {
		m.finish(ctx, r)
	} else {
		m.broadcast(ctx, r)
	}
	return r, nil
}

// Resign ends the game in the opponent's favor.
func (m *Manager) Resign(ctx context.Context, roomID, userID string) (*Room, error) {
	r, err := m.store.Update(ctx, roomID, m.now(), func(cur *Room) error {
		color, err := playerColor(cur, userID)
		if err != nil {
			return err
		}
		if !cur.Full() {
			return ErrWaitingForOpponent
		}
		g := cur.Game.Clone()
		g.Status = chess.StatusResigned
		g.Winner = color.Opposite()
		g.DrawOffer = ""
		cur.Game = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("room_resign", zap.String("room_id", r.ID), zap.String("resigner", userID), zap.String("winner", string(r.Game.Winner)))
	m.finish(ctx, r)
	return r, nil
}

// OfferDraw records a pending offer from the caller. An offer made while the
// opponent's offer is pending is an agreement.
func (m *Manager) OfferDraw(ctx context.Context, roomID, userID string) (*Room, error) {
	agreed := false
	r, err := m.store.Update(ctx, roomID, m.now(), func(cur *Room) error {
		color, err := playerColor(cur, userID)
		if err != nil {
			return err
		}
		if !cur.Full() {
			return ErrWaitingForOpponent
		}
		switch cur.Game.DrawOffer {
		case color:
			return errUnchanged
		case color.Opposite():
			agreed = true
			cur.Game = agreeDraw(cur.Game)
			return nil
		}
		g := cur.Game.Clone()
		g.DrawOffer = color
		cur.Game = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("room_draw_offer", zap.String("room_id", r.ID), zap.String("user_id", userID), zap.Bool("agreed", agreed))
	if agreed {
		m.finish(ctx, r)
	} else {
		m.broadcast(ctx, r)
	}
	return r, nil
}

// RespondDraw accepts or declines the opponent's pending offer.
func (m *Manager) RespondDraw(ctx context.Context, roomID, userID string, accept bool) (*Room, error) {
	r, err := m.store.Update(ctx, roomID, m.now(), func(cur *Room) error {
		color, err := playerColor(cur, userID)
		if err != nil {
			return err
		}
		if cur.Game.DrawOffer != color.Opposite() {
			return ErrNoDrawOffer
		}
		if accept {
			cur.Game = agreeDraw(cur.Game)
			return nil
		}
		g := cur.Game.Clone()
		g.DrawOffer = ""
		cur.Game = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("room_draw_response", zap.String("room_id", r.ID), zap.String("user_id", userID), zap.Bool("accept", accept))
	if accept {
		m.finish(ctx, r)
	} else {
		m.broadcast(ctx, r)
	}
	return r, nil
}

// Timeout flags the side to move when its clock has run out. It reports
// whether the flag was committed; a room whose clock still runs is left as is.
func (m *Manager) Timeout(ctx context.Context, roomID string) (*Room, bool, error) {
	now := m.now()
	flagged := false
	r, err := m.store.Update(ctx, roomID, now, func(cur *Room) error {
		g := cur.Game
		if g.Status != chess.StatusPlaying {
			return errUnchanged
		}
		if g.TimeOf(g.Turn)-elapsedSeconds(cur.TurnStartedAt, now) > 0 {
			return errUnchanged
		}
		flagTimeout(cur, g.Turn)
		flagged = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if flagged {
		obslog.L().Info("room_timeout", zap.String("room_id", r.ID), zap.String("winner", string(r.Game.Winner)), zap.String("trigger", "clock"))
		m.finish(ctx, r)
	}
	return r, flagged, nil
}

// Remaining returns both clocks as of now, charging the side to move for the
// running turn.
func (m *Manager) Remaining(r *Room) (white, black int) {
	white, black = r.Game.WhiteTime, r.Game.BlackTime
	if r.Game.Status != chess.StatusPlaying {
		return white, black
	}
	spent := elapsedSeconds(r.TurnStartedAt, m.now())
	if r.Game.Turn == chess.White {
		white -= spent
	} else {
		black -= spent
	}
	return max(white, 0), max(black, 0)
}

// Chat stores and publishes a message. Senders do not need a seat; the
// spectator flag is taken from msg.
func (m *Manager) Chat(ctx context.Context, roomID string, msg ChatMessage) (*ChatMessage, error) {
	msg.Text = strings.TrimSpace(msg.Text)
	msg.Sender = strings.TrimSpace(msg.Sender)
	if msg.Text == "" || msg.Sender == "" {
		return nil, ErrInvalidArgs
	}
	if utf8.RuneCountInString(msg.Text) > maxChatRunes {
		msg.Text = string([]rune(msg.Text)[:maxChatRunes])
	}
	if _, err := m.Get(ctx, roomID); err != nil {
		return nil, err
	}
	msg.ID = uuid.NewString()
	msg.Timestamp = m.now().UTC()
	if err := m.store.AppendChat(ctx, roomID, msg); err != nil {
		return nil, err
	}
	ev := Event{Type: EventChat, RoomID: roomID, Chat: &msg}
	if err := m.store.Publish(ctx, ev); err != nil {
		obslog.L().Warn("room_publish_error", zap.String("room_id", roomID), zap.Error(err))
	}
	m.notify(ctx, ev)
	obslog.L().Debug("room_chat", zap.String("room_id", roomID), zap.String("sender", msg.Sender), zap.Bool("spectator", msg.IsSpectator))
	return &msg, nil
}

// ChatHistory returns up to limit recent messages, oldest first.
func (m *Manager) ChatHistory(ctx context.Context, roomID string, limit int) ([]ChatMessage, error) {
	if _, err := m.Get(ctx, roomID); err != nil {
		return nil, err
	}
	return m.store.ChatHistory(ctx, roomID, limit)
}

// Subscribe streams committed events of a room to onChange.
func (m *Manager) Subscribe(ctx context.Context, roomID string, onChange func(Event)) (func(), error) {
	return m.store.Subscribe(ctx, roomID, onChange)
}

func (m *Manager) broadcast(ctx context.Context, r *Room) {
	ev := Event{Type: EventSnapshot, RoomID: r.ID, Room: r}
	if err := m.store.Publish(ctx, ev); err != nil {
		obslog.L().Warn("room_publish_error", zap.String("room_id", r.ID), zap.Error(err))
	}
}

// finish publishes the terminal snapshot, then archives and relays it. The
// archive and relay calls outlive the caller's request.
func (m *Manager) finish(ctx context.Context, r *Room) {
	m.broadcast(ctx, r)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if m.archiver != nil {
		if err := m.archiver.Archive(ctx, r); err != nil {
			obslog.L().Error("room_archive_error", zap.String("room_id", r.ID), zap.String("status", string(r.Game.Status)), zap.Error(err))
		} else {
			obslog.L().Info("room_archive", zap.String("room_id", r.ID), zap.String("status", string(r.Game.Status)))
		}
	}
	m.notify(ctx, Event{Type: EventSnapshot, RoomID: r.ID, Room: r})
}

func (m *Manager) notify(ctx context.Context, ev Event) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, ev); err != nil {
		obslog.L().Warn("room_notify_error", zap.String("room_id", ev.RoomID), zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

func playerColor(r *Room, userID string) (chess.Color, error) {
	if r.Game.Status.IsTerminal() {
		return "", ErrGameOver
	}
	color := r.RoleOf(userID).Color()
	if color == "" {
		return "", ErrNotPlayer
	}
	return color, nil
}

func agreeDraw(g *chess.GameState) *chess.GameState {
	next := g.Clone()
	next.Status = chess.StatusDraw
	next.Winner = ""
	next.DrawOffer = ""
	return next
}

func flagTimeout(r *Room, loser chess.Color) {
	g := r.Game.Clone()
	g.SetTimeOf(loser, 0)
	g.Status = chess.StatusTimeout
	g.Winner = loser.Opposite()
	g.DrawOffer = ""
	r.Game = g
}

func elapsedSeconds(since, now time.Time) int {
	if since.IsZero() || now.Before(since) {
		return 0
	}
	return int(now.Sub(since).Round(time.Second) / time.Second)
}

func pickColor(choice string) chess.Color {
	switch strings.ToLower(strings.TrimSpace(choice)) {
	case "white", "w":
		return chess.White
	case "black", "b":
		return chess.Black
	}
	if n, err := rand.Int(rand.Reader, big.NewInt(2)); err == nil && n.Int64() == 1 {
		return chess.Black
	}
	return chess.White
}

func displayName(name, fallback string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return fallback
}

// IsRetryable reports whether the caller may resubmit after reloading.
func IsRetryable(err error) bool { return errors.Is(err, ErrConflict) }
