package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-chess-rooms/internal/chess"
	"github.com/park285/cheese-chess-rooms/internal/obslog"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultTTL       = 24 * time.Hour
	defaultChatLimit = 200
)

// errUnchanged makes Update return the current room without writing.
var errUnchanged = errors.New("room unchanged")

// Store persists rooms, codes and chat in Redis and fans out events over
// pub/sub.
type Store struct {
	rdb       *redis.Client
	ttl       time.Duration
	chatLimit int64
}

// StoreOption tunes a Store.
type StoreOption func(*Store)

// WithTTL sets the expiry applied to every room key on write. Each update
// refreshes the record, its codes and its chat list together.
func WithTTL(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithChatLimit caps the number of chat messages kept per room.
func WithChatLimit(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.chatLimit = int64(n)
		}
	}
}

func NewStore(rdb *redis.Client, opts ...StoreOption) *Store {
	s := &Store{rdb: rdb, ttl: defaultTTL, chatLimit: defaultChatLimit}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) keyRoom(id string) string   { return "room:" + strings.TrimSpace(id) }
func (s *Store) keyEvents(id string) string { return s.keyRoom(id) + ":events" }
func (s *Store) keyChat(id string) string   { return s.keyRoom(id) + ":chat" }
func (s *Store) keyCode(code string) string { return "room:code:" + code }
func (s *Store) keyPlaying() string         { return "rooms:playing" }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

// ReserveCode binds code to roomID unless the code is taken.
func (s *Store) ReserveCode(ctx context.Context, code, roomID string) (bool, error) {
	return s.rdb.SetNX(ctx, s.keyCode(code), roomID, s.ttl).Result()
}

// ResolveCode returns the room bound to code.
func (s *Store) ResolveCode(ctx context.Context, code string) (string, error) {
	id, err := s.rdb.Get(ctx, s.keyCode(code)).Result()
	if err == redis.Nil {
		return "", ErrRoomNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// Save writes a new room record.
func (s *Store) Save(ctx context.Context, r *Room) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.keyRoom(r.ID), raw, s.ttl).Err()
}

// Load returns the room or ErrRoomNotFound.
func (s *Store) Load(ctx context.Context, id string) (*Room, error) {
	raw, err := s.rdb.Get(ctx, s.keyRoom(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	var r Room
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", id, err)
	}
	return &r, nil
}

// Update runs fn on a fresh copy of the room under WATCH and commits the
// result with an incremented revision. A concurrent write to the record
// aborts the transaction with ErrConflict and nothing is stored. Errors
// returned by fn abort the update and are passed through.
func (s *Store) Update(ctx context.Context, id string, now time.Time, fn func(r *Room) error) (*Room, error) {
	key := s.keyRoom(id)
	var out *Room
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrRoomNotFound
		}
		if err != nil {
			return err
		}
		var cur Room
		if err := json.Unmarshal(raw, &cur); err != nil {
			return fmt.Errorf("decode room %s: %w", id, err)
		}
		if err := fn(&cur); err != nil {
			if errors.Is(err, errUnchanged) {
				out = &cur
				return nil
			}
			return err
		}
		cur.Revision++
		cur.UpdatedAt = now
		newRaw, err := json.Marshal(&cur)
		if err != nil {
			return err
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, newRaw, s.ttl)
		// Codes and chat live as long as the room record.
		for _, code := range []string{cur.Code, cur.SpectatorCode} {
			if code != "" {
				pipe.Expire(ctx, s.keyCode(code), s.ttl)
			}
		}
		pipe.Expire(ctx, s.keyChat(cur.ID), s.ttl)
		if cur.Game != nil && cur.Game.Status == chess.StatusPlaying {
			pipe.SAdd(ctx, s.keyPlaying(), cur.ID)
		} else {
			pipe.SRem(ctx, s.keyPlaying(), cur.ID)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		out = &cur
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PlayingRooms lists rooms whose clock is running.
func (s *Store) PlayingRooms(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, s.keyPlaying()).Result()
}

// ForgetPlaying drops a stale index entry.
func (s *Store) ForgetPlaying(ctx context.Context, id string) error {
	return s.rdb.SRem(ctx, s.keyPlaying(), id).Err()
}

// Publish sends ev to the room's event channel.
func (s *Store) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, s.keyEvents(ev.RoomID), raw).Err()
}

// Subscribe delivers every event of roomID to onChange until ctx is done or
// the returned cancel func is called. It returns once the subscription is
// active.
func (s *Store) Subscribe(ctx context.Context, roomID string, onChange func(Event)) (func(), error) {
	ps := s.rdb.Subscribe(ctx, s.keyEvents(roomID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", roomID, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					obslog.L().Warn("room_event_decode_error", zap.String("room_id", roomID), zap.Error(err))
					continue
				}
				onChange(ev)
			}
		}
	}()
	return func() {
		cancel()
		_ = ps.Close()
		<-done
	}, nil
}

// AppendChat stores msg and trims the list to the configured limit.
func (s *Store) AppendChat(ctx context.Context, roomID string, msg ChatMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := s.keyChat(roomID)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.LTrim(ctx, key, -s.chatLimit, -1)
	pipe.Expire(ctx, key, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// ChatHistory returns up to limit most recent messages, oldest first.
func (s *Store) ChatHistory(ctx context.Context, roomID string, limit int) ([]ChatMessage, error) {
	if limit <= 0 || int64(limit) > s.chatLimit {
		limit = int(s.chatLimit)
	}
	raws, err := s.rdb.LRange(ctx, s.keyChat(roomID), int64(-limit), -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ChatMessage, 0, len(raws))
	for _, raw := range raws {
		var m ChatMessage
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			obslog.L().Warn("room_chat_decode_error", zap.String("room_id", roomID), zap.Error(err))
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
