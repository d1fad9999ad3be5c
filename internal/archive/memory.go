package archive

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/cheese-chess-rooms/internal/room"
)

// MemoryRepository is used when no database is configured.
type MemoryRepository struct {
	mu     sync.RWMutex
	byRoom map[string]*Record
	byUser map[string][]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byRoom: make(map[string]*Record),
		byUser: make(map[string][]string),
	}
}

func (m *MemoryRepository) Archive(_ context.Context, r *room.Room) error {
	rec, err := BuildRecord(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byRoom[rec.RoomID]; !exists {
		for _, id := range []string{rec.WhiteID, rec.BlackID} {
			if id = strings.TrimSpace(id); id != "" {
				m.byUser[id] = append(m.byUser[id], rec.RoomID)
			}
		}
	}
	m.byRoom[rec.RoomID] = rec
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, roomID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byRoom[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// RecentByUser returns the user's games, most recently ended first.
func (m *MemoryRepository) RecentByUser(_ context.Context, userID string, limit int) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byUser[strings.TrimSpace(userID)]
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		cp := *m.byRoom[id]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) Close() error { return nil }
