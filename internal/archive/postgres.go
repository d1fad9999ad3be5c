package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/cheese-chess-rooms/internal/room"
)

// ErrNotFound is returned by Get for unknown rooms.
var ErrNotFound = errors.New("archived game not found")

// Repository stores finished games. It satisfies room.Archiver.
type Repository interface {
	Archive(ctx context.Context, r *room.Room) error
	Get(ctx context.Context, roomID string) (*Record, error)
	RecentByUser(ctx context.Context, userID string, limit int) ([]*Record, error)
	Close() error
}

const schema = `CREATE TABLE IF NOT EXISTS archived_games (
    room_id      TEXT PRIMARY KEY,
    white_id     TEXT NOT NULL,
    white_name   TEXT NOT NULL,
    black_id     TEXT NOT NULL,
    black_name   TEXT NOT NULL,
    time_control TEXT NOT NULL,
    result       TEXT NOT NULL,
    method       TEXT NOT NULL,
    moves_uci    JSONB NOT NULL,
    moves_san    JSONB NOT NULL,
    fen          TEXT NOT NULL,
    pgn          TEXT NOT NULL,
    started_at   TIMESTAMPTZ NOT NULL,
    ended_at     TIMESTAMPTZ NOT NULL,
    duration_ms  BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS archived_games_white_idx ON archived_games (white_id, ended_at DESC);
CREATE INDEX IF NOT EXISTS archived_games_black_idx ON archived_games (black_id, ended_at DESC);`

// PostgresRepository keeps records in the archived_games table.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(databaseURL string) (*PostgresRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive schema: %w", err)
	}
	return &PostgresRepository{db: db}, nil
}

func (p *PostgresRepository) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Archive upserts the room's final record.
func (p *PostgresRepository) Archive(ctx context.Context, r *room.Room) error {
	rec, err := BuildRecord(r)
	if err != nil {
		return err
	}
	movesUCI, _ := json.Marshal(rec.MovesUCI)
	movesSAN, _ := json.Marshal(rec.MovesSAN)

	q := `INSERT INTO archived_games (
        room_id, white_id, white_name, black_id, black_name, time_control,
        result, method, moves_uci, moves_san, fen, pgn,
        started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
      ) ON CONFLICT (room_id) DO UPDATE SET
        white_id=EXCLUDED.white_id,
        white_name=EXCLUDED.white_name,
        black_id=EXCLUDED.black_id,
        black_name=EXCLUDED.black_name,
        time_control=EXCLUDED.time_control,
        result=EXCLUDED.result,
        method=EXCLUDED.method,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        fen=EXCLUDED.fen,
        pgn=EXCLUDED.pgn,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err = p.db.ExecContext(ctx, q,
		rec.RoomID,
		rec.WhiteID, rec.WhiteName,
		rec.BlackID, rec.BlackName,
		rec.TimeControl, rec.Result, rec.Method,
		string(movesUCI), string(movesSAN), rec.FEN, rec.PGN,
		rec.StartedAt, rec.EndedAt, rec.DurationMS,
	)
	return err
}

const selectColumns = `room_id, white_id, white_name, black_id, black_name, time_control,
    result, method, moves_uci, moves_san, fen, pgn, started_at, ended_at, duration_ms`

func (p *PostgresRepository) Get(ctx context.Context, roomID string) (*Record, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM archived_games WHERE room_id=$1`, roomID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (p *PostgresRepository) RecentByUser(ctx context.Context, userID string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM archived_games
        WHERE white_id=$1 OR black_id=$1 ORDER BY ended_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		rec      Record
		movesUCI []byte
		movesSAN []byte
	)
	if err := s.Scan(
		&rec.RoomID, &rec.WhiteID, &rec.WhiteName, &rec.BlackID, &rec.BlackName, &rec.TimeControl,
		&rec.Result, &rec.Method, &movesUCI, &movesSAN, &rec.FEN, &rec.PGN,
		&rec.StartedAt, &rec.EndedAt, &rec.DurationMS,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(movesUCI, &rec.MovesUCI); err != nil {
		return nil, fmt.Errorf("decode moves_uci: %w", err)
	}
	if err := json.Unmarshal(movesSAN, &rec.MovesSAN); err != nil {
		return nil, fmt.Errorf("decode moves_san: %w", err)
	}
	return &rec, nil
}
