package archive

import (
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-chess-rooms/internal/chess"
	"github.com/park285/cheese-chess-rooms/internal/room"
)

// Record is one archived game.
type Record struct {
	RoomID      string    `json:"roomId"`
	WhiteID     string    `json:"whiteId"`
	WhiteName   string    `json:"whiteName"`
	BlackID     string    `json:"blackId"`
	BlackName   string    `json:"blackName"`
	TimeControl string    `json:"timeControl"`
	Result      string    `json:"result"`
	Method      string    `json:"method"`
	MovesUCI    []string  `json:"movesUci"`
	MovesSAN    []string  `json:"movesSan"`
	FEN         string    `json:"fen"`
	PGN         string    `json:"pgn"`
	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `json:"endedAt"`
	DurationMS  int64     `json:"durationMs"`
}

// BuildRecord replays the room's moves on corentings/chess to obtain full SAN
// (disambiguation and check marks) and renders the PGN. Unfinished games get
// the "*" result.
func BuildRecord(r *room.Room) (*Record, error) {
	if r == nil || r.Game == nil {
		return nil, fmt.Errorf("archive: empty room")
	}
	rec := &Record{
		RoomID:      r.ID,
		TimeControl: r.TimeControl,
		Result:      pgnResult(r.Game),
		Method:      string(r.Game.Status),
		MovesUCI:    make([]string, 0, len(r.Game.Moves)),
		MovesSAN:    make([]string, 0, len(r.Game.Moves)),
		FEN:         chess.FEN(r.Game),
		StartedAt:   r.CreatedAt,
		EndedAt:     r.UpdatedAt,
	}
	if r.White != nil {
		rec.WhiteID, rec.WhiteName = r.White.UserID, r.White.Name
	}
	if r.Black != nil {
		rec.BlackID, rec.BlackName = r.Black.UserID, r.Black.Name
	}
	if d := rec.EndedAt.Sub(rec.StartedAt).Milliseconds(); d > 0 {
		rec.DurationMS = d
	}

	game := nchess.NewGame()
	for i, m := range r.Game.Moves {
		uci := m.UCI()
		pos := game.Position()
		mv, err := nchess.UCINotation{}.Decode(pos, uci)
		if err != nil {
			return nil, fmt.Errorf("archive: ply %d %s: %w", i+1, uci, err)
		}
		san := nchess.AlgebraicNotation{}.Encode(pos, mv)
		if err := game.Move(mv, nil); err != nil {
			return nil, fmt.Errorf("archive: ply %d %s: %w", i+1, uci, err)
		}
		rec.MovesUCI = append(rec.MovesUCI, uci)
		rec.MovesSAN = append(rec.MovesSAN, san)
	}
	rec.PGN = buildPGN(rec)
	return rec, nil
}

func pgnResult(g *chess.GameState) string {
	switch g.Status {
	case chess.StatusDraw, chess.StatusStalemate:
		return "1/2-1/2"
	}
	switch g.Winner {
	case chess.White:
		return "1-0"
	case chess.Black:
		return "0-1"
	}
	return "*"
}

func buildPGN(rec *Record) string {
	var b strings.Builder
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	fmt.Fprintf(&b, "[Event \"Casual game\"]\n")
	fmt.Fprintf(&b, "[Site \"cheese-chess-rooms\"]\n")
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(rec.WhiteName))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(rec.BlackName))
	fmt.Fprintf(&b, "[Result \"%s\"]\n", rec.Result)
	if tc := chess.ParseTimeControl(rec.TimeControl); strings.TrimSpace(rec.TimeControl) != "" {
		fmt.Fprintf(&b, "[TimeControl \"%d+%d\"]\n", tc.BaseSeconds(), tc.Increment)
	}
	if t := termination(rec.Method); t != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", t)
	}
	b.WriteString("\n")

	for i := 0; i < len(rec.MovesSAN); i += 2 {
		fmt.Fprintf(&b, "%d. %s ", i/2+1, rec.MovesSAN[i])
		if i+1 < len(rec.MovesSAN) {
			b.WriteString(rec.MovesSAN[i+1])
			b.WriteString(" ")
		}
	}
	b.WriteString(rec.Result)
	b.WriteString("\n")
	return b.String()
}

func termination(method string) string {
	switch chess.Status(method) {
	case chess.StatusTimeout:
		return "time forfeit"
	case chess.StatusCheckmate, chess.StatusStalemate, chess.StatusDraw, chess.StatusResigned:
		return "normal"
	}
	return ""
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
