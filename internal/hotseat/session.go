// Package hotseat runs a two-player game on one terminal.
package hotseat

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/park285/cheese-chess-rooms/internal/chess"
	"github.com/park285/cheese-chess-rooms/internal/msgcat"
)

var (
	lightSquare = color.New(color.BgHiYellow)
	darkSquare  = color.New(color.BgYellow)
	whitePiece  = color.New(color.FgHiWhite, color.Bold)
	blackPiece  = color.New(color.FgBlack, color.Bold)
	highlight   = color.New(color.BgHiGreen)
	statusLine  = color.New(color.FgCyan)
	errorLine   = color.New(color.FgRed)
)

// Session holds one local game. Clocks follow the server rules: nothing
// runs before white's first move and the increment is added after each move.
type Session struct {
	state       *chess.GameState
	msgs        *msgcat.Catalog
	out         io.Writer
	now         func() time.Time
	turnStarted time.Time
}

type Option func(*Session)

func WithNow(now func() time.Time) Option { return func(s *Session) { s.now = now } }

func WithCatalog(c *msgcat.Catalog) Option { return func(s *Session) { s.msgs = c } }

func New(timeControl string, out io.Writer, opts ...Option) *Session {
	s := &Session{state: chess.CreateInitialState(timeControl), out: out, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.msgs == nil {
		s.msgs = msgcat.Default()
	}
	return s
}

// State returns the current game.
func (s *Session) State() *chess.GameState { return s.state }

// Done reports whether the game is over.
func (s *Session) Done() bool { return s.state.Status.IsTerminal() }

// Prompt renders the input prompt for the side to move.
func (s *Session) Prompt() string {
	return s.msgs.Text("local.prompt", map[string]any{
		"Turn":  string(s.state.Turn),
		"Clock": chess.FormatTime(s.remaining(s.state.Turn)),
	}, "> ")
}

// Help prints the command summary.
func (s *Session) Help() {
	fmt.Fprintln(s.out, s.msgs.Text("local.help", nil, "moves: e2e4"))
}

// Handle executes one input line and reports whether the session should end.
func (s *Session) Handle(line string) (quit bool) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false
	}
	if s.flagIfExpired() {
		s.printStatus()
		return true
	}
	switch fields[0] {
	case "quit", "exit":
		return true
	case "help", "?":
		s.Help()
	case "board":
		s.PrintBoard(nil)
	case "fen":
		fmt.Fprintln(s.out, chess.FEN(s.state))
	case "moves":
		if len(fields) < 2 {
			s.Help()
			return false
		}
		s.showMoves(fields[1])
	case "resign":
		g := s.state.Clone()
		g.Status, g.Winner, g.DrawOffer = chess.StatusResigned, g.Turn.Opposite(), ""
		s.state = g
		s.printStatus()
	case "draw":
		s.draw()
	case "accept":
		s.answerDraw(true)
	case "decline":
		s.answerDraw(false)
	default:
		s.move(fields[0])
	}
	return s.Done()
}

// draw records an offer from the side to move. The opponent answers with
// accept or decline on the same terminal; playing a move also declines.
func (s *Session) draw() {
	g := s.state.Clone()
	if g.DrawOffer != "" {
		fmt.Fprintln(s.out, s.msgs.Text("local.draw_pending", map[string]any{
			"Color":    string(g.DrawOffer),
			"Opponent": string(g.DrawOffer.Opposite()),
		}, "draw already offered"))
		return
	}
	g.DrawOffer = g.Turn
	s.state = g
	fmt.Fprintln(s.out, s.msgs.Text("local.draw_offered", map[string]any{
		"Color":    string(g.Turn),
		"Opponent": string(g.Turn.Opposite()),
	}, "draw offered"))
}

// answerDraw resolves a pending offer on behalf of the side that did not make it.
func (s *Session) answerDraw(accept bool) {
	g := s.state.Clone()
	if g.DrawOffer == "" {
		errorLine.Fprintln(s.out, s.msgs.Text("local.no_draw_offer", nil, "no draw offer"))
		return
	}
	responder := g.DrawOffer.Opposite()
	if accept {
		g.Status, g.Winner, g.DrawOffer = chess.StatusDraw, "", ""
		s.state = g
		s.printStatus()
		return
	}
	g.DrawOffer = ""
	s.state = g
	fmt.Fprintln(s.out, s.msgs.Text("local.draw_declined", map[string]any{"Color": string(responder)}, "draw declined"))
}

func (s *Session) showMoves(square string) {
	from, err := chess.ParseSquare(square)
	if err != nil {
		s.reject(square)
		return
	}
	targets := chess.LegalMoves(&s.state.Board, from, s.state.EnPassantTarget)
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Square())
	}
	fmt.Fprintln(s.out, strings.Join(names, " "))
	s.PrintBoard(targets)
}

func (s *Session) move(input string) {
	if len(input) != 4 && len(input) != 5 {
		s.reject(input)
		return
	}
	from, err1 := chess.ParseSquare(input[:2])
	to, err2 := chess.ParseSquare(input[2:4])
	if err1 != nil || err2 != nil {
		s.reject(input)
		return
	}
	var promotion chess.PieceType
	if len(input) == 5 {
		promotion, _ = chess.ParsePieceType(input[4:])
	}

	now := s.now()
	mover := s.state.Turn
	remaining := s.remaining(mover)
	next, err := chess.ApplyMove(s.state, from, to, promotion)
	if err != nil {
		s.reject(input)
		return
	}
	if s.state.Status == chess.StatusPlaying {
		next.SetTimeOf(mover, remaining+next.Increment)
	}
	s.state = next
	s.turnStarted = now
	s.PrintBoard(nil)
	s.printStatus()
}

// remaining charges the running turn to c when c is to move.
func (s *Session) remaining(c chess.Color) int {
	left := s.state.TimeOf(c)
	if s.state.Status != chess.StatusPlaying || s.state.Turn != c || s.turnStarted.IsZero() {
		return left
	}
	spent := int(s.now().Sub(s.turnStarted).Round(time.Second) / time.Second)
	return max(left-spent, 0)
}

func (s *Session) flagIfExpired() bool {
	if s.state.Status != chess.StatusPlaying || s.remaining(s.state.Turn) > 0 {
		return false
	}
	g := s.state.Clone()
	g.SetTimeOf(g.Turn, 0)
	g.Status, g.Winner, g.DrawOffer = chess.StatusTimeout, g.Turn.Opposite(), ""
	s.state = g
	return true
}

func (s *Session) reject(input string) {
	errorLine.Fprintln(s.out, s.msgs.Text("local.rejected", map[string]any{"Input": input}, "illegal move"))
}

func (s *Session) printStatus() {
	g := s.state
	key := "status." + string(g.Status)
	if g.Status == chess.StatusPlaying && chess.IsInCheck(&g.Board, g.Turn) {
		key = "status.check"
	}
	statusLine.Fprintln(s.out, s.msgs.Text(key, map[string]any{
		"Turn":   string(g.Turn),
		"Winner": string(g.Winner),
		"Loser":  string(g.Winner.Opposite()),
	}, string(g.Status)))
}

// PrintBoard draws the position from white's side, marking targets.
func (s *Session) PrintBoard(targets []chess.Position) {
	marked := make(map[chess.Position]bool, len(targets))
	for _, t := range targets {
		marked[t] = true
	}
	var b strings.Builder
	for row := 0; row < 8; row++ {
		fmt.Fprintf(&b, "%d ", 8-row)
		for col := 0; col < 8; col++ {
			p := chess.Position{Row: row, Col: col}
			bg := lightSquare
			if (row+col)%2 == 1 {
				bg = darkSquare
			}
			if marked[p] {
				bg = highlight
			}
			b.WriteString(bg.Sprint(pieceCell(s.state.Board.At(p))))
		}
		b.WriteString("\n")
	}
	b.WriteString("   a  b  c  d  e  f  g  h\n")
	fmt.Fprint(s.out, b.String())
}

func pieceCell(pc *chess.Piece) string {
	if pc == nil {
		return "   "
	}
	letter := pc.Type.Letter()
	if pc.Type == chess.Pawn {
		letter = "P"
	}
	if pc.Color == chess.White {
		return " " + whitePiece.Sprint(letter) + " "
	}
	return " " + blackPiece.Sprint(strings.ToLower(letter)) + " "
}
