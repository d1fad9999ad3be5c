package chess

import (
	"math/rand"
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

type candidate struct {
	from, to Position
}

func allLegal(s *GameState) (moves []candidate, count int) {
	for _, from := range s.Board.Squares(s.Turn) {
		pc := s.Board.At(from)
		for _, to := range LegalMoves(&s.Board, from, s.EnPassantTarget) {
			moves = append(moves, candidate{from: from, to: to})
			if pc.Type == Pawn && to.Row == promotionRow(pc.Color) {
				count += 4
				continue
			}
			count++
		}
	}
	return moves, count
}

// Random games are replayed on corentings/chess; both generators must agree on
// the number of legal moves and on the resulting placement at every ply.
func TestRandomGamesMatchReferenceGenerator(t *testing.T) {
	rng := rand.New(rand.NewSource(20261019))
	promotions := []PieceType{Queen, Rook, Bishop, Knight}
	for game := 0; game < 25; game++ {
		s := CreateInitialState("10+0")
		ref := nchess.NewGame()
		for ply := 0; ply < 160 && !s.Status.IsTerminal(); ply++ {
			moves, count := allLegal(s)
			if want := len(ref.ValidMoves()); count != want {
				t.Fatalf("game %d ply %d: %d legal moves, reference has %d\nfen %s", game, ply, count, want, FEN(s))
			}
			placement := strings.Fields(FEN(s))[0]
			if want := ref.Position().Board().String(); placement != want {
				t.Fatalf("game %d ply %d: placement %s, reference %s", game, ply, placement, want)
			}
			if ref.Outcome() != nchess.NoOutcome {
				break
			}
			pick := moves[rng.Intn(len(moves))]
			next, err := ApplyMove(s, pick.from, pick.to, promotions[rng.Intn(len(promotions))])
			if err != nil {
				t.Fatalf("game %d ply %d: %s-%s rejected: %v", game, ply, pick.from, pick.to, err)
			}
			if err := ref.PushNotationMove(next.LastMove.UCI(), nchess.UCINotation{}, nil); err != nil {
				t.Fatalf("game %d ply %d: reference rejected %s: %v", game, ply, next.LastMove.UCI(), err)
			}
			s = next
		}
		switch s.Status {
		case StatusCheckmate:
			if ref.Method() != nchess.Checkmate {
				t.Fatalf("game %d: checkmate not confirmed by reference (%s)", game, ref.Method())
			}
		case StatusStalemate:
			if ref.Method() != nchess.Stalemate {
				t.Fatalf("game %d: stalemate not confirmed by reference (%s)", game, ref.Method())
			}
		}
	}
}

func TestScholarsMateAgreesWithReference(t *testing.T) {
	s := play(t, CreateInitialState("10+0"), "e2e4", "e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7")
	if s.Status != StatusCheckmate || s.Winner != White {
		t.Fatalf("status=%s winner=%s", s.Status, s.Winner)
	}
	ref := nchess.NewGame()
	for _, m := range s.Moves {
		if err := ref.PushNotationMove(m.UCI(), nchess.UCINotation{}, nil); err != nil {
			t.Fatalf("reference rejected %s: %v", m.UCI(), err)
		}
	}
	if ref.Outcome() != nchess.WhiteWon || ref.Method() != nchess.Checkmate {
		t.Fatalf("reference outcome=%s method=%s", ref.Outcome(), ref.Method())
	}
}
