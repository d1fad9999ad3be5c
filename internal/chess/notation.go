package chess

import (
	"fmt"
	"strconv"
	"strings"
)

// Notation renders a short algebraic form of m. Two identical pieces that can
// reach the same square are not disambiguated and check is not marked.
func Notation(m Move) string {
	switch m.Castling {
	case Kingside:
		return "O-O"
	case Queenside:
		return "O-O-O"
	}
	var b strings.Builder
	b.WriteString(m.Piece.Type.Letter())
	if m.Captured != nil {
		if m.Piece.Type == Pawn {
			b.WriteByte(m.From.file())
		}
		b.WriteByte('x')
	}
	b.WriteString(m.To.Square())
	if m.Promotion != "" {
		b.WriteByte('=')
		b.WriteString(m.Promotion.Letter())
	}
	return b.String()
}

// FEN renders the state in Forsyth–Edwards Notation.
func FEN(s *GameState) string {
	var b strings.Builder
	for r := 0; r < 8; r++ {
		empty := 0
		for c := 0; c < 8; c++ {
			pc := s.Board[r][c]
			if pc == nil {
				empty++
				continue
			}
			if empty > 0 {
				b.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			b.WriteString(fenLetter(pc))
		}
		if empty > 0 {
			b.WriteString(strconv.Itoa(empty))
		}
		if r < 7 {
			b.WriteByte('/')
		}
	}

	turn := "w"
	if s.Turn == Black {
		turn = "b"
	}
	ep := "-"
	if s.EnPassantTarget != nil {
		ep = s.EnPassantTarget.Square()
	}
	halfmove := 0
	for _, m := range s.Moves {
		halfmove++
		if m.Piece.Type == Pawn || m.Captured != nil {
			halfmove = 0
		}
	}
	fmt.Fprintf(&b, " %s %s %s %d %d", turn, castlingRights(&s.Board), ep, halfmove, len(s.Moves)/2+1)
	return b.String()
}

func fenLetter(pc *Piece) string {
	l := pc.Type.Letter()
	if pc.Type == Pawn {
		l = "P"
	}
	if pc.Color == Black {
		return strings.ToLower(l)
	}
	return l
}

func castlingRights(b *Board) string {
	var out strings.Builder
	for _, c := range []Color{White, Black} {
		row := homeRow(c)
		king := b.At(Position{Row: row, Col: 4})
		if king == nil || king.Type != King || king.Color != c || king.HasMoved {
			continue
		}
		for _, side := range [2]struct {
			col    int
			letter string
		}{{7, "K"}, {0, "Q"}} {
			rook := b.At(Position{Row: row, Col: side.col})
			if rook == nil || rook.Type != Rook || rook.Color != c || rook.HasMoved {
				continue
			}
			if c == Black {
				out.WriteString(strings.ToLower(side.letter))
			} else {
				out.WriteString(side.letter)
			}
		}
	}
	if out.Len() == 0 {
		return "-"
	}
	return out.String()
}
