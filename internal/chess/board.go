package chess

// Board is an 8x8 grid of optional pieces. Boards are treated as values:
// transitions always work on a Clone.
type Board [8][8]*Piece

var backRank = [8]PieceType{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// NewBoard returns the standard starting position.
func NewBoard() Board {
	var b Board
	for col, t := range backRank {
		for _, c := range []Color{White, Black} {
			b[homeRow(c)][col] = &Piece{Type: t, Color: c}
			b[pawnStartRow(c)][col] = &Piece{Type: Pawn, Color: c}
		}
	}
	return b
}

// At returns the piece on p, or nil for empty or off-board squares.
func (b *Board) At(p Position) *Piece {
	if !p.Valid() {
		return nil
	}
	return b[p.Row][p.Col]
}

func (b *Board) set(p Position, pc *Piece) { b[p.Row][p.Col] = pc }

// Clone deep-copies every piece.
func (b *Board) Clone() Board {
	var out Board
	for r := range b {
		for c, pc := range b[r] {
			if pc != nil {
				cp := *pc
				out[r][c] = &cp
			}
		}
	}
	return out
}

// Squares returns the positions occupied by pieces of color c, row-major.
func (b *Board) Squares(c Color) []Position {
	var out []Position
	for r := range b {
		for col, pc := range b[r] {
			if pc != nil && pc.Color == c {
				out = append(out, Position{Row: r, Col: col})
			}
		}
	}
	return out
}

// moveEffects describes the side effects of executing a move on a board.
type moveEffects struct {
	captured  *Piece
	castling  CastlingSide
	enPassant bool
}

// execute moves the piece on from to to, marking it moved, removing any
// captured piece (including en passant) and relocating the rook when castling.
// Legality is not checked.
func (b *Board) execute(from, to Position, enPassantTarget *Position) moveEffects {
	var fx moveEffects
	pc := b.At(from)
	if pc == nil {
		return fx
	}
	if target := b.At(to); target != nil {
		cp := *target
		fx.captured = &cp
	}
	if pc.Type == Pawn && fx.captured == nil && from.Col != to.Col &&
		enPassantTarget != nil && *enPassantTarget == to {
		behind := Position{Row: from.Row, Col: to.Col}
		if victim := b.At(behind); victim != nil {
			cp := *victim
			fx.captured = &cp
			fx.enPassant = true
			b.set(behind, nil)
		}
	}
	if pc.Type == King && abs(to.Col-from.Col) == 2 {
		rookFrom, rookTo := Position{Row: from.Row, Col: 7}, Position{Row: from.Row, Col: to.Col - 1}
		fx.castling = Kingside
		if to.Col < from.Col {
			rookFrom, rookTo = Position{Row: from.Row, Col: 0}, Position{Row: from.Row, Col: to.Col + 1}
			fx.castling = Queenside
		}
		if rook := b.At(rookFrom); rook != nil {
			rook.HasMoved = true
			b.set(rookTo, rook)
			b.set(rookFrom, nil)
		}
	}
	pc.HasMoved = true
	b.set(to, pc)
	b.set(from, nil)
	return fx
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
