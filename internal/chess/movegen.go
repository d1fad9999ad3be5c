package chess

var (
	knightOffsets = [][2]int{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
	kingOffsets   = [][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	diagonalDirs  = [][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	straightDirs  = [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	royalDirs     = append(append([][2]int{}, diagonalDirs...), straightDirs...)
)

// PseudoLegalMoves returns the destinations of the piece on from under
// movement rules only; the mover's king may be left in check.
func PseudoLegalMoves(b *Board, from Position, enPassantTarget *Position) []Position {
	pc := b.At(from)
	if pc == nil {
		return nil
	}
	switch pc.Type {
	case Pawn:
		return pawnMoves(b, from, pc.Color, enPassantTarget)
	case Knight:
		return stepMoves(b, from, pc.Color, knightOffsets)
	case Bishop:
		return slideMoves(b, from, pc.Color, diagonalDirs)
	case Rook:
		return slideMoves(b, from, pc.Color, straightDirs)
	case Queen:
		return slideMoves(b, from, pc.Color, royalDirs)
	case King:
		return append(stepMoves(b, from, pc.Color, kingOffsets), castlingMoves(b, from, pc)...)
	}
	return nil
}

func pawnMoves(b *Board, from Position, c Color, enPassantTarget *Position) []Position {
	var out []Position
	dir := ForwardDirection(c)
	one := from.offset(dir, 0)
	if one.Valid() && b.At(one) == nil {
		out = append(out, one)
		two := from.offset(2*dir, 0)
		if from.Row == pawnStartRow(c) && two.Valid() && b.At(two) == nil {
			out = append(out, two)
		}
	}
	for _, dc := range [2]int{-1, 1} {
		to := from.offset(dir, dc)
		if !to.Valid() {
			continue
		}
		if target := b.At(to); target != nil {
			if target.Color != c {
				out = append(out, to)
			}
			continue
		}
		if enPassantTarget != nil && *enPassantTarget == to {
			out = append(out, to)
		}
	}
	return out
}

func stepMoves(b *Board, from Position, c Color, offsets [][2]int) []Position {
	var out []Position
	for _, o := range offsets {
		to := from.offset(o[0], o[1])
		if !to.Valid() {
			continue
		}
		if target := b.At(to); target == nil || target.Color != c {
			out = append(out, to)
		}
	}
	return out
}

func slideMoves(b *Board, from Position, c Color, dirs [][2]int) []Position {
	var out []Position
	for _, d := range dirs {
		for to := from.offset(d[0], d[1]); to.Valid(); to = to.offset(d[0], d[1]) {
			target := b.At(to)
			if target == nil {
				out = append(out, to)
				continue
			}
			if target.Color != c {
				out = append(out, to)
			}
			break
		}
	}
	return out
}

// castlingMoves returns the king destinations of available castles. The rook
// relocation is done by Board.execute.
func castlingMoves(b *Board, from Position, king *Piece) []Position {
	if king.HasMoved || from != (Position{Row: homeRow(king.Color), Col: 4}) {
		return nil
	}
	enemy := king.Color.Opposite()
	if IsSquareAttacked(b, from, enemy) {
		return nil
	}
	var out []Position
	for _, side := range [2]struct{ rookCol, step int }{{7, 1}, {0, -1}} {
		rook := b.At(Position{Row: from.Row, Col: side.rookCol})
		if rook == nil || rook.Type != Rook || rook.Color != king.Color || rook.HasMoved {
			continue
		}
		clear := true
		for col := from.Col + side.step; col != side.rookCol; col += side.step {
			if b.At(Position{Row: from.Row, Col: col}) != nil {
				clear = false
				break
			}
		}
		if !clear {
			continue
		}
		transit := from.offset(0, side.step)
		dest := from.offset(0, 2*side.step)
		if IsSquareAttacked(b, transit, enemy) || IsSquareAttacked(b, dest, enemy) {
			continue
		}
		out = append(out, dest)
	}
	return out
}
