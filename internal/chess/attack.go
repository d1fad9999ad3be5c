package chess

import "fmt"

// attackedSquares returns the squares the piece on from attacks. It mirrors
// PseudoLegalMoves except that pawns attack both forward diagonals whatever
// stands there, and kings never castle, so castling safety checks cannot recurse.
func attackedSquares(b *Board, from Position) []Position {
	pc := b.At(from)
	if pc == nil {
		return nil
	}
	switch pc.Type {
	case Pawn:
		dir := ForwardDirection(pc.Color)
		var out []Position
		for _, dc := range [2]int{-1, 1} {
			if to := from.offset(dir, dc); to.Valid() {
				out = append(out, to)
			}
		}
		return out
	case King:
		return stepMoves(b, from, pc.Color, kingOffsets)
	default:
		return PseudoLegalMoves(b, from, nil)
	}
}

// IsSquareAttacked reports whether any piece of color by attacks p.
func IsSquareAttacked(b *Board, p Position, by Color) bool {
	for _, from := range b.Squares(by) {
		for _, to := range attackedSquares(b, from) {
			if to == p {
				return true
			}
		}
	}
	return false
}

// FindKing scans the board for the king of color c. A board without that king
// violates the engine contract and panics.
func FindKing(b *Board, c Color) Position {
	for _, p := range b.Squares(c) {
		if b.At(p).Type == King {
			return p
		}
	}
	panic(fmt.Sprintf("chess: no %s king on board", c))
}

// IsInCheck reports whether the king of color c is attacked.
func IsInCheck(b *Board, c Color) bool {
	return IsSquareAttacked(b, FindKing(b, c), c.Opposite())
}
