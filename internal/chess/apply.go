package chess

// LegalMoves returns the destinations of the piece on from that do not leave
// its own king in check. Every candidate is played on a scratch board.
func LegalMoves(b *Board, from Position, enPassantTarget *Position) []Position {
	pc := b.At(from)
	if pc == nil {
		return nil
	}
	var out []Position
	for _, to := range PseudoLegalMoves(b, from, enPassantTarget) {
		scratch := b.Clone()
		scratch.execute(from, to, enPassantTarget)
		if !IsInCheck(&scratch, pc.Color) {
			out = append(out, to)
		}
	}
	return out
}

// HasAnyLegalMove reports whether color c can make at least one move.
func HasAnyLegalMove(b *Board, c Color, enPassantTarget *Position) bool {
	for _, from := range b.Squares(c) {
		if len(LegalMoves(b, from, enPassantTarget)) > 0 {
			return true
		}
	}
	return false
}

// ApplyMove plays from→to for the side to move and returns the resulting
// state. promotion is used when a pawn reaches the last rank; an empty or
// non-promotable type yields a queen. The input state is never modified; any
// rejection returns ErrIllegalMove.
func ApplyMove(state *GameState, from, to Position, promotion PieceType) (*GameState, error) {
	if state == nil || state.Status.IsTerminal() {
		return nil, ErrIllegalMove
	}
	pc := state.Board.At(from)
	if pc == nil || pc.Color != state.Turn {
		return nil, ErrIllegalMove
	}
	if !containsPosition(LegalMoves(&state.Board, from, state.EnPassantTarget), to) {
		return nil, ErrIllegalMove
	}

	next := state.Clone()
	mover := *pc
	fx := next.Board.execute(from, to, state.EnPassantTarget)
	move := Move{
		From:      from,
		To:        to,
		Piece:     mover,
		Captured:  fx.captured,
		Castling:  fx.castling,
		EnPassant: fx.enPassant,
	}

	if mover.Type == Pawn && to.Row == promotionRow(mover.Color) {
		if !promotion.Promotable() {
			promotion = Queen
		}
		next.Board.set(to, &Piece{Type: promotion, Color: mover.Color, HasMoved: true})
		move.Promotion = promotion
	}

	next.EnPassantTarget = nil
	if mover.Type == Pawn && abs(to.Row-from.Row) == 2 {
		passed := Position{Row: from.Row + ForwardDirection(mover.Color), Col: from.Col}
		next.EnPassantTarget = &passed
	}

	move.Notation = Notation(move)
	next.Moves = append(next.Moves, move)
	last := move.clone()
	next.LastMove = &last
	next.Turn = mover.Color.Opposite()
	next.DrawOffer = ""
	if next.Status == StatusWaiting {
		next.Status = StatusPlaying
	}

	if !HasAnyLegalMove(&next.Board, next.Turn, next.EnPassantTarget) {
		if IsInCheck(&next.Board, next.Turn) {
			next.Status = StatusCheckmate
			next.Winner = mover.Color
		} else {
			next.Status = StatusStalemate
			next.Winner = ""
		}
	}
	return next, nil
}

func containsPosition(list []Position, p Position) bool {
	for _, q := range list {
		if q == p {
			return true
		}
	}
	return false
}
