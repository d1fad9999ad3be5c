package render

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/park285/cheese-chess-rooms/internal/chess"
)

func decode(t *testing.T, s *chess.GameState, opts Options) *image.RGBA {
	t.Helper()
	data, err := NewRenderer().RenderPNG(context.Background(), s, opts)
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	rgba := image.NewRGBA(img.Bounds())
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			rgba.Set(x, y, img.At(x, y))
		}
	}
	return rgba
}

func play(t *testing.T, moves ...string) *chess.GameState {
	t.Helper()
	s := chess.CreateInitialState("10+0")
	for _, mv := range moves {
		from, _ := chess.ParseSquare(mv[:2])
		to, _ := chess.ParseSquare(mv[2:])
		next, err := chess.ApplyMove(s, from, to, "")
		if err != nil {
			t.Fatalf("ApplyMove %s: %v", mv, err)
		}
		s = next
	}
	return s
}

// corner samples a pixel just inside the top-left corner of a square, away
// from any glyph.
func corner(img *image.RGBA, row, col int) (r, g, b uint8) {
	c := img.RGBAAt(sideMargin+col*squareSize+2, topMargin+row*squareSize+2)
	return c.R, c.G, c.B
}

func TestRenderInitialBoard(t *testing.T) {
	img := decode(t, chess.CreateInitialState("10+0"), Options{Title: "Alice vs Bob"})
	w, h := Size()
	if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
		t.Fatalf("size %v", img.Bounds())
	}
	if r, g, b := corner(img, 4, 4); r != lightSquare.R || g != lightSquare.G || b != lightSquare.B {
		t.Fatalf("e4 corner = %d,%d,%d", r, g, b)
	}
	if r, g, b := corner(img, 4, 5); r != darkSquare.R || g != darkSquare.G || b != darkSquare.B {
		t.Fatalf("f4 corner = %d,%d,%d", r, g, b)
	}
	king := img.RGBAAt(sideMargin+4*squareSize+32, topMargin+7*squareSize+40)
	if king.R < 230 || king.G < 230 {
		t.Fatalf("white king body not drawn on e1: %+v", king)
	}
}

func TestRenderHighlightsLastMove(t *testing.T) {
	img := decode(t, play(t, "e2e4"), Options{})
	if r, g, b := corner(img, 6, 4); r == lightSquare.R && g == lightSquare.G && b == lightSquare.B {
		t.Fatalf("e2 not highlighted")
	}
	if r, g, b := corner(img, 5, 5); r != lightSquare.R || g != lightSquare.G || b != lightSquare.B {
		t.Fatalf("f3 should be untouched: %d,%d,%d", r, g, b)
	}
}

func TestRenderMarksKingInCheck(t *testing.T) {
	s := play(t, "f2f3", "e7e5", "g2g4", "d8h4")
	if s.Status != chess.StatusCheckmate {
		t.Fatalf("status %s", s.Status)
	}
	img := decode(t, s, Options{})
	if r, g, _ := corner(img, 7, 4); int(r) < int(g)+80 {
		t.Fatalf("e1 not marked red: r=%d g=%d", r, g)
	}
}

func TestRenderFlipped(t *testing.T) {
	img := decode(t, chess.CreateInitialState("10+0"), Options{Flip: true})
	king := img.RGBAAt(sideMargin+3*squareSize+32, topMargin+40)
	if king.R < 230 || king.G < 230 {
		t.Fatalf("white king should be on top row when flipped: %+v", king)
	}
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRenderer().RenderPNG(ctx, chess.CreateInitialState(""), Options{}); err == nil {
		t.Fatalf("expected context error")
	}
	if _, err := NewRenderer().RenderPNG(context.Background(), nil, Options{}); err == nil {
		t.Fatalf("expected error for nil state")
	}
}

func TestPieceSVGParses(t *testing.T) {
	for _, c := range []chess.Color{chess.White, chess.Black} {
		for _, k := range []chess.PieceType{chess.King, chess.Queen, chess.Rook, chess.Bishop, chess.Knight, chess.Pawn} {
			if _, err := renderPieceImage(&chess.Piece{Type: k, Color: c}, 32); err != nil {
				t.Fatalf("%s %s: %v", c, k, err)
			}
		}
	}
}
