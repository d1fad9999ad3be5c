package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	"github.com/park285/cheese-chess-rooms/internal/chess"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	squareSize   = 64
	boardSize    = squareSize * 8
	sideMargin   = 28
	topMargin    = 52
	bottomMargin = 28
	panelHeight  = 30
	panelRadius  = 10
	panelPadding = 18
)

// Options tune a snapshot.
type Options struct {
	// Title is drawn in the panel above the board.
	Title string
	// Flip draws the board from black's side.
	Flip bool
}

// Renderer draws board snapshots as PNG.
type Renderer interface {
	RenderPNG(ctx context.Context, s *chess.GameState, opts Options) ([]byte, error)
}

type svgRenderer struct{}

func NewRenderer() Renderer { return &svgRenderer{} }

// Size returns the pixel dimensions of every snapshot.
func Size() (w, h int) { return boardSize + sideMargin*2, boardSize + topMargin + bottomMargin }

var (
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{187, 136, 96, 255}
	backgroundColor     = color.RGBA{22, 24, 34, 255}
	lastMoveFill        = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	checkFill           = color.NRGBA{R: 226, G: 58, B: 52, A: 170}
	hudPanelColor       = color.NRGBA{R: 40, G: 44, B: 62, A: 250}
	hudTextPrimary      = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	coordinateTextColor = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

func (r *svgRenderer) RenderPNG(ctx context.Context, s *chess.GameState, opts Options) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("state is nil")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	w, h := Size()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)
	origin := image.Point{X: sideMargin, Y: topMargin}
	layout := boardLayout{origin: origin, flip: opts.Flip}

	drawSquares(img, layout)
	if m := s.LastMove; m != nil {
		drawSquareOverlay(img, layout.rect(m.From), lastMoveFill)
		drawSquareOverlay(img, layout.rect(m.To), lastMoveFill)
	}
	if s.Status != chess.StatusStalemate && chess.IsInCheck(&s.Board, s.Turn) {
		drawSquareOverlay(img, layout.rect(chess.FindKing(&s.Board, s.Turn)), checkFill)
	}
	if err := drawPieces(ctx, img, &s.Board, layout); err != nil {
		return nil, err
	}
	drawCoordinates(img, layout)
	drawTitle(img, title(s, opts))

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

type boardLayout struct {
	origin image.Point
	flip   bool
}

// cell maps a board position to its screen row and column.
func (l boardLayout) cell(p chess.Position) (row, col int) {
	if l.flip {
		return 7 - p.Row, 7 - p.Col
	}
	return p.Row, p.Col
}

func (l boardLayout) rect(p chess.Position) image.Rectangle {
	row, col := l.cell(p)
	x := l.origin.X + col*squareSize
	y := l.origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func squareColor(p chess.Position) color.Color {
	if (p.Row+p.Col)%2 == 0 {
		return lightSquare
	}
	return darkSquare
}

func drawSquares(dst *image.RGBA, l boardLayout) {
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			p := chess.Position{Row: row, Col: col}
			imagedraw.Draw(dst, l.rect(p), image.NewUniform(squareColor(p)), image.Point{}, imagedraw.Src)
		}
	}
}

func drawPieces(ctx context.Context, dst *image.RGBA, b *chess.Board, l boardLayout) error {
	for row := 0; row < 8; row++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for col := 0; col < 8; col++ {
			p := chess.Position{Row: row, Col: col}
			pc := b.At(p)
			if pc == nil {
				continue
			}
			img, err := renderPieceImage(pc, squareSize)
			if err != nil {
				return err
			}
			rect := l.rect(p)
			imagedraw.Draw(dst, rect, img, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

func drawSquareOverlay(img *image.RGBA, rect image.Rectangle, clr color.Color) {
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawCoordinates(dst *image.RGBA, l boardLayout) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(coordinateTextColor)}
	ascent := face.Metrics().Ascent.Ceil()
	for i := 0; i < 8; i++ {
		rank := chess.Position{Row: i, Col: 0}
		rect := l.rect(rank)
		drawCenteredText(drawer, rank.Square()[1:], l.origin.X-sideMargin/2, rect.Min.Y+squareSize/2+ascent/2)

		file := chess.Position{Row: 7, Col: i}
		rect = l.rect(file)
		drawCenteredText(drawer, file.Square()[:1], rect.Min.X+squareSize/2, l.origin.Y+boardSize+ascent+4)
	}
}

func title(s *chess.GameState, opts Options) string {
	head := strings.TrimSpace(opts.Title)
	var status string
	switch {
	case s.Status.IsTerminal() && s.Winner != "":
		status = fmt.Sprintf("%s - %s wins", s.Status, s.Winner)
	case s.Status.IsTerminal():
		status = string(s.Status)
	default:
		status = fmt.Sprintf("%s to move  %s / %s", s.Turn, chess.FormatTime(s.WhiteTime), chess.FormatTime(s.BlackTime))
	}
	if head == "" {
		return status
	}
	return head + "  |  " + status
}

func drawTitle(img *image.RGBA, text string) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Face: face}
	maxWidth := boardSize - panelPadding*2
	text = truncateWithEllipsis(face, text, maxWidth)
	width := drawer.MeasureString(text).Round() + panelPadding*2
	bottom := topMargin - 12
	rect := image.Rect(sideMargin, bottom-panelHeight, sideMargin+width, bottom)
	drawRoundedPanel(img, rect, panelRadius, hudPanelColor)
	drawCenteredString(drawer, rect, text, hudTextPrimary)
}

func truncateWithEllipsis(face font.Face, text string, maxWidth int) string {
	trimmed := strings.TrimSpace(text)
	drawer := font.Drawer{Face: face}
	if trimmed == "" || drawer.MeasureString(trimmed).Round() <= maxWidth {
		return trimmed
	}
	runes := []rune(trimmed)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "..."
		if drawer.MeasureString(candidate).Round() <= maxWidth {
			return candidate
		}
	}
	return "..."
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if rect.Empty() {
		return
	}
	radius = min(radius, rect.Dx()/2, rect.Dy()/2)
	fill := image.NewUniform(clr)
	if radius <= 0 {
		imagedraw.Draw(img, rect, fill, image.Point{}, imagedraw.Over)
		return
	}
	imagedraw.Draw(img, image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)

	corners := []struct {
		center image.Point
		dx, dy int
	}{
		{image.Pt(rect.Min.X+radius, rect.Min.Y+radius), -1, -1},
		{image.Pt(rect.Max.X-radius-1, rect.Min.Y+radius), 1, -1},
		{image.Pt(rect.Min.X+radius, rect.Max.Y-radius-1), -1, 1},
		{image.Pt(rect.Max.X-radius-1, rect.Max.Y-radius-1), 1, 1},
	}
	r2 := radius * radius
	for _, c := range corners {
		for y := 0; y <= radius; y++ {
			for x := 0; x <= radius; x++ {
				if x*x+y*y > r2 || (x == 0 && y == 0) {
					continue
				}
				blendPixel(img, c.center.X+x*c.dx, c.center.Y+y*c.dy, clr)
			}
		}
	}
}

func drawCenteredString(drawer *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	if text == "" {
		return
	}
	metrics := drawer.Face.Metrics()
	width := drawer.MeasureString(text).Round()
	x := max(rect.Min.X+(rect.Dx()-width)/2, rect.Min.X)
	baseline := rect.Min.Y + (rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	if sa == 0 {
		return
	}
	dst := img.RGBAAt(x, y)
	inv := 0xffff - sa
	img.SetRGBA(x, y, color.RGBA{
		R: uint8((sr + uint32(dst.R)*0x101*inv/0xffff) >> 8),
		G: uint8((sg + uint32(dst.G)*0x101*inv/0xffff) >> 8),
		B: uint8((sb + uint32(dst.B)*0x101*inv/0xffff) >> 8),
		A: uint8((sa + uint32(dst.A)*0x101*inv/0xffff) >> 8),
	})
}
