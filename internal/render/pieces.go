package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/park285/cheese-chess-rooms/internal/chess"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Glyph bodies drawn on a 45x45 view box. The outer <g> supplies colors.
var glyphs = map[chess.PieceType]string{
	chess.Pawn: `<circle cx="22.5" cy="14" r="6"/>
<path d="M15 36 L30 36 L27.5 24 Q22.5 19 17.5 24 Z"/>
<rect x="11" y="35" width="23" height="5" rx="1.5"/>`,
	chess.Rook: `<path d="M11 9 L16 9 L16 13 L20 13 L20 9 L25 9 L25 13 L29 13 L29 9 L34 9 L34 17 L11 17 Z"/>
<rect x="14" y="17" width="17" height="17"/>
<rect x="10" y="34" width="25" height="6" rx="1.5"/>`,
	chess.Knight: `<path d="M14 39 L32 39 L31 30 C31 21 28 13 20 10 L19 6 L16 10 C12 13 9 19 10 24 L15 23 L19 20 C18 26 14 30 14 39 Z"/>
<circle cx="17" cy="15" r="1.3" fill="{{detail}}" stroke="none"/>`,
	chess.Bishop: `<circle cx="22.5" cy="7" r="2.5"/>
<path d="M22.5 10 C16 15 15 22 17 28 L28 28 C30 22 29 15 22.5 10 Z"/>
<path d="M17 28 L28 28 L30 34 L15 34 Z"/>
<rect x="10" y="34" width="25" height="6" rx="1.5"/>`,
	chess.Queen: `<circle cx="10" cy="13" r="2.3"/>
<circle cx="18.5" cy="10" r="2.3"/>
<circle cx="26.5" cy="10" r="2.3"/>
<circle cx="35" cy="13" r="2.3"/>
<path d="M12 33 L10 15 L16 25 L18.5 12 L22.5 24 L26.5 12 L29 25 L35 15 L33 33 Z"/>
<rect x="10" y="33" width="25" height="6" rx="1.5"/>`,
	chess.King: `<path d="M21 4 L24 4 L24 7 L27 7 L27 10 L24 10 L24 14 L21 14 L21 10 L18 10 L18 7 L21 7 Z"/>
<path d="M13 33 C9 25 14 17 22.5 19 C31 17 36 25 32 33 Z"/>
<rect x="11" y="33" width="23" height="6" rx="1.5"/>`,
}

type pieceCacheKey struct {
	color chess.Color
	kind  chess.PieceType
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func pieceSVG(c chess.Color, t chess.PieceType) ([]byte, error) {
	body, ok := glyphs[t]
	if !ok {
		return nil, fmt.Errorf("no glyph for %q", t)
	}
	fill, stroke, detail := "#f8f6f0", "#1b1b1b", "#1b1b1b"
	if c == chess.Black {
		fill, stroke, detail = "#2a2a2e", "#0d0d0d", "#e6e6e6"
	}
	body = string(bytes.ReplaceAll([]byte(body), []byte("{{detail}}"), []byte(detail)))
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">
<g fill="%s" stroke="%s" stroke-width="1.5" stroke-linejoin="round">
%s
</g>
</svg>`, fill, stroke, body)
	return []byte(svg), nil
}

func renderPieceImage(pc *chess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{color: pc.Color, kind: pc.Type, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	data, err := pieceSVG(pc.Color, pc.Type)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()
	return img, nil
}
