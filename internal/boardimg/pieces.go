package boardimg

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// 45x45 viewBox 기준 도형
var pieceShapes = map[nchess.PieceType][]string{
	nchess.Pawn: {
		`circle cx="22.5" cy="14" r="5"`,
		`path d="M 16 35 L 29 35 L 26 21 L 19 21 Z"`,
		`rect x="11" y="35" width="23" height="4"`,
	},
	nchess.Rook: {
		`path d="M 12 36 L 33 36 L 33 32 L 30 32 L 29 16 L 32 16 L 32 10 L 28 10 L 28 12 L 24.5 12 L 24.5 10 L 20.5 10 L 20.5 12 L 17 12 L 17 10 L 13 10 L 13 16 L 16 16 L 15 32 L 12 32 Z"`,
	},
	nchess.Knight: {
		`path d="M 14 36 L 32 36 L 31 24 C 31 16 27 10 20 9 L 19 6 L 17 9 L 12 17 L 11 22 L 14 23 L 18 19 L 20 20 L 14 30 Z"`,
	},
	nchess.Bishop: {
		`circle cx="22.5" cy="8" r="2.5"`,
		`path d="M 22.5 11 C 16 15 15 23 18 28 L 27 28 C 30 23 29 15 22.5 11 Z"`,
		`rect x="17" y="28" width="11" height="4"`,
		`path d="M 13 36 L 32 36 L 30 32 L 15 32 Z"`,
	},
	nchess.Queen: {
		`circle cx="10" cy="12" r="2.5"`,
		`circle cx="22.5" cy="8.5" r="2.5"`,
		`circle cx="35" cy="12" r="2.5"`,
		`path d="M 10 14 L 14 30 L 31 30 L 35 14 L 28 24 L 22.5 11 L 17 24 Z"`,
		`path d="M 12 36 L 33 36 L 31 30 L 14 30 Z"`,
	},
	nchess.King: {
		`path d="M 21 5 L 24 5 L 24 8 L 27 8 L 27 11 L 24 11 L 24 15 L 21 15 L 21 11 L 18 11 L 18 8 L 21 8 Z"`,
		`path d="M 22.5 16 C 30 16 34 20 32 28 L 13 28 C 11 20 15 16 22.5 16 Z"`,
		`path d="M 12 36 L 33 36 L 32 28 L 13 28 Z"`,
	},
}

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func pieceSVG(piece nchess.Piece) ([]byte, error) {
	shapes, ok := pieceShapes[piece.Type()]
	if !ok {
		return nil, fmt.Errorf("no shape for piece %v", piece)
	}
	fill, stroke := "#f8f8f8", "#1a1a1a"
	if piece.Color() == nchess.Black {
		fill, stroke = "#262626", "#0a0a0a"
	}
	var sb strings.Builder
	sb.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="45" height="45" viewBox="0 0 45 45">`)
	for _, s := range shapes {
		fmt.Fprintf(&sb, `<%s fill="%s" stroke="%s" stroke-width="1.5" stroke-linejoin="round"/>`, s, fill, stroke)
	}
	sb.WriteString(`</svg>`)
	return []byte(sb.String()), nil
}

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	data, err := pieceSVG(piece)
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
