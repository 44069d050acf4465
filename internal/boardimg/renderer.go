package boardimg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/Cheese-Video-Analyzer/internal/gamerecord"
)

const (
	defaultSquareSize = 48
	defaultMargin     = 24
)

var (
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{187, 136, 96, 255}
	lastMoveFill        = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	frameColor          = color.RGBA{40, 34, 30, 255}
	coordinateTextColor = color.NRGBA{R: 236, G: 239, B: 255, A: 255}

	ranks = []nchess.Rank{nchess.Rank8, nchess.Rank7, nchess.Rank6, nchess.Rank5, nchess.Rank4, nchess.Rank3, nchess.Rank2, nchess.Rank1}
	files = []nchess.File{nchess.FileA, nchess.FileB, nchess.FileC, nchess.FileD, nchess.FileE, nchess.FileF, nchess.FileG, nchess.FileH}
)

// Highlight marks the squares of the last move.
type Highlight struct {
	From nchess.Square
	To   nchess.Square
}

// Renderer draws a board position as PNG, white at the bottom.
type Renderer struct {
	squareSize int
	margin     int
}

type Option func(*Renderer)

func WithSquareSize(px int) Option {
	return func(r *Renderer) {
		if px >= 16 {
			r.squareSize = px
		}
	}
}

func New(opts ...Option) *Renderer {
	r := &Renderer{squareSize: defaultSquareSize, margin: defaultMargin}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Size returns the width and height of rendered images.
func (r *Renderer) Size() int { return r.squareSize*8 + r.margin*2 }

// RenderMoves replays moves and draws the last legal position with the last move highlighted.
func (r *Renderer) RenderMoves(ctx context.Context, moves []string) ([]byte, error) {
	game, _ := gamerecord.Replay(moves)
	var hl *Highlight
	if played := game.Moves(); len(played) > 0 {
		last := played[len(played)-1]
		hl = &Highlight{From: last.S1(), To: last.S2()}
	}
	return r.RenderPNG(ctx, game.Position().Board(), hl)
}

func (r *Renderer) RenderPNG(ctx context.Context, board *nchess.Board, hl *Highlight) ([]byte, error) {
	if board == nil {
		return nil, errors.New("board is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := r.Size()
	origin := image.Point{X: r.margin, Y: r.margin}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(frameColor), image.Point{}, imagedraw.Src)

	r.drawSquares(img, origin)
	if hl != nil {
		r.drawSquareOverlay(img, hl.From, origin, lastMoveFill)
		r.drawSquareOverlay(img, hl.To, origin, lastMoveFill)
	}
	if err := r.drawPieces(img, board, origin); err != nil {
		return nil, err
	}
	r.drawCoordinates(img, origin)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) squareRect(sq nchess.Square, origin image.Point) image.Rectangle {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	x := origin.X + col*r.squareSize
	y := origin.Y + row*r.squareSize
	return image.Rect(x, y, x+r.squareSize, y+r.squareSize)
}

func (r *Renderer) drawSquares(dst imagedraw.Image, origin image.Point) {
	for _, rank := range ranks {
		for _, file := range files {
			sq := nchess.NewSquare(file, rank)
			imagedraw.Draw(dst, r.squareRect(sq, origin), image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
		}
	}
}

func (r *Renderer) drawSquareOverlay(dst imagedraw.Image, sq nchess.Square, origin image.Point, clr color.Color) {
	imagedraw.Draw(dst, r.squareRect(sq, origin), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func (r *Renderer) drawPieces(dst imagedraw.Image, board *nchess.Board, origin image.Point) error {
	for sq, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		img, err := renderPieceImage(piece, r.squareSize)
		if err != nil {
			return err
		}
		rect := r.squareRect(sq, origin)
		imagedraw.Draw(dst, rect, img, image.Point{}, imagedraw.Over)
	}
	return nil
}

func (r *Renderer) drawCoordinates(dst imagedraw.Image, origin image.Point) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Src: image.NewUniform(coordinateTextColor), Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	boardEnd := origin.Y + 8*r.squareSize

	for row, rank := range ranks {
		baseline := origin.Y + row*r.squareSize + r.squareSize/2 + ascent/2
		drawCenteredText(drawer, rank.String(), r.margin/2, baseline)
	}
	for col, file := range files {
		center := origin.X + col*r.squareSize + r.squareSize/2
		drawCenteredText(drawer, file.String(), center, boardEnd+(r.margin+ascent)/2)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}
