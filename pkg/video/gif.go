package video

import (
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"io"
	"os"
)

// gifDecoder plays an animated GIF. Frames are composited up front since GIF
// frames are deltas over the previous canvas.
type gifDecoder struct {
	frames []Frame
	pos    int
}

// OpenGIF decodes every frame of an animated GIF.
func OpenGIF(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return DecodeGIF(f)
}

// DecodeGIF builds a decoder from GIF data.
func DecodeGIF(r io.Reader) (Decoder, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode gif: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("gif has no frames")
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}
	canvas := image.NewRGBA(bounds)

	frames := make([]Frame, 0, len(g.Image))
	for _, p := range g.Image {
		draw.Draw(canvas, p.Bounds(), p, p.Bounds().Min, draw.Over)
		frames = append(frames, FromImage(canvas))
	}

	return &gifDecoder{frames: frames}, nil
}

func (d *gifDecoder) Read() (Frame, error) {
	if d.pos >= len(d.frames) {
		return Frame{}, io.EOF
	}
	f := d.frames[d.pos]
	d.pos++
	return f, nil
}

func (d *gifDecoder) Rewind() error {
	d.pos = 0
	return nil
}

func (d *gifDecoder) Close() error {
	d.frames = nil
	return nil
}
