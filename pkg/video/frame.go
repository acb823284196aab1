// Package video yields raw frames from looping video assets and prepares
// them for publishing at a fixed resolution.
package video

import (
	"errors"
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"
)

// Default output geometry.
const (
	DefaultWidth  = 320
	DefaultHeight = 240
)

// PixelFormat is the byte layout of Frame.Data.
type PixelFormat int

const (
	RGBA PixelFormat = iota
	RGB
	BGR
)

func (f PixelFormat) String() string {
	switch f {
	case RGBA:
		return "RGBA"
	case RGB:
		return "RGB"
	case BGR:
		return "BGR"
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

// BytesPerPixel returns the stride contribution of one pixel.
func (f PixelFormat) BytesPerPixel() int {
	if f == RGBA {
		return 4
	}
	return 3
}

// Frame is one tightly packed raw picture.
type Frame struct {
	Width  int
	Height int
	Format PixelFormat
	Data   []byte
}

// ErrBadFrame is returned for frames whose buffer does not match their geometry.
var ErrBadFrame = errors.New("video: frame size does not match geometry")

// Validate checks that Data holds exactly Width*Height pixels.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrBadFrame, f.Width, f.Height)
	}
	if want := f.Width * f.Height * f.Format.BytesPerPixel(); len(f.Data) != want {
		return fmt.Errorf("%w: %dx%d %s wants %d bytes, got %d", ErrBadFrame, f.Width, f.Height, f.Format, want, len(f.Data))
	}
	return nil
}

// FromImage packs any image into an RGBA frame.
func FromImage(img image.Image) Frame {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return Frame{Width: b.Dx(), Height: b.Dy(), Format: RGBA, Data: dst.Pix}
}

// rgba views (or converts) the frame as an *image.RGBA.
func (f Frame) rgba() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	if f.Format == RGBA {
		copy(img.Pix, f.Data)
		return img
	}

	// Swizzle 3-byte layouts into RGBA with opaque alpha.
	src, dst := f.Data, img.Pix
	for i, j := 0, 0; i+2 < len(src) && j+3 < len(dst); i, j = i+3, j+4 {
		if f.Format == BGR {
			dst[j], dst[j+1], dst[j+2] = src[i+2], src[i+1], src[i]
		} else {
			dst[j], dst[j+1], dst[j+2] = src[i], src[i+1], src[i+2]
		}
		dst[j+3] = 0xff
	}
	return img
}

// Fit converts f to RGBA and scales it to width x height.
func Fit(f Frame, width, height int) (Frame, error) {
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	if width <= 0 || height <= 0 {
		return Frame{}, fmt.Errorf("video: invalid target size %dx%d", width, height)
	}

	src := f.rgba()
	if f.Width == width && f.Height == height {
		return Frame{Width: width, Height: height, Format: RGBA, Data: src.Pix}, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return Frame{Width: width, Height: height, Format: RGBA, Data: dst.Pix}, nil
}
