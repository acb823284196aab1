package video

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDecoder yields n solid frames, each filled with its index.
type fakeDecoder struct {
	n       int
	pos     int
	readErr error
	closed  int
}

func (d *fakeDecoder) Read() (Frame, error) {
	if d.readErr != nil {
		return Frame{}, d.readErr
	}
	if d.pos >= d.n {
		return Frame{}, io.EOF
	}
	f := Frame{Width: 2, Height: 1, Format: RGBA, Data: bytes.Repeat([]byte{byte(d.pos)}, 8)}
	d.pos++
	return f, nil
}

func (d *fakeDecoder) Rewind() error { d.pos = 0; return nil }
func (d *fakeDecoder) Close() error  { d.closed++; return nil }

func writeGIF(t *testing.T, path string, frames int) {
	t.Helper()

	g := &gif.GIF{}
	for i := 0; i < frames; i++ {
		img := image.NewPaletted(image.Rect(0, 0, 4, 2), palette.Plan9)
		c := color.RGBA{R: uint8(40 * i), G: 10, B: 200, A: 255}
		for x := 0; x < 4; x++ {
			for y := 0; y < 2; y++ {
				img.Set(x, y, c)
			}
		}
		g.Image = append(g.Image, img)
		g.Delay = append(g.Delay, 10)
	}

	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestSourceLoopsForever(t *testing.T) {
	dec := &fakeDecoder{n: 3}
	src := NewSource("clip.mp4", func(string) (Decoder, error) { return dec, nil })
	require.NoError(t, src.Err())

	var got []byte
	for i := 0; i < 10; i++ {
		f, ok, err := src.Next()
		require.NoError(t, err)
		require.True(t, ok, "tick %d", i)
		got = append(got, f.Data[0])
	}

	assert.Equal(t, []byte{0, 1, 2, 0, 1, 2, 0, 1, 2, 0}, got)
	assert.Equal(t, uint64(3), src.Loops())
}

func TestSourceWithoutAsset(t *testing.T) {
	src := NewSource("", nil)

	for i := 0; i < 100; i++ {
		_, ok, err := src.Next()
		assert.False(t, ok)
		assert.NoError(t, err)
	}
	assert.False(t, src.Active())
	assert.NoError(t, src.Close())
}

func TestSourceOpenFailure(t *testing.T) {
	src := NewSource("broken.mkv", func(string) (Decoder, error) {
		return nil, errors.New("corrupt header")
	})

	require.Error(t, src.Err())
	assert.Contains(t, src.Err().Error(), "corrupt header")

	_, ok, err := src.Next()
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestSourceReadFailureReportedOnce(t *testing.T) {
	dec := &fakeDecoder{n: 3, readErr: errors.New("bitstream error")}
	src := NewSource("clip.mp4", func(string) (Decoder, error) { return dec, nil })

	_, ok, err := src.Next()
	assert.False(t, ok)
	assert.Error(t, err)

	_, ok, err = src.Next()
	assert.False(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, 1, dec.closed)
}

func TestSourceEmptyAsset(t *testing.T) {
	src := NewSource("empty.mp4", func(string) (Decoder, error) { return &fakeDecoder{}, nil })

	_, ok, err := src.Next()
	assert.False(t, ok)
	assert.Error(t, err)
	assert.False(t, src.Active())
}

func TestSourceCloseIdempotent(t *testing.T) {
	dec := &fakeDecoder{n: 1}
	src := NewSource("clip.mp4", func(string) (Decoder, error) { return dec, nil })

	assert.NoError(t, src.Close())
	assert.NoError(t, src.Close())
	assert.Equal(t, 1, dec.closed)
}

func TestGIFSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patrol.gif")
	writeGIF(t, path, 2)

	src := NewSource(path, nil)
	require.NoError(t, src.Err())
	defer src.Close()

	for i := 0; i < 5; i++ {
		f, ok, err := src.Next()
		require.NoError(t, err)
		require.True(t, ok)
		assert.NoError(t, f.Validate())
		assert.Equal(t, 4, f.Width)
		assert.Equal(t, 2, f.Height)
	}
	assert.Equal(t, uint64(2), src.Loops())
}

func TestListAssets(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.GIF", "a.gif", "notes.txt", "c.unknown"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.gif"), 0o755))

	assets, err := ListAssets(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.gif"), filepath.Join(dir, "b.GIF")}, assets)

	missing, err := ListAssets(filepath.Join(dir, "nope"))
	assert.NoError(t, err)
	assert.Empty(t, missing)
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open("clip.xyz")
	assert.ErrorIs(t, err, ErrUnsupportedAsset)
	assert.Contains(t, Extensions(), ".gif")
}

func TestFit(t *testing.T) {
	tests := []struct {
		name string
		in   Frame
	}{
		{"rgba downscale", Frame{Width: 640, Height: 480, Format: RGBA, Data: make([]byte, 640*480*4)}},
		{"bgr upscale", Frame{Width: 16, Height: 12, Format: BGR, Data: make([]byte, 16*12*3)}},
		{"rgba same size", Frame{Width: 320, Height: 240, Format: RGBA, Data: make([]byte, 320*240*4)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Fit(tt.in, DefaultWidth, DefaultHeight)
			require.NoError(t, err)
			assert.Equal(t, RGBA, out.Format)
			assert.Equal(t, DefaultWidth, out.Width)
			assert.Equal(t, DefaultHeight, out.Height)
			assert.Len(t, out.Data, DefaultWidth*DefaultHeight*4)
		})
	}
}

func TestFitConvertsBGR(t *testing.T) {
	in := Frame{Width: 1, Height: 1, Format: BGR, Data: []byte{10, 20, 30}}

	out, err := Fit(in, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{30, 20, 10, 255}, out.Data)
}

func TestFitRejectsBadFrame(t *testing.T) {
	_, err := Fit(Frame{Width: 2, Height: 2, Format: RGB, Data: []byte{1, 2}}, 4, 4)
	assert.ErrorIs(t, err, ErrBadFrame)
}
