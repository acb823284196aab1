package video

import (
	"errors"
	"fmt"
	"io"
)

// Source loops over one asset forever. A source without an asset, or whose
// asset failed to decode, yields no frames. Not safe for concurrent use.
type Source struct {
	path    string
	decoder Decoder
	err     error
	frames  uint64
	loops   uint64
}

// NewSource opens path with open (Open when nil). An empty path gives a
// video-less source. A decode failure is kept on the source and reported by
// Err; the source then behaves as video-less for the rest of the run.
func NewSource(path string, open OpenFunc) *Source {
	s := &Source{path: path}
	if path == "" {
		return s
	}
	if open == nil {
		open = Open
	}

	dec, err := open(path)
	if err != nil {
		s.err = fmt.Errorf("failed to open video %s: %w", path, err)
		return s
	}
	s.decoder = dec
	return s
}

// Path returns the asset path, empty for a video-less source.
func (s *Source) Path() string { return s.path }

// Err returns the failure that disabled the source, if any.
func (s *Source) Err() error { return s.err }

// Active reports whether the source can still produce frames.
func (s *Source) Active() bool { return s.decoder != nil && s.err == nil }

// Loops returns how many times the asset wrapped back to its first frame.
func (s *Source) Loops() uint64 { return s.loops }

// Next yields the next frame, rewinding at end of asset. The second return is
// false when the source has no frame to give. A decode error mid-stream
// disables the source and is returned once via the error.
func (s *Source) Next() (Frame, bool, error) {
	if !s.Active() {
		return Frame{}, false, nil
	}

	f, err := s.decoder.Read()
	if errors.Is(err, io.EOF) {
		if s.frames == 0 {
			return Frame{}, false, s.fail(fmt.Errorf("video %s contains no frames", s.path))
		}
		if err := s.decoder.Rewind(); err != nil {
			return Frame{}, false, s.fail(fmt.Errorf("failed to rewind %s: %w", s.path, err))
		}
		s.loops++
		f, err = s.decoder.Read()
	}
	if err != nil {
		return Frame{}, false, s.fail(fmt.Errorf("failed to read %s: %w", s.path, err))
	}

	s.frames++
	return f, true, nil
}

func (s *Source) fail(err error) error {
	s.err = err
	_ = s.decoder.Close()
	s.decoder = nil
	return err
}

// Close releases the decoder. Safe to call more than once.
func (s *Source) Close() error {
	if s.decoder == nil {
		return nil
	}
	err := s.decoder.Close()
	s.decoder = nil
	return err
}
