package video

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Decoder is a stateful decode cursor over one asset. Read returns io.EOF
// once the asset is exhausted; Rewind moves the cursor back to the first frame.
type Decoder interface {
	Read() (Frame, error)
	Rewind() error
	Close() error
}

// OpenFunc opens a decoder for the asset at path.
type OpenFunc func(path string) (Decoder, error)

// ErrUnsupportedAsset is returned when no opener handles a file extension.
var ErrUnsupportedAsset = errors.New("video: unsupported asset type")

var (
	openersMu sync.RWMutex
	openers   = map[string]OpenFunc{}
)

// RegisterOpener associates a file extension (".mp4") with an opener.
// Registering the same extension twice replaces the earlier opener.
func RegisterOpener(ext string, fn OpenFunc) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[normalizeExt(ext)] = fn
}

// Extensions lists the registered asset extensions, sorted.
func Extensions() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()

	exts := make([]string, 0, len(openers))
	for ext := range openers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supported reports whether path has a registered extension.
func Supported(path string) bool {
	openersMu.RLock()
	defer openersMu.RUnlock()
	_, ok := openers[normalizeExt(filepath.Ext(path))]
	return ok
}

// Open picks the opener registered for path's extension.
func Open(path string) (Decoder, error) {
	openersMu.RLock()
	fn, ok := openers[normalizeExt(filepath.Ext(path))]
	openersMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, path)
	}
	return fn(path)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func init() {
	RegisterOpener(".gif", OpenGIF)
}
