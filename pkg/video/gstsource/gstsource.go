// Package gstsource decodes container video files (mp4, avi, mov, mkv) with
// GStreamer. Importing it registers the opener with package video.
package gstsource

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/picogrid/squad-sim/pkg/video"
)

// Extensions handled by this package.
var Extensions = []string{".mp4", ".avi", ".mov", ".mkv"}

var initOnce sync.Once

const busDrainTimeout = 50 * time.Millisecond

func init() {
	for _, ext := range Extensions {
		video.RegisterOpener(ext, Open)
	}
}

type decoder struct {
	pipeline *gst.Pipeline
	sink     *app.Sink
	pending  *video.Frame
}

// Open builds a decode pipeline for path and pulls the first frame so that
// broken files are rejected here rather than on the first tick.
func Open(path string) (video.Decoder, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	initOnce.Do(func() { gst.Init(nil) })

	desc := "filesrc name=src ! decodebin ! videoconvert ! video/x-raw,format=RGBA ! appsink name=sink sync=false max-buffers=2"
	pipeline, err := gst.NewPipelineFromString(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, err := pipeline.GetElementByName("src")
	if err != nil {
		return nil, fmt.Errorf("failed to get filesrc: %w", err)
	}
	if err := src.SetProperty("location", path); err != nil {
		return nil, fmt.Errorf("failed to set location: %w", err)
	}

	sinkElem, err := pipeline.GetElementByName("sink")
	if err != nil {
		return nil, fmt.Errorf("failed to get appsink: %w", err)
	}

	d := &decoder{pipeline: pipeline, sink: app.SinkFromElement(sinkElem)}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to start pipeline: %w", err)
	}

	first, err := d.pull()
	if err != nil {
		_ = d.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s decoded no frames", path)
		}
		return nil, err
	}
	d.pending = &first

	return d, nil
}

func (d *decoder) Read() (video.Frame, error) {
	if d.pending != nil {
		f := *d.pending
		d.pending = nil
		return f, nil
	}
	return d.pull()
}

func (d *decoder) pull() (video.Frame, error) {
	sample := d.sink.PullSample()
	if sample == nil {
		if d.sink.IsEOS() {
			return video.Frame{}, io.EOF
		}
		return video.Frame{}, d.busError()
	}

	width, height, err := frameSize(sample)
	if err != nil {
		return video.Frame{}, err
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return video.Frame{}, errors.New("sample carried no buffer")
	}
	mapInfo := buffer.Map(gst.MapRead)
	data := make([]byte, len(mapInfo.Bytes()))
	copy(data, mapInfo.Bytes())
	buffer.Unmap()

	return video.Frame{Width: width, Height: height, Format: video.RGBA, Data: data}, nil
}

func frameSize(sample *gst.Sample) (int, int, error) {
	caps := sample.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		return 0, 0, errors.New("sample has no caps")
	}
	s := caps.GetStructureAt(0)

	w, err := s.GetValue("width")
	if err != nil {
		return 0, 0, fmt.Errorf("caps missing width: %w", err)
	}
	h, err := s.GetValue("height")
	if err != nil {
		return 0, 0, fmt.Errorf("caps missing height: %w", err)
	}

	width, ok1 := w.(int)
	height, ok2 := h.(int)
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("unexpected caps size types %T/%T", w, h)
	}
	return width, height, nil
}

func (d *decoder) busError() error {
	bus := d.pipeline.GetPipelineBus()
	for {
		msg := bus.TimedPop(busDrainTimeout)
		if msg == nil {
			return errors.New("pipeline stopped without producing a frame")
		}
		if msg.Type() != gst.MessageError {
			continue
		}
		if gerr := msg.ParseError(); gerr != nil {
			return fmt.Errorf("decode error: %s", gerr.Error())
		}
		return errors.New("decode error")
	}
}

// Rewind performs a flushing seek to the start of the asset.
func (d *decoder) Rewind() error {
	d.pending = nil
	if !d.pipeline.SeekSimple(0, gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit) {
		return errors.New("seek to start rejected")
	}
	return nil
}

func (d *decoder) Close() error {
	if d.pipeline == nil {
		return nil
	}
	err := d.pipeline.SetState(gst.StateNull)
	d.pipeline = nil
	return err
}
