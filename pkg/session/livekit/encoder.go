package livekit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/picogrid/squad-sim/pkg/session"
	"github.com/picogrid/squad-sim/pkg/video"
)

var gstInit sync.Once

// sampleWriter receives encoded access units in order.
type sampleWriter func(data []byte, duration time.Duration) error

// encoder turns raw RGBA frames into an H.264 or VP8 elementary stream.
type encoder struct {
	pipeline *gst.Pipeline
	src      *app.Source
	width    int
	height   int

	mu      sync.Mutex
	lastErr error
	closed  bool
}

func encoderElements(codec string) (string, error) {
	switch codec {
	case session.CodecH264, "":
		return "x264enc tune=zerolatency speed-preset=ultrafast key-int-max=30 ! video/x-h264,stream-format=byte-stream,profile=constrained-baseline", nil
	case session.CodecVP8:
		return "vp8enc deadline=1 keyframe-max-dist=30", nil
	}
	return "", fmt.Errorf("unsupported codec %q", codec)
}

func newEncoder(opts session.TrackOptions, write sampleWriter) (*encoder, error) {
	gstInit.Do(func() { gst.Init(nil) })

	enc, err := encoderElements(opts.Codec)
	if err != nil {
		return nil, err
	}
	fps := int(opts.FrameRate)
	if fps <= 0 {
		fps = 15
	}
	frameDuration := time.Second / time.Duration(fps)

	desc := fmt.Sprintf(
		"appsrc name=src format=time is-live=true do-timestamp=true caps=video/x-raw,format=RGBA,width=%d,height=%d,framerate=%d/1 ! videoconvert ! %s ! appsink name=sink sync=false",
		opts.Width, opts.Height, fps, enc,
	)
	pipeline, err := gst.NewPipelineFromString(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to build encoder pipeline: %w", err)
	}

	srcElem, err := pipeline.GetElementByName("src")
	if err != nil {
		return nil, fmt.Errorf("failed to get appsrc: %w", err)
	}
	sinkElem, err := pipeline.GetElementByName("sink")
	if err != nil {
		return nil, fmt.Errorf("failed to get appsink: %w", err)
	}

	e := &encoder{
		pipeline: pipeline,
		src:      app.SrcFromElement(srcElem),
		width:    opts.Width,
		height:   opts.Height,
	}

	app.SinkFromElement(sinkElem).SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			sample := sink.PullSample()
			if sample == nil {
				return gst.FlowEOS
			}
			buffer := sample.GetBuffer()
			if buffer == nil {
				return gst.FlowOK
			}
			mapInfo := buffer.Map(gst.MapRead)
			data := make([]byte, len(mapInfo.Bytes()))
			copy(data, mapInfo.Bytes())
			buffer.Unmap()

			if err := write(data, frameDuration); err != nil {
				e.setErr(err)
			}
			return gst.FlowOK
		},
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("failed to start encoder: %w", err)
	}
	return e, nil
}

func (e *encoder) setErr(err error) {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
}

// Push hands one frame to the encoder. Errors from writing earlier encoded
// samples to the track surface here, on the next push.
func (e *encoder) Push(frame video.Frame) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return session.ErrClosed
	}
	err := e.lastErr
	e.lastErr = nil
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write sample: %w", err)
	}

	if frame.Width != e.width || frame.Height != e.height || frame.Format != video.RGBA {
		return fmt.Errorf("frame %dx%d %s does not match track %dx%d RGBA", frame.Width, frame.Height, frame.Format, e.width, e.height)
	}

	if ret := e.src.PushBuffer(gst.NewBufferFromBytes(frame.Data)); ret != gst.FlowOK {
		return fmt.Errorf("encoder rejected frame: %v", ret)
	}
	return nil
}

func (e *encoder) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.src.EndStream()
	if err := e.pipeline.SetState(gst.StateNull); err != nil {
		return errors.Join(errors.New("failed to stop encoder"), err)
	}
	return nil
}
