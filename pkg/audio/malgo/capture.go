// Package malgo implements the [audio.Source] interface on top of the
// miniaudio library via the gen2brain/malgo bindings. It captures mono S16
// PCM from the system microphone (or a named device) and re-chunks the
// device's variable-size callbacks into exact pipeline frames.
package malgo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/voxhook/voxhook/pkg/audio"
)

// Compile-time assertion that Source satisfies audio.Source.
var _ audio.Source = (*Source)(nil)

// Source is a microphone capture device. Create one with [New], call Start to
// begin capture, and Close to release the device and context.
type Source struct {
	cfg    audio.Config
	frames chan []byte

	mu       sync.Mutex
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	deviceID malgo.DeviceID
	started  bool
	closed   bool

	dropped atomic.Uint64

	// rechunk buffer, touched only from the device callback thread.
	pending []byte
}

// New creates a capture Source for the given format. The device is not opened
// until Start is called. QueueSize zero uses [audio.DefaultQueueSize].
func New(cfg audio.Config) *Source {
	size := cfg.QueueSize
	if size <= 0 {
		size = audio.DefaultQueueSize
	}
	return &Source{
		cfg:    cfg,
		frames: make(chan []byte, size),
	}
}

// Start initialises the miniaudio context, resolves the configured device and
// begins capture. Frames arrive on [Source.Frames] until Close.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("malgo: source is closed")
	}
	if s.started {
		return errors.New("malgo: source already started")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("malgo: context already cancelled: %w", err)
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("malgo: init context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(s.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if s.cfg.Device != "" {
		id, name, err := resolveDevice(mctx, s.cfg.Device)
		if err != nil {
			mctx.Uninit()
			mctx.Free()
			return err
		}
		s.deviceID = id
		deviceConfig.Capture.DeviceID = s.deviceID.Pointer()
		slog.Info("capture device selected", "device", name)
	}

	frameBytes := s.cfg.FrameBytes()
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, _ uint32) {
			s.onData(data, frameBytes)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("malgo: init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("malgo: start capture: %w", err)
	}

	s.ctx = mctx
	s.device = device
	s.started = true
	slog.Debug("capture started",
		"sample_rate", s.cfg.SampleRate,
		"frame_ms", s.cfg.FrameMs,
		"frame_bytes", frameBytes,
	)
	return nil
}

// onData runs on the miniaudio callback thread. It accumulates bytes until a
// full pipeline frame is available, then enqueues it without ever blocking:
// when the queue is full the oldest frame is discarded to make room.
func (s *Source) onData(data []byte, frameBytes int) {
	s.pending = append(s.pending, data...)
	for len(s.pending) >= frameBytes {
		frame := make([]byte, frameBytes)
		copy(frame, s.pending[:frameBytes])
		s.pending = s.pending[frameBytes:]

		select {
		case s.frames <- frame:
		default:
			select {
			case <-s.frames:
				s.dropped.Add(1)
			default:
			}
			select {
			case s.frames <- frame:
			default:
				s.dropped.Add(1)
			}
		}
	}
}

// Frames returns the bounded frame queue.
func (s *Source) Frames() <-chan []byte { return s.frames }

// Dropped reports the number of frames discarded because the queue was full.
func (s *Source) Dropped() uint64 { return s.dropped.Load() }

// Close stops capture and releases the device and context. Safe to call more
// than once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.device != nil {
		s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	if s.ctx != nil {
		s.ctx.Uninit()
		s.ctx.Free()
		s.ctx = nil
	}
	return nil
}

// resolveDevice finds a capture device whose name contains the given selector
// (case-insensitive). An unmatched selector is a configuration error.
func resolveDevice(mctx *malgo.AllocatedContext, selector string) (malgo.DeviceID, string, error) {
	var zero malgo.DeviceID

	devices, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return zero, "", fmt.Errorf("malgo: enumerate capture devices: %w", err)
	}

	want := strings.ToLower(selector)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name()), want) {
			return d.ID, d.Name(), nil
		}
	}

	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name())
	}
	return zero, "", fmt.Errorf("malgo: no capture device matches %q (available: %s)",
		selector, strings.Join(names, ", "))
}
