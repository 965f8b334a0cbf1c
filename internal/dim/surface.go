package dim

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

const (
	// InitSize is the width and height in logical pixels used when the
	// output or the compositor gives no usable size.
	InitSize = 100

	namespace = "dim"
)

// SurfaceEnv is what a Surface needs from the bound globals.
type SurfaceEnv struct {
	Compositor Compositor
	LayerShell LayerShell
	Viewporter Viewporter
}

// Surface is the overlay shown on one output.
type Surface struct {
	id     string
	output Output

	width  uint32
	height uint32

	front Buffer
	back  Buffer
	// backPending is set when back holds content not yet presented.
	backPending  bool
	framePending bool
	configured   bool

	wl       WlSurface
	layer    LayerSurface
	viewport Viewport
}

func NewSurface(env SurfaceEnv, output Output, info OutputInfo, front, back Buffer, passthrough bool) (*Surface, error) {
	width, height, ok := info.LogicalSize()
	if !ok {
		width, height = InitSize, InitSize
	}

	wl, err := env.Compositor.CreateSurface()
	if err != nil {
		return nil, fmt.Errorf("create surface: %w", err)
	}

	layer, err := env.LayerShell.GetLayerSurface(wl, output, LayerOverlay, namespace)
	if err != nil {
		wl.Destroy()
		return nil, fmt.Errorf("create layer surface: %w", err)
	}

	viewport, err := env.Viewporter.GetViewport(wl)
	if err != nil {
		layer.Destroy()
		wl.Destroy()
		return nil, fmt.Errorf("create viewport: %w", err)
	}

	s := &Surface{
		id:          uuid.NewString(),
		output:      output,
		front:       front,
		back:        back,
		backPending: true,
		wl:          wl,
		layer:       layer,
		viewport:    viewport,
	}

	if err := s.setup(env, width, height, passthrough); err != nil {
		s.destroyObjects()
		return nil, err
	}

	slog.Debug("Created surface", "surface", s.id, "output", output.ID(), "width", width, "height", height, "passthrough", passthrough)

	return s, nil
}

func (s *Surface) setup(env SurfaceEnv, width, height uint32, passthrough bool) error {
	if err := s.layer.SetAnchor(AnchorAll); err != nil {
		return fmt.Errorf("set anchor: %w", err)
	}
	// -1 keeps other surfaces where they are
	if err := s.layer.SetExclusiveZone(-1); err != nil {
		return fmt.Errorf("set exclusive zone: %w", err)
	}
	if err := s.layer.SetSize(width, height); err != nil {
		return fmt.Errorf("set size: %w", err)
	}

	if passthrough {
		region, err := env.Compositor.CreateRegion()
		if err != nil {
			return fmt.Errorf("create region: %w", err)
		}
		err = s.wl.SetInputRegion(region)
		region.Destroy()
		if err != nil {
			return fmt.Errorf("set input region: %w", err)
		}
		if err := s.layer.SetKeyboardInteractivity(KeyboardInteractivityNone); err != nil {
			return fmt.Errorf("set keyboard interactivity: %w", err)
		}
	} else {
		if err := s.layer.SetKeyboardInteractivity(KeyboardInteractivityExclusive); err != nil {
			return fmt.Errorf("set keyboard interactivity: %w", err)
		}
	}

	if err := s.SetSize(width, height); err != nil {
		return err
	}

	// Commit without a buffer to get the first configure.
	if err := s.wl.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Surface) ID() string {
	return s.id
}

func (s *Surface) Output() Output {
	return s.output
}

func (s *Surface) Width() uint32 {
	return s.width
}

func (s *Surface) Height() uint32 {
	return s.height
}

func (s *Surface) Configured() bool {
	return s.configured
}

func (s *Surface) Front() Buffer {
	return s.front
}

func (s *Surface) Back() Buffer {
	return s.back
}

func (s *Surface) SetSize(width, height uint32) error {
	s.width = width
	s.height = height
	if err := s.viewport.SetDestination(int32(width), int32(height)); err != nil {
		return fmt.Errorf("set viewport destination: %w", err)
	}
	return nil
}

// SetBackBuffer replaces the buffer that the next Draw presents.
func (s *Surface) SetBackBuffer(buffer Buffer) {
	if err := s.back.Release(); err != nil {
		slog.Error("Failed to release back buffer", "surface", s.id, "error", err)
	}
	s.back = buffer
	s.backPending = true
}

// RepaintBack paints the back buffer in place. Only shm buffers are writable.
func (s *Surface) RepaintBack(alpha float64) error {
	switch s.back.Kind {
	case BufferKindShm:
		Paint(s.back.Pooled.Canvas(), alpha)
		s.backPending = true
		return nil
	case BufferKindSinglePixel:
		return errors.New("single pixel buffers are immutable")
	default:
		return fmt.Errorf("unknown buffer kind: %d", s.back.Kind)
	}
}

// Draw presents the back buffer and swaps it with the front one. Without a
// new back buffer the front buffer is committed again.
func (s *Surface) Draw(requestNextFrame bool) error {
	if s.backPending {
		if err := s.wl.Attach(s.back.Handle()); err != nil {
			return fmt.Errorf("attach: %w", err)
		}
		s.front, s.back = s.back, s.front
		s.backPending = false
	} else {
		if err := s.wl.Attach(s.front.Handle()); err != nil {
			return fmt.Errorf("attach: %w", err)
		}
	}

	if err := s.wl.Damage(0, 0, int32(s.width), int32(s.height)); err != nil {
		return fmt.Errorf("damage: %w", err)
	}

	if requestNextFrame && !s.framePending {
		if err := s.wl.Frame(); err != nil {
			return fmt.Errorf("frame: %w", err)
		}
		s.framePending = true
	}

	if err := s.wl.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Surface) frameDone() {
	s.framePending = false
}

// configure applies a compositor configure and reports whether it was the
// first one.
func (s *Surface) configure(cfg LayerConfigure) (bool, error) {
	width, height := cfg.Width, cfg.Height
	if width == 0 || height == 0 {
		width, height = InitSize, InitSize
	}

	if err := s.layer.AckConfigure(cfg.Serial); err != nil {
		return false, fmt.Errorf("ack configure: %w", err)
	}
	if err := s.SetSize(width, height); err != nil {
		return false, err
	}

	first := !s.configured
	s.configured = true
	return first, nil
}

func (s *Surface) destroyObjects() error {
	return errors.Join(
		s.viewport.Destroy(),
		s.layer.Destroy(),
		s.wl.Destroy(),
	)
}

// Destroy releases the viewport, both buffers and the surface objects.
func (s *Surface) Destroy() error {
	err := errors.Join(
		s.viewport.Destroy(),
		s.front.Release(),
		s.back.Release(),
		s.layer.Destroy(),
		s.wl.Destroy(),
	)
	slog.Debug("Destroyed surface", "surface", s.id, "output", s.output.ID())
	return err
}
