// Package dim keeps one translucent overlay per output, fades it in and
// reports when any input arrives.
package dim

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type Options struct {
	// Alpha is the final opacity, 0 is transparent and 1 is opaque.
	Alpha float64
	// Fade is how long it takes to reach Alpha.
	Fade time.Duration
	// Passthrough lets input reach the surfaces below the overlay.
	Passthrough bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Controller owns every surface and reacts to compositor events. It is not
// safe for concurrent use, all events must come from the dispatch loop.
type Controller struct {
	env         SurfaceEnv
	buffers     *BufferManager
	alpha       float64
	fade        time.Duration
	passthrough bool
	now         func() time.Time

	start time.Time
	done  bool
	exit  bool
	err   error

	surfaces map[OutputID]*Surface

	keyboard Device
	pointer  Pointer
	touch    Device
}

func NewController(globals Globals, buffers *BufferManager, opts Options) *Controller {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Controller{
		env: SurfaceEnv{
			Compositor: globals.Compositor,
			LayerShell: globals.LayerShell,
			Viewporter: globals.Viewporter,
		},
		buffers:     buffers,
		alpha:       opts.Alpha,
		fade:        opts.Fade,
		passthrough: opts.Passthrough,
		now:         now,
		start:       now(),
		surfaces:    make(map[OutputID]*Surface),
	}
}

// ShouldExit reports whether input has been observed.
func (c *Controller) ShouldExit() bool {
	return c.exit
}

// Err returns the first fatal error raised while handling events.
func (c *Controller) Err() error {
	return c.err
}

// Done reports whether the fade-in has completed.
func (c *Controller) Done() bool {
	return c.done
}

func (c *Controller) Surface(id OutputID) (*Surface, bool) {
	s, ok := c.surfaces[id]
	return s, ok
}

func (c *Controller) SurfaceCount() int {
	return len(c.surfaces)
}

func (c *Controller) fail(err error) {
	if c.err != nil {
		return
	}
	slog.Error("Fatal error", "error", err)
	c.err = err
}

func (c *Controller) findByLayer(layer LayerSurface) *Surface {
	for _, s := range c.surfaces {
		if s.layer == layer {
			return s
		}
	}
	return nil
}

func (c *Controller) findByWlSurface(wl WlSurface) *Surface {
	for _, s := range c.surfaces {
		if s.wl == wl {
			return s
		}
	}
	return nil
}

func (c *Controller) buildSurface(output Output, info OutputInfo) (*Surface, error) {
	front, err := c.buffers.GetBuffer(0)
	if err != nil {
		return nil, err
	}

	back, err := c.buffers.GetBuffer(0)
	if err != nil {
		front.Release()
		return nil, err
	}

	s, err := NewSurface(c.env, output, info, front, back, c.passthrough)
	if err != nil {
		front.Release()
		back.Release()
		return nil, err
	}

	return s, nil
}

func (c *Controller) place(output Output, info OutputInfo) {
	s, err := c.buildSurface(output, info)
	if err != nil {
		c.fail(fmt.Errorf("output %d: %w", output.ID(), err))
		return
	}

	old, ok := c.surfaces[output.ID()]
	c.surfaces[output.ID()] = s
	if ok {
		if err := old.Destroy(); err != nil {
			slog.Error("Failed to destroy surface", "surface", old.ID(), "error", err)
		}
	}
}

func (c *Controller) NewOutput(output Output, info OutputInfo) {
	slog.Debug("New output", "output", output.ID(), "name", info.Name, "width", info.LogicalWidth, "height", info.LogicalHeight)
	c.place(output, info)
}

func (c *Controller) UpdateOutput(output Output, info OutputInfo) {
	slog.Debug("Output updated", "output", output.ID(), "name", info.Name, "width", info.LogicalWidth, "height", info.LogicalHeight)
	c.place(output, info)
}

func (c *Controller) OutputDestroyed(output Output) {
	s, ok := c.surfaces[output.ID()]
	if !ok {
		slog.Debug("Output without surface destroyed", "output", output.ID())
		return
	}

	delete(c.surfaces, output.ID())
	if err := s.Destroy(); err != nil {
		slog.Error("Failed to destroy surface", "surface", s.ID(), "error", err)
	}
}

func (c *Controller) Configure(layer LayerSurface, cfg LayerConfigure) {
	s := c.findByLayer(layer)
	if s == nil {
		slog.Error("Configure for unknown layer surface", "serial", cfg.Serial)
		return
	}

	first, err := s.configure(cfg)
	if err != nil {
		c.fail(fmt.Errorf("surface %s: %w", s.ID(), err))
		return
	}

	if !first {
		if err := s.Draw(false); err != nil {
			c.fail(fmt.Errorf("surface %s: %w", s.ID(), err))
		}
		return
	}

	slog.Debug("First configure", "surface", s.ID(), "width", s.Width(), "height", s.Height())

	// Outputs that show up after the fade go straight to the final alpha.
	if c.done {
		if err := c.paint(s, c.alpha); err != nil {
			c.fail(fmt.Errorf("surface %s: %w", s.ID(), err))
			return
		}
	}

	if err := s.Draw(!c.done); err != nil {
		c.fail(fmt.Errorf("surface %s: %w", s.ID(), err))
	}
}

func (c *Controller) Closed(layer LayerSurface) {
	if s := c.findByLayer(layer); s != nil {
		slog.Debug("Layer surface closed", "surface", s.ID())
		return
	}
	slog.Debug("Unknown layer surface closed")
}

// fadeStep returns the alpha for the current time and whether the fade has
// reached its end.
func (c *Controller) fadeStep() (float64, bool) {
	if c.done || c.fade <= 0 {
		return c.alpha, true
	}

	elapsed := c.now().Sub(c.start).Seconds()
	fade := c.fade.Seconds()

	alpha := c.alpha * (elapsed / fade)
	if alpha < 0 {
		alpha = 0
	} else if alpha > c.alpha {
		alpha = c.alpha
	}

	return alpha, elapsed >= fade
}

func (c *Controller) paint(s *Surface, alpha float64) error {
	switch c.buffers.Kind() {
	case BufferKindSinglePixel:
		buffer, err := c.buffers.GetBuffer(alpha)
		if err != nil {
			return err
		}
		s.SetBackBuffer(buffer)
		return nil
	case BufferKindShm:
		return s.RepaintBack(alpha)
	default:
		return fmt.Errorf("unknown buffer kind: %d", c.buffers.Kind())
	}
}

func (c *Controller) Frame(wl WlSurface, time uint32) {
	s := c.findByWlSurface(wl)
	if s == nil {
		slog.Error("Frame for unknown surface", "time", time)
		return
	}
	s.frameDone()

	alpha, done := c.fadeStep()

	if err := c.paint(s, alpha); err != nil {
		c.fail(fmt.Errorf("surface %s: %w", s.ID(), err))
		return
	}

	if err := s.Draw(!done); err != nil {
		c.fail(fmt.Errorf("surface %s: %w", s.ID(), err))
		return
	}

	if done && !c.done {
		slog.Debug("Fade complete", "alpha", alpha)
		c.done = true
	}
}

func (c *Controller) observe(source string) {
	if c.exit {
		return
	}
	slog.Debug("Input observed", "source", source)
	c.exit = true
}

func (c *Controller) KeyboardEnter(surface WlSurface) {
	if s := c.findByWlSurface(surface); s != nil {
		slog.Debug("Gained keyboard focus", "surface", s.ID())
	}
}

func (c *Controller) KeyboardLeave(surface WlSurface) {
	if s := c.findByWlSurface(surface); s != nil {
		slog.Debug("Lost keyboard focus", "surface", s.ID())
	}
}

func (c *Controller) PressKey(key uint32) {
	c.observe("keyboard")
}

func (c *Controller) ReleaseKey(key uint32) {
	slog.Debug("Key released", "key", key)
}

func (c *Controller) UpdateModifiers() {
	slog.Debug("Modifiers updated")
}

func (c *Controller) PointerEnter(surface WlSurface, serial uint32) {
	if c.alpha != 1 || c.pointer == nil {
		return
	}
	if err := c.pointer.HideCursor(serial); err != nil {
		slog.Error("Failed to hide cursor", "error", err)
	}
}

func (c *Controller) PointerLeave(surface WlSurface) {}

func (c *Controller) PointerEvent(kind PointerEventKind) {
	c.observe("pointer " + kind.String())
}

func (c *Controller) TouchDown(surface WlSurface) {
	c.observe("touch")
}

func (c *Controller) TouchUp() {}

func (c *Controller) NewCapability(seat Seat, capability Capability) {
	slog.Debug("New capability", "capability", capability)

	switch capability {
	case CapabilityKeyboard:
		if c.keyboard != nil {
			return
		}
		keyboard, err := seat.GetKeyboard()
		if err != nil {
			c.fail(fmt.Errorf("get keyboard: %w", err))
			return
		}
		c.keyboard = keyboard
	case CapabilityPointer:
		if c.pointer != nil {
			return
		}
		pointer, err := seat.GetPointer()
		if err != nil {
			c.fail(fmt.Errorf("get pointer: %w", err))
			return
		}
		c.pointer = pointer
	case CapabilityTouch:
		if c.touch != nil {
			return
		}
		touch, err := seat.GetTouch()
		if err != nil {
			c.fail(fmt.Errorf("get touch: %w", err))
			return
		}
		c.touch = touch
	default:
		slog.Debug("Unknown capability", "capability", capability)
	}
}

func (c *Controller) RemoveCapability(seat Seat, capability Capability) {
	slog.Debug("Removed capability", "capability", capability)

	var device Device
	switch capability {
	case CapabilityKeyboard:
		if c.keyboard != nil {
			device = c.keyboard
		}
		c.keyboard = nil
	case CapabilityPointer:
		if c.pointer != nil {
			device = c.pointer
		}
		c.pointer = nil
	case CapabilityTouch:
		if c.touch != nil {
			device = c.touch
		}
		c.touch = nil
	default:
		slog.Debug("Unknown capability", "capability", capability)
		return
	}

	if device == nil {
		slog.Error("Removed capability that was never acquired", "capability", capability)
		return
	}
	if err := device.Release(); err != nil {
		slog.Error("Failed to release device", "capability", capability, "error", err)
	}
}

// Close destroys all surfaces, releases held devices and the buffer pool.
func (c *Controller) Close() error {
	var errs []error
	for id, s := range c.surfaces {
		errs = append(errs, s.Destroy())
		delete(c.surfaces, id)
	}

	if c.keyboard != nil {
		errs = append(errs, c.keyboard.Release())
		c.keyboard = nil
	}
	if c.pointer != nil {
		errs = append(errs, c.pointer.Release())
		c.pointer = nil
	}
	if c.touch != nil {
		errs = append(errs, c.touch.Release())
		c.touch = nil
	}

	errs = append(errs, c.buffers.Close())

	return errors.Join(errs...)
}
