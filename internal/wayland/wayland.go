// Package wayland connects dim to a compositor through go-wayland.
package wayland

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ItsNotGoodName/dim/internal/dim"
	"github.com/ItsNotGoodName/dim/internal/proto/wlr_layer_shell"
	"github.com/ItsNotGoodName/dim/internal/proto/wp_single_pixel_buffer"
	"github.com/ItsNotGoodName/dim/internal/proto/wp_viewporter"
	"github.com/rajveermalviya/go-wayland/wayland/client"
)

var ErrMissingGlobal = errors.New("missing global")

const (
	compositorInterfaceName = "wl_compositor"
	shmInterfaceName        = "wl_shm"
	seatInterfaceName       = "wl_seat"
	outputInterfaceName     = "wl_output"
)

const (
	compositorVersion = 4
	layerShellVersion = 4
)

// State is what Run polls after every dispatch.
type State interface {
	ShouldExit() bool
	Err() error
}

// Client owns the connection and every proxy bound from the registry. It must
// only be used from the goroutine that calls Run.
type Client struct {
	display  *client.Display
	ctx      *client.Context
	registry *client.Registry

	compositor  *client.Compositor
	shm         *client.Shm
	layerShell  *wlr_layer_shell.ZwlrLayerShellV1
	viewporter  *wp_viewporter.WpViewporter
	singlePixel *wp_single_pixel_buffer.WpSinglePixelBufferManagerV1

	seat     *seat
	outputs  map[uint32]*output
	surfaces map[*client.Surface]*surface

	handler dim.Handler
	// err is the last wl_display.error, the connection is unusable after it.
	err error

	closeOnce sync.Once
	closeErr  error
}

// Connect connects to the compositor named by WAYLAND_DISPLAY and waits until
// the globals and their initial state have arrived.
func Connect() (*Client, error) {
	display, err := client.Connect("")
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	c := &Client{
		display:  display,
		ctx:      display.Context(),
		outputs:  make(map[uint32]*output),
		surfaces: make(map[*client.Surface]*surface),
	}

	display.SetDeleteIdHandler(c.handleDeleteID)
	display.SetErrorHandler(c.handleError)

	registry, err := display.GetRegistry()
	if err != nil {
		c.ctx.Close()
		return nil, fmt.Errorf("get registry: %w", err)
	}
	c.registry = registry

	registry.SetGlobalHandler(c.handleGlobal)
	registry.SetGlobalRemoveHandler(c.handleGlobalRemove)

	// The first roundtrip binds the globals, the second collects output
	// modes and seat capabilities.
	for i := 0; i < 2; i++ {
		if err := c.roundtrip(); err != nil {
			c.ctx.Close()
			return nil, fmt.Errorf("roundtrip: %w", err)
		}
	}

	return c, nil
}

func (c *Client) roundtrip() error {
	callback, err := c.display.Sync()
	if err != nil {
		return err
	}

	done := false
	callback.SetDoneHandler(func(client.CallbackDoneEvent) {
		done = true
	})

	for !done {
		if err := c.dispatch(); err != nil {
			return err
		}
	}

	return nil
}

// dispatch reads and delivers one event. Events for ids the client no longer
// knows are dropped.
func (c *Client) dispatch() error {
	if err := c.ctx.Dispatch(); err != nil {
		if strings.Contains(err.Error(), "unable find sender") {
			slog.Debug("Dropped event", "error", err)
			return nil
		}
		return err
	}
	return c.err
}

// handleDeleteID forgets a proxy once the compositor has acknowledged its
// destruction. Destroy requests never unregister, so events sent before the
// compositor saw the request still find their proxy.
func (c *Client) handleDeleteID(e client.DisplayDeleteIdEvent) {
	if p := c.ctx.GetProxy(e.Id); p != nil {
		c.ctx.Unregister(p)
	}
}

func (c *Client) handleError(e client.DisplayErrorEvent) {
	var id uint32
	if e.ObjectId != nil {
		id = e.ObjectId.ID()
	}
	c.err = fmt.Errorf("display error: object %d: code %d: %s", id, e.Code, e.Message)
}

func minVersion(version, limit uint32) uint32 {
	if version > limit {
		return limit
	}
	return version
}

func (c *Client) handleGlobal(e client.RegistryGlobalEvent) {
	var err error

	switch e.Interface {
	case compositorInterfaceName:
		compositor := client.NewCompositor(c.ctx)
		if err = c.registry.Bind(e.Name, e.Interface, minVersion(e.Version, compositorVersion), compositor); err == nil {
			c.compositor = compositor
		}
	case shmInterfaceName:
		shm := client.NewShm(c.ctx)
		if err = c.registry.Bind(e.Name, e.Interface, 1, shm); err == nil {
			c.shm = shm
		}
	case wlr_layer_shell.ZwlrLayerShellV1InterfaceName:
		layerShell := wlr_layer_shell.NewZwlrLayerShellV1(c.ctx)
		if err = c.registry.Bind(e.Name, e.Interface, minVersion(e.Version, layerShellVersion), layerShell); err == nil {
			c.layerShell = layerShell
		}
	case wp_viewporter.WpViewporterInterfaceName:
		viewporter := wp_viewporter.NewWpViewporter(c.ctx)
		if err = c.registry.Bind(e.Name, e.Interface, 1, viewporter); err == nil {
			c.viewporter = viewporter
		}
	case wp_single_pixel_buffer.WpSinglePixelBufferManagerV1InterfaceName:
		singlePixel := wp_single_pixel_buffer.NewWpSinglePixelBufferManagerV1(c.ctx)
		if err = c.registry.Bind(e.Name, e.Interface, 1, singlePixel); err == nil {
			c.singlePixel = singlePixel
		}
	case seatInterfaceName:
		if c.seat != nil {
			slog.Debug("Ignoring additional seat", "name", e.Name)
			return
		}
		wl := client.NewSeat(c.ctx)
		version := minVersion(e.Version, seatVersion)
		if err = c.registry.Bind(e.Name, e.Interface, version, wl); err == nil {
			c.seat = newSeat(c, e.Name, version, wl)
		}
	case outputInterfaceName:
		wl := client.NewOutput(c.ctx)
		version := minVersion(e.Version, outputVersion)
		if err = c.registry.Bind(e.Name, e.Interface, version, wl); err == nil {
			c.outputs[e.Name] = newOutput(c, e.Name, version, wl)
		}
	default:
		return
	}

	if err != nil {
		slog.Error("Failed to bind global", "interface", e.Interface, "name", e.Name, "error", err)
		return
	}
	slog.Debug("Bound global", "interface", e.Interface, "name", e.Name, "version", e.Version)
}

func (c *Client) handleGlobalRemove(e client.RegistryGlobalRemoveEvent) {
	if o, ok := c.outputs[e.Name]; ok {
		slog.Debug("Output removed", "output", e.Name)
		c.removeOutput(o)
		return
	}

	if c.seat != nil && c.seat.name == e.Name {
		slog.Debug("Seat removed", "name", e.Name)
		c.seat.pending = 0
		c.seat.deliver()
		if err := c.seat.release(); err != nil {
			slog.Error("Failed to release seat", "error", err)
		}
		c.seat = nil
	}
}

// Globals returns the bound globals as ports. The compositor, layer shell and
// viewporter are required.
func (c *Client) Globals() (dim.Globals, error) {
	var missing []error
	if c.compositor == nil {
		missing = append(missing, fmt.Errorf("%w: %s", ErrMissingGlobal, compositorInterfaceName))
	}
	if c.layerShell == nil {
		missing = append(missing, fmt.Errorf("%w: %s", ErrMissingGlobal, wlr_layer_shell.ZwlrLayerShellV1InterfaceName))
	}
	if c.viewporter == nil {
		missing = append(missing, fmt.Errorf("%w: %s", ErrMissingGlobal, wp_viewporter.WpViewporterInterfaceName))
	}
	if len(missing) > 0 {
		return dim.Globals{}, errors.Join(missing...)
	}

	globals := dim.Globals{
		Compositor: &compositor{c: c, wl: c.compositor},
		LayerShell: &layerShell{c: c, wl: c.layerShell},
		Viewporter: &viewporter{wl: c.viewporter},
	}
	if c.singlePixel != nil {
		globals.SinglePixel = &singlePixel{wl: c.singlePixel}
	}
	if c.shm != nil {
		globals.Shm = &shm{wl: c.shm}
	}

	return globals, nil
}

// SetHandler starts delivering events to h, replaying the outputs and seat
// capabilities seen so far.
func (c *Client) SetHandler(h dim.Handler) {
	c.handler = h

	for _, o := range c.outputs {
		if !o.ready || o.announced {
			continue
		}
		o.announced = true
		h.NewOutput(o, o.info)
	}

	if c.seat != nil {
		c.seat.deliver()
	}
}

// Run dispatches events until the state asks to exit or fails.
func (c *Client) Run(state State) error {
	for {
		if err := c.dispatch(); err != nil {
			return fmt.Errorf("dispatch: %w", err)
		}
		if err := state.Err(); err != nil {
			return err
		}
		if state.ShouldExit() {
			return nil
		}
	}
}

// Close destroys the bound extension globals and closes the connection. It
// unblocks a pending Run and is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		if c.singlePixel != nil {
			errs = append(errs, c.singlePixel.Destroy())
		}
		if c.viewporter != nil {
			errs = append(errs, c.viewporter.Destroy())
		}
		if c.layerShell != nil {
			errs = append(errs, c.layerShell.Destroy())
		}
		errs = append(errs, c.ctx.Close())
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
