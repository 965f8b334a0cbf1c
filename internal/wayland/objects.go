package wayland

import (
	"fmt"

	"github.com/ItsNotGoodName/dim/internal/dim"
	"github.com/ItsNotGoodName/dim/internal/proto/wire"
	"github.com/ItsNotGoodName/dim/internal/proto/wlr_layer_shell"
	"github.com/ItsNotGoodName/dim/internal/proto/wp_single_pixel_buffer"
	"github.com/ItsNotGoodName/dim/internal/proto/wp_viewporter"
	"github.com/rajveermalviya/go-wayland/wayland/client"
)

// Wrappers turning go-wayland proxies into the ports used by the dim package.
// Arguments coming back from dim are always values created here.

// Destructor opcodes. go-wayland unregisters a proxy as soon as its
// destructor is sent, these are sent directly instead and the proxy is
// forgotten on wl_display.delete_id.
const (
	surfaceDestroyOpcode  = 0
	regionDestroyOpcode   = 0
	bufferDestroyOpcode   = 0
	shmPoolDestroyOpcode  = 1
	seatReleaseOpcode     = 3
	pointerReleaseOpcode  = 1
	keyboardReleaseOpcode = 0
	touchReleaseOpcode    = 0
	outputReleaseOpcode   = 0
)

type compositor struct {
	c  *Client
	wl *client.Compositor
}

func (p *compositor) CreateSurface() (dim.WlSurface, error) {
	wl, err := p.wl.CreateSurface()
	if err != nil {
		return nil, err
	}

	s := &surface{c: p.c, wl: wl}
	p.c.surfaces[wl] = s
	return s, nil
}

func (p *compositor) CreateRegion() (dim.Region, error) {
	wl, err := p.wl.CreateRegion()
	if err != nil {
		return nil, err
	}
	return &region{wl: wl}, nil
}

type surface struct {
	c  *Client
	wl *client.Surface
}

func (s *surface) Attach(b dim.BufferHandle) error {
	buf, ok := b.(*buffer)
	if !ok {
		return fmt.Errorf("foreign buffer: %T", b)
	}
	return s.wl.Attach(buf.wl, 0, 0)
}

func (s *surface) Damage(x, y, width, height int32) error {
	return s.wl.Damage(x, y, width, height)
}

func (s *surface) Frame() error {
	cb, err := s.wl.Frame()
	if err != nil {
		return err
	}

	cb.SetDoneHandler(func(e client.CallbackDoneEvent) {
		if _, ok := s.c.surfaces[s.wl]; !ok {
			return
		}
		s.c.handler.Frame(s, e.CallbackData)
	})

	return nil
}

func (s *surface) SetInputRegion(r dim.Region) error {
	reg, ok := r.(*region)
	if !ok {
		return fmt.Errorf("foreign region: %T", r)
	}
	return s.wl.SetInputRegion(reg.wl)
}

func (s *surface) Commit() error {
	return s.wl.Commit()
}

func (s *surface) Destroy() error {
	delete(s.c.surfaces, s.wl)
	return wire.Send(s.wl, surfaceDestroyOpcode)
}

// lookupSurface maps an event surface to its wrapper. Surfaces that dim did
// not create, or already destroyed, map to nil.
func (c *Client) lookupSurface(wl *client.Surface) dim.WlSurface {
	if wl == nil {
		return nil
	}
	s, ok := c.surfaces[wl]
	if !ok {
		return nil
	}
	return s
}

type region struct {
	wl *client.Region
}

func (r *region) Destroy() error {
	return wire.Send(r.wl, regionDestroyOpcode)
}

type buffer struct {
	wl *client.Buffer
}

func (b *buffer) Destroy() error {
	return wire.Send(b.wl, bufferDestroyOpcode)
}

type singlePixel struct {
	wl *wp_single_pixel_buffer.WpSinglePixelBufferManagerV1
}

func (m *singlePixel) CreateU32RGBABuffer(r, g, b, a uint32) (dim.BufferHandle, error) {
	wl, err := m.wl.CreateU32RGBABuffer(r, g, b, a)
	if err != nil {
		return nil, err
	}
	return &buffer{wl: wl}, nil
}

type shm struct {
	wl *client.Shm
}

func (s *shm) CreatePool(fd int, size int32) (dim.ShmPool, error) {
	wl, err := s.wl.CreatePool(fd, size)
	if err != nil {
		return nil, err
	}
	return &shmPool{wl: wl}, nil
}

type shmPool struct {
	wl *client.ShmPool
}

func (p *shmPool) CreateBuffer(offset, width, height, stride int32, format uint32) (dim.BufferHandle, error) {
	wl, err := p.wl.CreateBuffer(offset, width, height, stride, format)
	if err != nil {
		return nil, err
	}
	return &buffer{wl: wl}, nil
}

func (p *shmPool) Resize(size int32) error {
	return p.wl.Resize(size)
}

func (p *shmPool) Destroy() error {
	return wire.Send(p.wl, shmPoolDestroyOpcode)
}

type layerShell struct {
	c  *Client
	wl *wlr_layer_shell.ZwlrLayerShellV1
}

func (p *layerShell) GetLayerSurface(s dim.WlSurface, o dim.Output, layer dim.Layer, namespace string) (dim.LayerSurface, error) {
	surf, ok := s.(*surface)
	if !ok {
		return nil, fmt.Errorf("foreign surface: %T", s)
	}
	out, ok := o.(*output)
	if !ok {
		return nil, fmt.Errorf("foreign output: %T", o)
	}

	wl, err := p.wl.GetLayerSurface(surf.wl, out.wl, uint32(layer), namespace)
	if err != nil {
		return nil, err
	}

	ls := &layerSurface{wl: wl}
	wl.SetConfigureHandler(func(e wlr_layer_shell.ZwlrLayerSurfaceV1ConfigureEvent) {
		p.c.handler.Configure(ls, dim.LayerConfigure{
			Serial: e.Serial,
			Width:  e.Width,
			Height: e.Height,
		})
	})
	wl.SetClosedHandler(func(e wlr_layer_shell.ZwlrLayerSurfaceV1ClosedEvent) {
		p.c.handler.Closed(ls)
	})

	return ls, nil
}

type layerSurface struct {
	wl *wlr_layer_shell.ZwlrLayerSurfaceV1
}

func (l *layerSurface) SetSize(width, height uint32) error {
	return l.wl.SetSize(width, height)
}

func (l *layerSurface) SetAnchor(anchor dim.Anchor) error {
	return l.wl.SetAnchor(uint32(anchor))
}

func (l *layerSurface) SetExclusiveZone(zone int32) error {
	return l.wl.SetExclusiveZone(zone)
}

func (l *layerSurface) SetKeyboardInteractivity(interactivity dim.KeyboardInteractivity) error {
	return l.wl.SetKeyboardInteractivity(uint32(interactivity))
}

func (l *layerSurface) AckConfigure(serial uint32) error {
	return l.wl.AckConfigure(serial)
}

func (l *layerSurface) Destroy() error {
	return l.wl.Destroy()
}

type viewporter struct {
	wl *wp_viewporter.WpViewporter
}

func (v *viewporter) GetViewport(s dim.WlSurface) (dim.Viewport, error) {
	surf, ok := s.(*surface)
	if !ok {
		return nil, fmt.Errorf("foreign surface: %T", s)
	}

	wl, err := v.wl.GetViewport(surf.wl)
	if err != nil {
		return nil, err
	}
	return &viewport{wl: wl}, nil
}

type viewport struct {
	wl *wp_viewporter.WpViewport
}

func (v *viewport) SetDestination(width, height int32) error {
	return v.wl.SetDestination(width, height)
}

func (v *viewport) Destroy() error {
	return v.wl.Destroy()
}
