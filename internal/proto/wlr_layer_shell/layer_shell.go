// Package wlr_layer_shell implements the client side of wlr-layer-shell-unstable-v1.
package wlr_layer_shell

import (
	"github.com/ItsNotGoodName/dim/internal/proto/wire"
	"github.com/rajveermalviya/go-wayland/wayland/client"
)

const ZwlrLayerShellV1InterfaceName = "zwlr_layer_shell_v1"

// ZwlrLayerShellV1 creates layer surfaces.
type ZwlrLayerShellV1 struct {
	client.BaseProxy
}

func NewZwlrLayerShellV1(ctx *client.Context) *ZwlrLayerShellV1 {
	zwlrLayerShellV1 := &ZwlrLayerShellV1{}
	ctx.Register(zwlrLayerShellV1)
	return zwlrLayerShellV1
}

// GetLayerSurface assigns the layer surface role to surface. A nil output
// lets the compositor pick one.
func (i *ZwlrLayerShellV1) GetLayerSurface(surface *client.Surface, output *client.Output, layer uint32, namespace string) (*ZwlrLayerSurfaceV1, error) {
	id := NewZwlrLayerSurfaceV1(i.Context())
	const opcode = 0
	namespaceLen := wire.StringLen(namespace)
	_reqBufLen := 8 + 4 + 4 + 4 + 4 + (4 + namespaceLen)
	_reqBuf := make([]byte, _reqBufLen)
	l := 0
	client.PutUint32(_reqBuf[l:4], i.ID())
	l += 4
	client.PutUint32(_reqBuf[l:l+4], uint32(_reqBufLen<<16|opcode&0x0000ffff))
	l += 4
	client.PutUint32(_reqBuf[l:l+4], id.ID())
	l += 4
	client.PutUint32(_reqBuf[l:l+4], surface.ID())
	l += 4
	if output == nil {
		client.PutUint32(_reqBuf[l:l+4], 0)
	} else {
		client.PutUint32(_reqBuf[l:l+4], output.ID())
	}
	l += 4
	client.PutUint32(_reqBuf[l:l+4], layer)
	l += 4
	wire.PutString(_reqBuf[l:l+(4+namespaceLen)], namespace)
	err := i.Context().WriteMsg(_reqBuf, nil)
	return id, err
}

// Destroy leaves the proxy registered until wl_display.delete_id.
func (i *ZwlrLayerShellV1) Destroy() error {
	const opcode = 1
	return wire.Send(i, opcode)
}

// ZwlrLayerSurfaceV1 is a surface in one of the compositor layers.
type ZwlrLayerSurfaceV1 struct {
	client.BaseProxy
	configureHandler ZwlrLayerSurfaceV1ConfigureHandlerFunc
	closedHandler    ZwlrLayerSurfaceV1ClosedHandlerFunc
}

func NewZwlrLayerSurfaceV1(ctx *client.Context) *ZwlrLayerSurfaceV1 {
	zwlrLayerSurfaceV1 := &ZwlrLayerSurfaceV1{}
	ctx.Register(zwlrLayerSurfaceV1)
	return zwlrLayerSurfaceV1
}

func (i *ZwlrLayerSurfaceV1) SetSize(width, height uint32) error {
	const opcode = 0
	return wire.Send(i, opcode, width, height)
}

func (i *ZwlrLayerSurfaceV1) SetAnchor(anchor uint32) error {
	const opcode = 1
	return wire.Send(i, opcode, anchor)
}

func (i *ZwlrLayerSurfaceV1) SetExclusiveZone(zone int32) error {
	const opcode = 2
	return wire.Send(i, opcode, uint32(zone))
}

func (i *ZwlrLayerSurfaceV1) SetKeyboardInteractivity(keyboardInteractivity uint32) error {
	const opcode = 4
	return wire.Send(i, opcode, keyboardInteractivity)
}

func (i *ZwlrLayerSurfaceV1) AckConfigure(serial uint32) error {
	const opcode = 6
	return wire.Send(i, opcode, serial)
}

// Destroy clears the event handlers. Events still in flight are dropped
// until the compositor acknowledges the id with wl_display.delete_id.
func (i *ZwlrLayerSurfaceV1) Destroy() error {
	i.configureHandler = nil
	i.closedHandler = nil
	const opcode = 7
	return wire.Send(i, opcode)
}

type ZwlrLayerSurfaceV1ConfigureEvent struct {
	Serial uint32
	Width  uint32
	Height uint32
}

type ZwlrLayerSurfaceV1ConfigureHandlerFunc func(ZwlrLayerSurfaceV1ConfigureEvent)

func (i *ZwlrLayerSurfaceV1) SetConfigureHandler(f ZwlrLayerSurfaceV1ConfigureHandlerFunc) {
	i.configureHandler = f
}

type ZwlrLayerSurfaceV1ClosedEvent struct{}

type ZwlrLayerSurfaceV1ClosedHandlerFunc func(ZwlrLayerSurfaceV1ClosedEvent)

func (i *ZwlrLayerSurfaceV1) SetClosedHandler(f ZwlrLayerSurfaceV1ClosedHandlerFunc) {
	i.closedHandler = f
}

func (i *ZwlrLayerSurfaceV1) Dispatch(opcode uint32, fd int, data []byte) {
	switch opcode {
	case 0:
		if i.configureHandler == nil || len(data) < 12 {
			return
		}
		var e ZwlrLayerSurfaceV1ConfigureEvent
		l := 0
		e.Serial = client.Uint32(data[l : l+4])
		l += 4
		e.Width = client.Uint32(data[l : l+4])
		l += 4
		e.Height = client.Uint32(data[l : l+4])

		i.configureHandler(e)
	case 1:
		if i.closedHandler == nil {
			return
		}
		i.closedHandler(ZwlrLayerSurfaceV1ClosedEvent{})
	}
}
