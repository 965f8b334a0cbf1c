// Package wp_viewporter implements the client side of viewporter.
package wp_viewporter

import (
	"github.com/ItsNotGoodName/dim/internal/proto/wire"
	"github.com/rajveermalviya/go-wayland/wayland/client"
)

const WpViewporterInterfaceName = "wp_viewporter"

// WpViewporter crops and scales surfaces.
type WpViewporter struct {
	client.BaseProxy
}

func NewWpViewporter(ctx *client.Context) *WpViewporter {
	wpViewporter := &WpViewporter{}
	ctx.Register(wpViewporter)
	return wpViewporter
}

// Destroy leaves the proxy registered until wl_display.delete_id.
func (i *WpViewporter) Destroy() error {
	const opcode = 0
	return wire.Send(i, opcode)
}

func (i *WpViewporter) GetViewport(surface *client.Surface) (*WpViewport, error) {
	id := NewWpViewport(i.Context())
	const opcode = 1
	err := wire.Send(i, opcode, id.ID(), surface.ID())
	return id, err
}

// WpViewport is the crop and scale state of one surface.
type WpViewport struct {
	client.BaseProxy
}

func NewWpViewport(ctx *client.Context) *WpViewport {
	wpViewport := &WpViewport{}
	ctx.Register(wpViewport)
	return wpViewport
}

func (i *WpViewport) Destroy() error {
	const opcode = 0
	return wire.Send(i, opcode)
}

// SetDestination scales the surface to width x height. Both -1 unsets it.
func (i *WpViewport) SetDestination(width, height int32) error {
	const opcode = 2
	return wire.Send(i, opcode, uint32(width), uint32(height))
}
