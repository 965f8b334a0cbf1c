// Package wp_single_pixel_buffer implements the client side of
// single-pixel-buffer-v1.
package wp_single_pixel_buffer

import (
	"github.com/ItsNotGoodName/dim/internal/proto/wire"
	"github.com/rajveermalviya/go-wayland/wayland/client"
)

const WpSinglePixelBufferManagerV1InterfaceName = "wp_single_pixel_buffer_manager_v1"

// WpSinglePixelBufferManagerV1 creates 1x1 buffers of a single colour.
type WpSinglePixelBufferManagerV1 struct {
	client.BaseProxy
}

func NewWpSinglePixelBufferManagerV1(ctx *client.Context) *WpSinglePixelBufferManagerV1 {
	wpSinglePixelBufferManagerV1 := &WpSinglePixelBufferManagerV1{}
	ctx.Register(wpSinglePixelBufferManagerV1)
	return wpSinglePixelBufferManagerV1
}

// Destroy leaves the proxy registered until wl_display.delete_id.
func (i *WpSinglePixelBufferManagerV1) Destroy() error {
	const opcode = 0
	return wire.Send(i, opcode)
}

// CreateU32RGBABuffer creates a wl_buffer with pre-multiplied colour channels
// where 0xffffffff is full intensity.
func (i *WpSinglePixelBufferManagerV1) CreateU32RGBABuffer(r, g, b, a uint32) (*client.Buffer, error) {
	id := client.NewBuffer(i.Context())
	const opcode = 1
	err := wire.Send(i, opcode, id.ID(), r, g, b, a)
	return id, err
}
