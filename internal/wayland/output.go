package wayland

import (
	"log/slog"

	"github.com/ItsNotGoodName/dim/internal/dim"
	"github.com/ItsNotGoodName/dim/internal/proto/wire"
	"github.com/rajveermalviya/go-wayland/wayland/client"
)

const (
	outputVersion        = 4
	outputReleaseVersion = 3
)

// output tracks the double-buffered wl_output state. Info is only published
// on done.
type output struct {
	name    uint32
	version uint32
	wl      *client.Output

	pending outputState
	info    dim.OutputInfo
	// announced is set once the handler has seen the output.
	announced bool
	ready     bool
}

type outputState struct {
	name        string
	description string
	width       int32
	height      int32
	scale       int32
	transform   int32
}

func (o *output) ID() dim.OutputID {
	return dim.OutputID(o.name)
}

func newOutput(c *Client, name, version uint32, wl *client.Output) *output {
	o := &output{
		name:    name,
		version: version,
		wl:      wl,
		pending: outputState{scale: 1},
	}

	wl.SetGeometryHandler(func(e client.OutputGeometryEvent) {
		o.pending.transform = int32(e.Transform)
	})
	wl.SetModeHandler(func(e client.OutputModeEvent) {
		if e.Flags&uint32(client.OutputModeCurrent) == 0 {
			return
		}
		o.pending.width = e.Width
		o.pending.height = e.Height
	})
	wl.SetScaleHandler(func(e client.OutputScaleEvent) {
		o.pending.scale = e.Factor
	})
	wl.SetNameHandler(func(e client.OutputNameEvent) {
		o.pending.name = e.Name
	})
	wl.SetDescriptionHandler(func(e client.OutputDescriptionEvent) {
		o.pending.description = e.Description
	})
	wl.SetDoneHandler(func(e client.OutputDoneEvent) {
		c.outputDone(o)
	})

	return o
}

// commit folds the pending state into info and reports whether it changed.
func (o *output) commit() bool {
	width, height := logicalSize(o.pending.width, o.pending.height, o.pending.scale, o.pending.transform)
	info := dim.OutputInfo{
		Name:          o.pending.name,
		Description:   o.pending.description,
		LogicalWidth:  width,
		LogicalHeight: height,
		Scale:         o.pending.scale,
	}

	changed := !o.ready || info != o.info
	o.info = info
	o.ready = true
	return changed
}

// logicalSize converts a mode in buffer pixels to surface-local pixels.
func logicalSize(width, height, scale, transform int32) (int32, int32) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	if scale < 1 {
		scale = 1
	}

	// 90, 270, flipped-90 and flipped-270 are the odd transforms
	if transform%2 == 1 {
		width, height = height, width
	}

	return width / scale, height / scale
}

func (c *Client) outputDone(o *output) {
	if !o.commit() {
		return
	}

	if c.handler == nil {
		return
	}

	if !o.announced {
		o.announced = true
		c.handler.NewOutput(o, o.info)
		return
	}
	c.handler.UpdateOutput(o, o.info)
}

func (c *Client) removeOutput(o *output) {
	delete(c.outputs, o.name)

	if c.handler != nil && o.announced {
		c.handler.OutputDestroyed(o)
	}

	if o.version < outputReleaseVersion {
		return
	}
	if err := wire.Send(o.wl, outputReleaseOpcode); err != nil {
		slog.Error("Failed to release output", "output", o.name, "error", err)
	}
}
