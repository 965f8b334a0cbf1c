package dim

// Event receivers, one per protocol object category. Controller implements
// all of them.

type CompositorHandler interface {
	Frame(surface WlSurface, time uint32)
}

type OutputHandler interface {
	NewOutput(output Output, info OutputInfo)
	UpdateOutput(output Output, info OutputInfo)
	OutputDestroyed(output Output)
}

type SeatHandler interface {
	NewCapability(seat Seat, capability Capability)
	RemoveCapability(seat Seat, capability Capability)
}

type KeyboardHandler interface {
	KeyboardEnter(surface WlSurface)
	KeyboardLeave(surface WlSurface)
	PressKey(key uint32)
	ReleaseKey(key uint32)
	UpdateModifiers()
}

type PointerEventKind int

const (
	PointerMotion PointerEventKind = iota
	PointerButton
	PointerAxis
)

func (k PointerEventKind) String() string {
	switch k {
	case PointerMotion:
		return "motion"
	case PointerButton:
		return "button"
	case PointerAxis:
		return "axis"
	default:
		return "unknown"
	}
}

type PointerHandler interface {
	PointerEnter(surface WlSurface, serial uint32)
	PointerLeave(surface WlSurface)
	PointerEvent(kind PointerEventKind)
}

type TouchHandler interface {
	TouchDown(surface WlSurface)
	TouchUp()
}

type LayerShellHandler interface {
	Configure(layer LayerSurface, configure LayerConfigure)
	Closed(layer LayerSurface)
}

type Handler interface {
	CompositorHandler
	OutputHandler
	SeatHandler
	KeyboardHandler
	PointerHandler
	TouchHandler
	LayerShellHandler
}

var _ Handler = (*Controller)(nil)
