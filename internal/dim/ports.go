package dim

import "fmt"

// The interfaces below are the compositor objects dim talks to. The wayland
// package implements them on top of a live connection.

type OutputID uint32

type BufferHandle interface {
	Destroy() error
}

type SinglePixelBufferManager interface {
	CreateU32RGBABuffer(r, g, b, a uint32) (BufferHandle, error)
}

type Shm interface {
	CreatePool(fd int, size int32) (ShmPool, error)
}

type ShmPool interface {
	CreateBuffer(offset, width, height, stride int32, format uint32) (BufferHandle, error)
	Resize(size int32) error
	Destroy() error
}

type Compositor interface {
	CreateSurface() (WlSurface, error)
	CreateRegion() (Region, error)
}

type Region interface {
	Destroy() error
}

type WlSurface interface {
	Attach(buffer BufferHandle) error
	Damage(x, y, width, height int32) error
	// Frame arms a one-shot frame callback delivered to CompositorHandler.Frame.
	Frame() error
	SetInputRegion(region Region) error
	Commit() error
	Destroy() error
}

type Output interface {
	ID() OutputID
}

type OutputInfo struct {
	Name        string
	Description string
	// LogicalWidth and LogicalHeight are zero when the compositor has not
	// reported a mode.
	LogicalWidth  int32
	LogicalHeight int32
	Scale         int32
}

func (o OutputInfo) LogicalSize() (width, height uint32, ok bool) {
	if o.LogicalWidth <= 0 || o.LogicalHeight <= 0 {
		return 0, 0, false
	}
	return uint32(o.LogicalWidth), uint32(o.LogicalHeight), true
}

type Layer uint32

const (
	LayerBackground Layer = 0
	LayerBottom     Layer = 1
	LayerTop        Layer = 2
	LayerOverlay    Layer = 3
)

type Anchor uint32

const (
	AnchorTop    Anchor = 1
	AnchorBottom Anchor = 2
	AnchorLeft   Anchor = 4
	AnchorRight  Anchor = 8

	AnchorAll = AnchorTop | AnchorBottom | AnchorLeft | AnchorRight
)

type KeyboardInteractivity uint32

const (
	KeyboardInteractivityNone      KeyboardInteractivity = 0
	KeyboardInteractivityExclusive KeyboardInteractivity = 1
)

type LayerShell interface {
	GetLayerSurface(surface WlSurface, output Output, layer Layer, namespace string) (LayerSurface, error)
}

type LayerSurface interface {
	SetSize(width, height uint32) error
	SetAnchor(anchor Anchor) error
	SetExclusiveZone(zone int32) error
	SetKeyboardInteractivity(interactivity KeyboardInteractivity) error
	AckConfigure(serial uint32) error
	Destroy() error
}

type LayerConfigure struct {
	Serial uint32
	Width  uint32
	Height uint32
}

type Viewporter interface {
	GetViewport(surface WlSurface) (Viewport, error)
}

type Viewport interface {
	SetDestination(width, height int32) error
	Destroy() error
}

type Device interface {
	Release() error
}

type Pointer interface {
	Device
	// HideCursor sets a null cursor image for the pointer focus of serial.
	HideCursor(serial uint32) error
}

type Seat interface {
	GetKeyboard() (Device, error)
	GetPointer() (Pointer, error)
	GetTouch() (Device, error)
}

type Capability int

const (
	CapabilityKeyboard Capability = iota
	CapabilityPointer
	CapabilityTouch
)

func (c Capability) String() string {
	switch c {
	case CapabilityKeyboard:
		return "keyboard"
	case CapabilityPointer:
		return "pointer"
	case CapabilityTouch:
		return "touch"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Globals are the compositor globals bound at startup. SinglePixel and Shm
// are optional individually but at least one of them must be present.
type Globals struct {
	Compositor  Compositor
	LayerShell  LayerShell
	Viewporter  Viewporter
	SinglePixel SinglePixelBufferManager
	Shm         Shm
}

// Memory is the shared memory segment backing a wl_shm pool.
type Memory interface {
	Fd() int
	Size() int
	Bytes() []byte
	Grow(size int) error
	Close() error
}

type MemoryAllocator func(size int) (Memory, error)
