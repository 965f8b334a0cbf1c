package wayland

import (
	"log/slog"

	"github.com/ItsNotGoodName/dim/internal/dim"
	"github.com/ItsNotGoodName/dim/internal/proto/wire"
	"github.com/rajveermalviya/go-wayland/wayland/client"
	"golang.org/x/sys/unix"
)

const seatVersion = 5

// Versions the release requests were added in.
const (
	seatReleaseVersion   = 5
	deviceReleaseVersion = 3
)

var capabilityBits = []struct {
	bit        uint32
	capability dim.Capability
}{
	{uint32(client.SeatCapabilityKeyboard), dim.CapabilityKeyboard},
	{uint32(client.SeatCapabilityPointer), dim.CapabilityPointer},
	{uint32(client.SeatCapabilityTouch), dim.CapabilityTouch},
}

// capabilityDiff lists the capabilities gained and lost between two
// wl_seat capability masks.
func capabilityDiff(prev, next uint32) (added, removed []dim.Capability) {
	for _, c := range capabilityBits {
		had, has := prev&c.bit != 0, next&c.bit != 0
		switch {
		case has && !had:
			added = append(added, c.capability)
		case had && !has:
			removed = append(removed, c.capability)
		}
	}
	return added, removed
}

type seat struct {
	c       *Client
	name    uint32
	version uint32
	wl      *client.Seat
	// capabilities last delivered to the handler
	capabilities uint32
	// pending holds the mask received before a handler was set
	pending uint32
}

func newSeat(c *Client, name, version uint32, wl *client.Seat) *seat {
	s := &seat{
		c:       c,
		name:    name,
		version: version,
		wl:      wl,
	}

	wl.SetCapabilitiesHandler(func(e client.SeatCapabilitiesEvent) {
		s.pending = e.Capabilities
		s.deliver()
	})
	wl.SetNameHandler(func(e client.SeatNameEvent) {
		slog.Debug("Seat", "name", e.Name)
	})

	return s
}

func (s *seat) deliver() {
	if s.c.handler == nil {
		return
	}

	added, removed := capabilityDiff(s.capabilities, s.pending)
	s.capabilities = s.pending

	for _, capability := range removed {
		s.c.handler.RemoveCapability(s, capability)
	}
	for _, capability := range added {
		s.c.handler.NewCapability(s, capability)
	}
}

func (s *seat) release() error {
	if s.version < seatReleaseVersion {
		return nil
	}
	return wire.Send(s.wl, seatReleaseOpcode)
}

func (s *seat) canRelease() bool {
	return s.version >= deviceReleaseVersion
}

func (s *seat) GetKeyboard() (dim.Device, error) {
	wl, err := s.wl.GetKeyboard()
	if err != nil {
		return nil, err
	}

	k := &keyboard{wl: wl, release: s.canRelease()}
	h := s.c

	wl.SetKeymapHandler(func(e client.KeyboardKeymapEvent) {
		// keys are never interpreted, the keymap is not needed
		if err := unix.Close(e.Fd); err != nil {
			slog.Error("Failed to close keymap", "error", err)
		}
	})
	wl.SetEnterHandler(func(e client.KeyboardEnterEvent) {
		h.handler.KeyboardEnter(h.lookupSurface(e.Surface))
	})
	wl.SetLeaveHandler(func(e client.KeyboardLeaveEvent) {
		h.handler.KeyboardLeave(h.lookupSurface(e.Surface))
	})
	wl.SetKeyHandler(func(e client.KeyboardKeyEvent) {
		if e.State == uint32(client.KeyboardKeyStatePressed) {
			h.handler.PressKey(e.Key)
			return
		}
		h.handler.ReleaseKey(e.Key)
	})
	wl.SetModifiersHandler(func(e client.KeyboardModifiersEvent) {
		h.handler.UpdateModifiers()
	})

	return k, nil
}

func (s *seat) GetPointer() (dim.Pointer, error) {
	wl, err := s.wl.GetPointer()
	if err != nil {
		return nil, err
	}

	p := &pointer{wl: wl, release: s.canRelease()}
	h := s.c

	wl.SetEnterHandler(func(e client.PointerEnterEvent) {
		h.handler.PointerEnter(h.lookupSurface(e.Surface), e.Serial)
	})
	wl.SetLeaveHandler(func(e client.PointerLeaveEvent) {
		h.handler.PointerLeave(h.lookupSurface(e.Surface))
	})
	wl.SetMotionHandler(func(e client.PointerMotionEvent) {
		h.handler.PointerEvent(dim.PointerMotion)
	})
	wl.SetButtonHandler(func(e client.PointerButtonEvent) {
		h.handler.PointerEvent(dim.PointerButton)
	})
	wl.SetAxisHandler(func(e client.PointerAxisEvent) {
		h.handler.PointerEvent(dim.PointerAxis)
	})

	return p, nil
}

func (s *seat) GetTouch() (dim.Device, error) {
	wl, err := s.wl.GetTouch()
	if err != nil {
		return nil, err
	}

	t := &touch{wl: wl, release: s.canRelease()}
	h := s.c

	wl.SetDownHandler(func(e client.TouchDownEvent) {
		h.handler.TouchDown(h.lookupSurface(e.Surface))
	})
	wl.SetUpHandler(func(e client.TouchUpEvent) {
		h.handler.TouchUp()
	})

	return t, nil
}

type keyboard struct {
	wl      *client.Keyboard
	release bool
}

func (k *keyboard) Release() error {
	if !k.release {
		return nil
	}
	return wire.Send(k.wl, keyboardReleaseOpcode)
}

type pointer struct {
	wl      *client.Pointer
	release bool
}

func (p *pointer) Release() error {
	if !p.release {
		return nil
	}
	return wire.Send(p.wl, pointerReleaseOpcode)
}

func (p *pointer) HideCursor(serial uint32) error {
	return p.wl.SetCursor(serial, nil, 0, 0)
}

type touch struct {
	wl      *client.Touch
	release bool
}

func (t *touch) Release() error {
	if !t.release {
		return nil
	}
	return wire.Send(t.wl, touchReleaseOpcode)
}
