package wayland

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ItsNotGoodName/dim/internal/dim"
	"github.com/ItsNotGoodName/dim/internal/proto/wire"
	"github.com/ItsNotGoodName/dim/internal/proto/wlr_layer_shell"
	"github.com/ItsNotGoodName/dim/internal/proto/wp_single_pixel_buffer"
	"github.com/ItsNotGoodName/dim/internal/proto/wp_viewporter"
	"github.com/rajveermalviya/go-wayland/wayland/client"
)

const displayID = 1

// Registry names of testGlobals.
const (
	compositorName  = 1
	layerShellName  = 2
	viewporterName  = 3
	seatName        = 4
	outputName      = 5
	singlePixelName = 6
)

// Seat capability bits.
const (
	pointerBit  = 1
	keyboardBit = 2
	touchBit    = 4
)

type fakeGlobal struct {
	iface   string
	version uint32
}

var testGlobals = []fakeGlobal{
	{compositorInterfaceName, 4},
	{wlr_layer_shell.ZwlrLayerShellV1InterfaceName, 4},
	{wp_viewporter.WpViewporterInterfaceName, 1},
	{seatInterfaceName, 5},
	{outputInterfaceName, 4},
	{wp_single_pixel_buffer.WpSinglePixelBufferManagerV1InterfaceName, 1},
}

type request struct {
	sender uint32
	opcode uint32
	args   []byte
}

// fakeCompositor is the server end of a wayland socket. It advertises its
// globals, answers wl_display.sync and records every request. Everything else
// is sent by the test.
type fakeCompositor struct {
	t       *testing.T
	globals []fakeGlobal
	serial  uint32

	accepted chan struct{}
	done     chan struct{}

	writeMu sync.Mutex
	conn    *net.UnixConn

	mu       sync.Mutex
	requests []request
}

func newFakeCompositor(t *testing.T, globals []fakeGlobal) *fakeCompositor {
	t.Helper()

	dir, err := os.MkdirTemp("", "dim")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: filepath.Join(dir, "wayland-test"), Net: "unix"})
	if err != nil {
		t.Fatalf("ListenUnix: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	t.Setenv("XDG_RUNTIME_DIR", dir)
	t.Setenv("WAYLAND_DISPLAY", "wayland-test")

	f := &fakeCompositor{
		t:        t,
		globals:  globals,
		accepted: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go f.serve(ln)
	return f
}

func (f *fakeCompositor) serve(ln *net.UnixListener) {
	defer close(f.done)

	conn, err := ln.AcceptUnix()
	if err == nil {
		f.conn = conn
	}
	close(f.accepted)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		header := make([]byte, 8)
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		sizeOpcode := client.Uint32(header[4:8])
		req := request{
			sender: client.Uint32(header[:4]),
			opcode: sizeOpcode & 0xffff,
			args:   make([]byte, int(sizeOpcode>>16)-8),
		}
		if _, err := io.ReadFull(conn, req.args); err != nil {
			return
		}

		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		f.handle(req)
	}
}

func (f *fakeCompositor) handle(req request) {
	if req.sender != displayID {
		return
	}

	switch req.opcode {
	case 0: // sync
		callback := word(req.args, 0)
		f.serial++
		f.send(callback, 0, f.serial)
		f.send(displayID, 1, callback)
	case 1: // get_registry
		registry := word(req.args, 0)
		for i, g := range f.globals {
			f.send(registry, 0, uint32(i+1), g.iface, g.version)
		}
	}
}

// send writes one event. Arguments are uint32, int32, int or string.
func (f *fakeCompositor) send(id, opcode uint32, args ...any) {
	var body []byte
	for _, arg := range args {
		switch v := arg.(type) {
		case uint32:
			body = appendWord(body, v)
		case int32:
			body = appendWord(body, uint32(v))
		case int:
			body = appendWord(body, uint32(v))
		case string:
			b := make([]byte, 4+wire.StringLen(v))
			wire.PutString(b, v)
			body = append(body, b...)
		default:
			f.t.Errorf("send: unsupported argument %T", arg)
			return
		}
	}

	msg := make([]byte, 8, 8+len(body))
	client.PutUint32(msg[:4], id)
	client.PutUint32(msg[4:8], uint32(8+len(body))<<16|opcode)
	msg = append(msg, body...)

	<-f.accepted
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if f.conn == nil {
		f.t.Errorf("send: no client connected")
		return
	}
	if _, err := f.conn.Write(msg); err != nil {
		f.t.Errorf("send: %v", err)
	}
}

func (f *fakeCompositor) received(sender, opcode uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, req := range f.requests {
		if req.sender == sender && req.opcode == opcode {
			return true
		}
	}
	return false
}

// newID returns the object created by the last sender.opcode request.
func (f *fakeCompositor) newID(t *testing.T, sender, opcode uint32) uint32 {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.requests) - 1; i >= 0; i-- {
		if req := f.requests[i]; req.sender == sender && req.opcode == opcode {
			return word(req.args, 0)
		}
	}
	t.Fatalf("no request %d.%d", sender, opcode)
	return 0
}

func word(b []byte, offset int) uint32 {
	return client.Uint32(b[offset : offset+4])
}

func appendWord(b []byte, v uint32) []byte {
	var w [4]byte
	client.PutUint32(w[:], v)
	return append(b, w[:]...)
}

func connectFake(t *testing.T, globals ...fakeGlobal) (*Client, *fakeCompositor) {
	t.Helper()

	if len(globals) == 0 {
		globals = testGlobals
	}
	f := newFakeCompositor(t, globals)

	c, err := Connect()
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	return c, f
}

func roundtrip(t *testing.T, c *Client) {
	t.Helper()

	if err := c.roundtrip(); err != nil {
		t.Fatalf("roundtrip: %v", err)
	}
}

func run(t *testing.T, c *Client, state State) error {
	t.Helper()

	errc := make(chan error, 1)
	go func() { errc <- c.Run(state) }()

	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return")
		return nil
	}
}

// acquire announces the capabilities and returns the created device ids, 0
// for the ones not announced.
func acquire(t *testing.T, c *Client, f *fakeCompositor, capabilities uint32) (keyboard, pointer, touch uint32) {
	t.Helper()

	seat := c.seat.wl.ID()
	f.send(seat, 0, capabilities)
	roundtrip(t, c)

	if capabilities&keyboardBit != 0 {
		keyboard = f.newID(t, seat, 1)
	}
	if capabilities&pointerBit != 0 {
		pointer = f.newID(t, seat, 0)
	}
	if capabilities&touchBit != 0 {
		touch = f.newID(t, seat, 2)
	}
	return keyboard, pointer, touch
}

func surfaceID(s dim.WlSurface) uint32 {
	return s.(*surface).wl.ID()
}

// recorder is a dim.Handler that records calls as strings and acquires the
// announced devices.
type recorder struct {
	devices map[dim.Capability]dim.Device
	calls   []string
	exitOn  string
}

func newRecorder() *recorder {
	return &recorder{devices: make(map[dim.Capability]dim.Device)}
}

func (r *recorder) record(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) reset() {
	r.calls = nil
}

func (r *recorder) want(t *testing.T, calls ...string) {
	t.Helper()

	if !slices.Equal(r.calls, calls) {
		t.Fatalf("calls = %q, want %q", r.calls, calls)
	}
}

func known(s dim.WlSurface) string {
	if s == nil {
		return "unknown"
	}
	return "known"
}

func (r *recorder) ShouldExit() bool {
	return r.exitOn != "" && slices.Contains(r.calls, r.exitOn)
}

func (r *recorder) Err() error {
	return nil
}

func (r *recorder) Frame(surface dim.WlSurface, at uint32) {
	r.record("Frame %s %d", known(surface), at)
}

func (r *recorder) NewOutput(output dim.Output, info dim.OutputInfo) {
	r.record("NewOutput %d %s %dx%d", output.ID(), info.Name, info.LogicalWidth, info.LogicalHeight)
}

func (r *recorder) UpdateOutput(output dim.Output, info dim.OutputInfo) {
	r.record("UpdateOutput %d %s %dx%d", output.ID(), info.Name, info.LogicalWidth, info.LogicalHeight)
}

func (r *recorder) OutputDestroyed(output dim.Output) {
	r.record("OutputDestroyed %d", output.ID())
}

func (r *recorder) NewCapability(seat dim.Seat, capability dim.Capability) {
	r.record("NewCapability %s", capability)

	var (
		device dim.Device
		err    error
	)
	switch capability {
	case dim.CapabilityKeyboard:
		device, err = seat.GetKeyboard()
	case dim.CapabilityPointer:
		device, err = seat.GetPointer()
	case dim.CapabilityTouch:
		device, err = seat.GetTouch()
	}
	if err != nil {
		r.record("error %v", err)
		return
	}
	r.devices[capability] = device
}

func (r *recorder) RemoveCapability(seat dim.Seat, capability dim.Capability) {
	r.record("RemoveCapability %s", capability)

	if device, ok := r.devices[capability]; ok {
		if err := device.Release(); err != nil {
			r.record("error %v", err)
		}
		delete(r.devices, capability)
	}
}

func (r *recorder) KeyboardEnter(surface dim.WlSurface) {
	r.record("KeyboardEnter %s", known(surface))
}

func (r *recorder) KeyboardLeave(surface dim.WlSurface) {
	r.record("KeyboardLeave %s", known(surface))
}

func (r *recorder) PressKey(key uint32) {
	r.record("PressKey %d", key)
}

func (r *recorder) ReleaseKey(key uint32) {
	r.record("ReleaseKey %d", key)
}

func (r *recorder) UpdateModifiers() {
	r.record("UpdateModifiers")
}

func (r *recorder) PointerEnter(surface dim.WlSurface, serial uint32) {
	r.record("PointerEnter %s %d", known(surface), serial)
}

func (r *recorder) PointerLeave(surface dim.WlSurface) {
	r.record("PointerLeave %s", known(surface))
}

func (r *recorder) PointerEvent(kind dim.PointerEventKind) {
	r.record("PointerEvent %s", kind)
}

func (r *recorder) TouchDown(surface dim.WlSurface) {
	r.record("TouchDown %s", known(surface))
}

func (r *recorder) TouchUp() {
	r.record("TouchUp")
}

func (r *recorder) Configure(layer dim.LayerSurface, configure dim.LayerConfigure) {
	r.record("Configure %d %dx%d", configure.Serial, configure.Width, configure.Height)
}

func (r *recorder) Closed(layer dim.LayerSurface) {
	r.record("Closed")
}

var _ dim.Handler = (*recorder)(nil)
