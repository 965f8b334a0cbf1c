package dim

import (
	"errors"
	"testing"
	"time"
)

var errFake = errors.New("fake failure")

type fakeBuffer struct {
	rgba      [4]uint32
	offset    int32
	destroyed int
}

func (b *fakeBuffer) Destroy() error {
	b.destroyed++
	return nil
}

type fakeSinglePixel struct {
	buffers []*fakeBuffer
	err     error
}

func (m *fakeSinglePixel) CreateU32RGBABuffer(r, g, b, a uint32) (BufferHandle, error) {
	if m.err != nil {
		return nil, m.err
	}
	buf := &fakeBuffer{rgba: [4]uint32{r, g, b, a}}
	m.buffers = append(m.buffers, buf)
	return buf, nil
}

type fakeMemory struct {
	data   []byte
	closed bool
}

func newFakeMemory(size int) (Memory, error) {
	return &fakeMemory{data: make([]byte, size)}, nil
}

func (m *fakeMemory) Fd() int       { return 42 }
func (m *fakeMemory) Size() int     { return len(m.data) }
func (m *fakeMemory) Bytes() []byte { return m.data }

func (m *fakeMemory) Grow(size int) error {
	if size <= len(m.data) {
		return nil
	}
	data := make([]byte, size)
	copy(data, m.data)
	m.data = data
	return nil
}

func (m *fakeMemory) Close() error {
	m.closed = true
	return nil
}

type fakeShm struct {
	pools []*fakePool
}

func (s *fakeShm) CreatePool(fd int, size int32) (ShmPool, error) {
	pool := &fakePool{fd: fd, size: size}
	s.pools = append(s.pools, pool)
	return pool, nil
}

type fakePool struct {
	fd        int
	size      int32
	buffers   []*fakeBuffer
	destroyed bool
}

func (p *fakePool) CreateBuffer(offset, width, height, stride int32, format uint32) (BufferHandle, error) {
	if offset+stride*height > p.size {
		return nil, errors.New("buffer outside of pool")
	}
	buf := &fakeBuffer{offset: offset}
	p.buffers = append(p.buffers, buf)
	return buf, nil
}

func (p *fakePool) Resize(size int32) error {
	p.size = size
	return nil
}

func (p *fakePool) Destroy() error {
	p.destroyed = true
	return nil
}

type fakeRegion struct {
	destroyed bool
}

func (r *fakeRegion) Destroy() error {
	r.destroyed = true
	return nil
}

type fakeWlSurface struct {
	attached    []BufferHandle
	damage      [][4]int32
	frames      int
	commits     int
	inputRegion Region
	destroyed   bool
}

func (s *fakeWlSurface) Attach(buffer BufferHandle) error {
	s.attached = append(s.attached, buffer)
	return nil
}

func (s *fakeWlSurface) Damage(x, y, width, height int32) error {
	s.damage = append(s.damage, [4]int32{x, y, width, height})
	return nil
}

func (s *fakeWlSurface) Frame() error {
	s.frames++
	return nil
}

func (s *fakeWlSurface) SetInputRegion(region Region) error {
	s.inputRegion = region
	return nil
}

func (s *fakeWlSurface) Commit() error {
	s.commits++
	return nil
}

func (s *fakeWlSurface) Destroy() error {
	s.destroyed = true
	return nil
}

func (s *fakeWlSurface) lastAttached() *fakeBuffer {
	if len(s.attached) == 0 {
		return nil
	}
	return s.attached[len(s.attached)-1].(*fakeBuffer)
}

type fakeCompositor struct {
	surfaces []*fakeWlSurface
	regions  []*fakeRegion
	err      error
}

func (c *fakeCompositor) CreateSurface() (WlSurface, error) {
	if c.err != nil {
		return nil, c.err
	}
	s := &fakeWlSurface{}
	c.surfaces = append(c.surfaces, s)
	return s, nil
}

func (c *fakeCompositor) CreateRegion() (Region, error) {
	r := &fakeRegion{}
	c.regions = append(c.regions, r)
	return r, nil
}

type fakeLayer struct {
	surface       WlSurface
	output        Output
	layer         Layer
	namespace     string
	width         uint32
	height        uint32
	anchor        Anchor
	zone          int32
	interactivity KeyboardInteractivity
	acks          []uint32
	destroyed     bool
}

func (l *fakeLayer) SetSize(width, height uint32) error {
	l.width, l.height = width, height
	return nil
}

func (l *fakeLayer) SetAnchor(anchor Anchor) error {
	l.anchor = anchor
	return nil
}

func (l *fakeLayer) SetExclusiveZone(zone int32) error {
	l.zone = zone
	return nil
}

func (l *fakeLayer) SetKeyboardInteractivity(interactivity KeyboardInteractivity) error {
	l.interactivity = interactivity
	return nil
}

func (l *fakeLayer) AckConfigure(serial uint32) error {
	l.acks = append(l.acks, serial)
	return nil
}

func (l *fakeLayer) Destroy() error {
	l.destroyed = true
	return nil
}

type fakeLayerShell struct {
	layers []*fakeLayer
}

func (s *fakeLayerShell) GetLayerSurface(surface WlSurface, output Output, layer Layer, namespace string) (LayerSurface, error) {
	l := &fakeLayer{surface: surface, output: output, layer: layer, namespace: namespace}
	s.layers = append(s.layers, l)
	return l, nil
}

type fakeViewport struct {
	width     int32
	height    int32
	destroyed bool
}

func (v *fakeViewport) SetDestination(width, height int32) error {
	v.width, v.height = width, height
	return nil
}

func (v *fakeViewport) Destroy() error {
	v.destroyed = true
	return nil
}

type fakeViewporter struct {
	viewports []*fakeViewport
	err       error
}

func (v *fakeViewporter) GetViewport(surface WlSurface) (Viewport, error) {
	if v.err != nil {
		return nil, v.err
	}
	vp := &fakeViewport{}
	v.viewports = append(v.viewports, vp)
	return vp, nil
}

type fakeOutput struct {
	id OutputID
}

func (o *fakeOutput) ID() OutputID { return o.id }

type fakeDevice struct {
	released int
}

func (d *fakeDevice) Release() error {
	d.released++
	return nil
}

type fakePointer struct {
	fakeDevice
	hidden []uint32
}

func (p *fakePointer) HideCursor(serial uint32) error {
	p.hidden = append(p.hidden, serial)
	return nil
}

type fakeSeat struct {
	keyboards []*fakeDevice
	pointers  []*fakePointer
	touches   []*fakeDevice
	err       error
}

func (s *fakeSeat) GetKeyboard() (Device, error) {
	if s.err != nil {
		return nil, s.err
	}
	d := &fakeDevice{}
	s.keyboards = append(s.keyboards, d)
	return d, nil
}

func (s *fakeSeat) GetPointer() (Pointer, error) {
	if s.err != nil {
		return nil, s.err
	}
	p := &fakePointer{}
	s.pointers = append(s.pointers, p)
	return p, nil
}

func (s *fakeSeat) GetTouch() (Device, error) {
	if s.err != nil {
		return nil, s.err
	}
	d := &fakeDevice{}
	s.touches = append(s.touches, d)
	return d, nil
}

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type fakeEnv struct {
	compositor  *fakeCompositor
	layerShell  *fakeLayerShell
	viewporter  *fakeViewporter
	singlePixel *fakeSinglePixel
	shm         *fakeShm
}

func newFakeEnv(kind BufferKind) *fakeEnv {
	env := &fakeEnv{
		compositor: &fakeCompositor{},
		layerShell: &fakeLayerShell{},
		viewporter: &fakeViewporter{},
	}
	switch kind {
	case BufferKindSinglePixel:
		env.singlePixel = &fakeSinglePixel{}
	case BufferKindShm:
		env.shm = &fakeShm{}
	}
	return env
}

func (e *fakeEnv) globals() Globals {
	g := Globals{
		Compositor: e.compositor,
		LayerShell: e.layerShell,
		Viewporter: e.viewporter,
	}
	if e.singlePixel != nil {
		g.SinglePixel = e.singlePixel
	}
	if e.shm != nil {
		g.Shm = e.shm
	}
	return g
}

func (e *fakeEnv) surfaceEnv() SurfaceEnv {
	return SurfaceEnv{
		Compositor: e.compositor,
		LayerShell: e.layerShell,
		Viewporter: e.viewporter,
	}
}

func newTestBufferManager(t *testing.T, env *fakeEnv) *BufferManager {
	t.Helper()

	m, err := SelectBufferManager(env.globals(), newFakeMemory)
	if err != nil {
		t.Fatalf("SelectBufferManager: %v", err)
	}
	return m
}

func newTestController(t *testing.T, kind BufferKind, opts Options) (*Controller, *fakeEnv, *fakeClock) {
	t.Helper()

	env := newFakeEnv(kind)
	clock := newFakeClock()
	opts.Now = clock.Now

	return NewController(env.globals(), newTestBufferManager(t, env), opts), env, clock
}

// layerFor returns the fake layer surface backing the controller's surface
// for output id.
func layerFor(t *testing.T, c *Controller, id OutputID) *fakeLayer {
	t.Helper()

	s, ok := c.Surface(id)
	if !ok {
		t.Fatalf("no surface for output %d", id)
	}
	return s.layer.(*fakeLayer)
}

func wlFor(t *testing.T, c *Controller, id OutputID) *fakeWlSurface {
	t.Helper()

	s, ok := c.Surface(id)
	if !ok {
		t.Fatalf("no surface for output %d", id)
	}
	return s.wl.(*fakeWlSurface)
}

func sizedInfo(width, height int32) OutputInfo {
	return OutputInfo{Name: "DP-1", LogicalWidth: width, LogicalHeight: height, Scale: 1}
}
