package dim

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

var ErrNoBufferMechanism = errors.New("compositor supports neither wp_single_pixel_buffer_manager_v1 nor wl_shm")

const (
	pixelSize = 4
	// wl_shm.format argb8888
	shmFormatArgb8888 = 0
	// slots allocated up front: two buffers for each of a few outputs
	initialSlots = 8
)

type BufferKind int

const (
	BufferKindSinglePixel BufferKind = iota
	BufferKindShm
)

func (k BufferKind) String() string {
	switch k {
	case BufferKindSinglePixel:
		return "single-pixel"
	case BufferKindShm:
		return "shm"
	default:
		return "unknown"
	}
}

// Buffer is a 1x1 black buffer. Native is set for BufferKindSinglePixel and
// Pooled for BufferKindShm.
type Buffer struct {
	Kind   BufferKind
	Native BufferHandle
	Pooled *PooledBuffer
}

func (b Buffer) Handle() BufferHandle {
	switch b.Kind {
	case BufferKindSinglePixel:
		return b.Native
	case BufferKindShm:
		return b.Pooled.handle
	default:
		return nil
	}
}

func (b Buffer) Release() error {
	switch b.Kind {
	case BufferKindSinglePixel:
		if b.Native == nil {
			return nil
		}
		return b.Native.Destroy()
	case BufferKindShm:
		if b.Pooled == nil {
			return nil
		}
		return b.Pooled.release()
	default:
		return nil
	}
}

// PooledBuffer is one pixel slot inside the shared memory pool.
type PooledBuffer struct {
	pool     *slotPool
	slot     int
	handle   BufferHandle
	released bool
}

// Canvas returns the writable pixel bytes of the slot.
func (p *PooledBuffer) Canvas() []byte {
	return p.pool.canvas(p.slot)
}

func (p *PooledBuffer) release() error {
	if p.released {
		return nil
	}
	p.released = true
	err := p.handle.Destroy()
	p.pool.free = append(p.pool.free, p.slot)
	return err
}

type slotPool struct {
	memory Memory
	pool   ShmPool
	free   []int
	next   int
}

func newSlotPool(shm Shm, newMemory MemoryAllocator) (*slotPool, error) {
	memory, err := newMemory(initialSlots * pixelSize)
	if err != nil {
		return nil, fmt.Errorf("allocate shared memory: %w", err)
	}

	pool, err := shm.CreatePool(memory.Fd(), int32(memory.Size()))
	if err != nil {
		memory.Close()
		return nil, fmt.Errorf("create shm pool: %w", err)
	}

	return &slotPool{
		memory: memory,
		pool:   pool,
	}, nil
}

func (p *slotPool) canvas(slot int) []byte {
	offset := slot * pixelSize
	return p.memory.Bytes()[offset : offset+pixelSize]
}

func (p *slotPool) alloc() (*PooledBuffer, error) {
	var slot int
	if n := len(p.free); n > 0 {
		slot = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		if (p.next+1)*pixelSize > p.memory.Size() {
			size := p.memory.Size() * 2
			if err := p.memory.Grow(size); err != nil {
				return nil, fmt.Errorf("grow shared memory: %w", err)
			}
			if err := p.pool.Resize(int32(size)); err != nil {
				return nil, fmt.Errorf("resize shm pool: %w", err)
			}
			slog.Debug("Grew shm pool", "size", size)
		}
		slot = p.next
		p.next++
	}

	handle, err := p.pool.CreateBuffer(int32(slot*pixelSize), 1, 1, pixelSize, shmFormatArgb8888)
	if err != nil {
		p.free = append(p.free, slot)
		return nil, fmt.Errorf("create shm buffer: %w", err)
	}

	return &PooledBuffer{
		pool:   p,
		slot:   slot,
		handle: handle,
	}, nil
}

func (p *slotPool) close() error {
	return errors.Join(p.pool.Destroy(), p.memory.Close())
}

// BufferManager produces black 1x1 buffers with the mechanism selected at
// startup.
type BufferManager struct {
	kind        BufferKind
	singlePixel SinglePixelBufferManager
	shm         *slotPool
}

// SelectBufferManager prefers single pixel buffers and falls back to a wl_shm
// pool.
func SelectBufferManager(globals Globals, newMemory MemoryAllocator) (*BufferManager, error) {
	if globals.SinglePixel != nil {
		return &BufferManager{
			kind:        BufferKindSinglePixel,
			singlePixel: globals.SinglePixel,
		}, nil
	}

	if globals.Shm != nil {
		pool, err := newSlotPool(globals.Shm, newMemory)
		if err != nil {
			return nil, err
		}
		return &BufferManager{
			kind: BufferKindShm,
			shm:  pool,
		}, nil
	}

	return nil, ErrNoBufferMechanism
}

func (m *BufferManager) Kind() BufferKind {
	return m.kind
}

// GetBuffer returns a new black buffer at the given opacity.
func (m *BufferManager) GetBuffer(alpha float64) (Buffer, error) {
	switch m.kind {
	case BufferKindSinglePixel:
		// colour channels are pre-multiplied, black stays 0
		handle, err := m.singlePixel.CreateU32RGBABuffer(0, 0, 0, AlphaU32(alpha))
		if err != nil {
			return Buffer{}, fmt.Errorf("create single pixel buffer: %w", err)
		}
		return Buffer{Kind: BufferKindSinglePixel, Native: handle}, nil
	case BufferKindShm:
		pooled, err := m.shm.alloc()
		if err != nil {
			return Buffer{}, err
		}
		Paint(pooled.Canvas(), alpha)
		return Buffer{Kind: BufferKindShm, Pooled: pooled}, nil
	default:
		return Buffer{}, fmt.Errorf("unknown buffer kind: %d", m.kind)
	}
}

func (m *BufferManager) Close() error {
	switch m.kind {
	case BufferKindShm:
		return m.shm.close()
	default:
		return nil
	}
}

// Paint writes a black ARGB8888 pixel in little-endian byte order.
func Paint(canvas []byte, alpha float64) {
	canvas[0] = 0
	canvas[1] = 0
	canvas[2] = 0
	canvas[3] = AlphaU8(alpha)
}

func clampUnit(alpha float64) float64 {
	if alpha > 1 {
		return 1
	}
	if alpha > 0 {
		return alpha
	}
	// NaN and negatives
	return 0
}

func AlphaU32(alpha float64) uint32 {
	return uint32(math.Floor(clampUnit(alpha) * math.MaxUint32))
}

func AlphaU8(alpha float64) uint8 {
	return uint8(math.Floor(clampUnit(alpha) * math.MaxUint8))
}
