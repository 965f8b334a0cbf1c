// Package shm provides memfd backed shared memory segments for wl_shm pools.
package shm

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var ErrClosed = errors.New("segment closed")

// Segment is an anonymous shared memory file mapped into this process.
type Segment struct {
	fd   int
	data []byte
}

func New(name string, size int) (*Segment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid segment size: %d", size)
	}

	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ftruncate: %w", err)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap: %w", err)
	}

	return &Segment{
		fd:   fd,
		data: data,
	}, nil
}

func (s *Segment) Fd() int {
	return s.fd
}

func (s *Segment) Size() int {
	return len(s.data)
}

// Bytes returns the current mapping. The slice is invalidated by Grow.
func (s *Segment) Bytes() []byte {
	return s.data
}

// Grow enlarges the segment to size bytes and remaps it. Shrinking is not
// supported since the compositor may still read from the tail.
func (s *Segment) Grow(size int) error {
	if s.data == nil {
		return ErrClosed
	}
	if size <= len(s.data) {
		return nil
	}

	if err := unix.Ftruncate(s.fd, int64(size)); err != nil {
		return fmt.Errorf("ftruncate: %w", err)
	}

	data, err := unix.Mmap(s.fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap: %w", err)
	}

	if err := unix.Munmap(s.data); err != nil {
		unix.Munmap(data)
		return fmt.Errorf("munmap: %w", err)
	}
	s.data = data

	return nil
}

func (s *Segment) Close() error {
	if s.data == nil {
		return nil
	}

	err := unix.Munmap(s.data)
	s.data = nil
	return errors.Join(err, unix.Close(s.fd))
}
