// Package mmio maps a window of physical registers into our address space
// through /dev/mem.
package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	mmap "github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

const MEM_FILE = "/dev/mem"

// Window is a mapped register range. Offsets passed to Read32 and Write32
// are relative to the physical address given to Open.
type Window struct {
	buf  mmap.MMap
	offs uintptr
	size int
}

// Open maps size bytes of file starting at physAddr. Since the mapping has
// to start at a page boundary, the physical address is rounded down to the
// nearest page and the difference is remembered as an offset.
func Open(file string, physAddr uintptr, size int) (*Window, error) {
	if physAddr&3 != 0 {
		return nil, fmt.Errorf("physical address %08X isn't 32-bit aligned", physAddr)
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid window size %d", size)
	}
	f, err := os.OpenFile(file, os.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("couldn't open %s: %w", file, err)
	}
	defer f.Close() // The mapping outlives the descriptor

	pageSize := uintptr(unix.Getpagesize())
	mapAddr := physAddr &^ (pageSize - 1)
	offs := physAddr - mapAddr
	mm, err := mmap.MapRegion(f, size+int(offs), mmap.RDWR, 0, int64(mapAddr))
	if err != nil {
		return nil, fmt.Errorf("couldn't map region (%08X, %v): %w", physAddr, size, err)
	}
	return &Window{buf: mm, offs: offs, size: size}, nil
}

func (w *Window) reg(off uint32) *uint32 {
	if off&3 != 0 || int(off)+4 > w.size {
		panic(fmt.Sprintf("mmio: register offset %#x outside %d byte window", off, w.size))
	}
	return (*uint32)(unsafe.Pointer(&w.buf[w.offs+uintptr(off)]))
}

// Read32 reads one register. Loads are atomic so the compiler can neither
// merge nor tear them.
func (w *Window) Read32(off uint32) uint32 {
	return atomic.LoadUint32(w.reg(off))
}

func (w *Window) Write32(off uint32, v uint32) {
	atomic.StoreUint32(w.reg(off), v)
}

// Size returns the usable length of the window in bytes.
func (w *Window) Size() int {
	return w.size
}

func (w *Window) Close() error {
	if w.buf == nil {
		return nil
	}
	err := w.buf.Unmap()
	w.buf = nil
	if err != nil {
		return fmt.Errorf("couldn't unmap: %w", err)
	}
	return nil
}
