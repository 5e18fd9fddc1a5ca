// Package ccutest is meant to be used to test clocks against a fake register
// bank.
package ccutest

import (
	"fmt"
	"sync"
)

// Write is one recorded register write, with the value as written.
type Write struct {
	Off uint32
	Val uint32
}

func (w Write) String() string {
	return fmt.Sprintf("[%#x]=0x%08x", w.Off, w.Val)
}

// Regs implements ccu.Registers in memory.
//
// Modify its members to simulate hardware: SetOnWrite bits appear in a
// register as soon as it is written (a PLL locking instantly), ClearOnWrite
// bits are dropped (an update handshake acknowledged instantly). Set NoRecord
// for long-lived use, such as simulating a CCU in a daemon, where Writes would
// otherwise grow forever.
type Regs struct {
	sync.Mutex
	Mem          map[uint32]uint32
	NoRecord     bool
	Writes       []Write
	Reads        int
	SetOnWrite   map[uint32]uint32
	ClearOnWrite map[uint32]uint32
}

func New() *Regs {
	return &Regs{
		Mem:          make(map[uint32]uint32),
		SetOnWrite:   make(map[uint32]uint32),
		ClearOnWrite: make(map[uint32]uint32),
	}
}

func (r *Regs) Read32(off uint32) uint32 {
	r.Lock()
	defer r.Unlock()
	r.Reads++
	return r.Mem[off]
}

func (r *Regs) Write32(off uint32, v uint32) {
	r.Lock()
	defer r.Unlock()
	if !r.NoRecord {
		r.Writes = append(r.Writes, Write{off, v})
	}
	r.Mem[off] = (v | r.SetOnWrite[off]) &^ r.ClearOnWrite[off]
}

// Poke sets a register without recording a write.
func (r *Regs) Poke(off uint32, v uint32) {
	r.Lock()
	defer r.Unlock()
	r.Mem[off] = v
}

// Peek reads a register without counting a read.
func (r *Regs) Peek(off uint32) uint32 {
	r.Lock()
	defer r.Unlock()
	return r.Mem[off]
}

// WritesTo returns the recorded writes to off, oldest first.
func (r *Regs) WritesTo(off uint32) []Write {
	r.Lock()
	defer r.Unlock()
	var out []Write
	for _, w := range r.Writes {
		if w.Off == off {
			out = append(out, w)
		}
	}
	return out
}

// Order returns the sequence of written offsets, oldest first.
func (r *Regs) Order() []uint32 {
	r.Lock()
	defer r.Unlock()
	out := make([]uint32, len(r.Writes))
	for i, w := range r.Writes {
		out[i] = w.Off
	}
	return out
}

// Reset forgets recorded writes.
func (r *Regs) Reset() {
	r.Lock()
	defer r.Unlock()
	r.Writes = nil
	r.Reads = 0
}
