package ccu

import (
	"sync"
	"time"

	"github.com/platinasystems/log"
)

const (
	// DefaultLockTimeout bounds the wait for a PLL to report lock.
	DefaultLockTimeout = 70000 * time.Microsecond
	// DefaultClearTimeout bounds the wait for an update handshake bit.
	DefaultClearTimeout = 100 * time.Microsecond
)

// warn receives hardware warnings, with a leading priority word.
var warn = func(args ...interface{}) { log.Print(args...) }

// Registers is a window of 32-bit control registers addressed by byte
// offset. It is satisfied by *mmio.Window and by ccutest.Regs.
type Registers interface {
	Read32(off uint32) uint32
	Write32(off uint32, v uint32)
}

// Event is what a Tracer gets after a clock changed hardware state.
type Event struct {
	Clock string
	Op    string
	Reg   uint32 // register offset
	Value uint32 // register contents after the change
	Rate  uint64
}

// Tracer receives an Event for every committed change. It is called outside
// the bank lock.
type Tracer interface {
	Trace(ev Event)
}

// Bank is a register window together with the lock serialising every
// read-modify-write on it. Clocks whose registers alias or interact must be
// built on the same *Bank.
type Bank struct {
	mu   sync.Mutex
	regs Registers

	Tracer       Tracer
	LockTimeout  time.Duration
	ClearTimeout time.Duration
}

func NewBank(regs Registers) *Bank {
	return &Bank{
		regs:         regs,
		LockTimeout:  DefaultLockTimeout,
		ClearTimeout: DefaultClearTimeout,
	}
}

// Read returns a register without taking the lock.
func (b *Bank) Read(off uint32) uint32 {
	return b.regs.Read32(off)
}

func (b *Bank) trace(ev Event) {
	if b.Tracer != nil {
		b.Tracer.Trace(ev)
	}
}

// waitSet spins until all bits of mask read back set in reg, or until the
// timeout expires. A timeout is logged and otherwise ignored: the write has
// already happened and there's nothing to roll back to.
func (b *Bank) waitSet(name string, reg, mask uint32, timeout time.Duration) bool {
	if mask == 0 {
		return true
	}
	start := time.Now()
	i := 0
	for b.regs.Read32(reg)&mask != mask {
		i++
		if time.Since(start) > timeout {
			warn("warn", "ccu: ", name, ": timed out after ", i, " polls waiting for bits ", hex32(mask), " to set in reg ", hex32(reg))
			return false
		}
	}
	return true
}

// waitClear spins until all bits of mask read back clear in reg. Same
// failure policy as waitSet.
func (b *Bank) waitClear(name string, reg, mask uint32, timeout time.Duration) bool {
	if mask == 0 {
		return true
	}
	start := time.Now()
	i := 0
	for b.regs.Read32(reg)&mask != 0 {
		i++
		if time.Since(start) > timeout {
			warn("warn", "ccu: ", name, ": timed out after ", i, " polls waiting for bits ", hex32(mask), " to clear in reg ", hex32(reg))
			return false
		}
	}
	return true
}

func (b *Bank) gateEnable(name string, reg, mask uint32) {
	if mask == 0 {
		return
	}
	b.mu.Lock()
	v := b.regs.Read32(reg) | mask
	b.regs.Write32(reg, v)
	b.mu.Unlock()
	b.trace(Event{Clock: name, Op: "enable", Reg: reg, Value: v})
}

func (b *Bank) gateDisable(name string, reg, mask uint32) {
	if mask == 0 {
		return
	}
	b.mu.Lock()
	v := b.regs.Read32(reg) &^ mask
	b.regs.Write32(reg, v)
	b.mu.Unlock()
	b.trace(Event{Clock: name, Op: "disable", Reg: reg, Value: v})
}

// gateIsEnabled reports whether all bits of mask are set. A clock without a
// gate is always on.
func (b *Bank) gateIsEnabled(reg, mask uint32) bool {
	if mask == 0 {
		return true
	}
	return b.regs.Read32(reg)&mask == mask
}
