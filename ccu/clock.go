package ccu

import "fmt"

// Clock is what the clock tree calls into. Every family (PLLs, dividers,
// gates, fixed sources) implements it.
type Clock interface {
	Name() string
	ParentName() string

	// Recalc returns the current output rate for the given parent rate.
	Recalc(parent uint64) uint64
	// Round returns the rate SetRate would produce, without side effects.
	Round(rate, parent uint64) (uint64, error)
	SetRate(rate, parent uint64) error

	Enable() error
	Disable()
	IsEnabled() bool

	// Init runs once when the clock is registered.
	Init()
}

// Dumper is implemented by clocks backed by a control register.
type Dumper interface {
	Dump() uint32
}

func hex32(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}
