package ccu

import "fmt"

// Gate passes its parent's rate through and can only be switched on or off.
type Gate struct {
	Common
	EnableMask uint32
}

func NewGate(c Common, enable uint32) *Gate {
	return &Gate{Common: c, EnableMask: enable}
}

func (g *Gate) Name() string { return g.Common.Name }

func (g *Gate) Recalc(parent uint64) uint64 { return parent }

// passThrough rounds rate for a clock that can only ever run at have. Like
// the factor search it rounds down, so any request at or above have is met.
func passThrough(name string, rate, have uint64) (uint64, error) {
	if rate < have {
		return 0, fmt.Errorf("%s: %d Hz, runs at %d Hz: %w", name, rate, have, ErrUnachievableRate)
	}
	return have, nil
}

func (g *Gate) Round(rate, parent uint64) (uint64, error) {
	return passThrough(g.Common.Name, rate, parent)
}

// SetRate never touches hardware: a gate can't divide.
func (g *Gate) SetRate(rate, parent uint64) error {
	_, err := passThrough(g.Common.Name, rate, parent)
	return err
}

func (g *Gate) Enable() error {
	g.Bank.gateEnable(g.Common.Name, g.Reg, g.EnableMask)
	return nil
}

func (g *Gate) Disable() {
	g.Bank.gateDisable(g.Common.Name, g.Reg, g.EnableMask)
}

func (g *Gate) IsEnabled() bool {
	return g.Bank.gateIsEnabled(g.Reg, g.EnableMask)
}

func (g *Gate) Init() {
	if g.Features&InitGate == 0 || g.Critical || !g.DisableUnusedAtInit {
		return
	}
	g.Disable()
}

// Fixed is a free-running source such as the 24MHz crystal.
type Fixed struct {
	name string
	rate uint64
}

func NewFixed(name string, rate uint64) *Fixed {
	return &Fixed{name, rate}
}

func (f *Fixed) Name() string         { return f.name }
func (f *Fixed) ParentName() string   { return "" }
func (f *Fixed) Recalc(uint64) uint64 { return f.rate }
func (f *Fixed) Enable() error        { return nil }
func (f *Fixed) Disable()             {}
func (f *Fixed) IsEnabled() bool      { return true }
func (f *Fixed) Init()                {}

func (f *Fixed) Round(rate, parent uint64) (uint64, error) {
	return passThrough(f.name, rate, f.rate)
}

func (f *Fixed) SetRate(rate, parent uint64) error {
	_, err := passThrough(f.name, rate, f.rate)
	return err
}
