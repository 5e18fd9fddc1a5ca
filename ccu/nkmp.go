package ccu

import "fmt"

// NKMP is a clock whose output is parent * N * K / (M * P), optionally
// followed by a fixed post-divider. Every PLL and module-clock family is an
// NKMP with some factors left at zero width.
type NKMP struct {
	Common

	N, K, M, P Factor

	// PReg is the offset of a separate register holding P. Zero means P
	// sits in Reg with the other factors: offset 0 is always a PLL's own
	// control register, never somebody's external P.
	PReg uint32

	EnableMask uint32 // gate bits in Reg
	LockMask   uint32 // PLL lock status bits in Reg

	FixedPostDiv uint64
	MaxRate      uint64
}

// NewNM builds a PLL without K and P.
func NewNM(c Common, n, m Factor, enable, lock uint32) *NKMP {
	return &NKMP{Common: c, N: n, M: m, EnableMask: enable, LockMask: lock}
}

// NewNK builds a PLL without dividers.
func NewNK(c Common, n, k Factor, enable, lock uint32) *NKMP {
	return &NKMP{Common: c, N: n, K: k, EnableMask: enable, LockMask: lock}
}

// NewNKM builds a PLL without the power-of-two divider.
func NewNKM(c Common, n, k, m Factor, enable, lock uint32) *NKMP {
	return &NKMP{Common: c, N: n, K: k, M: m, EnableMask: enable, LockMask: lock}
}

// NewMP builds a module clock: a linear divider followed by a power-of-two
// one, no lock bit.
func NewMP(c Common, m, p Factor, enable uint32) *NKMP {
	return &NKMP{Common: c, M: m, P: p, EnableMask: enable}
}

// NewDiv builds a plain linear divider.
func NewDiv(c Common, m Factor, enable uint32) *NKMP {
	return &NKMP{Common: c, M: m, EnableMask: enable}
}

// NewMult builds a plain multiplier.
func NewMult(c Common, n Factor, enable, lock uint32) *NKMP {
	return &NKMP{Common: c, N: n, EnableMask: enable, LockMask: lock}
}

func (c *NKMP) Name() string { return c.Common.Name }

func (c *NKMP) bounds() bounds {
	var b bounds
	b.minN, b.maxN = c.N.linear()
	b.minK, b.maxK = c.K.linear()
	b.minM, b.maxM = c.M.linear()
	b.minP, b.maxP = c.P.pow2()
	return b
}

func (c *NKMP) postDiv() uint64 {
	if c.Features&FixedPostDiv != 0 && c.FixedPostDiv > 1 {
		return c.FixedPostDiv
	}
	return 1
}

func (c *NKMP) factorMask() uint32 {
	return c.N.mask() | c.K.mask() | c.M.mask() | c.P.mask()
}

// read decodes the factors currently programmed.
func (c *NKMP) read() Factors {
	reg := c.Bank.Read(c.Reg)
	f := Factors{
		N: c.N.value(reg),
		K: c.K.value(reg),
		M: c.M.value(reg),
	}
	preg := reg
	if c.PReg != 0 {
		preg = c.Bank.Read(c.PReg)
	}
	f.P = pow2Value(c.P.field(preg))
	return f
}

// Recalc reports the rate the hardware currently produces from parent. If a
// sigma-delta table is attached it also re-applies the modulation pattern,
// see RefreshModulation.
func (c *NKMP) Recalc(parent uint64) uint64 {
	f := c.read()
	rate := CalcRate(parent, f.N, f.K, f.M, f.P) / c.postDiv()
	if c.modulated() {
		c.refreshModulation(f)
	}
	return rate
}

// Round reports what SetRate(rate, parent) would produce without touching
// the hardware.
func (c *NKMP) Round(rate, parent uint64) (uint64, error) {
	pd := c.postDiv()
	rate *= pd
	if c.MaxRate != 0 && rate > c.MaxRate {
		return c.MaxRate / pd, nil
	}
	f, err := c.findBest(parent, rate, c.bounds())
	if err != nil {
		return 0, err
	}
	return CalcRate(parent, f.N, f.K, f.M, f.P) / pd, nil
}

// latch writes the PLL register, with the update handshake when the clock
// needs one. The bank lock must be held.
func (c *NKMP) latch(v uint32) {
	b := c.Bank
	if c.Features&ClearMod == 0 {
		b.regs.Write32(c.Reg, v)
		return
	}
	b.regs.Write32(c.Reg, v|c.Clear)
	b.waitClear(c.Common.Name, c.Reg, c.Clear, b.ClearTimeout)
}

// SetRate programs the factors closest from below to rate. The register
// transaction runs under the bank lock; the lock-bit wait runs after it.
// Handshake and lock timeouts are logged, never returned.
func (c *NKMP) SetRate(rate, parent uint64) error {
	rate *= c.postDiv()
	if c.MaxRate != 0 && rate > c.MaxRate {
		rate = c.MaxRate
	}
	f, err := c.findBest(parent, rate, c.bounds())
	if err != nil {
		return err
	}

	b := c.Bank
	newP := ilog2(f.P)

	b.mu.Lock()
	reg := b.regs.Read32(c.Reg) &^ c.factorMask()
	reg |= c.N.encode(f.N)
	reg |= c.K.encode(f.K)
	reg |= c.M.encode(f.M)
	if c.PReg == 0 {
		reg |= c.P.put(newP)
		c.latch(reg)
	} else {
		preg := b.regs.Read32(c.PReg)
		curP := c.P.field(preg)
		preg = preg&^c.P.mask() | c.P.put(newP)
		if newP > curP {
			// Slowing down: divide first so the output never overshoots.
			b.regs.Write32(c.PReg, preg)
			c.latch(reg)
		} else {
			c.latch(reg)
			b.regs.Write32(c.PReg, preg)
		}
	}
	if c.modulated() {
		c.applyModulation(f)
	}
	b.mu.Unlock()

	b.waitSet(c.Common.Name, c.Reg, c.LockMask, b.LockTimeout)

	b.trace(Event{
		Clock: c.Common.Name,
		Op:    "set_rate",
		Reg:   c.Reg,
		Value: b.regs.Read32(c.Reg),
		Rate:  CalcRate(parent, f.N, f.K, f.M, f.P) / c.postDiv(),
	})
	return nil
}

func (c *NKMP) Enable() error {
	c.Bank.gateEnable(c.Common.Name, c.Reg, c.EnableMask)
	return nil
}

func (c *NKMP) Disable() {
	c.Bank.gateDisable(c.Common.Name, c.Reg, c.EnableMask)
}

func (c *NKMP) IsEnabled() bool {
	return c.Bank.gateIsEnabled(c.Reg, c.EnableMask)
}

// Init switches unused gates off when the policy asks for it.
func (c *NKMP) Init() {
	if c.Features&InitGate == 0 || c.Critical || !c.DisableUnusedAtInit {
		return
	}
	c.Disable()
}

func (c *NKMP) String() string {
	return fmt.Sprintf("%s(reg %s, %s)", c.Common.Name, hex32(c.Reg), c.Features)
}
