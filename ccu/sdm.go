package ccu

// SDMSetting is one fractional rate a PLL reaches through sigma-delta
// modulation of the integer factors N and M.
type SDMSetting struct {
	Rate    uint64
	Pattern uint32
	N, M    uint32
}

// SDM describes the sigma-delta modulator attached to a PLL.
type SDM struct {
	Table []SDMSetting

	Enable     uint32 // bit in the PLL's own register
	PatternReg uint32 // where the modulation pattern goes

	TuningReg    uint32 // register shared by all modulated PLLs
	TuningEnable uint32
}

func (s *SDM) lookup(f Factors) (SDMSetting, bool) {
	for _, e := range s.Table {
		if e.N == f.N && e.M == f.M {
			return e, true
		}
	}
	return SDMSetting{}, false
}

// RefreshModulation re-applies the modulation pattern matching the factors
// currently programmed. Unlike a pure read it writes hardware: pattern, PLL
// enable bit and tuning enable bit. It reports whether modulation is on.
func (c *NKMP) RefreshModulation() bool {
	if !c.modulated() {
		return false
	}
	return c.refreshModulation(c.read())
}

func (c *NKMP) modulated() bool {
	return c.SDM != nil && c.Features&SigmaDeltaMod != 0
}

func (c *NKMP) refreshModulation(f Factors) bool {
	c.Bank.mu.Lock()
	defer c.Bank.mu.Unlock()
	return c.applyModulation(f)
}

// applyModulation must be called with the bank lock held.
func (c *NKMP) applyModulation(f Factors) bool {
	s := c.SDM
	regs := c.Bank.regs
	e, ok := s.lookup(f)
	if !ok {
		if v := regs.Read32(c.Reg); v&s.Enable != 0 {
			c.latch(v &^ s.Enable)
		}
		return false
	}
	regs.Write32(s.PatternReg, e.Pattern)
	if s.TuningEnable != 0 {
		regs.Write32(s.TuningReg, regs.Read32(s.TuningReg)|s.TuningEnable)
	}
	if v := regs.Read32(c.Reg); v&s.Enable != s.Enable {
		c.latch(v | s.Enable)
	}
	return true
}
