package soc

import "github.com/Jon-Bright/sunxiccu/ccu"

const (
	a523Update = 1 << 27
	a523Enable = 1<<31 | 1<<30 // PLL and its LDO
)

func a523PLL(b *ccu.Bank, o Options, name string, reg uint32) *ccu.NKMP {
	c := o.common(name, "osc24M", b, reg, ccu.ClearMod)
	c.Clear = a523Update
	return ccu.NewNM(c, ccu.MultMin(8, 8, 12), ccu.Div(1, 1), a523Enable, pllLock)
}

func a523Clocks(b *ccu.Bank, o Options) []ccu.Clock {
	ddr0 := a523PLL(b, o, "pll-ddr0", 0x010)
	ddr0.Critical = true
	return []ccu.Clock{
		ddr0,
		a523PLL(b, o, "pll-gpu", 0x030),
		a523PLL(b, o, "pll-ve", 0x058),
		ccu.NewGate(o.common("bus-mmc0", "osc24M", b, 0x84c, ccu.InitGate), 1<<0),
	}
}
