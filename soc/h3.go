package soc

import "github.com/Jon-Bright/sunxiccu/ccu"

const (
	pllEnable = 1 << 31
	pllLock   = 1 << 28
)

func h3Clocks(b *ccu.Bank, o Options) []ccu.Clock {
	cpux := &ccu.NKMP{
		Common:     o.common("pll-cpux", "osc24M", b, 0x000, ccu.TypeNKMP),
		N:          ccu.Mult(8, 5),
		K:          ccu.Mult(4, 2),
		M:          ccu.Div(0, 2),
		P:          ccu.Factor{Shift: 16, Width: 2, Max: 4},
		EnableMask: pllEnable,
		LockMask:   pllLock,
	}
	cpux.Critical = true

	ddr := ccu.NewNKM(o.common("pll-ddr", "osc24M", b, 0x020, 0),
		ccu.Mult(8, 5), ccu.Mult(4, 2), ccu.Div(0, 2), pllEnable, pllLock)
	ddr.Critical = true

	periph0 := ccu.NewNK(o.common("pll-periph0", "osc24M", b, 0x028, ccu.FixedPostDiv),
		ccu.Mult(8, 5), ccu.Mult(4, 2), pllEnable, pllLock)
	periph0.FixedPostDiv = 2
	periph0.Critical = true

	return []ccu.Clock{
		cpux,
		ddr,
		ccu.NewNM(o.common("pll-ve", "osc24M", b, 0x018, 0),
			ccu.Mult(8, 7), ccu.Div(0, 4), pllEnable, pllLock),
		periph0,
		ccu.NewMP(o.common("mmc0", "pll-periph0", b, 0x088, ccu.InitGate),
			ccu.Div(0, 4), ccu.Pow2(16, 2), 1<<31),
		// ahb1 isn't modelled; bus gates hang off its usual source.
		ccu.NewGate(o.common("bus-mmc0", "pll-periph0", b, 0x060, ccu.InitGate), 1<<8),
	}
}
