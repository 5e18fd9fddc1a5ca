package soc

import "github.com/Jon-Bright/sunxiccu/ccu"

// Fractional audio rates reached by sigma-delta modulation.
var h6AudioSDM = []ccu.SDMSetting{
	{Rate: 541900800, Pattern: 0xc001288d, N: 22, M: 1},
	{Rate: 589824000, Pattern: 0xc00126e9, N: 24, M: 1},
}

func h6Clocks(b *ccu.Bank, o Options) []ccu.Clock {
	// P sits in the CPUX/AXI configuration register.
	cpux := &ccu.NKMP{
		Common:     o.common("pll-cpux", "osc24M", b, 0x000, ccu.TypeNKMP),
		N:          ccu.MultMin(8, 8, 12),
		P:          ccu.Pow2(16, 2),
		PReg:       0x500,
		EnableMask: pllEnable,
		LockMask:   pllLock,
		MaxRate:    1800000000,
	}
	cpux.Critical = true

	ddr0 := ccu.NewNM(o.common("pll-ddr0", "osc24M", b, 0x010, 0),
		ccu.MultMin(8, 8, 12), ccu.Div(1, 1), pllEnable, pllLock)
	ddr0.Critical = true

	ac := o.common("pll-audio", "osc24M", b, 0x078, ccu.SigmaDeltaMod)
	ac.SDM = &ccu.SDM{
		Table:        h6AudioSDM,
		Enable:       1 << 24,
		PatternReg:   0x178,
		TuningReg:    0x178,
		TuningEnable: 1 << 31,
	}
	audio := ccu.NewNM(ac, ccu.MultMin(8, 8, 12), ccu.Div(1, 1), pllEnable, pllLock)

	return []ccu.Clock{
		cpux,
		ddr0,
		audio,
		ccu.NewGate(o.common("bus-mmc0", "osc24M", b, 0x84c, ccu.InitGate), 1<<0),
	}
}
