package main

import (
	"fmt"
	"log"

	"github.com/Jon-Bright/sunxiccu/ccu"
	"github.com/Jon-Bright/sunxiccu/ccu/ccutest"
	"github.com/Jon-Bright/sunxiccu/mmio"
	"github.com/Jon-Bright/sunxiccu/redistrace"
	"github.com/Jon-Bright/sunxiccu/soc"
)

func findSoC() (*soc.SoC, error) {
	if *socName != "" {
		return soc.Lookup(*socName)
	}
	s, err := soc.Detect(*dtbFile)
	if err != nil {
		return nil, fmt.Errorf("couldn't detect SoC, try -soc: %w", err)
	}
	log.Printf("Detected %s", s.Name)
	return s, nil
}

// simulate makes fake registers behave like settled hardware: PLLs report
// lock and update handshakes are acknowledged as soon as they're written.
func simulate(regs *ccutest.Regs, t *ccu.Tree) {
	for _, n := range t.Names() {
		c, err := t.Lookup(n)
		if err != nil {
			continue
		}
		if p, ok := c.(*ccu.NKMP); ok {
			regs.SetOnWrite[p.Reg] |= p.LockMask
			if p.Features&ccu.ClearMod != 0 {
				regs.ClearOnWrite[p.Reg] |= p.Clear
			}
		}
	}
}

// simRegs returns in-memory registers for a daemon that may run for months.
func simRegs() *ccutest.Regs {
	r := ccutest.New()
	r.NoRecord = true
	return r
}

// initClocks maps the clock controller, builds its clock tree and applies
// the startup policy. The returned func releases what initClocks acquired.
func initClocks() (*ccu.Tree, func(), error) {
	s, err := findSoC()
	if err != nil {
		return nil, nil, err
	}

	var closers []func() error
	done := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Printf("Error during shutdown: %v", err)
			}
		}
		closers = nil
	}

	var regs ccu.Registers
	var fake *ccutest.Regs
	if *memFile == "" {
		log.Printf("Simulating %s registers in memory", s.Name)
		fake = simRegs()
		regs = fake
	} else {
		w, err := mmio.Open(*memFile, s.Base, s.Size)
		if err != nil {
			return nil, nil, fmt.Errorf("couldn't map %s CCU at %08X: %w", s.Name, s.Base, err)
		}
		closers = append(closers, w.Close)
		regs = w
	}
	b := ccu.NewBank(regs)

	if *redisAddr != "" {
		tr, err := redistrace.Dial(*redisAddr)
		if err != nil {
			done()
			return nil, nil, err
		}
		closers = append(closers, tr.Close)
		b.Tracer = tr
	}

	t, err := s.Tree(b, soc.Options{DisableUnused: *disableUnused, Cached: *cacheRates})
	if err != nil {
		done()
		return nil, nil, err
	}
	if fake != nil {
		simulate(fake, t)
	}
	return t, done, nil
}
