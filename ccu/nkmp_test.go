package ccu

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Jon-Bright/sunxiccu/ccu/ccutest"
)

const (
	osc24M   = 24000000
	pllReg   = 0x10
	cpuPReg  = 0x500
	lockBit  = 1 << 28
	gateBit  = 1 << 31
	clearBit = 1 << 27
)

// newPLL returns an H3-style pll-cpux: N 5 bits, K 2 bits, M 2 bits, P 2 bits
// all in one register, locking as soon as it is written.
func newPLL(regs *ccutest.Regs) *NKMP {
	regs.SetOnWrite[pllReg] = lockBit
	return &NKMP{
		Common: Common{
			Name:     "pll-test",
			Parent:   "osc24M",
			Bank:     NewBank(regs),
			Reg:      pllReg,
			Features: TypeNKMP,
		},
		N:          Mult(8, 5),
		K:          Mult(4, 2),
		M:          Div(0, 2),
		P:          Pow2(16, 2),
		EnableMask: gateBit,
		LockMask:   lockBit,
	}
}

// newCPUPLL returns a PLL whose P lives in a separate register.
func newCPUPLL(regs *ccutest.Regs) *NKMP {
	regs.SetOnWrite[0] = lockBit
	return &NKMP{
		Common: Common{
			Name:     "pll-cpu",
			Parent:   "osc24M",
			Bank:     NewBank(regs),
			Reg:      0,
			Features: TypeNKMP,
		},
		N:          MultMin(8, 8, 12),
		P:          Pow2(16, 2),
		PReg:       cpuPReg,
		EnableMask: gateBit,
		LockMask:   lockBit,
	}
}

// captureLog collects hardware warnings for the duration of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	buf := new(bytes.Buffer)
	old := warn
	warn = func(args ...interface{}) {
		fmt.Fprintln(buf, args...)
	}
	t.Cleanup(func() { warn = old })
	return buf
}

func TestSetRateRegisterValue(t *testing.T) {
	regs := ccutest.New()
	c := newPLL(regs)
	if err := c.SetRate(1200000000, osc24M); err != nil {
		t.Fatalf("SetRate failed: %v", err)
	}
	w := regs.WritesTo(pllReg)
	if len(w) != 1 {
		t.Fatalf("got %d writes, want 1: %v", len(w), w)
	}
	// N=25 (raw 24), K=2 (raw 1), M=1, P=1.
	if want := uint32(24<<8 | 1<<4); w[0].Val != want {
		t.Errorf("written value, got: %#08x, want: %#08x", w[0].Val, want)
	}
	if got := c.Recalc(osc24M); got != 1200000000 {
		t.Errorf("Recalc, got: %d, want: 1200000000", got)
	}
}

func TestSetRatePreservesOtherBits(t *testing.T) {
	regs := ccutest.New()
	c := newPLL(regs)
	regs.Poke(pllReg, gateBit|0x00f0f3ff)
	if err := c.SetRate(600000000, osc24M); err != nil {
		t.Fatalf("SetRate failed: %v", err)
	}
	got := regs.Peek(pllReg)
	if got&gateBit == 0 {
		t.Errorf("gate bit lost: %#08x", got)
	}
	if got&0x00f00000 != 0x00f00000 {
		t.Errorf("unrelated bits lost: %#08x", got)
	}
}

func TestRoundMatchesRecalcAfterSetRate(t *testing.T) {
	targets := []uint64{
		60000000, 297000000, 408000000, 600000000, 816000000,
		1008000000, 1200000000, 1234567890, 2000000000,
	}
	for _, target := range targets {
		regs := ccutest.New()
		c := newPLL(regs)
		want, err := c.Round(target, osc24M)
		if err != nil {
			t.Errorf("%d: Round failed: %v", target, err)
			continue
		}
		if err := c.SetRate(target, osc24M); err != nil {
			t.Errorf("%d: SetRate failed: %v", target, err)
			continue
		}
		if got := c.Recalc(osc24M); got != want {
			t.Errorf("%d: Recalc after SetRate, got: %d, want: %d", target, got, want)
		}
		if want > target {
			t.Errorf("%d: Round above target: %d", target, want)
		}
	}
}

func TestZeroWidthFactorsLeaveRegisterAlone(t *testing.T) {
	regs := ccutest.New()
	c := NewNM(Common{Name: "pll-nm", Bank: NewBank(regs), Reg: 0x18}, Mult(8, 7), Div(0, 4), gateBit, 0)
	// Bits 4-7 and 16-23 belong to no factor of this clock.
	regs.Poke(0x18, 0x00ff00f0)
	if err := c.SetRate(297000000, osc24M); err != nil {
		t.Fatalf("SetRate failed: %v", err)
	}
	if got := regs.Peek(0x18); got&0x00ff00f0 != 0x00ff00f0 {
		t.Errorf("register, got: %#08x, want bits 0x00ff00f0 kept", got)
	}
	if got := c.Recalc(osc24M); got != 297000000 {
		t.Errorf("Recalc, got: %d, want: 297000000", got)
	}
}

func TestPRegOrdering(t *testing.T) {
	regs := ccutest.New()
	c := newCPUPLL(regs)

	tests := []struct {
		name  string
		rate  uint64
		order []uint32
		p     uint32 // expected raw P field afterwards
	}{
		// 300MHz is N=25, P=2: P goes up, so it is written first.
		{"slowing", 300000000, []uint32{cpuPReg, 0}, 1},
		// 1.2GHz is N=50, P=1: P goes down, written last.
		{"speeding", 1200000000, []uint32{0, cpuPReg}, 0},
		// Same P: N/K/M first.
		{"same-p", 1200000000, []uint32{0, cpuPReg}, 0},
	}
	for _, test := range tests {
		regs.Reset()
		if err := c.SetRate(test.rate, osc24M); err != nil {
			t.Fatalf("%s: SetRate failed: %v", test.name, err)
		}
		got := regs.Order()
		if len(got) != len(test.order) {
			t.Errorf("%s: write order, got: %v, want: %v", test.name, got, test.order)
			continue
		}
		for i := range got {
			if got[i] != test.order[i] {
				t.Errorf("%s: write order, got: %v, want: %v", test.name, got, test.order)
				break
			}
		}
		if p := c.P.field(regs.Peek(cpuPReg)); p != test.p {
			t.Errorf("%s: P field, got: %d, want: %d", test.name, p, test.p)
		}
		if c.P.field(regs.Peek(0)) != 0 {
			t.Errorf("%s: P leaked into the N register: %#08x", test.name, regs.Peek(0))
		}
		if r := c.Recalc(osc24M); r != test.rate {
			t.Errorf("%s: Recalc, got: %d, want: %d", test.name, r, test.rate)
		}
	}
}

func TestFixedPostDivSymmetry(t *testing.T) {
	regs := ccutest.New()
	c := NewNK(Common{Name: "pll-periph0", Bank: NewBank(regs), Reg: 0x28, Features: FixedPostDiv}, Mult(8, 5), Mult(4, 2), gateBit, lockBit)
	c.FixedPostDiv = 2
	regs.SetOnWrite[0x28] = lockBit

	for _, r := range []uint64{600000000, 300000000, 123456789, 1000000000} {
		got, err := c.Round(r, osc24M)
		if err != nil {
			t.Errorf("%d: Round failed: %v", r, err)
			continue
		}
		f, best := findBest(osc24M, r*2, c.bounds())
		if best == 0 {
			t.Errorf("%d: no reference result", r)
			continue
		}
		if want := CalcRate(osc24M, f.N, f.K, f.M, f.P) / 2; got != want {
			t.Errorf("%d: Round, got: %d, want: %d", r, got, want)
		}
		if err := c.SetRate(r, osc24M); err != nil {
			t.Errorf("%d: SetRate failed: %v", r, err)
			continue
		}
		if rc := c.Recalc(osc24M); rc != got {
			t.Errorf("%d: Recalc, got: %d, want: %d", r, rc, got)
		}
	}
	if got, _ := c.Round(600000000, osc24M); got != 600000000 {
		t.Errorf("Round(600MHz), got: %d, want: 600000000", got)
	}
}

func TestMaxRateClamp(t *testing.T) {
	regs := ccutest.New()
	c := newPLL(regs)
	c.MaxRate = 1000000000

	if got, err := c.Round(1500000000, osc24M); err != nil || got != 1000000000 {
		t.Errorf("Round, got: %d, %v, want: 1000000000", got, err)
	}
	if err := c.SetRate(1500000000, osc24M); err != nil {
		t.Fatalf("SetRate failed: %v", err)
	}
	if got := c.Recalc(osc24M); got > 1000000000 {
		t.Errorf("Recalc above the clamp: %d", got)
	}

	c.Features |= FixedPostDiv
	c.FixedPostDiv = 2
	if got, _ := c.Round(800000000, osc24M); got != 500000000 {
		t.Errorf("Round with postdiv, got: %d, want: 500000000", got)
	}
}

func TestUnachievableRate(t *testing.T) {
	regs := ccutest.New()
	c := newCPUPLL(regs)
	if _, err := c.Round(30000000, osc24M); !errors.Is(err, ErrUnachievableRate) {
		t.Errorf("Round, got: %v, want: %v", err, ErrUnachievableRate)
	}
	if err := c.SetRate(30000000, osc24M); !errors.Is(err, ErrUnachievableRate) {
		t.Errorf("SetRate, got: %v, want: %v", err, ErrUnachievableRate)
	}
	if len(regs.Writes) != 0 {
		t.Errorf("hardware written on failure: %v", regs.Writes)
	}
}

func TestCacheDoesNotChangeResults(t *testing.T) {
	plain := newPLL(ccutest.New())
	cached := newPLL(ccutest.New())
	cached.Features |= CalcCached

	targets := []uint64{297000000, 1008000000, 297000000, 1008000000, 1234567890}
	for _, target := range targets {
		want, err := plain.Round(target, osc24M)
		if err != nil {
			t.Fatalf("%d: Round failed: %v", target, err)
		}
		got, err := cached.Round(target, osc24M)
		if err != nil {
			t.Fatalf("%d: cached Round failed: %v", target, err)
		}
		if got != want {
			t.Errorf("%d: cached, got: %d, want: %d", target, got, want)
		}
	}
	if n := cached.CacheLen(); n != 3 {
		t.Errorf("cache entries, got: %d, want: 3", n)
	}
	if n := plain.CacheLen(); n != 0 {
		t.Errorf("uncached clock has %d entries", n)
	}
	// The same request from another parent rate is another entry.
	cached.Round(297000000, 12000000)
	if n := cached.CacheLen(); n != 4 {
		t.Errorf("cache entries, got: %d, want: 4", n)
	}
}

func TestCacheIsBounded(t *testing.T) {
	c := newPLL(ccutest.New())
	c.Features |= CalcCached
	for i := 0; i < 3*CacheSize; i++ {
		c.Round(uint64(100000000+i*1000000), osc24M)
	}
	if n := c.CacheLen(); n != CacheSize {
		t.Errorf("cache entries, got: %d, want: %d", n, CacheSize)
	}
}

func TestClearHandshake(t *testing.T) {
	regs := ccutest.New()
	c := newPLL(regs)
	c.Features |= ClearMod
	c.Clear = clearBit
	regs.ClearOnWrite[pllReg] = clearBit
	buf := captureLog(t)

	if err := c.SetRate(600000000, osc24M); err != nil {
		t.Fatalf("SetRate failed: %v", err)
	}
	w := regs.WritesTo(pllReg)
	if len(w) != 1 || w[0].Val&clearBit == 0 {
		t.Errorf("writes, got: %v, want one with the update bit", w)
	}
	if strings.Contains(buf.String(), "timed out") {
		t.Errorf("unexpected warning: %s", buf.String())
	}
}

func TestClearHandshakeTimeoutIsNotFatal(t *testing.T) {
	regs := ccutest.New()
	c := newPLL(regs)
	c.Features |= ClearMod
	c.Clear = clearBit
	c.Bank.ClearTimeout = time.Microsecond
	buf := captureLog(t)

	if err := c.SetRate(600000000, osc24M); err != nil {
		t.Fatalf("SetRate failed: %v", err)
	}
	if !strings.Contains(buf.String(), "timed out") {
		t.Errorf("no warning logged, got: %q", buf.String())
	}
	if got := c.Recalc(osc24M); got != 600000000 {
		t.Errorf("Recalc, got: %d, want: 600000000", got)
	}
}

func TestLockTimeoutIsNotFatal(t *testing.T) {
	regs := ccutest.New()
	c := newPLL(regs)
	delete(regs.SetOnWrite, pllReg)
	c.Bank.LockTimeout = 10 * time.Microsecond
	buf := captureLog(t)

	if err := c.SetRate(1008000000, osc24M); err != nil {
		t.Fatalf("SetRate failed: %v", err)
	}
	if !strings.Contains(buf.String(), "pll-test") {
		t.Errorf("no warning logged, got: %q", buf.String())
	}
}

type recorder struct {
	events []Event
}

func (r *recorder) Trace(ev Event) { r.events = append(r.events, ev) }

func TestSetRateTraces(t *testing.T) {
	regs := ccutest.New()
	c := newPLL(regs)
	rec := &recorder{}
	c.Bank.Tracer = rec
	if err := c.SetRate(1200000000, osc24M); err != nil {
		t.Fatalf("SetRate failed: %v", err)
	}
	if len(rec.events) != 1 {
		t.Fatalf("events, got: %d, want: 1", len(rec.events))
	}
	ev := rec.events[0]
	if ev.Op != "set_rate" || ev.Clock != "pll-test" || ev.Rate != 1200000000 {
		t.Errorf("event, got: %+v", ev)
	}
	if ev.Value != regs.Peek(pllReg) {
		t.Errorf("event value, got: %#08x, want: %#08x", ev.Value, regs.Peek(pllReg))
	}
}

func TestGateOps(t *testing.T) {
	regs := ccutest.New()
	c := newPLL(regs)
	if c.IsEnabled() {
		t.Errorf("enabled before Enable")
	}
	if err := c.Enable(); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	if !c.IsEnabled() || regs.Peek(pllReg)&gateBit == 0 {
		t.Errorf("not enabled after Enable: %#08x", regs.Peek(pllReg))
	}
	c.Disable()
	if c.IsEnabled() {
		t.Errorf("enabled after Disable: %#08x", regs.Peek(pllReg))
	}
}

func TestInitPolicy(t *testing.T) {
	tests := []struct {
		name     string
		features Feature
		critical bool
		policy   bool
		want     bool // still enabled after Init
	}{
		{"off", InitGate, false, true, false},
		{"policy-disabled", InitGate, false, false, true},
		{"critical", InitGate, true, true, true},
		{"no-init-gate", 0, false, true, true},
	}
	for _, test := range tests {
		regs := ccutest.New()
		c := newPLL(regs)
		c.Features |= test.features
		c.Critical = test.critical
		c.DisableUnusedAtInit = test.policy
		regs.Poke(pllReg, gateBit)
		c.Init()
		if got := c.IsEnabled(); got != test.want {
			t.Errorf("%s: enabled, got: %v, want: %v", test.name, got, test.want)
		}
	}
}

func TestRecalcZeroFactorsMeanOne(t *testing.T) {
	regs := ccutest.New()
	c := NewNM(Common{Name: "odd", Bank: NewBank(regs), Reg: 0x40}, MultOffset(8, 4, 0), Div(0, 2), 0, 0)
	if got := c.Recalc(osc24M); got != osc24M {
		t.Errorf("Recalc, got: %d, want: %d", got, osc24M)
	}
}

func TestSigmaDeltaRefresh(t *testing.T) {
	regs := ccutest.New()
	c := NewNM(Common{
		Name:     "pll-audio",
		Bank:     NewBank(regs),
		Reg:      0x78,
		Features: SigmaDeltaMod,
		SDM: &SDM{
			Table: []SDMSetting{
				{Rate: 541900800, Pattern: 0xc001288d, N: 22, M: 1},
				{Rate: 589824000, Pattern: 0xc00126e9, N: 24, M: 1},
			},
			Enable:       1 << 24,
			PatternReg:   0x178,
			TuningReg:    0x284,
			TuningEnable: 1 << 1,
		},
	}, Mult(8, 8), Div(0, 1), gateBit, 0)

	regs.Poke(0x78, 21<<8)
	if got := c.Recalc(osc24M); got != 528000000 {
		t.Errorf("Recalc, got: %d, want: 528000000", got)
	}
	if got := regs.Peek(0x178); got != 0xc001288d {
		t.Errorf("pattern, got: %#08x, want: 0xc001288d", got)
	}
	if regs.Peek(0x78)&(1<<24) == 0 || regs.Peek(0x284)&(1<<1) == 0 {
		t.Errorf("modulation not enabled: %#08x %#08x", regs.Peek(0x78), regs.Peek(0x284))
	}

	// Factors outside the table switch modulation off.
	regs.Poke(0x78, regs.Peek(0x78)&^0xff00|30<<8)
	if c.RefreshModulation() {
		t.Errorf("RefreshModulation reported on for N=31")
	}
	if regs.Peek(0x78)&(1<<24) != 0 {
		t.Errorf("modulation still enabled: %#08x", regs.Peek(0x78))
	}

	// SetRate to a table entry turns it back on.
	if err := c.SetRate(576000000, osc24M); err != nil {
		t.Fatalf("SetRate failed: %v", err)
	}
	if got := regs.Peek(0x178); got != 0xc00126e9 {
		t.Errorf("pattern after SetRate, got: %#08x, want: 0xc00126e9", got)
	}
}

func TestSigmaDeltaLatchesWithClear(t *testing.T) {
	regs := ccutest.New()
	regs.ClearOnWrite[0x78] = clearBit
	c := NewNM(Common{
		Name:     "pll-audio",
		Bank:     NewBank(regs),
		Reg:      0x78,
		Features: SigmaDeltaMod | ClearMod,
		Clear:    clearBit,
		SDM: &SDM{
			Table:      []SDMSetting{{Rate: 589824000, Pattern: 0xc00126e9, N: 24, M: 1}},
			Enable:     1 << 24,
			PatternReg: 0x178,
		},
	}, Mult(8, 8), Div(0, 1), gateBit, 0)
	buf := captureLog(t)

	if err := c.SetRate(576000000, osc24M); err != nil {
		t.Fatalf("SetRate failed: %v", err)
	}
	w := regs.WritesTo(0x78)
	if len(w) != 2 {
		t.Fatalf("writes, got: %v, want factors then modulation enable", w)
	}
	for _, x := range w {
		if x.Val&clearBit == 0 {
			t.Errorf("write %v without the update bit", x)
		}
	}
	if got := regs.Peek(0x78); got&(1<<24) == 0 || got&clearBit != 0 {
		t.Errorf("register, got: %#x, want modulation on and update acknowledged", got)
	}
	if strings.Contains(buf.String(), "timed out") {
		t.Errorf("unexpected warning: %s", buf.String())
	}
}
