package ccu

import (
	"fmt"
	"sort"
	"sync"
)

// Tree holds the clocks of one controller and resolves parents by name.
//
// Every operation runs under a single tree-wide lock, so Round, SetRate and
// Recalc of a clock never overlap. Clocks used outside a Tree need the same
// guarantee from their caller; the bank lock only covers register access.
type Tree struct {
	mu     sync.Mutex
	clocks map[string]Clock
}

func NewTree() *Tree {
	return &Tree{clocks: make(map[string]Clock)}
}

// Register adds c and runs its Init hook. Parents may be registered later.
func (t *Tree) Register(c Clock) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.clocks[c.Name()]; ok {
		return fmt.Errorf("clock %q already registered", c.Name())
	}
	t.clocks[c.Name()] = c
	c.Init()
	return nil
}

// Names returns all registered clocks, sorted.
func (t *Tree) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := make([]string, 0, len(t.clocks))
	for k := range t.clocks {
		n = append(n, k)
	}
	sort.Strings(n)
	return n
}

func (t *Tree) Lookup(name string) (Clock, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lookup(name)
}

func (t *Tree) lookup(name string) (Clock, error) {
	c, ok := t.clocks[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownClock)
	}
	return c, nil
}

// parentRate walks up to the root. A clock without a parent gets 0.
func (t *Tree) parentRate(c Clock) (uint64, error) {
	var chain []Clock
	for p := c.ParentName(); p != ""; {
		pc, err := t.lookup(p)
		if err != nil {
			return 0, fmt.Errorf("couldn't resolve parent of %s: %w", c.Name(), err)
		}
		if len(chain) > len(t.clocks) {
			return 0, fmt.Errorf("parent loop above %s", c.Name())
		}
		chain = append(chain, pc)
		p = pc.ParentName()
	}
	var rate uint64
	for i := len(chain) - 1; i >= 0; i-- {
		rate = chain[i].Recalc(rate)
	}
	return rate, nil
}

// Rate returns the current output rate of the named clock.
func (t *Tree) Rate(name string) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, err := t.lookup(name)
	if err != nil {
		return 0, err
	}
	pr, err := t.parentRate(c)
	if err != nil {
		return 0, err
	}
	return c.Recalc(pr), nil
}

func (t *Tree) RoundRate(name string, rate uint64) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, err := t.lookup(name)
	if err != nil {
		return 0, err
	}
	pr, err := t.parentRate(c)
	if err != nil {
		return 0, err
	}
	return c.Round(rate, pr)
}

// SetRate programs the named clock and returns the rate it now runs at.
func (t *Tree) SetRate(name string, rate uint64) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, err := t.lookup(name)
	if err != nil {
		return 0, err
	}
	pr, err := t.parentRate(c)
	if err != nil {
		return 0, err
	}
	if err := c.SetRate(rate, pr); err != nil {
		return 0, err
	}
	return c.Recalc(pr), nil
}

func (t *Tree) Enable(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, err := t.lookup(name)
	if err != nil {
		return err
	}
	return c.Enable()
}

func (t *Tree) Disable(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, err := t.lookup(name)
	if err != nil {
		return err
	}
	c.Disable()
	return nil
}

func (t *Tree) IsEnabled(name string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, err := t.lookup(name)
	if err != nil {
		return false, err
	}
	return c.IsEnabled(), nil
}

// Dump returns the raw control register of a register-backed clock.
func (t *Tree) Dump(name string) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, err := t.lookup(name)
	if err != nil {
		return 0, err
	}
	d, ok := c.(Dumper)
	if !ok {
		return 0, fmt.Errorf("%s has no control register", name)
	}
	return d.Dump(), nil
}
