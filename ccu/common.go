package ccu

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Feature flags carried by a clock.
type Feature uint32

const (
	FixedPostDiv Feature = 1 << iota
	SigmaDeltaMod
	ClearMod   // register writes must be acknowledged through the Clear bit
	CalcCached // memoize rate -> factors searches
	InitGate   // gate may be switched off when the clock is registered
	TypeNKMP
)

var featureStrings = []string{
	"fixed-postdiv",
	"sigma-delta",
	"clear-mod",
	"calc-cached",
	"init-gate",
	"nkmp",
}

func (f Feature) String() string {
	s := ""
	for i, n := range featureStrings {
		if f&(1<<uint(i)) == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += n
	}
	if s == "" {
		return "none"
	}
	return s
}

// CacheSize is the number of searches remembered per clock.
const CacheSize = 32

var (
	// ErrUnachievableRate means no legal factor combination produces a rate
	// at or below the request.
	ErrUnachievableRate = errors.New("rate not achievable")
	// ErrUnknownClock is returned by Tree lookups.
	ErrUnknownClock = errors.New("unknown clock")
)

// Common is the state every register-backed clock shares.
type Common struct {
	Name     string
	Parent   string
	Bank     *Bank
	Reg      uint32
	Features Feature
	// Clear is the update handshake bit written with the register and
	// dropped by hardware once latched. Used with ClearMod.
	Clear uint32
	// Critical clocks are never switched off by Init.
	Critical bool
	// DisableUnusedAtInit switches InitGate clocks off on registration.
	DisableUnusedAtInit bool
	SDM                 *SDM

	cache       *lru.Cache[cacheKey, Factors]
	cacheFailed bool
}

// cacheMu guards the lazy creation of every clock's cache. The caches
// themselves are safe for concurrent use.
var cacheMu sync.Mutex

func (c *Common) ParentName() string { return c.Parent }

// Dump returns the raw control register.
func (c *Common) Dump() uint32 {
	return c.Bank.Read(c.Reg)
}

type cacheKey struct {
	parent, rate uint64
}

func (c *Common) cached() *lru.Cache[cacheKey, Factors] {
	if c.Features&CalcCached == 0 {
		return nil
	}
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if c.cache == nil && !c.cacheFailed {
		lc, err := lru.New[cacheKey, Factors](CacheSize)
		if err != nil {
			warn("warn", "ccu: ", c.Name, ": couldn't create rate cache, running uncached: ", err)
			c.cacheFailed = true
			return nil
		}
		c.cache = lc
	}
	return c.cache
}

// CacheLen reports how many searches the clock currently remembers.
func (c *Common) CacheLen() int {
	if lc := c.cached(); lc != nil {
		return lc.Len()
	}
	return 0
}

// findBest runs the search through the cache, if the clock has one.
func (c *Common) findBest(parent, rate uint64, b bounds) (Factors, error) {
	lc := c.cached()
	key := cacheKey{parent, rate}
	if lc != nil {
		if f, ok := lc.Get(key); ok {
			return f, nil
		}
	}
	f, best := findBest(parent, rate, b)
	if best == 0 {
		return Factors{}, fmt.Errorf("%s: %d Hz from %d Hz parent: %w", c.Name, rate, parent, ErrUnachievableRate)
	}
	if lc != nil {
		lc.Add(key, f)
	}
	return f, nil
}
