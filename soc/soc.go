// Package soc knows where the clock controller of a few Allwinner SoCs lives
// and which clocks it has.
package soc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Jon-Bright/sunxiccu/ccu"
	"github.com/platinasystems/fdt"
)

// FDT_FILE is where the kernel exposes the device tree it booted with.
const FDT_FILE = "/sys/firmware/fdt"

const OSC24M = 24000000

const (
	fdtMagic     = 0xd00dfeed
	fdtHeaderLen = 40
)

var ErrUnknownSoC = errors.New("unknown SoC")

// Options carry the policy knobs applied to every clock of a table.
type Options struct {
	DisableUnused bool // switch unused gates off on registration
	Cached        bool // memoize rate searches
}

func (o Options) common(name, parent string, b *ccu.Bank, reg uint32, f ccu.Feature) ccu.Common {
	if o.Cached {
		f |= ccu.CalcCached
	}
	return ccu.Common{
		Name:                name,
		Parent:              parent,
		Bank:                b,
		Reg:                 reg,
		Features:            f,
		DisableUnusedAtInit: o.DisableUnused,
	}
}

type SoC struct {
	Name       string
	Compatible string
	Base       uintptr // physical address of the CCU
	Size       int
	clocks     func(b *ccu.Bank, o Options) []ccu.Clock
}

var variants = map[string]SoC{
	"h3": {
		Name:       "h3",
		Compatible: "allwinner,sun8i-h3",
		Base:       0x01c20000,
		Size:       0x400,
		clocks:     h3Clocks,
	},
	"h6": {
		Name:       "h6",
		Compatible: "allwinner,sun50i-h6",
		Base:       0x03001000,
		Size:       0x1000,
		clocks:     h6Clocks,
	},
	"a523": {
		Name:       "a523",
		Compatible: "allwinner,sun55i-a523",
		Base:       0x02001000,
		Size:       0x1000,
		clocks:     a523Clocks,
	},
}

// Names lists the known SoCs.
func Names() []string {
	n := make([]string, 0, len(variants))
	for k := range variants {
		n = append(n, k)
	}
	sort.Strings(n)
	return n
}

func Lookup(name string) (*SoC, error) {
	s, ok := variants[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownSoC)
	}
	return &s, nil
}

// Detect identifies the SoC from the root compatible list of a flattened
// device tree blob.
func Detect(file string) (*SoC, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("couldn't read device tree: %w", err)
	}
	t, err := parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", file, err, ErrUnknownSoC)
	}
	return FromTree(t)
}

// parse checks the blob header before handing it to fdt, which indexes the
// buffer unchecked and panics on anything malformed.
func parse(b []byte) (t *fdt.Tree, err error) {
	if len(b) < fdtHeaderLen {
		return nil, fmt.Errorf("%d bytes is too short for a device tree", len(b))
	}
	if m := binary.BigEndian.Uint32(b); m != fdtMagic {
		return nil, fmt.Errorf("bad device tree magic %#x", m)
	}
	size := binary.BigEndian.Uint32(b[4:])
	if size < fdtHeaderLen || uint64(size) > uint64(len(b)) {
		return nil, fmt.Errorf("device tree claims %d bytes, have %d", size, len(b))
	}
	defer func() {
		if r := recover(); r != nil {
			t, err = nil, fmt.Errorf("corrupt device tree: %v", r)
		}
	}()
	t = &fdt.Tree{Debug: false, IsLittleEndian: false}
	if err := t.Parse(b[:size]); err != nil {
		return nil, err
	}
	return t, nil
}

func FromTree(t *fdt.Tree) (*SoC, error) {
	if t.RootNode == nil {
		return nil, fmt.Errorf("device tree has no root node: %w", ErrUnknownSoC)
	}
	prop, ok := t.RootNode.Properties["compatible"]
	if !ok {
		return nil, fmt.Errorf("device tree root has no compatible property: %w", ErrUnknownSoC)
	}
	compat := strings.Split(strings.TrimRight(string(prop), "\x00"), "\x00")
	for _, c := range compat {
		for _, s := range variants {
			if s.Compatible == c {
				s := s
				return &s, nil
			}
		}
	}
	return nil, fmt.Errorf("couldn't identify %v: %w", compat, ErrUnknownSoC)
}

// Clocks builds the clock table on b. The 24MHz oscillator comes first.
func (s *SoC) Clocks(b *ccu.Bank, o Options) []ccu.Clock {
	return append([]ccu.Clock{ccu.NewFixed("osc24M", OSC24M)}, s.clocks(b, o)...)
}

// Tree registers the clock table on b in a new tree.
func (s *SoC) Tree(b *ccu.Bank, o Options) (*ccu.Tree, error) {
	t := ccu.NewTree()
	for _, c := range s.Clocks(b, o) {
		if err := t.Register(c); err != nil {
			return nil, fmt.Errorf("couldn't register %s: %w", c.Name(), err)
		}
	}
	return t, nil
}
