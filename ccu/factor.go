package ccu

// Factor describes where one of the N, K, M or P factors of a clock lives in
// its control register.
//
// The logical value of a linear factor is the raw field plus Offset. Min and
// Max, when non-zero, narrow the range the field can naturally encode.
// A zero-width factor is fixed at 1 and never touches the register.
type Factor struct {
	Shift  uint8
	Width  uint8
	Offset uint32
	Min    uint32
	Max    uint32
}

// Mult is a multiplier field where a raw value of 0 means 1.
func Mult(shift, width uint8) Factor {
	return Factor{Shift: shift, Width: width, Offset: 1}
}

// MultMin is Mult with a lower bound, e.g. PLLs that refuse N < 12.
func MultMin(shift, width uint8, min uint32) Factor {
	return Factor{Shift: shift, Width: width, Offset: 1, Min: min}
}

// MultOffset is a multiplier field with an unusual encoding offset.
func MultOffset(shift, width uint8, offset uint32) Factor {
	return Factor{Shift: shift, Width: width, Offset: offset}
}

// Div is a linear divider field where a raw value of 0 means 1.
func Div(shift, width uint8) Factor {
	return Factor{Shift: shift, Width: width, Offset: 1}
}

// DivMax is Div with an upper bound.
func DivMax(shift, width uint8, max uint32) Factor {
	return Factor{Shift: shift, Width: width, Offset: 1, Max: max}
}

// Pow2 is a power-of-two divider field, stored as log2 of the divider.
func Pow2(shift, width uint8) Factor {
	return Factor{Shift: shift, Width: width}
}

// genmask returns the bits h..l set, like the kernel's GENMASK.
func genmask(h, l uint8) uint32 {
	return (^uint32(0) >> (31 - h)) &^ ((uint32(1) << l) - 1)
}

// mask returns the register bits owned by the factor. Zero-width factors own
// none; computing GENMASK(shift-1, shift) for them would underflow.
func (f Factor) mask() uint32 {
	if f.Width == 0 {
		return 0
	}
	return genmask(f.Shift+f.Width-1, f.Shift)
}

// field extracts the raw bitfield from reg.
func (f Factor) field(reg uint32) uint32 {
	if f.Width == 0 {
		return 0
	}
	return (reg >> f.Shift) & ((uint32(1) << f.Width) - 1)
}

// put places raw at the factor's position, clipped to its mask.
func (f Factor) put(raw uint32) uint32 {
	if f.Width == 0 {
		return 0
	}
	return (raw << f.Shift) & f.mask()
}

// linear returns the searchable range of a linear factor.
func (f Factor) linear() (uint32, uint32) {
	if f.Width == 0 {
		return 1, 1
	}
	min := f.Offset
	if min == 0 {
		min = 1
	}
	if f.Min > min {
		min = f.Min
	}
	max := (uint32(1) << f.Width) - 1 + f.Offset
	if f.Max != 0 && f.Max < max {
		max = f.Max
	}
	return min, max
}

// pow2 returns the searchable range of a power-of-two factor.
func (f Factor) pow2() (uint32, uint32) {
	if f.Width == 0 {
		return 1, 1
	}
	max := pow2Value((uint32(1) << f.Width) - 1)
	if f.Max != 0 && f.Max < max {
		max = f.Max
	}
	return 1, max
}

// pow2Value turns a log2 field into its divider. Fields wider than 5 bits
// can encode shifts past 31; those saturate at 1<<31.
func pow2Value(raw uint32) uint32 {
	if raw > 31 {
		raw = 31
	}
	return uint32(1) << raw
}

// value decodes a linear factor from reg, applying the "0 encodes 1" rule.
func (f Factor) value(reg uint32) uint32 {
	v := f.field(reg) + f.Offset
	if v == 0 {
		v = 1
	}
	return v
}

// encode turns a logical linear factor back into its register bits.
func (f Factor) encode(v uint32) uint32 {
	return f.put(v - f.Offset)
}

func ilog2(v uint32) uint32 {
	var n uint32
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}
