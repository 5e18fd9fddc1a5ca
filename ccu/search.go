package ccu

import "fmt"

// Factors is one (n, k, m, p) combination. P is the divider itself, always a
// power of two, not its log2 encoding.
type Factors struct {
	N, K, M, P uint32
}

func (f Factors) String() string {
	return fmt.Sprintf("n=%d k=%d m=%d p=%d", f.N, f.K, f.M, f.P)
}

type bounds struct {
	minN, maxN uint32
	minK, maxK uint32
	minM, maxM uint32
	minP, maxP uint32
}

// CalcRate returns parent * n * k / (m * p), truncated.
func CalcRate(parent uint64, n, k, m, p uint32) uint64 {
	return parent * uint64(n) * uint64(k) / (uint64(m) * uint64(p))
}

// findBest returns the combination whose rate is the largest one not above
// rate, and that rate. The loop order (K, N, M, then P by doubling) and the
// strict comparison make the first combination reaching the best error win.
// A zero best rate with zero factors means nothing fits.
func findBest(parent, rate uint64, b bounds) (Factors, uint64) {
	var best Factors
	var bestRate uint64
	for k := b.minK; k <= b.maxK; k++ {
		for n := b.minN; n <= b.maxN; n++ {
			for m := b.minM; m <= b.maxM; m++ {
				for p := b.minP; p != 0 && p <= b.maxP; p <<= 1 {
					tmp := CalcRate(parent, n, k, m, p)
					// Closer from below means strictly larger.
					if tmp > rate || tmp <= bestRate {
						continue
					}
					bestRate = tmp
					best = Factors{N: n, K: k, M: m, P: p}
					if tmp == rate {
						return best, bestRate
					}
				}
			}
		}
	}
	return best, bestRate
}
