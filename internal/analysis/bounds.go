package analysis

import "math"

// boundTransform maps box-constrained parameters onto an unconstrained space
// so that an unconstrained Levenberg-Marquardt solver can honour Bounds.
//
//	two-sided: p = lo + (hi-lo) (sin(u)+1) / 2
//	lower:     p = lo - 1 + sqrt(u^2 + 1)
//	upper:     p = hi + 1 - sqrt(u^2 + 1)
//	open:      p = u
type boundTransform struct {
	b *Bounds
}

func (t boundTransform) active() bool { return t.b != nil }

func (t boundTransform) validate() error {
	if t.b == nil {
		return nil
	}
	for k := 0; k < NumFanoParams; k++ {
		lo, hi := t.b.Lower[k], t.b.Upper[k]
		if math.IsNaN(lo) || math.IsNaN(hi) {
			return invalidInput("bound for %s is NaN", ParamNames[k])
		}
		if lo >= hi {
			return invalidInput("lower bound %v >= upper bound %v for %s", lo, hi, ParamNames[k])
		}
	}
	return nil
}

// clampInset is the fraction of a finite box, or of max(1, |bound|) for a
// one-sided box, that clamp keeps between a moved parameter and its bound.
// The transforms are flat exactly on a bound, so a seed placed there could
// never leave it.
const clampInset = 1e-3

// clamp moves p just inside the box and reports which parameters were moved.
func (t boundTransform) clamp(p []float64) []string {
	if t.b == nil {
		return nil
	}
	var moved []string
	for k := range p {
		lo, hi := t.b.Lower[k], t.b.Upper[k]
		if p[k] >= lo && p[k] <= hi {
			continue
		}
		var inset float64
		if math.IsInf(lo, -1) || math.IsInf(hi, 1) {
			bound := lo
			if p[k] > hi {
				bound = hi
			}
			inset = clampInset * math.Max(1, math.Abs(bound))
		} else {
			inset = clampInset * (hi - lo)
		}
		if p[k] < lo {
			p[k] = lo + inset
		} else {
			p[k] = hi - inset
		}
		moved = append(moved, ParamNames[k])
	}
	return moved
}

func (t boundTransform) toExternal(u []float64) []float64 {
	p := make([]float64, len(u))
	copy(p, u)
	if t.b == nil {
		return p
	}
	for k, v := range u {
		lo, hi := t.b.Lower[k], t.b.Upper[k]
		loOpen, hiOpen := math.IsInf(lo, -1), math.IsInf(hi, 1)
		switch {
		case !loOpen && !hiOpen:
			p[k] = lo + (hi-lo)*(math.Sin(v)+1)/2
		case !loOpen:
			p[k] = lo - 1 + math.Sqrt(v*v+1)
		case !hiOpen:
			p[k] = hi + 1 - math.Sqrt(v*v+1)
		}
	}
	return p
}

// toInternal expects p already clamped into the box.
func (t boundTransform) toInternal(p []float64) []float64 {
	u := make([]float64, len(p))
	copy(u, p)
	if t.b == nil {
		return u
	}
	for k, v := range p {
		lo, hi := t.b.Lower[k], t.b.Upper[k]
		loOpen, hiOpen := math.IsInf(lo, -1), math.IsInf(hi, 1)
		switch {
		case !loOpen && !hiOpen:
			s := 2*(v-lo)/(hi-lo) - 1
			u[k] = math.Asin(math.Max(-1, math.Min(1, s)))
		case !loOpen:
			d := v - lo + 1
			u[k] = math.Sqrt(math.Max(0, d*d-1))
		case !hiOpen:
			d := hi - v + 1
			u[k] = math.Sqrt(math.Max(0, d*d-1))
		}
	}
	return u
}
