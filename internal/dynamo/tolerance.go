package dynamo

import "fmt"

// Tolerance is an absolute tolerance that is either one scalar broadcast to
// every component or a per-component vector. The zero value is unset.
type Tolerance struct {
	scalar float64
	vec    []float64
	set    bool
}

func Scalar(v float64) Tolerance {
	return Tolerance{scalar: v, set: true}
}

func Vector(v ...float64) Tolerance {
	c := make([]float64, len(v))
	copy(c, v)
	return Tolerance{vec: c, set: true}
}

func (t Tolerance) IsZero() bool { return !t.set }

func (t Tolerance) IsScalar() bool { return t.vec == nil }

// At returns the tolerance for component i. Callers must run Check first
// when the tolerance may be a vector.
func (t Tolerance) At(i int) float64 {
	if t.vec == nil {
		return t.scalar
	}
	return t.vec[i]
}

// Check reports ErrDimensionMismatch when a vector tolerance does not have n
// components. Scalar tolerances match any dimension.
func (t Tolerance) Check(n int) error {
	if t.vec != nil && len(t.vec) != n {
		return fmt.Errorf("%w: tolerance has %d components, state has %d", ErrDimensionMismatch, len(t.vec), n)
	}
	return nil
}

// Or returns t, or fallback when t is unset.
func (t Tolerance) Or(fallback Tolerance) Tolerance {
	if t.set {
		return t
	}
	return fallback
}

// Values expands the tolerance to n components.
func (t Tolerance) Values(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if t.vec == nil {
			out[i] = t.scalar
		} else if i < len(t.vec) {
			out[i] = t.vec[i]
		}
	}
	return out
}

func (t Tolerance) String() string {
	if !t.set {
		return "unset"
	}
	if t.vec == nil {
		return fmt.Sprintf("%g", t.scalar)
	}
	return fmt.Sprintf("%v", t.vec)
}
