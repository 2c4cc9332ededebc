package integrators

import (
	"math"

	"github.com/san-kum/odeguard/internal/dynamo"
)

// initialStep picks a starting step size from the size of the state, its
// derivative and a finite-difference estimate of the second derivative
// (Hairer, Nørsett and Wanner, Solving ODEs I, II.4).
func initialStep(dyn dynamo.System, x, f dynamo.State, p dynamo.Params, t float64, atol dynamo.Tolerance, rtol float64, order int, span float64) float64 {
	n := len(x)
	dnf, dny := 0.0, 0.0
	for i := 0; i < n; i++ {
		sc := atol.At(i) + rtol*math.Abs(x[i])
		dnf += math.Pow(f[i]/sc, 2)
		dny += math.Pow(x[i]/sc, 2)
	}

	var h float64
	if math.Min(dnf, dny) < 1e-10 {
		h = 1e-6
	} else {
		h = 1e-2 * math.Sqrt(dny/dnf)
	}
	h = math.Min(h, span)

	y2 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		y2[i] = x[i] + h*f[i]
	}
	f2 := dyn.Derive(y2, p, t+h)

	der2 := 0.0
	for i := 0; i < n; i++ {
		sc := atol.At(i) + rtol*math.Abs(x[i])
		der2 += math.Pow((f2[i]-f[i])/sc, 2)
	}
	der2 = math.Sqrt(der2) / h
	der12 := math.Max(der2, math.Sqrt(dnf))

	var h1 float64
	if der12 <= 1e-15 {
		h1 = math.Max(1e-6, h*1e-3)
	} else {
		h1 = math.Pow(1e-2/der12, 1.0/float64(order))
	}
	return math.Min(100*h, math.Min(h1, span))
}
