package integrators

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/odeguard/internal/callback"
	"github.com/san-kum/odeguard/internal/dynamo"
)

type decay struct{ rate float64 }

func (d *decay) StateDim() int { return 1 }
func (d *decay) Derive(x dynamo.State, p dynamo.Params, t float64) dynamo.State {
	return dynamo.State{-d.rate * x[0]}
}

var _ = Describe("Integrator", func() {
	var opts Options

	BeforeEach(func() {
		opts = DefaultOptions()
		opts.AbsTol = dynamo.Scalar(1e-9)
		opts.RelTol = 1e-9
	})

	Describe("New", func() {
		It("rejects a zero-length time span", func() {
			_, err := New(&decay{1}, NewRK45(), dynamo.State{1}, [2]float64{1, 1}, nil, opts)
			Expect(errors.Is(err, dynamo.ErrInvalidTimeSpan)).To(BeTrue())
		})

		It("rejects a state of the wrong dimension", func() {
			_, err := New(&decay{1}, NewRK45(), dynamo.State{1, 2}, [2]float64{0, 1}, nil, opts)
			Expect(errors.Is(err, dynamo.ErrDimensionMismatch)).To(BeTrue())
		})

		It("rejects a vector tolerance of the wrong dimension", func() {
			opts.AbsTol = dynamo.Vector(1e-6, 1e-6)
			_, err := New(&decay{1}, NewRK45(), dynamo.State{1}, [2]float64{0, 1}, nil, opts)
			Expect(errors.Is(err, dynamo.ErrDimensionMismatch)).To(BeTrue())
		})

		It("requires dt for fixed stepping", func() {
			opts.Adaptive = false
			_, err := New(&decay{1}, NewRK4(), dynamo.State{1}, [2]float64{0, 1}, nil, opts)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Solve", func() {
		It("integrates exponential decay accurately", func() {
			in, err := New(&decay{1}, NewRK45(), dynamo.State{1}, [2]float64{0, 1}, nil, opts)
			Expect(err).NotTo(HaveOccurred())

			res, err := in.Solve(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Times[len(res.Times)-1]).To(Equal(1.0))
			Expect(res.States[len(res.States)-1][0]).To(BeNumerically("~", math.Exp(-1), 1e-7))
			Expect(res.Stats.Steps).To(BeNumerically(">", 0))
			Expect(res.Stats.Evaluations).To(BeNumerically(">", res.Stats.Steps))
		})

		It("lands exactly on every stop time", func() {
			opts.TStops = []float64{0.7, 0.3, 5}
			in, err := New(&decay{1}, NewRK45(), dynamo.State{1}, [2]float64{0, 1}, nil, opts)
			Expect(err).NotTo(HaveOccurred())

			res, err := in.Solve(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Times).To(ContainElements(0.3, 0.7, 1.0))
			Expect(res.Times).NotTo(ContainElement(5.0))
		})

		It("integrates backwards in time", func() {
			in, err := New(&decay{1}, NewRK45(), dynamo.State{math.Exp(-1)}, [2]float64{1, 0}, nil, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(in.Direction()).To(Equal(-1.0))
			Expect(in.ProposedDt()).To(BeNumerically("<", 0))

			res, err := in.Solve(context.Background())
			Expect(err).NotTo(HaveOccurred())
			for i := 1; i < len(res.Times); i++ {
				Expect(res.Times[i]).To(BeNumerically("<", res.Times[i-1]))
			}
			Expect(res.Times[len(res.Times)-1]).To(Equal(0.0))
			Expect(res.States[len(res.States)-1][0]).To(BeNumerically("~", 1.0, 1e-7))
		})

		It("takes fixed steps without error control", func() {
			opts.Adaptive = false
			opts.Dt = 0.1
			in, err := New(&decay{1}, NewRK4(), dynamo.State{1}, [2]float64{0, 1}, nil, opts)
			Expect(err).NotTo(HaveOccurred())

			res, err := in.Solve(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Stats.Steps).To(Equal(10))
			Expect(res.Stats.Rejected).To(BeZero())
		})

		It("stops after the step budget", func() {
			opts.MaxSteps = 3
			opts.Dt = 1e-3
			opts.DtMax = 1e-3
			in, err := New(&decay{1}, NewRK45(), dynamo.State{1}, [2]float64{0, 1}, nil, opts)
			Expect(err).NotTo(HaveOccurred())

			_, err = in.Solve(context.Background())
			Expect(errors.Is(err, dynamo.ErrMaxSteps)).To(BeTrue())
			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Step).To(Equal(3))
		})

		It("fails instead of taking zero-length steps", func() {
			opts.Callbacks = callback.Set{{Affect: func(integ dynamo.Integrator) error {
				integ.SetProposedDt(0)
				return nil
			}}}
			in, err := New(&decay{1}, NewRK45(), dynamo.State{1}, [2]float64{0, 1}, nil, opts)
			Expect(err).NotTo(HaveOccurred())

			res, err := in.Solve(context.Background())
			Expect(errors.Is(err, dynamo.ErrStepTooSmall)).To(BeTrue())
			Expect(res.Stats.Steps).To(Equal(1))
			Expect(res.Times).To(HaveLen(2))
		})

		It("takes a tiny step when it lands on a stop time", func() {
			opts.TStops = []float64{1e-20}
			in, err := New(&decay{1}, NewRK45(), dynamo.State{1}, [2]float64{0, 1}, nil, opts)
			Expect(err).NotTo(HaveOccurred())

			Expect(in.Step()).To(Succeed())
			Expect(in.Time()).To(Equal(1e-20))

			res, err := in.Solve(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Times[len(res.Times)-1]).To(Equal(1.0))
		})

		It("honors context cancellation", func() {
			in, err := New(&decay{1}, NewRK45(), dynamo.State{1}, [2]float64{0, 1}, nil, opts)
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err = in.Solve(ctx)
			Expect(errors.Is(err, dynamo.ErrContextCanceled)).To(BeTrue())
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})

	Describe("ClampDt", func() {
		It("applies bounds and snaps to the next stop", func() {
			opts.DtMin = 0.01
			opts.DtMax = 0.2
			opts.TStops = []float64{0.15}
			in, err := New(&decay{1}, NewRK45(), dynamo.State{1}, [2]float64{0, 1}, nil, opts)
			Expect(err).NotTo(HaveOccurred())

			Expect(in.ClampDt(0.001)).To(Equal(0.01))
			Expect(in.ClampDt(0.1)).To(Equal(0.1))
			Expect(in.ClampDt(0.5)).To(Equal(0.15))
			Expect(in.ClampDt(-0.5)).To(Equal(-0.2))
		})
	})

	Describe("SampleInto", func() {
		It("reproduces the step end points and interpolates in between", func() {
			in, err := New(&decay{1}, NewRK45(), dynamo.State{1}, [2]float64{0, 1}, nil, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(in.Step()).To(Succeed())

			buf := make(dynamo.State, 1)
			in.SampleInto(buf, in.Time())
			Expect(buf[0]).To(BeNumerically("~", in.State()[0], 1e-14))

			in.SampleInto(buf, 0)
			Expect(buf[0]).To(BeNumerically("~", 1.0, 1e-14))

			mid := in.Time() / 2
			in.SampleInto(buf, mid)
			Expect(buf[0]).To(BeNumerically("~", math.Exp(-mid), 1e-6))
		})

		It("extrapolates linearly before the first step", func() {
			in, err := New(&decay{2}, NewRK45(), dynamo.State{1}, [2]float64{0, 1}, nil, opts)
			Expect(err).NotTo(HaveOccurred())

			buf := make(dynamo.State, 1)
			in.SampleInto(buf, 0.1)
			Expect(buf[0]).To(BeNumerically("~", 0.8, 1e-14))
		})
	})

	Describe("callbacks", func() {
		It("propagates affect errors", func() {
			boom := errors.New("boom")
			opts.Callbacks = callback.Set{{Affect: func(dynamo.Integrator) error { return boom }}}
			in, err := New(&decay{1}, NewRK45(), dynamo.State{1}, [2]float64{0, 1}, nil, opts)
			Expect(err).NotTo(HaveOccurred())

			_, err = in.Solve(context.Background())
			Expect(errors.Is(err, boom)).To(BeTrue())
		})

		It("saves only flagged steps when not saving every step", func() {
			opts.SaveEveryStep = false
			n := 0
			opts.Callbacks = callback.Set{{
				Condition: func(dynamo.Integrator) bool { n++; return n == 2 },
				SaveAfter: true,
			}}
			in, err := New(&decay{1}, NewRK45(), dynamo.State{1}, [2]float64{0, 1}, nil, opts)
			Expect(err).NotTo(HaveOccurred())

			res, err := in.Solve(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Stats.Steps).To(BeNumerically(">", 2))
			Expect(res.Times).To(HaveLen(3))
			Expect(res.Stats.Callbacks).To(Equal(1))
		})

		It("refreshes the interpolant when the state is modified", func() {
			opts.Callbacks = callback.Set{{Affect: func(integ dynamo.Integrator) error {
				integ.State()[0] = 0
				integ.MarkModified()
				return nil
			}}}
			in, err := New(&decay{1}, NewRK45(), dynamo.State{1}, [2]float64{0, 1}, nil, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(in.Step()).To(Succeed())

			buf := make(dynamo.State, 1)
			in.SampleInto(buf, in.Time())
			Expect(buf[0]).To(Equal(0.0))
		})
	})

	Describe("NewMethod", func() {
		It("builds every registered method", func() {
			for _, name := range MethodNames() {
				m, err := NewMethod(name)
				Expect(err).NotTo(HaveOccurred())
				Expect(m.Name()).To(Equal(name))
			}
		})

		It("returns separate instances", func() {
			a, _ := NewMethod("rk45")
			b, _ := NewMethod("rk45")
			Expect(a).NotTo(BeIdenticalTo(b))
		})

		It("rejects unknown names", func() {
			_, err := NewMethod("verlet")
			Expect(err).To(MatchError(ContainSubstring("unknown method")))
		})
	})
})
