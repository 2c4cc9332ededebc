package domain

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/odeguard/internal/dynamo"
)

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) ObserveGuard(o Outcome) {
	m.Called(o)
}

func positiveGuard(t *testing.T, opts ...Option) *Guard {
	t.Helper()
	g, err := NewGuard(NewPositiveConstraint(nil), opts...)
	require.NoError(t, err)
	return g
}

func TestGuardAcceptsWithoutShrinking(t *testing.T) {
	integ := newFake(dynamo.State{1}, dynamo.State{1})
	integ.dt, integ.proposed = 0.3, 2

	g := positiveGuard(t)
	require.NoError(t, g.Affect(integ))

	assert.Equal(t, 2.0, integ.proposed)
	assert.Equal(t, 0.3, integ.dt)
	assert.Equal(t, []float64{2}, integ.samples)
}

func TestGuardShrinksUntilAccepted(t *testing.T) {
	integ := newFake(dynamo.State{1}, dynamo.State{-1})
	integ.dt, integ.proposed = 0.3, 2

	g := positiveGuard(t)
	require.NoError(t, g.Affect(integ))

	// u(2) = -1 is rejected, u(1) = 0 is accepted
	assert.Equal(t, []float64{2, 1}, integ.samples)
	assert.InDelta(t, 0.9, integ.proposed, 1e-15)
	assert.Equal(t, 0.3, integ.dt, "active step is restored")
	assert.Equal(t, dynamo.State{1}, integ.u, "current state is untouched")
}

func TestGuardShrinksRepeatedly(t *testing.T) {
	integ := newFake(dynamo.State{1}, dynamo.State{-1})
	integ.dt, integ.proposed = 0.1, 8

	g := positiveGuard(t)
	require.NoError(t, g.Affect(integ))

	assert.Equal(t, []float64{8, 4, 2, 1}, integ.samples)
	assert.InDelta(t, 0.9, integ.proposed, 1e-15)
}

func TestGuardCustomScaleFactor(t *testing.T) {
	integ := newFake(dynamo.State{1}, dynamo.State{-1})
	integ.proposed = 4

	g := positiveGuard(t, WithScaleFactor(0.25))
	require.NoError(t, g.Affect(integ))

	assert.Equal(t, []float64{4, 1}, integ.samples)
	assert.InDelta(t, 0.9, integ.proposed, 1e-15)
}

func TestGuardBackwardIntegration(t *testing.T) {
	integ := newFake(dynamo.State{1}, dynamo.State{1})
	integ.tdir = -1
	integ.dt, integ.proposed = -0.3, -2

	g := positiveGuard(t)
	require.NoError(t, g.Affect(integ))

	assert.Equal(t, []float64{-2, -1}, integ.samples)
	assert.InDelta(t, -0.9, integ.proposed, 1e-15)
	assert.Equal(t, -0.3, integ.dt)
}

func TestGuardStagnatesAtMinimumStep(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	integ := newFake(dynamo.State{1}, dynamo.State{-1})
	integ.dtMin = 2
	integ.dt, integ.proposed = 0.3, 2
	integ.verbose = true

	obs := new(mockObserver)
	obs.On("ObserveGuard", mock.MatchedBy(func(o Outcome) bool {
		return o.Stagnated && !o.Accepted && o.Iterations == 1
	})).Once()

	g := positiveGuard(t, WithLogger(logger), WithObserver(obs))
	require.NoError(t, g.Affect(integ))

	assert.Equal(t, []float64{2}, integ.samples)
	assert.InDelta(t, 1.8, integ.proposed, 1e-15)
	assert.Equal(t, 0.3, integ.dt)
	assert.Contains(t, logs.String(), "could not restrict state to domain")
	obs.AssertExpectations(t)
}

func TestGuardStagnationIsQuietWhenNotVerbose(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	integ := newFake(dynamo.State{1}, dynamo.State{-1})
	integ.dtMin = 2
	integ.proposed = 2

	g := positiveGuard(t, WithLogger(logger))
	require.NoError(t, g.Affect(integ))
	assert.Empty(t, logs.String())
}

func TestGuardRelativeStagnation(t *testing.T) {
	integ := newFake(dynamo.State{1}, dynamo.State{-1})
	integ.proposed = 8

	// with a scale factor of 0.5 every shrink changes dt by half, so a
	// relative tolerance of 0.6 treats the first shrink as stagnation
	g := positiveGuard(t, WithStagnationTolerance(0.6))
	require.NoError(t, g.Affect(integ))

	assert.Equal(t, []float64{8}, integ.samples)
	assert.InDelta(t, 3.6, integ.proposed, 1e-15)
}

func TestGuardRespectsStopTime(t *testing.T) {
	integ := newFake(dynamo.State{1}, dynamo.State{-1})
	integ.proposed = 2
	integ.tstop, integ.hasStop = 0.5, true

	g := positiveGuard(t)
	require.NoError(t, g.Affect(integ))

	assert.Equal(t, []float64{0.5}, integ.samples)
	assert.Equal(t, 0.5, integ.proposed)
}

func TestGuardSanitizesBeforeProbing(t *testing.T) {
	integ := newFake(dynamo.State{-0.5, 1}, dynamo.State{1, 1})
	integ.proposed = 1

	obs := new(mockObserver)
	obs.On("ObserveGuard", mock.MatchedBy(func(o Outcome) bool {
		return o.Sanitized && o.Accepted && o.Kind == "positive" && o.ProposedDt == 1
	})).Once()

	g := positiveGuard(t, WithObserver(obs))
	require.NoError(t, g.Affect(integ))

	assert.Equal(t, dynamo.State{0, 1}, integ.u)
	assert.Equal(t, 1, integ.modified)
	obs.AssertExpectations(t)
}

func TestGuardToleranceFallback(t *testing.T) {
	// u(1) = -0.4
	integ := newFake(dynamo.State{1}, dynamo.State{-1.4})
	integ.abstol = dynamo.Scalar(0.5)
	integ.proposed = 1

	g := positiveGuard(t)
	require.NoError(t, g.Initialize(integ))
	require.NoError(t, g.Affect(integ))
	assert.Equal(t, 1.0, integ.proposed, "integrator tolerance admits the probe")

	integ = newFake(dynamo.State{1}, dynamo.State{-1.4})
	integ.abstol = dynamo.Scalar(0.5)
	integ.proposed = 1

	g = positiveGuard(t, WithAbsTol(dynamo.Scalar(1e-6)))
	require.NoError(t, g.Initialize(integ))
	require.NoError(t, g.Affect(integ))
	assert.Less(t, integ.proposed, 1.0, "configured tolerance overrides it")
}

func TestGuardResolvesToleranceForEachIntegrator(t *testing.T) {
	// u(1) = -0.4 on both integrators
	tight := newFake(dynamo.State{1}, dynamo.State{-1.4})
	tight.proposed = 1
	loose := newFake(dynamo.State{1}, dynamo.State{-1.4})
	loose.abstol = dynamo.Scalar(0.5)
	loose.proposed = 1

	g := positiveGuard(t)
	require.NoError(t, g.Affect(tight))
	assert.Less(t, tight.proposed, 1.0, "tight default rejects the probe")

	require.NoError(t, g.Affect(loose))
	assert.Equal(t, 1.0, loose.proposed, "loose default admits the probe")
	assert.Equal(t, []float64{1}, loose.samples)
}

func TestGuardVectorToleranceMismatch(t *testing.T) {
	integ := newFake(dynamo.State{1, 1}, dynamo.State{0, 0})
	integ.dt, integ.proposed = 0.3, 1

	g := positiveGuard(t, WithAbsTol(dynamo.Vector(1e-6)))
	err := g.Affect(integ)
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
	assert.Equal(t, 0.3, integ.dt, "active step is restored on error")
}

func TestGuardGeneralDomain(t *testing.T) {
	g := dynamo.AutonomousResidual(func(resid, u dynamo.State) error {
		resid[0] = u[0] - 1
		return nil
	})
	c, err := NewGeneralConstraint(g, nil, make(dynamo.State, 1))
	require.NoError(t, err)
	guard, err := NewGuard(c, WithAbsTol(dynamo.Scalar(0.1)))
	require.NoError(t, err)

	// u drifts away from 1 at unit rate, so only steps below 0.1 stay close
	integ := newFake(dynamo.State{1}, dynamo.State{1})
	integ.proposed = 1
	require.NoError(t, guard.Affect(integ))

	assert.Equal(t, []float64{1, 0.5, 0.25, 0.125, 0.0625}, integ.samples)
	assert.InDelta(t, 0.9*0.0625, integ.proposed, 1e-15)
}

func TestNewGuardValidatesScaleFactor(t *testing.T) {
	for _, f := range []float64{0, 1, -0.5, 1.5, nan()} {
		_, err := NewGuard(NewPositiveConstraint(nil), WithScaleFactor(f))
		assert.ErrorIs(t, err, ErrInvalidScaleFactor, "scale factor %g", f)
	}
	_, err := NewPositive(WithScaleFactor(1))
	assert.ErrorIs(t, err, ErrInvalidScaleFactor)
}

func TestNewPositiveCallback(t *testing.T) {
	cb, err := NewPositive()
	require.NoError(t, err)

	assert.Equal(t, "positive_domain", cb.Name)
	assert.True(t, cb.SaveAfter)
	assert.Nil(t, cb.Condition)

	cb, err = NewPositive(WithSave(false))
	require.NoError(t, err)
	assert.False(t, cb.SaveAfter)
}

func TestNewGeneralInstallsProjection(t *testing.T) {
	g := dynamo.AutonomousResidual(func(resid, u dynamo.State) error {
		resid[0] = u[0] - 1
		return nil
	})
	set, err := NewGeneral(g)
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, "manifold_projection", set[0].Name)
	assert.Equal(t, "general_domain", set[1].Name)

	_, err = NewGeneral(nil)
	assert.ErrorIs(t, err, ErrNilResidual)
}

func TestGuardStopsWhenStepShrinksToZero(t *testing.T) {
	for _, tdir := range []float64{1, -1} {
		t.Run(fmt.Sprintf("tdir=%g", tdir), func(t *testing.T) {
			// a zero state is never strictly inside the domain with zero tolerance
			integ := newFake(dynamo.State{0}, dynamo.State{0})
			integ.tdir = tdir
			integ.dt, integ.proposed = tdir*0.3, tdir*1

			obs := new(mockObserver)
			obs.On("ObserveGuard", mock.MatchedBy(func(o Outcome) bool {
				return !o.Accepted && !o.Stagnated && o.Iterations > 1000
			})).Once()

			g := positiveGuard(t, WithAbsTol(dynamo.Scalar(0)), WithObserver(obs))
			require.NoError(t, g.Affect(integ))

			assert.Zero(t, integ.proposed)
			assert.Equal(t, tdir < 0, math.Signbit(integ.proposed), "zero proposal keeps the direction's sign")
			assert.Equal(t, tdir*0.3, integ.dt, "active step is restored")
			for _, s := range integ.samples {
				assert.Greater(t, tdir*s, 0.0, "every probe lies ahead of t")
			}
			obs.AssertExpectations(t)
		})
	}
}
