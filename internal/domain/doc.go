// Package domain keeps an integration inside a state-space domain.
//
// A domain guard runs after every accepted step. It probes the state the
// integrator would reach with its proposed next step by sampling the dense
// output, and shrinks that proposal geometrically until the probed state is
// inside the domain or the step size stops changing. The step that was
// already taken is never altered.
//
// Two domains are provided:
//
//   - [Positive]: every component must stay non-negative. Negative components
//     of the current state are clamped to zero before probing.
//   - [General]: every component of a residual g(u) must stay below the
//     tolerance in magnitude. [NewGeneral] pairs the guard with an exact
//     projection onto g(u) = 0 (see package manifold).
//
// Constraint instances own scratch buffers and must not be shared between
// integrators that run concurrently.
package domain
