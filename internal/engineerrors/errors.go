// Package engineerrors defines the error taxonomy of the trading engine's
// core (spec §7): sentinel kinds plus a context-carrying wrapper, so
// callers can use errors.Is/errors.As instead of string matching.
package engineerrors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel error kinds. BarDataMissing and BarDataMalformed are handled
// locally (they never escape the simulation loop as fatal); the rest are
// surfaced to the operator or the external collaborator boundary.
var (
	// ErrConfigurationInvalid: a required numeric parameter is non-finite
	// or out of its domain. Fatal at startup.
	ErrConfigurationInvalid = errors.New("configuration invalid")

	// ErrBarDataMissing: the requested epic has no bar with ts <= evaluation ts.
	// Local: treated as NEUTRAL for that epic on that date.
	ErrBarDataMissing = errors.New("bar data missing")

	// ErrBarDataMalformed: missing close column or non-finite prices.
	ErrBarDataMalformed = errors.New("bar data malformed")

	// ErrInstrumentSpecUnavailable: broker lookup failed; falls back to
	// the conservative default margin and caches the fallback.
	ErrInstrumentSpecUnavailable = errors.New("instrument spec unavailable")

	// ErrOrderRejected (live only): router returned no deal reference.
	ErrOrderRejected = errors.New("order rejected")

	// ErrCircuitBreakerActive is expected state, not a failure condition;
	// observed through the risk supervisor's IsActive(), never returned
	// as an error from the simulation loop itself. Kept here so
	// collaborators that want to treat it uniformly with the rest of the
	// taxonomy can still errors.Is against it.
	ErrCircuitBreakerActive = errors.New("circuit breaker active")

	// ErrPersistenceUnavailable: emit a warning and continue; the core
	// never blocks on persistence.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)

// Diagnostic wraps a sentinel error with the epic/timestamp context the
// simulation loop attaches when it records (rather than aborts on) a
// per-epic failure.
type Diagnostic struct {
	Epic string
	At   time.Time
	Err  error
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s @ %s: %v", d.Epic, d.At.Format(time.RFC3339), d.Err)
}

func (d *Diagnostic) Unwrap() error {
	return d.Err
}

// Wrap attaches epic/timestamp context to a sentinel error.
func Wrap(err error, epic string, at time.Time) error {
	return &Diagnostic{Epic: epic, At: at, Err: err}
}
