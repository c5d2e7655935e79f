package probe

import (
	"context"
	"fmt"
)

// Result is the outcome of a single reachability check.
type Result struct {
	// Reachable is true when the host answered the probe.
	Reachable bool
	// Output is the raw diagnostic text produced by the underlying utility,
	// kept for logging and classification.
	Output string
}

// Prober executes one reachability check against a host.
type Prober interface {
	Probe(ctx context.Context, host string) (Result, error)
}

// ExecError reports that a probe could not be executed at all (process
// launch failure, I/O error, cancellation). It is a per-cycle fault: the
// caller records no sample for the cycle and keeps polling.
type ExecError struct {
	Host string
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("probe of %s could not run: %v", e.Host, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
