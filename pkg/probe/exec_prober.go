package probe

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"time"
)

// ExecProber checks reachability by running the operating system's ping
// utility once and classifying its text output.
type ExecProber struct {
	classifier Classifier
	timeout    time.Duration
}

// NewExecProber builds a prober around the given classifier. A zero timeout
// leaves the probe bounded only by whatever the ping utility enforces.
func NewExecProber(classifier Classifier, timeout time.Duration) *ExecProber {
	return &ExecProber{
		classifier: classifier,
		timeout:    timeout,
	}
}

// Probe runs one ping against host. A non-zero exit with usable output is
// still a valid (unreachable) result; only a launch or I/O failure is an
// error.
func (p *ExecProber) Probe(ctx context.Context, host string) (Result, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	countFlag := "-c"
	if runtime.GOOS == "windows" {
		countFlag = "-n"
	}

	cmd := exec.CommandContext(ctx, "ping", countFlag, "1", host)
	out, err := cmd.CombinedOutput()
	if err != nil {
		// ping exits non-zero when the host does not answer; the output
		// still carries the loss summary and must be classified, not
		// treated as a probe failure.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || len(out) == 0 {
			return Result{}, &ExecError{Host: host, Err: err}
		}
	}

	output := string(out)
	return Result{
		Reachable: !p.classifier.Unreachable(output),
		Output:    output,
	}, nil
}
