package dnspub

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	DefaultReloadSignal  = "HUP"
	DefaultReloadTimeout = 10 * time.Second
)

// Reloader asks the DNS resolver to pick up a freshly written hosts file.
type Reloader interface {
	Reload(ctx context.Context) error
}

// SignalReloader signals a resolver process by name with pkill.
type SignalReloader struct {
	Process string
	Signal  string
	Timeout time.Duration

	// command is pkill unless overridden in tests
	command string
}

func NewSignalReloader(process string) *SignalReloader {
	return &SignalReloader{
		Process: process,
		Signal:  DefaultReloadSignal,
		Timeout: DefaultReloadTimeout,
	}
}

func (r *SignalReloader) Reload(ctx context.Context) error {
	if r.Process == "" {
		return errors.New("no resolver process configured")
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultReloadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sig := r.Signal
	if sig == "" {
		sig = DefaultReloadSignal
	}
	name := r.command
	if name == "" {
		name = "pkill"
	}

	out, err := exec.CommandContext(ctx, name, "-"+sig, r.Process).CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// pkill exits 1 when no process matched
			return fmt.Errorf("signal %s to %s: exit status %d: %s",
				sig, r.Process, exitErr.ExitCode(), strings.TrimSpace(string(out)))
		}
		return fmt.Errorf("signal %s to %s: %w", sig, r.Process, err)
	}
	return nil
}

// ReloaderFunc adapts a function to Reloader.
type ReloaderFunc func(ctx context.Context) error

func (f ReloaderFunc) Reload(ctx context.Context) error {
	return f(ctx)
}
