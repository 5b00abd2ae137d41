// Package export runs listing exports with per-surface admission
// control and pluggable destinations.
//
// Admission is a UI-level policy, not a server-side guarantee: "single"
// blocks every export trigger while one runs, "per-format" blocks only
// the same format, and "none" never blocks but still drives a busy
// indicator on the triggering control.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Policy is the admission-control policy for one export surface.
type Policy string

const (
	PolicySingle    Policy = "single"
	PolicyPerFormat Policy = "per-format"
	PolicyNone      Policy = "none"
)

// ValidPolicy reports whether p is a known policy.
func ValidPolicy(p Policy) bool {
	return p == PolicySingle || p == PolicyPerFormat || p == PolicyNone
}

// ErrBusy means the admission policy refused to start another export.
var ErrBusy = errors.New("export already running")

// Source streams the export content for a format, typically by asking
// the backend for the current listing in that format.
type Source func(ctx context.Context, format string, params url.Values, w io.Writer) error

// Sink stores a finished export and returns its location.
type Sink interface {
	Store(ctx context.Context, name string, content io.Reader) (string, error)
}

// BusyFunc observes the busy state of one format's trigger control.
type BusyFunc func(format string, busy bool)

// Runner coordinates exports for one grid surface.
type Runner struct {
	policy Policy
	source Source
	sink   Sink
	busy   BusyFunc
	logger *slog.Logger

	mu      sync.Mutex
	running map[string]struct{}
}

// NewRunner builds a runner. An invalid policy falls back to single,
// the most conservative one.
func NewRunner(policy Policy, source Source, sink Sink, busy BusyFunc) *Runner {
	if !ValidPolicy(policy) {
		policy = PolicySingle
	}
	if busy == nil {
		busy = func(string, bool) {}
	}
	return &Runner{
		policy:  policy,
		source:  source,
		sink:    sink,
		busy:    busy,
		logger:  slog.Default().With("component", "export"),
		running: make(map[string]struct{}),
	}
}

// Export runs one export and returns the stored location. ErrBusy means
// the trigger was refused by policy and nothing ran.
func (r *Runner) Export(ctx context.Context, format string, params url.Values) (string, error) {
	if err := r.admit(format); err != nil {
		return "", err
	}
	r.busy(format, true)
	defer func() {
		r.release(format)
		r.busy(format, false)
	}()

	var buf bytes.Buffer
	if err := r.source(ctx, format, params, &buf); err != nil {
		return "", fmt.Errorf("export %s: %w", format, err)
	}

	name := fmt.Sprintf("export-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	location, err := r.sink.Store(ctx, name, &buf)
	if err != nil {
		return "", fmt.Errorf("store export %s: %w", name, err)
	}
	r.logger.InfoContext(ctx, "export stored", "format", format, "location", location)
	return location, nil
}

func (r *Runner) admit(format string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.policy {
	case PolicySingle:
		if len(r.running) > 0 {
			return ErrBusy
		}
	case PolicyPerFormat:
		if _, ok := r.running[format]; ok {
			return ErrBusy
		}
	case PolicyNone:
		// Never refused; the busy indicator still runs.
	}
	r.running[format] = struct{}{}
	return nil
}

func (r *Runner) release(format string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, format)
}
