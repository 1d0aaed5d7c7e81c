// Package relay forwards a submitted lead to third-party collectors.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrAllFailed is returned when no relay that counts toward success delivered the submission
var ErrAllFailed = errors.New("all submission relays failed")

// Submission is one lead as the collectors see it
type Submission struct {
	Subject      string
	AutoResponse string
	FirstName    string
	Email        string
	// Fields are the flat form values, keyed by the site's form field names
	Fields      map[string]string
	SubmittedAt time.Time
}

// Relay delivers a submission to one collector
type Relay interface {
	// Name identifies the relay in results and metrics
	Name() string
	// Critical reports whether a delivery through this relay counts toward success
	Critical() bool
	// Deliver sends the submission and returns an error if the collector did not accept it
	Deliver(ctx context.Context, sub Submission) error
}

// Result records which relays accepted a submission
type Result struct {
	Success   bool            `json:"success"`
	Delivered map[string]bool `json:"delivered"`
	Errors    []string        `json:"errors,omitempty"`
}

// Dispatcher sends a submission to every relay at once
type Dispatcher struct {
	relays  []Relay
	timeout time.Duration
}

// NewDispatcher creates a Dispatcher that gives each relay up to timeout to finish
func NewDispatcher(timeout time.Duration, relays ...Relay) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{relays: relays, timeout: timeout}
}

// Relays returns the names of the configured relays
func (d *Dispatcher) Relays() []string {
	names := make([]string, len(d.relays))
	for i, r := range d.relays {
		names[i] = r.Name()
	}
	return names
}

// Dispatch delivers to all relays in parallel. One relay failing never cancels the others.
// The result is always returned; the error is ErrAllFailed when the submission did not land anywhere that counts.
func (d *Dispatcher) Dispatch(ctx context.Context, sub Submission) (*Result, error) {
	result := &Result{Delivered: make(map[string]bool, len(d.relays))}
	if len(d.relays) == 0 {
		result.Success = true
		return result, nil
	}

	var (
		mu   sync.Mutex
		errs = make(map[string]error)
		g    errgroup.Group
	)

	for _, r := range d.relays {
		g.Go(func() error {
			rctx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()

			err := r.Deliver(rctx, sub)
			deliveries.WithLabelValues(r.Name(), outcome(err)).Inc()

			mu.Lock()
			defer mu.Unlock()
			result.Delivered[r.Name()] = err == nil
			if err != nil {
				errs[r.Name()] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		slog.Warn("Relay delivery failed", "relay", name, "error", errs[name])
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, errs[name]))
	}

	result.Success = d.succeeded(result.Delivered)
	if !result.Success {
		return result, ErrAllFailed
	}
	return result, nil
}

// succeeded needs a critical delivery, or any delivery when no relay is critical
func (d *Dispatcher) succeeded(delivered map[string]bool) bool {
	anyCritical := false
	for _, r := range d.relays {
		if r.Critical() {
			anyCritical = true
			if delivered[r.Name()] {
				return true
			}
		}
	}
	if anyCritical {
		return false
	}
	for _, ok := range delivered {
		if ok {
			return true
		}
	}
	return false
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
