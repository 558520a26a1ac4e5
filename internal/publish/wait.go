package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"parcel/internal/registry"
)

// WaitCondition is the readiness the caller wants to observe after a push.
type WaitCondition int

const (
	// WaitNone returns immediately after the push.
	WaitNone WaitCondition = iota
	// WaitContainer waits until the release's container image is ready.
	WaitContainer
	// WaitAll waits for container and binding readiness.
	WaitAll
)

// ParseWaitCondition parses a --wait flag value.
func ParseWaitCondition(s string) (WaitCondition, error) {
	switch s {
	case "", "none":
		return WaitNone, nil
	case "container":
		return WaitContainer, nil
	case "all":
		return WaitAll, nil
	default:
		return WaitNone, fmt.Errorf("unknown wait condition %q (expected none, container, or all)", s)
	}
}

func (c WaitCondition) String() string {
	switch c {
	case WaitContainer:
		return "container"
	case WaitAll:
		return "all"
	default:
		return "none"
	}
}

func (c WaitCondition) satisfiedBy(status *registry.ReleaseStatus) bool {
	switch c {
	case WaitContainer:
		return status.ContainerReady
	case WaitAll:
		return status.ContainerReady && status.BindingsReady
	default:
		return true
	}
}

// Clock abstracts time for the waiter so tests run without real delays.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const (
	pollInterval = 2 * time.Second
	// maxTransientPolls bounds consecutive failed status queries before
	// the waiter gives up. Unbounded retry is not allowed.
	maxTransientPolls = 3
)

// wait polls the release status until condition is satisfied or timeout
// elapses. A timeout yields a WaitTimeoutError carrying the last observed
// status; it does not mean the push failed. Transient query failures are
// retried with doubling backoff up to maxTransientPolls in a row.
func (o *Orchestrator) wait(ctx context.Context, condition WaitCondition, releaseID string, timeout time.Duration) error {
	if condition == WaitNone {
		return nil
	}

	o.progress.Start(fmt.Sprintf("Waiting for the release to reach %s readiness...", condition))

	start := o.clock.Now()
	deadline := start.Add(timeout)

	var lastStatus *registry.ReleaseStatus
	transient := 0
	delay := pollInterval

	for {
		status, err := o.api.PollStatus(ctx, releaseID)
		if err != nil {
			transient++
			if transient >= maxTransientPolls {
				o.progress.Fail("Status polling failed")
				return wrap(ErrRegistryQuery, err)
			}
			log.Debug("Transient status query failure", "release", releaseID, "attempt", transient, "error", err)
			delay *= 2
		} else {
			transient = 0
			delay = pollInterval
			lastStatus = status
			if condition.satisfiedBy(status) {
				o.progress.Success("Release is ready")
				return nil
			}
		}

		now := o.clock.Now()
		if !now.Before(deadline) {
			o.progress.Fail("Timed out waiting for readiness")
			return &WaitTimeoutError{
				Condition:  condition,
				Elapsed:    now.Sub(start),
				LastStatus: lastStatus,
			}
		}

		// Never sleep past the deadline; the last poll lands exactly on it.
		sleep := delay
		if remaining := deadline.Sub(now); remaining < sleep {
			sleep = remaining
		}

		if err := o.clock.Sleep(ctx, sleep); err != nil {
			o.progress.Stop()
			return err
		}
	}
}
