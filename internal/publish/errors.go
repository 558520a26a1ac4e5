package publish

import (
	"errors"
	"fmt"
	"time"

	"parcel/internal/registry"
)

// Sentinel errors classifying publish failures. Wrapped errors carry the
// underlying cause; match with errors.Is.
var (
	// ErrBuild means the package artifact could not be constructed.
	ErrBuild = errors.New("publish: package build failed")

	// ErrNoNamespace means no namespace was given and none could be
	// derived from the manifest while prompting is disallowed.
	ErrNoNamespace = errors.New("publish: no namespace specified, use --namespace")

	// ErrRegistryQuery means a registry read failed. It never implies the
	// queried object is absent.
	ErrRegistryQuery = errors.New("publish: registry query failed")

	// ErrUpload means the archive bytes could not be transferred.
	// Re-running the publish is safe, the dedup check keys on content.
	ErrUpload = errors.New("publish: upload failed")
)

// RejectedError is a registry response that reports logical failure
// despite transport success. The server-provided detail is preserved.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "publish: registry rejected the release"
	}
	return fmt.Sprintf("publish: registry rejected the release: %s", e.Message)
}

// InvariantError is a successful registry response missing a field the
// protocol requires. It indicates a broken server contract.
type InvariantError struct {
	Missing string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("publish: registry response missing %s after reported success", e.Missing)
}

// WaitTimeoutError means the pushed release did not reach the requested
// readiness in time. The push itself already succeeded.
type WaitTimeoutError struct {
	Condition  WaitCondition
	Elapsed    time.Duration
	LastStatus *registry.ReleaseStatus
}

func (e *WaitTimeoutError) Error() string {
	msg := fmt.Sprintf("publish: release did not reach %s readiness within %s", e.Condition, e.Elapsed)
	if e.LastStatus != nil {
		msg += fmt.Sprintf(" (last state: %s)", e.LastStatus.State)
	}
	return msg
}
