// Package publish drives the end-to-end package publish workflow:
// build, namespace resolution, dedup check, conditional upload,
// availability wait, and query-cache invalidation.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/opencontainers/go-digest"

	"parcel/internal/builder"
	"parcel/internal/manifest"
	"parcel/internal/querycache"
	"parcel/internal/registry"
)

// RegistryAPI is the slice of the registry client the publish flow needs.
type RegistryAPI interface {
	FindByHash(ctx context.Context, hash digest.Digest) (*registry.ReleaseRecord, error)
	RequestUpload(ctx context.Context, hash digest.Digest) (*registry.UploadDestination, error)
	Transfer(ctx context.Context, dest *registry.UploadDestination, archivePath string, timeout time.Duration) error
	RegisterRelease(ctx context.Context, namespace string, dest *registry.UploadDestination, private bool) (*registry.PushResult, error)
	PollStatus(ctx context.Context, releaseID string) (*registry.ReleaseStatus, error)
	CurrentIdentity(ctx context.Context) (*registry.Identity, error)
}

// IdentityPrompt asks the user to pick one of their namespaces.
// The CLI provides a survey-backed implementation; tests use stubs.
type IdentityPrompt interface {
	SelectNamespace(id *registry.Identity) (string, error)
}

// Progress is a suspendable progress indicator for long-running steps.
type Progress interface {
	Start(message string)
	Success(message string)
	Fail(message string)
	Stop()
}

type noopProgress struct{}

func (noopProgress) Start(string)   {}
func (noopProgress) Success(string) {}
func (noopProgress) Fail(string)    {}
func (noopProgress) Stop()          {}

// BuildFunc constructs the package artifact and its content hash.
type BuildFunc func(ctx context.Context, manifestPath string) (*builder.Artifact, digest.Digest, error)

// Options controls a single publish invocation.
type Options struct {
	// Namespace overrides namespace resolution when set.
	Namespace string
	// DryRun performs every decision but no mutating registry call.
	DryRun bool
	// NonInteractive forbids prompting.
	NonInteractive bool
	// Wait is the readiness condition to observe before returning.
	Wait WaitCondition
	// Timeout bounds each individual registry call, not the whole flow.
	Timeout time.Duration
	// CacheDir is the query cache to invalidate. Empty uses the default.
	CacheDir string
}

// Result reports the outcome of a publish invocation.
type Result struct {
	Hash          digest.Digest
	Namespace     string
	ReleaseID     string
	Pushed        bool
	AlreadyExists bool
	DryRun        bool
	// WaitErr holds a readiness timeout. The push itself succeeded.
	WaitErr error
}

// Orchestrator sequences one publish invocation. Re-running a failed
// publish is always safe: the dedup check keys on content hash.
type Orchestrator struct {
	api        RegistryAPI
	prompt     IdentityPrompt
	clock      Clock
	progress   Progress
	build      BuildFunc
	invalidate func(dir string) error
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// New creates an Orchestrator talking to api.
func New(api RegistryAPI, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:        api,
		clock:      realClock{},
		progress:   noopProgress{},
		build:      builder.Build,
		invalidate: querycache.Invalidate,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// WithPrompt sets the interactive namespace prompt.
func WithPrompt(p IdentityPrompt) Option {
	return func(o *Orchestrator) { o.prompt = p }
}

// WithClock sets the clock used by the availability waiter.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithProgress sets the progress indicator.
func WithProgress(p Progress) Option {
	return func(o *Orchestrator) { o.progress = p }
}

// WithBuilder sets the artifact builder.
func WithBuilder(b BuildFunc) Option {
	return func(o *Orchestrator) { o.build = b }
}

// WithInvalidator sets the query-cache invalidation function.
func WithInvalidator(fn func(dir string) error) Option {
	return func(o *Orchestrator) { o.invalidate = fn }
}

// Publish runs the workflow for the package at manifestPath.
//
// Errors from build, namespace resolution, the dedup check, upload, and
// registration abort the invocation. A readiness timeout after a
// successful push is returned in Result.WaitErr, not as an error. Cache
// invalidation failures are logged and never change the outcome.
func (o *Orchestrator) Publish(ctx context.Context, manifestPath string, m *manifest.Manifest, opts Options) (*Result, error) {
	o.progress.Start("Building package locally...")
	artifact, hash, err := o.build(ctx, manifestPath)
	if err != nil {
		o.progress.Fail("Package build failed")
		return nil, wrap(ErrBuild, err)
	}
	defer func() {
		if err := artifact.Remove(); err != nil {
			log.Debug("Could not remove build artifact", "path", artifact.Path, "error", err)
		}
	}()
	o.progress.Success("Package built")
	log.Debug("Package built", "hash", hash, "size", artifact.Size)

	namespace, err := o.resolveNamespace(ctx, opts.Namespace, m, !opts.NonInteractive)
	if err != nil {
		return nil, err
	}

	private := m.Private()
	log.Debug("Resolved publish target", "namespace", namespace, "private", private)

	result := &Result{Hash: hash, Namespace: namespace}

	o.progress.Start("Checking if the package is already in the registry...")
	needed, err := o.shouldUpload(ctx, hash)
	if err != nil {
		o.progress.Fail("Registry check failed")
		return nil, err
	}

	switch {
	case !needed:
		result.AlreadyExists = true
		o.progress.Success("Package already in the registry, no push needed")

	case opts.DryRun:
		result.DryRun = true
		o.progress.Success("Dry-run: package would have been pushed")

	default:
		o.progress.Stop()
		releaseID, err := o.push(ctx, namespace, artifact, hash, private, opts.Timeout)
		if err != nil {
			return nil, err
		}
		result.Pushed = true
		result.ReleaseID = releaseID

		if err := o.wait(ctx, opts.Wait, releaseID, opts.Timeout); err != nil {
			var timeout *WaitTimeoutError
			if !errors.As(err, &timeout) {
				return nil, err
			}
			result.WaitErr = err
		}
	}

	// The cache is corrected after every dedup determination, not only
	// after an upload: a cached "not found" must not outlive this call.
	if err := o.invalidate(opts.CacheDir); err != nil {
		log.Warn("Unable to invalidate the package query cache", "error", err)
	}

	return result, nil
}

func wrap(kind, cause error) error {
	return fmt.Errorf("%w: %w", kind, cause)
}
