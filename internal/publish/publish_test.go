package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel/internal/builder"
	"parcel/internal/manifest"
	"parcel/internal/registry"
)

var contentHash = digest.FromString("package bytes")

// fakeAPI is a scripted RegistryAPI that counts calls.
type fakeAPI struct {
	mu sync.Mutex

	findByHash      func(digest.Digest) (*registry.ReleaseRecord, error)
	requestUpload   func(digest.Digest) (*registry.UploadDestination, error)
	transfer        func() error
	registerRelease func(string, bool) (*registry.PushResult, error)
	pollStatus      func(int) (*registry.ReleaseStatus, error)
	currentIdentity func() (*registry.Identity, error)

	findCalls     int
	uploadCalls   int
	transferCalls int
	registerCalls int
	pollCalls     int
	identityCalls int
}

func (f *fakeAPI) FindByHash(_ context.Context, hash digest.Digest) (*registry.ReleaseRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.findByHash == nil {
		return nil, nil
	}
	return f.findByHash(hash)
}

func (f *fakeAPI) RequestUpload(_ context.Context, hash digest.Digest) (*registry.UploadDestination, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadCalls++
	if f.requestUpload == nil {
		return &registry.UploadDestination{URL: "https://blobs.example.com/u/1"}, nil
	}
	return f.requestUpload(hash)
}

func (f *fakeAPI) Transfer(_ context.Context, _ *registry.UploadDestination, _ string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transferCalls++
	if f.transfer == nil {
		return nil
	}
	return f.transfer()
}

func (f *fakeAPI) RegisterRelease(_ context.Context, namespace string, _ *registry.UploadDestination, private bool) (*registry.PushResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	if f.registerRelease == nil {
		return &registry.PushResult{Success: true, ReleaseID: "rel_1"}, nil
	}
	return f.registerRelease(namespace, private)
}

func (f *fakeAPI) PollStatus(_ context.Context, _ string) (*registry.ReleaseStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollCalls++
	if f.pollStatus == nil {
		return &registry.ReleaseStatus{State: "ready", ContainerReady: true, BindingsReady: true}, nil
	}
	return f.pollStatus(f.pollCalls)
}

func (f *fakeAPI) CurrentIdentity(_ context.Context) (*registry.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identityCalls++
	if f.currentIdentity == nil {
		return &registry.Identity{Username: "jane", Namespaces: []string{"jane", "acme"}}, nil
	}
	return f.currentIdentity()
}

func (f *fakeAPI) networkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findCalls + f.uploadCalls + f.transferCalls + f.registerCalls + f.pollCalls + f.identityCalls
}

// fakeClock advances instantly instead of sleeping.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.now = c.now.Add(d)
	return nil
}

func fakeBuild(_ context.Context, _ string) (*builder.Artifact, digest.Digest, error) {
	return &builder.Artifact{Size: 42}, contentHash, nil
}

type promptStub struct {
	choice string
	called bool
}

func (p *promptStub) SelectNamespace(*registry.Identity) (string, error) {
	p.called = true
	return p.choice, nil
}

func manifestWithName(name string) *manifest.Manifest {
	return &manifest.Manifest{Package: &manifest.Package{Name: name}}
}

func newTestOrchestrator(api *fakeAPI, invalidated *int, extra ...Option) *Orchestrator {
	opts := []Option{
		WithBuilder(fakeBuild),
		WithClock(&fakeClock{now: time.Unix(1000, 0)}),
		WithInvalidator(func(string) error {
			if invalidated != nil {
				*invalidated++
			}
			return nil
		}),
	}
	return New(api, append(opts, extra...)...)
}

func TestPublishTwiceUploadsOnce(t *testing.T) {
	var records sync.Map
	api := &fakeAPI{}
	api.findByHash = func(hash digest.Digest) (*registry.ReleaseRecord, error) {
		if r, ok := records.Load(hash); ok {
			return r.(*registry.ReleaseRecord), nil
		}
		return nil, nil
	}
	api.registerRelease = func(namespace string, _ bool) (*registry.PushResult, error) {
		records.Store(contentHash, &registry.ReleaseRecord{ID: "rel_1", Hash: contentHash, Namespace: namespace})
		return &registry.PushResult{Success: true, ReleaseID: "rel_1"}, nil
	}

	var invalidations int
	o := newTestOrchestrator(api, &invalidations)
	opts := Options{Timeout: time.Minute}

	first, err := o.Publish(context.Background(), "parcel.toml", manifestWithName("acme/tool"), opts)
	require.NoError(t, err)
	assert.True(t, first.Pushed)
	assert.False(t, first.AlreadyExists)
	assert.Equal(t, "rel_1", first.ReleaseID)

	second, err := o.Publish(context.Background(), "parcel.toml", manifestWithName("acme/tool"), opts)
	require.NoError(t, err)
	assert.False(t, second.Pushed)
	assert.True(t, second.AlreadyExists)

	assert.Equal(t, 1, api.transferCalls, "identical content must transfer exactly once")
	assert.Equal(t, 1, api.registerCalls)
	assert.Equal(t, 2, invalidations, "both invocations must invalidate the cache")
}

func TestPublishDryRunSkipsUploadButInvalidates(t *testing.T) {
	api := &fakeAPI{}
	var invalidations int
	o := newTestOrchestrator(api, &invalidations)

	result, err := o.Publish(context.Background(), "parcel.toml", manifestWithName("acme/tool"), Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.False(t, result.Pushed)
	assert.Zero(t, api.uploadCalls)
	assert.Zero(t, api.transferCalls)
	assert.Zero(t, api.registerCalls)
	assert.Equal(t, 1, invalidations)
}

func TestPublishAlreadyPresentInvalidates(t *testing.T) {
	api := &fakeAPI{
		findByHash: func(hash digest.Digest) (*registry.ReleaseRecord, error) {
			return &registry.ReleaseRecord{ID: "rel_0", Hash: hash}, nil
		},
	}
	var invalidations int
	o := newTestOrchestrator(api, &invalidations)

	result, err := o.Publish(context.Background(), "parcel.toml", manifestWithName("acme/tool"), Options{})
	require.NoError(t, err)
	assert.True(t, result.AlreadyExists)
	assert.Zero(t, api.transferCalls)
	assert.Equal(t, 1, invalidations)
}

func TestPublishRejectedRegistrationStopsBeforeWaiting(t *testing.T) {
	api := &fakeAPI{
		registerRelease: func(string, bool) (*registry.PushResult, error) {
			return &registry.PushResult{Success: false, Message: "quota exceeded"}, nil
		},
	}
	var invalidations int
	o := newTestOrchestrator(api, &invalidations)

	_, err := o.Publish(context.Background(), "parcel.toml", manifestWithName("acme/tool"), Options{Wait: WaitContainer, Timeout: time.Minute})
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Message, "quota exceeded")
	assert.Zero(t, api.pollCalls)
	assert.Zero(t, invalidations)
}

func TestPublishDedupQueryErrorIsFatal(t *testing.T) {
	api := &fakeAPI{
		findByHash: func(digest.Digest) (*registry.ReleaseRecord, error) {
			return nil, fmt.Errorf("connection reset")
		},
	}
	o := newTestOrchestrator(api, nil)

	_, err := o.Publish(context.Background(), "parcel.toml", manifestWithName("acme/tool"), Options{})
	require.ErrorIs(t, err, ErrRegistryQuery)
	assert.Zero(t, api.transferCalls, "ambiguous existence must never be treated as needs-upload")
}

func TestPublishWaitTimeoutIsNotAPublishFailure(t *testing.T) {
	api := &fakeAPI{
		pollStatus: func(int) (*registry.ReleaseStatus, error) {
			return &registry.ReleaseStatus{State: "deploying"}, nil
		},
	}
	var invalidations int
	o := newTestOrchestrator(api, &invalidations)

	result, err := o.Publish(context.Background(), "parcel.toml", manifestWithName("acme/tool"), Options{Wait: WaitContainer, Timeout: 10 * time.Second})
	require.NoError(t, err)
	assert.True(t, result.Pushed)

	var timeout *WaitTimeoutError
	require.ErrorAs(t, result.WaitErr, &timeout)
	assert.Equal(t, WaitContainer, timeout.Condition)
	assert.Equal(t, 1, invalidations, "push committed, cache must still be invalidated")
}

func TestPublishCacheInvalidationFailureIsNotFatal(t *testing.T) {
	api := &fakeAPI{}
	o := newTestOrchestrator(api, nil, WithInvalidator(func(string) error {
		return errors.New("permission denied")
	}))

	result, err := o.Publish(context.Background(), "parcel.toml", manifestWithName("acme/tool"), Options{})
	require.NoError(t, err)
	assert.True(t, result.Pushed)
}

func TestPublishBuildFailureMakesNoNetworkCalls(t *testing.T) {
	api := &fakeAPI{}
	o := newTestOrchestrator(api, nil, WithBuilder(func(context.Context, string) (*builder.Artifact, digest.Digest, error) {
		return nil, "", errors.New("manifest invalid")
	}))

	_, err := o.Publish(context.Background(), "parcel.toml", &manifest.Manifest{}, Options{})
	require.ErrorIs(t, err, ErrBuild)
	assert.Zero(t, api.networkCalls())
}
