package publish

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel/internal/registry"
)

func TestWaitNoneReturnsImmediately(t *testing.T) {
	api := &fakeAPI{
		pollStatus: func(int) (*registry.ReleaseStatus, error) {
			return nil, errors.New("must not be called")
		},
	}
	o := newTestOrchestrator(api, nil)

	err := o.wait(context.Background(), WaitNone, "rel_1", time.Minute)
	require.NoError(t, err)
	assert.Zero(t, api.pollCalls)
}

func TestWaitSucceedsOnceConditionHolds(t *testing.T) {
	api := &fakeAPI{
		pollStatus: func(call int) (*registry.ReleaseStatus, error) {
			if call < 3 {
				return &registry.ReleaseStatus{State: "deploying"}, nil
			}
			return &registry.ReleaseStatus{State: "ready", ContainerReady: true}, nil
		},
	}
	o := newTestOrchestrator(api, nil)

	err := o.wait(context.Background(), WaitContainer, "rel_1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, api.pollCalls)
}

func TestWaitAllNeedsBothSignals(t *testing.T) {
	api := &fakeAPI{
		pollStatus: func(call int) (*registry.ReleaseStatus, error) {
			if call == 1 {
				return &registry.ReleaseStatus{ContainerReady: true}, nil
			}
			return &registry.ReleaseStatus{ContainerReady: true, BindingsReady: true}, nil
		},
	}
	o := newTestOrchestrator(api, nil)

	err := o.wait(context.Background(), WaitAll, "rel_1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, api.pollCalls)
}

func TestWaitTimeoutCarriesLastStatus(t *testing.T) {
	api := &fakeAPI{
		pollStatus: func(int) (*registry.ReleaseStatus, error) {
			return &registry.ReleaseStatus{State: "stuck"}, nil
		},
	}
	o := newTestOrchestrator(api, nil)

	err := o.wait(context.Background(), WaitContainer, "rel_1", 6*time.Second)

	var timeout *WaitTimeoutError
	require.ErrorAs(t, err, &timeout)
	require.NotNil(t, timeout.LastStatus)
	assert.Equal(t, "stuck", timeout.LastStatus.State)
	assert.Equal(t, WaitContainer, timeout.Condition)
	assert.Equal(t, 6*time.Second, timeout.Elapsed, "timeout must not fire before the full duration")
}

func TestWaitFinalPollLandsOnDeadline(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	api := &fakeAPI{
		pollStatus: func(call int) (*registry.ReleaseStatus, error) {
			// Ready only at t+5s, one second past the last full interval.
			return &registry.ReleaseStatus{ContainerReady: call >= 4}, nil
		},
	}
	o := newTestOrchestrator(api, nil, WithClock(clk))

	err := o.wait(context.Background(), WaitContainer, "rel_1", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 4, api.pollCalls)
	assert.Equal(t, time.Unix(1005, 0), clk.now, "last sleep is clamped to the remaining time")
}

func TestWaitTransientFailuresAreBounded(t *testing.T) {
	api := &fakeAPI{
		pollStatus: func(int) (*registry.ReleaseStatus, error) {
			return nil, errors.New("connection reset")
		},
	}
	o := newTestOrchestrator(api, nil)

	err := o.wait(context.Background(), WaitContainer, "rel_1", time.Hour)
	require.ErrorIs(t, err, ErrRegistryQuery)
	assert.Equal(t, maxTransientPolls, api.pollCalls)
}

func TestWaitRecoversFromTransientFailure(t *testing.T) {
	api := &fakeAPI{
		pollStatus: func(call int) (*registry.ReleaseStatus, error) {
			if call%2 == 1 {
				return nil, errors.New("connection reset")
			}
			return &registry.ReleaseStatus{ContainerReady: call >= 4}, nil
		},
	}
	o := newTestOrchestrator(api, nil)

	err := o.wait(context.Background(), WaitContainer, "rel_1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 4, api.pollCalls)
}

func TestParseWaitCondition(t *testing.T) {
	tests := []struct {
		input   string
		want    WaitCondition
		wantErr bool
	}{
		{"", WaitNone, false},
		{"none", WaitNone, false},
		{"container", WaitContainer, false},
		{"all", WaitAll, false},
		{"bogus", WaitNone, true},
	}

	for _, tt := range tests {
		t.Run("input="+tt.input, func(t *testing.T) {
			got, err := ParseWaitCondition(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
