package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postsync/internal/core/domain"
	"postsync/internal/service"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    service.State
		obs     service.Observation
		attempt int
		want    service.State
	}{
		{"start", service.StateNotStarted, service.ObservedStarted, 0, service.StateStarted},
		{"first check pending", service.StateStarted, service.ObservedPending, 1, service.StatePolling},
		{"pending again", service.StatePolling, service.ObservedPending, 2, service.StatePolling},
		{"pending on last attempt", service.StatePolling, service.ObservedPending, 3, service.StateTimedOut},
		{"succeeded", service.StatePolling, service.ObservedSucceeded, 2, service.StateSucceeded},
		{"succeeded on first check", service.StateStarted, service.ObservedSucceeded, 1, service.StateSucceeded},
		{"failed", service.StateStarted, service.ObservedFailed, 1, service.StateFailed},
		{"cancelled", service.StatePolling, service.ObservedCancelled, 2, service.StateTimedOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := service.Transition(tt.from, tt.obs, tt.attempt, 3)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransition_Invalid(t *testing.T) {
	tests := []struct {
		from service.State
		obs  service.Observation
	}{
		{service.StateNotStarted, service.ObservedPending},
		{service.StateStarted, service.ObservedStarted},
		{service.StateSucceeded, service.ObservedPending},
		{service.StateFailed, service.ObservedSucceeded},
		{service.StateTimedOut, service.ObservedPending},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+tt.obs.String(), func(t *testing.T) {
			got, err := service.Transition(tt.from, tt.obs, 1, 3)
			require.ErrorIs(t, err, service.ErrInvalidTransition)
			assert.Equal(t, tt.from, got)
		})
	}
}

func TestTransition_TerminalStatesAreAbsorbing(t *testing.T) {
	for _, s := range []service.State{service.StateSucceeded, service.StateFailed, service.StateTimedOut} {
		assert.True(t, s.Terminal(), s)
		for obs := service.ObservedStarted; obs <= service.ObservedCancelled; obs++ {
			_, err := service.Transition(s, obs, 1, 3)
			assert.Error(t, err, "%s accepted %s", s, obs)
		}
	}
	assert.False(t, service.StatePolling.Terminal())
}

func TestObserve(t *testing.T) {
	tests := map[domain.RunStatus]service.Observation{
		domain.StatusReady:     service.ObservedPending,
		domain.StatusRunning:   service.ObservedPending,
		domain.StatusTimingOut: service.ObservedPending,
		domain.StatusAborting:  service.ObservedPending,
		domain.StatusSucceeded: service.ObservedSucceeded,
		domain.StatusFailed:    service.ObservedFailed,
		"failed":               service.ObservedFailed,
		"aborted":              service.ObservedFailed,
		domain.StatusTimedOut:  service.ObservedFailed,
	}

	for status, want := range tests {
		assert.Equal(t, want, service.Observe(status), status)
	}
}
