package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateTransitionTable(t *testing.T) {
	tests := []struct {
		from    State
		to      State
		allowed bool
	}{
		{StateSubmitted, StateVerificationPending, true},
		{StateSubmitted, StateCancelled, true},
		{StateSubmitted, StateVerified, false},
		{StateVerificationPending, StateVerified, true},
		{StateVerificationPending, StateRejected, true},
		{StateVerified, StateAwaitingSecondary, true},
		{StateVerified, StateTimeDelay, false},
		{StateAwaitingSecondary, StateTimeDelay, true},
		{StateAwaitingSecondary, StateCompleted, false},
		{StateTimeDelay, StateCompleted, true},
		{StateTimeDelay, StateCancelled, true},
		{StateTimeDelay, StateRejected, false},
		{StateCompleted, StateCancelled, false},
		{StateRejected, StateVerificationPending, false},
		{StateCancelled, StateSubmitted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateRejected.Terminal())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StateSubmitted.Terminal())
	assert.False(t, StateTimeDelay.Terminal())
}
