package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNexusTransitions(t *testing.T) {
	cases := []struct {
		from, to NexusState
		allowed  bool
	}{
		{NexusActive, NexusUnderAttack, true},
		{NexusActive, NexusDestroyed, true},
		{NexusActive, NexusConstruction, false},
		{NexusUnderAttack, NexusActive, true},
		{NexusUnderAttack, NexusDestroyed, true},
		{NexusDestroyed, NexusConstruction, true},
		{NexusDestroyed, NexusActive, false},
		{NexusDestroyed, NexusUnderAttack, false},
		{NexusConstruction, NexusActive, true},
		{NexusConstruction, NexusDestroyed, false},
		{NexusActive, NexusActive, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestObjectiveStateTerminal(t *testing.T) {
	assert.False(t, ObjectiveActive.Terminal())
	assert.True(t, ObjectiveCompleted.Terminal())
	assert.True(t, ObjectiveFailed.Terminal())
	assert.True(t, ObjectiveExpired.Terminal())
}

func TestValidTeam(t *testing.T) {
	assert.True(t, ValidTeam(TeamSolar))
	assert.True(t, ValidTeam(TeamLunar))
	assert.False(t, ValidTeam("PIRATES"))
	assert.False(t, ValidTeam(""))
}
