package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_Priorities(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		typ      Type
		expected Priority
	}{
		{TypeSubmission, PriorityCritical},
		{TypeAssessment, PriorityHigh},
		{TypeResponse, PriorityHigh},
		{TypeQuestion, PriorityNormal},
		{TypeCategory, PriorityNormal},
		{TypeReport, PriorityLow},
		{TypeOrganization, PriorityLow},
		{TypeUser, PriorityLow},
		{TypeInvitation, PriorityLow},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.expected, r.PriorityOf(tt.typ))
			d, err := r.Lookup(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, string(tt.typ), d.Collection)
		})
	}

	assert.Len(t, r.Types(), 9)
	assert.Equal(t, PriorityNormal, r.PriorityOf("unknown"))
}

func TestRegistry_Lookup_Unknown(t *testing.T) {
	_, err := DefaultRegistry().Lookup("widgets")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestLoadRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "entities: ["},
		{"duplicate", "entities:\n  - type: a\n  - type: a\n"},
		{"bad priority", "entities:\n  - type: a\n    priority: urgent\n"},
		{"unknown ref target", "entities:\n  - type: a\n    refs:\n      - {field: b_id, target: b, as: b_name}\n"},
		{"empty type", "entities:\n  - priority: low\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRegistry([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadRegistry_Defaults(t *testing.T) {
	r, err := LoadRegistry([]byte("entities:\n  - type: widgets\n"))
	require.NoError(t, err)

	d, err := r.Lookup("widgets")
	require.NoError(t, err)
	assert.Equal(t, "widgets", d.Collection)
	assert.Equal(t, PriorityNormal, d.Priority)
}

func TestTempID(t *testing.T) {
	id := NewTempID()
	assert.True(t, IsTempID(id))
	assert.NotEqual(t, id, NewTempID())
	assert.False(t, IsTempID("42"))
}

func TestPriorityRank(t *testing.T) {
	assert.Greater(t, PriorityCritical.Rank(), PriorityHigh.Rank())
	assert.Greater(t, PriorityHigh.Rank(), PriorityNormal.Rank())
	assert.Greater(t, PriorityNormal.Rank(), PriorityLow.Rank())
}
