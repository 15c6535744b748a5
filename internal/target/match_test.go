package target

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyMatches(t *testing.T) {
	tests := []struct {
		name     string
		found    any
		searched any
		want     bool
	}{
		{"same string", "P-1", "P-1", true},
		{"int vs string", int32(42), "42", true},
		{"float vs int", 42.0, int64(42), true},
		{"numeric strings", "42.0", "42", true},
		{"different strings", "P-1", "P-2", false},
		{"different numbers", int32(41), "42", false},
		{"nil found", nil, "42", false},
		{"case differs", "a@b.com", "A@B.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyMatches(tt.found, tt.searched))
		})
	}
}

func TestKeyCandidates(t *testing.T) {
	assert.Equal(t, []any{"abc"}, KeyCandidates("abc"))
	assert.ElementsMatch(t, []any{"42", int64(42), int32(42), float64(42)}, KeyCandidates("42"))
	assert.ElementsMatch(t, []any{int64(7), "7", int32(7), float64(7)}, KeyCandidates(int64(7)))
	assert.ElementsMatch(t, []any{1.5, "1.5"}, KeyCandidates(1.5))
}

func TestMemoryStore_FindByKeyAcrossTypes(t *testing.T) {
	store := NewMemoryStore(map[string]any{"projectId": int32(42), "projectName": "Apollo"})
	ctx := context.Background()

	found, err := store.FindByKey(ctx, "projectId", "42")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Apollo", found.Fields["projectName"])

	missing, err := store.FindByKey(ctx, "projectId", "43")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.Update(ctx, found.ID, map[string]any{"projectName": "Artemis"}))
	assert.Equal(t, "Artemis", store.All()[0].Fields["projectName"])
	assert.Error(t, store.Update(ctx, "nope", map[string]any{}))
}
