package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStageLadderDefaults(t *testing.T) {
	ladder, err := NewStageLadder(DefaultStageDefinitions())
	require.NoError(t, err)

	assert.Equal(t, "starter", ladder.EntryStage())
	assert.Len(t, ladder.Stages(), 6)

	bronze, ok := ladder.Stage("bronze")
	require.True(t, ok)
	assert.Equal(t, 10.0, bronze.Bonus)
	assert.Equal(t, 6, bronze.SlotsRequired)
	assert.False(t, bronze.IsTerminal())

	infinity, ok := ladder.Stage("infinity")
	require.True(t, ok)
	assert.True(t, infinity.IsTerminal())
	assert.Equal(t, 0, infinity.SlotsRequired)

	_, ok = ladder.Stage("diamond")
	assert.False(t, ok)
}

func TestStageLadderSuccessor(t *testing.T) {
	ladder, err := NewStageLadder(DefaultStageDefinitions())
	require.NoError(t, err)

	next, ok := ladder.Successor("starter")
	require.True(t, ok)
	assert.Equal(t, "bronze", next.Name)

	_, ok = ladder.Successor("infinity")
	assert.False(t, ok, "terminal stage has no successor")

	_, ok = ladder.Successor("nope")
	assert.False(t, ok)
}

func TestNewStageLadderValidation(t *testing.T) {
	twoStage := func(mutate func(defs []StageDefinition)) []StageDefinition {
		defs := []StageDefinition{
			{Name: "starter", Ordinal: 0, SlotsRequired: 6, Bonus: 5, Successor: "bronze"},
			{Name: "bronze", Ordinal: 1, Bonus: 10},
		}
		if mutate != nil {
			mutate(defs)
		}
		return defs
	}

	tests := []struct {
		name    string
		defs    []StageDefinition
		wantErr string
	}{
		{
			name:    "empty ladder",
			defs:    nil,
			wantErr: "at least one stage",
		},
		{
			name: "duplicate names",
			defs: twoStage(func(defs []StageDefinition) {
				defs[1].Name = "starter"
				defs[0].Successor = "starter"
			}),
			wantErr: "duplicate stage name",
		},
		{
			name: "ordinal gap",
			defs: twoStage(func(defs []StageDefinition) {
				defs[1].Ordinal = 5
			}),
			wantErr: "ordinal",
		},
		{
			name: "bonus not increasing",
			defs: twoStage(func(defs []StageDefinition) {
				defs[1].Bonus = 5
			}),
			wantErr: "must exceed",
		},
		{
			name: "successor mismatch",
			defs: twoStage(func(defs []StageDefinition) {
				defs[0].Successor = "silver"
			}),
			wantErr: "does not match next stage",
		},
		{
			name: "terminal stage with successor",
			defs: twoStage(func(defs []StageDefinition) {
				defs[1].Successor = "silver"
			}),
			wantErr: "must not have a successor",
		},
		{
			name: "terminal stage with slots",
			defs: twoStage(func(defs []StageDefinition) {
				defs[1].SlotsRequired = 6
			}),
			wantErr: "must not require slots",
		},
		{
			name: "non-terminal stage with zero slots",
			defs: twoStage(func(defs []StageDefinition) {
				defs[0].SlotsRequired = 0
			}),
			wantErr: "at least one slot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStageLadder(tt.defs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadStageLadder(t *testing.T) {
	t.Run("defaults when no path", func(t *testing.T) {
		ladder, err := LoadStageLadder("")
		require.NoError(t, err)
		assert.Equal(t, "starter", ladder.EntryStage())
	})

	t.Run("custom file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ladder.json")
		custom := `[
			{"name": "seed", "ordinal": 0, "slotsRequired": 3, "bonus": 2, "successor": "grove"},
			{"name": "grove", "ordinal": 1, "bonus": 8}
		]`
		require.NoError(t, os.WriteFile(path, []byte(custom), 0o600))

		ladder, err := LoadStageLadder(path)
		require.NoError(t, err)
		assert.Equal(t, "seed", ladder.EntryStage())
		seed, ok := ladder.Stage("seed")
		require.True(t, ok)
		assert.Equal(t, 3, seed.SlotsRequired)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadStageLadder("/nonexistent/ladder.json")
		require.Error(t, err)
	})

	t.Run("invalid ladder in file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"name": "only", "ordinal": 0, "slotsRequired": 6, "bonus": 5, "successor": "ghost"}]`), 0o600))
		_, err := LoadStageLadder(path)
		require.Error(t, err)
	})
}
