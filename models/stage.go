package models

import (
	"encoding/json"
	"fmt"
	"os"
)

// StageDefinition is one rung of the reward ladder. The ladder is loaded once
// at startup and never mutated afterwards.
type StageDefinition struct {
	Name          string  `json:"name" bson:"name"`
	Ordinal       int     `json:"ordinal" bson:"ordinal"`
	SlotsRequired int     `json:"slotsRequired" bson:"slotsRequired"`
	Bonus         float64 `json:"bonus" bson:"bonus"`
	Successor     string  `json:"successor,omitempty" bson:"successor,omitempty"`
}

// IsTerminal reports whether members at this stage do not transition further.
func (s StageDefinition) IsTerminal() bool {
	return s.Successor == ""
}

// StageLadder is an immutable, ordered lookup of stage definitions keyed by
// stage name. Construct it with NewStageLadder and inject it where needed;
// there is no package-level ladder.
type StageLadder struct {
	stages []StageDefinition
	byName map[string]StageDefinition
	entry  string
}

// NewStageLadder validates and freezes an ordered list of stage definitions.
// Rules: at least one stage, unique names, ordinals in listed order, bonus
// strictly increasing, every successor resolves to the next stage, and only
// the last stage is terminal (zero slots, no successor).
func NewStageLadder(defs []StageDefinition) (*StageLadder, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("stage ladder requires at least one stage")
	}

	byName := make(map[string]StageDefinition, len(defs))
	for i, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("stage %d has no name", i)
		}
		if _, exists := byName[def.Name]; exists {
			return nil, fmt.Errorf("duplicate stage name %q", def.Name)
		}
		if def.Ordinal != i {
			return nil, fmt.Errorf("stage %q has ordinal %d, expected %d", def.Name, def.Ordinal, i)
		}
		if i > 0 && def.Bonus <= defs[i-1].Bonus {
			return nil, fmt.Errorf("stage %q bonus %.2f must exceed %q bonus %.2f",
				def.Name, def.Bonus, defs[i-1].Name, defs[i-1].Bonus)
		}

		last := i == len(defs)-1
		if last {
			if def.Successor != "" {
				return nil, fmt.Errorf("terminal stage %q must not have a successor", def.Name)
			}
			if def.SlotsRequired != 0 {
				return nil, fmt.Errorf("terminal stage %q must not require slots", def.Name)
			}
		} else {
			if def.Successor != defs[i+1].Name {
				return nil, fmt.Errorf("stage %q successor %q does not match next stage %q",
					def.Name, def.Successor, defs[i+1].Name)
			}
			if def.SlotsRequired <= 0 {
				return nil, fmt.Errorf("stage %q must require at least one slot", def.Name)
			}
		}
		byName[def.Name] = def
	}

	stages := make([]StageDefinition, len(defs))
	copy(stages, defs)

	return &StageLadder{
		stages: stages,
		byName: byName,
		entry:  stages[0].Name,
	}, nil
}

// Stage looks up a stage definition by name.
func (l *StageLadder) Stage(name string) (StageDefinition, bool) {
	def, ok := l.byName[name]
	return def, ok
}

// EntryStage returns the name of the first stage, where new members start.
func (l *StageLadder) EntryStage() string {
	return l.entry
}

// Successor returns the stage following the named stage, if any.
func (l *StageLadder) Successor(name string) (StageDefinition, bool) {
	def, ok := l.byName[name]
	if !ok || def.Successor == "" {
		return StageDefinition{}, false
	}
	return l.byName[def.Successor], true
}

// Stages returns a copy of the ordered stage definitions.
func (l *StageLadder) Stages() []StageDefinition {
	out := make([]StageDefinition, len(l.stages))
	copy(out, l.stages)
	return out
}

// DefaultStageDefinitions is the six-stage ladder the platform ships with.
// The terminal "infinity" stage has no slot requirement; members there keep
// earning its bonus but never transition.
func DefaultStageDefinitions() []StageDefinition {
	return []StageDefinition{
		{Name: "starter", Ordinal: 0, SlotsRequired: 6, Bonus: 5, Successor: "bronze"},
		{Name: "bronze", Ordinal: 1, SlotsRequired: 6, Bonus: 10, Successor: "silver"},
		{Name: "silver", Ordinal: 2, SlotsRequired: 6, Bonus: 25, Successor: "gold"},
		{Name: "gold", Ordinal: 3, SlotsRequired: 6, Bonus: 50, Successor: "platinum"},
		{Name: "platinum", Ordinal: 4, SlotsRequired: 6, Bonus: 100, Successor: "infinity"},
		{Name: "infinity", Ordinal: 5, SlotsRequired: 0, Bonus: 250},
	}
}

// LoadStageLadder builds the ladder from a JSON file when path is non-empty,
// otherwise from the defaults.
func LoadStageLadder(path string) (*StageLadder, error) {
	defs := DefaultStageDefinitions()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read stage ladder file: %w", err)
		}
		defs = nil
		if err := json.Unmarshal(data, &defs); err != nil {
			return nil, fmt.Errorf("failed to parse stage ladder file: %w", err)
		}
	}
	return NewStageLadder(defs)
}
