// Package config provides tuning configuration for the generation pipeline
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults for the retrieval and conversation tuning knobs.
const (
	DefaultTopK               = 5
	DefaultHighThreshold      = 0.7
	DefaultLowThreshold       = 0.5
	DefaultAmbiguityThreshold = 0.15
	DefaultMaxTurns           = 10
	DefaultKeepTurns          = 5
)

// Tuning holds the knobs injected into the pipeline at construction time.
// Tests inject arbitrary combinations directly; deployments may override the
// defaults through a YAML file.
type Tuning struct {
	Retrieval    RetrievalConfig    `yaml:"retrieval"`
	Conversation ConversationConfig `yaml:"conversation"`
}

// RetrievalConfig controls retrieval classification.
//
// HighThreshold and AmbiguityThreshold are accepted but the current policy
// never branches on them: retrieval yields only no-match or confident. Keep
// them configured so the knobs survive a future three-way policy.
type RetrievalConfig struct {
	TopK               int     `yaml:"top_k"`
	HighThreshold      float64 `yaml:"high_threshold"`
	LowThreshold       float64 `yaml:"low_threshold"`
	AmbiguityThreshold float64 `yaml:"ambiguity_threshold"`
}

// ConversationConfig controls history summarization.
type ConversationConfig struct {
	// MaxTurns is the turn count past which older turns are compressed.
	MaxTurns int `yaml:"max_turns"`

	// KeepTurns is how many recent turns always stay verbatim.
	KeepTurns int `yaml:"keep_turns"`
}

// DefaultTuning returns the tuning used when no file overrides it.
func DefaultTuning() Tuning {
	return Tuning{
		Retrieval: RetrievalConfig{
			TopK:               DefaultTopK,
			HighThreshold:      DefaultHighThreshold,
			LowThreshold:       DefaultLowThreshold,
			AmbiguityThreshold: DefaultAmbiguityThreshold,
		},
		Conversation: ConversationConfig{
			MaxTurns:  DefaultMaxTurns,
			KeepTurns: DefaultKeepTurns,
		},
	}
}

// LoadTuning loads tuning from a YAML file. Missing keys keep their
// defaults.
func LoadTuning(filepath string) (Tuning, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return Tuning{}, fmt.Errorf("failed to read tuning file %s: %w", filepath, err)
	}

	tuning := DefaultTuning()
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return Tuning{}, fmt.Errorf("failed to parse tuning YAML: %w", err)
	}

	if err := tuning.Validate(); err != nil {
		return Tuning{}, err
	}

	return tuning, nil
}

// LoadTuningOrDefault loads tuning from a file when the path is set and the
// file is readable, falling back to the defaults otherwise.
func LoadTuningOrDefault(filepath string) Tuning {
	if filepath == "" {
		return DefaultTuning()
	}

	tuning, err := LoadTuning(filepath)
	if err != nil {
		return DefaultTuning()
	}

	return tuning
}

// Validate checks the tuning invariants.
func (t Tuning) Validate() error {
	if t.Retrieval.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", t.Retrieval.TopK)
	}

	for name, value := range map[string]float64{
		"high_threshold":      t.Retrieval.HighThreshold,
		"low_threshold":       t.Retrieval.LowThreshold,
		"ambiguity_threshold": t.Retrieval.AmbiguityThreshold,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, value)
		}
	}

	if t.Retrieval.LowThreshold > t.Retrieval.HighThreshold {
		return fmt.Errorf("low_threshold %v must not exceed high_threshold %v",
			t.Retrieval.LowThreshold, t.Retrieval.HighThreshold)
	}

	if t.Conversation.KeepTurns <= 0 {
		return fmt.Errorf("keep_turns must be positive, got %d", t.Conversation.KeepTurns)
	}

	if t.Conversation.MaxTurns < t.Conversation.KeepTurns {
		return fmt.Errorf("max_turns %d must be at least keep_turns %d",
			t.Conversation.MaxTurns, t.Conversation.KeepTurns)
	}

	return nil
}
