package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowgen/pkg/config"
)

func TestDefaultTuning(t *testing.T) {
	tuning := config.DefaultTuning()

	assert.Equal(t, 5, tuning.Retrieval.TopK)
	assert.Equal(t, 0.7, tuning.Retrieval.HighThreshold)
	assert.Equal(t, 0.5, tuning.Retrieval.LowThreshold)
	assert.Equal(t, 0.15, tuning.Retrieval.AmbiguityThreshold)
	assert.Equal(t, 10, tuning.Conversation.MaxTurns)
	assert.Equal(t, 5, tuning.Conversation.KeepTurns)
	assert.NoError(t, tuning.Validate())
}

func TestLoadTuning_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	content := `retrieval:
  top_k: 8
  low_threshold: 0.4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	tuning, err := config.LoadTuning(path)
	require.NoError(t, err)

	assert.Equal(t, 8, tuning.Retrieval.TopK)
	assert.Equal(t, 0.4, tuning.Retrieval.LowThreshold)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.7, tuning.Retrieval.HighThreshold)
	assert.Equal(t, 10, tuning.Conversation.MaxTurns)
}

func TestLoadTuning_RejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{name: "zero top_k", content: "retrieval:\n  top_k: 0\n"},
		{name: "threshold above one", content: "retrieval:\n  low_threshold: 1.2\n"},
		{name: "low above high", content: "retrieval:\n  low_threshold: 0.9\n  high_threshold: 0.6\n"},
		{name: "keep above max", content: "conversation:\n  max_turns: 3\n  keep_turns: 5\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tuning.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o600))

			_, err := config.LoadTuning(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadTuningOrDefault(t *testing.T) {
	assert.Equal(t, config.DefaultTuning(), config.LoadTuningOrDefault(""))
	assert.Equal(t, config.DefaultTuning(), config.LoadTuningOrDefault("/nonexistent/tuning.yaml"))

	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  top_k: 3\n"), 0o600))

	tuning := config.LoadTuningOrDefault(path)
	assert.Equal(t, 3, tuning.Retrieval.TopK)
}
