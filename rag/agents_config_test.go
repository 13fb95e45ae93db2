package rag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agentsYAML = `
query-analyzer-agent:
  prompts:
    analysis_prompt: "Analyze {query}"
retrieval-agent:
  max_results_per_source: 3
  prompts:
    refinement_prompt: "Refine {original_query} given {failed_results}"
evaluator-agent:
  prompts:
    evaluation_prompt: "Evaluate {query}"
response-generator-agent:
  prompts:
    response_generation_prompt: "Answer {query}"
`

func TestParseAgentsConfig(t *testing.T) {
	cfg, err := ParseAgentsConfig([]byte(agentsYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Retrieval.MaxResultsPerSource)
	p, err := cfg.Retrieval.Prompt(PromptRefinement)
	require.NoError(t, err)
	assert.Equal(t, "Refine {original_query} given {failed_results}", p)
}

func TestParseAgentsConfig_Defaults(t *testing.T) {
	cfg, err := ParseAgentsConfig([]byte("query-analyzer-agent:\n  prompts: {}\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxResultsPerSource, cfg.Retrieval.MaxResultsPerSource)

	err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPromptNotFound)
	assert.Contains(t, err.Error(), "query-analyzer-agent")
	assert.Contains(t, err.Error(), "response-generator-agent")
}

func TestLoadAgentsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(agentsYAML), 0o644))

	cfg, err := LoadAgentsConfig(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())

	_, err = LoadAgentsConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultAgentsConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultAgentsConfig().Validate())
}
