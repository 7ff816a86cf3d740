package executor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromReader(t *testing.T) {
	yaml := `
max_leverage: 15
min_confidence: 0.4
max_positions: 3
batch_decisions: true
decision_interval: 5m
decision_timeout: 90s
template_path: etc/trader_prompt.tmpl
`
	cfg, err := LoadConfigFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.MaxLeverage)
	assert.InDelta(t, 0.4, cfg.MinConfidence, 1e-9)
	assert.Equal(t, 3, cfg.MaxPositions)
	assert.True(t, cfg.BatchDecisions)
	assert.Equal(t, 5*time.Minute, cfg.DecisionInterval)
	assert.Equal(t, 90*time.Second, cfg.DecisionTimeout)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader("{}"))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.MaxLeverage)
	assert.Equal(t, 5, cfg.MaxPositions)
	assert.False(t, cfg.BatchDecisions)
	assert.Equal(t, 3*time.Minute, cfg.DecisionInterval)
	assert.Equal(t, 2*time.Minute, cfg.DecisionTimeout)
	assert.Equal(t, "etc/trader_prompt.tmpl", cfg.TemplatePath)
}

func TestLoadConfigRejectsBadDurations(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("decision_interval: soon"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decision_interval")

	_, err = LoadConfigFromReader(strings.NewReader("decision_timeout: -5s"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decision_timeout")
}

func TestLoadConfigRejectsBadConfidence(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("min_confidence: 1.5"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_confidence")
}

func TestLoadConfigExpandsTemplatePath(t *testing.T) {
	t.Setenv("PROMPT_DIR", "etc")
	cfg, err := LoadConfigFromReader(strings.NewReader("template_path: ${PROMPT_DIR}/trader_prompt.tmpl"))
	require.NoError(t, err)
	assert.Equal(t, "etc/trader_prompt.tmpl", cfg.TemplatePath)
}
