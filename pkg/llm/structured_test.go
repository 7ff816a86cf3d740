package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleDecision struct {
	Signal     string  `json:"signal" description:"trading signal"`
	Symbol     string  `json:"symbol"`
	Confidence float64 `json:"confidence"`
	Quantity   float64 `json:"quantity,omitempty"`
}

func TestGenerateSchema(t *testing.T) {
	schema, err := GenerateSchema(&sampleDecision{})
	require.NoError(t, err)

	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "signal")
	assert.Contains(t, props, "confidence")

	signal, ok := props["signal"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "string", signal["type"])
	assert.Equal(t, "trading signal", signal["description"])

	required, ok := schema["required"].([]string)
	require.True(t, ok)
	assert.Contains(t, required, "signal")
	assert.NotContains(t, required, "quantity")
}

func TestGenerateSchemaRejectsNonStruct(t *testing.T) {
	_, err := GenerateSchema("not a struct")
	require.Error(t, err)
}

func TestParseStructured(t *testing.T) {
	var out sampleDecision
	err := ParseStructured(`{"signal":"hold","symbol":"BTCUSDT","confidence":0.5}`, &out)
	require.NoError(t, err)
	assert.Equal(t, "hold", out.Signal)
	assert.Equal(t, "BTCUSDT", out.Symbol)
}

func TestParseStructuredStripsCodeFence(t *testing.T) {
	payload := "```json\n{\"signal\":\"close\",\"symbol\":\"ETHUSDT\",\"confidence\":0.8}\n```"
	var out sampleDecision
	err := ParseStructured(payload, &out)
	require.NoError(t, err)
	assert.Equal(t, "close", out.Signal)
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"fenced", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced with tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFence(tt.in))
		})
	}
}

func TestParseStructuredRejectsInvalidJSON(t *testing.T) {
	var out sampleDecision
	err := ParseStructured("not json at all", &out)
	require.Error(t, err)
}
