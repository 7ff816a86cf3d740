package market

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerStubBuilder(t *testing.T, typeName string) {
	t.Helper()
	RegisterProvider(typeName, func(name string, cfg *ProviderConfig) (Provider, error) {
		return &stubProvider{}, nil
	})
}

func TestLoadConfigFromReader(t *testing.T) {
	registerStubBuilder(t, "stub")

	yaml := `
default: main
providers:
  main:
    type: stub
    timeout: 5s
`
	cfg, err := LoadConfigFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, "main", cfg.Default)
	require.Contains(t, cfg.Providers, "main")
	assert.Equal(t, "stub", cfg.Providers["main"].Type)
	assert.Equal(t, 5*time.Second, cfg.Providers["main"].Timeout)
}

func TestLoadConfigRejectsUnknownType(t *testing.T) {
	yaml := `
providers:
  main:
    type: no-such-provider
`
	_, err := LoadConfigFromReader(strings.NewReader(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}

func TestLoadConfigRejectsMissingProviders(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("providers: {}"))
	require.Error(t, err)
}

func TestLoadConfigRejectsUnknownDefault(t *testing.T) {
	registerStubBuilder(t, "stub")

	yaml := `
default: missing
providers:
  main:
    type: stub
`
	_, err := LoadConfigFromReader(strings.NewReader(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default provider")
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	registerStubBuilder(t, "stub")
	t.Setenv("MARKET_API_KEY", "k-123")

	yaml := `
providers:
  main:
    type: stub
    api_key: ${MARKET_API_KEY}
`
	cfg, err := LoadConfigFromReader(strings.NewReader(yaml))
	require.NoError(t, err)
	assert.Equal(t, "k-123", cfg.Providers["main"].APIKey)
}

func TestBuildProviders(t *testing.T) {
	registerStubBuilder(t, "stub")

	cfg := &Config{
		Providers: map[string]*ProviderConfig{
			"main": {Type: "stub"},
		},
	}
	providers, err := cfg.BuildProviders()
	require.NoError(t, err)
	require.Contains(t, providers, "main")
	assert.NotNil(t, providers["main"])
}
