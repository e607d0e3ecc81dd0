package llm

import (
	"fmt"
	"strings"

	"resumatch/internal/config"
	"resumatch/internal/llm/providers"
)

// Factory creates LLM provider instances.
type Factory struct {
	config *config.Config
}

// NewFactory creates a new LLM factory instance.
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{config: cfg}
}

// CreateProvider creates an LLM provider based on the configuration. A
// mock:// base URL always selects the mock backend regardless of the
// configured provider name.
func (f *Factory) CreateProvider() (Provider, error) {
	if strings.HasPrefix(f.config.LLM.BaseURL, "mock://") {
		return providers.NewMockProvider(), nil
	}

	switch f.config.LLM.Provider {
	case "claude", "":
		return providers.NewClaudeProvider(f.config), nil
	case "mock":
		return providers.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", f.config.LLM.Provider)
	}
}

// GetSupportedProviders returns a list of supported LLM providers.
func (f *Factory) GetSupportedProviders() []string {
	return []string{"claude", "mock"}
}
