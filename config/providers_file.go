package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProvidersFile is the optional YAML provider table, e.g.
//
//	priority: [ollama, openai]
//	providers:
//	  ollama:
//	    endpoint: http://gpu-box:11434/api/chat
//	    model: mistral
//	    timeout: 90s
//	  openai:
//	    api_key_env: OPENAI_KEY_PROD
type ProvidersFile struct {
	Priority  []string                     `yaml:"priority"`
	Providers map[string]ProviderFileEntry `yaml:"providers"`
}

// ProviderFileEntry overrides one provider's settings. Credentials never live
// in the file; APIKeyEnv names the variable holding them instead.
type ProviderFileEntry struct {
	Endpoint  string        `yaml:"endpoint"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
	APIKeyEnv string        `yaml:"api_key_env"`
}

// LoadProvidersFile reads and parses a YAML provider table
func LoadProvidersFile(path string) (*ProvidersFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading providers file %s: %w", path, err)
	}

	var file ProvidersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing providers file %s: %w", path, err)
	}

	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("providers file %s: %w", path, err)
	}

	return &file, nil
}

// Validate rejects entries that could never be used
func (f *ProvidersFile) Validate() error {
	var errs []error
	for name, entry := range f.Providers {
		if entry.Timeout < 0 {
			errs = append(errs, fmt.Errorf("provider %q: timeout must be >= 0, got %s", name, entry.Timeout))
		}
	}
	for i, key := range f.Priority {
		if key == "" {
			errs = append(errs, fmt.Errorf("priority[%d] is empty", i))
		}
	}
	return errors.Join(errs...)
}

// apply overlays the file onto provider settings loaded from defaults
func (f *ProvidersFile) apply(p *ProvidersConfig) {
	if len(f.Priority) > 0 {
		p.Priority = append([]string(nil), f.Priority...)
	}
	for name, entry := range f.Providers {
		settings := p.Settings[name]
		if entry.Endpoint != "" {
			settings.Endpoint = entry.Endpoint
		}
		if entry.Model != "" {
			settings.Model = entry.Model
		}
		if entry.Timeout > 0 {
			settings.Timeout = entry.Timeout
		}
		if entry.APIKeyEnv != "" {
			settings.APIKey = os.Getenv(entry.APIKeyEnv)
		}
		p.Settings[name] = settings
	}
}
