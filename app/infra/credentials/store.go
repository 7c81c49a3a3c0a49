// Package credentials implements the credential store and masker
// collaborators. Secrets live in configuration (optionally as ${ENV_VAR}
// references) and are resolved once per provider construction; nothing is
// ever written back to disk.
package credentials

import (
	"fmt"
	"os"
	"strings"

	"go.iain.rocks/repofleet/app/domain"
)

// ConfigStore resolves credentials from the loaded configuration. It also
// records every resolved secret so the masker knows what to scrub.
type ConfigStore struct {
	providers map[string]domain.ProviderConfig
	masker    *Masker
}

func NewConfigStore(cfg domain.Config) *ConfigStore {
	providers := make(map[string]domain.ProviderConfig, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		providers[pc.Name] = pc
	}
	return &ConfigStore{providers: providers, masker: NewMasker()}
}

// Credentials implements domain.CredentialStore.
func (s *ConfigStore) Credentials(providerName string) (domain.Credentials, error) {
	pc, ok := s.providers[providerName]
	if !ok {
		return domain.Credentials{}, fmt.Errorf("no credentials configured for provider %q", providerName)
	}

	token, err := resolveSecret(pc.Token)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("provider %q: %w", providerName, err)
	}
	s.masker.Add(token)

	return domain.Credentials{
		URL:   pc.OrgURL,
		User:  pc.Username,
		Token: token,
	}, nil
}

// Masker returns the masker primed with every secret this store resolved.
func (s *ConfigStore) Masker() *Masker { return s.masker }

// resolveSecret expands a ${VAR} reference against the environment. A
// literal value passes through untouched.
func resolveSecret(value string) (string, error) {
	if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return value, nil
	}
	name := value[2 : len(value)-1]
	secret := os.Getenv(name)
	if secret == "" {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	return secret, nil
}
