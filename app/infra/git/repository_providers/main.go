package repository_providers

import (
	"fmt"
	"strings"

	"go.iain.rocks/repofleet/app/domain"
)

// NewProvider builds the adapter for a validated provider config using the
// credentials the store resolved for it. It satisfies domain.ProviderFactory.
func NewProvider(config domain.ProviderConfig, creds domain.Credentials) (domain.RepositoryProvider, error) {
	switch strings.ToLower(config.Provider) {
	case domain.ProviderGithub:
		return NewGithubRepositoryProvider(config.Name, creds.User, creds.Token, config.Org)
	case domain.ProviderGitlab:
		return NewGitlabRepositoryProvider(config.Name, creds.User, creds.Token, config.Org)
	case domain.ProviderAzure:
		return NewAzureRepositoryProvider(config.Name, creds.User, creds.Token, creds.URL)
	}

	return nil, fmt.Errorf("unknown provider: %s", config.Provider)
}
