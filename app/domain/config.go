package domain

import "strings"

// Provider type tags accepted in configuration.
const (
	ProviderGithub = "github"
	ProviderGitlab = "gitlab"
	ProviderAzure  = "azure"
)

// Per-type default concurrency. Azure DevOps throttles earlier than the
// other two, so it gets the most conservative value.
var defaultConcurrency = map[string]int{
	ProviderGithub: 8,
	ProviderGitlab: 6,
	ProviderAzure:  4,
}

type Config struct {
	Providers []ProviderConfig `koanf:"providers"`
}

// ProviderConfig is one configured provider instance. The Provider field
// tags which variant this is; Validate checks that exactly the fields that
// variant needs are present, so bad config fails at load time instead of at
// first use.
type ProviderConfig struct {
	Name     string `koanf:"name"`
	Provider string `koanf:"provider"`
	// Org is the GitHub organization or GitLab group.
	Org string `koanf:"org"`
	// OrgURL is the Azure DevOps organization URL,
	// e.g. https://dev.azure.com/pdidev.
	OrgURL   string `koanf:"orgUrl"`
	Username string `koanf:"username"`
	// Token is the raw secret or an ${ENV_VAR} reference resolved by the
	// credential store.
	Token       string `koanf:"token"`
	Concurrency int    `koanf:"concurrency"`
}

// Validate normalizes and checks every provider entry. It fills Name and
// Concurrency defaults in place.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Providers))

	for i := range c.Providers {
		pc := &c.Providers[i]
		pc.Provider = strings.ToLower(pc.Provider)

		if pc.Name == "" {
			pc.Name = pc.Provider
		}
		if seen[pc.Name] {
			return validationErrorf("duplicate provider name %q", pc.Name)
		}
		seen[pc.Name] = true

		switch pc.Provider {
		case ProviderGithub, ProviderGitlab:
			if pc.Org == "" {
				return validationErrorf("provider %s: org must be set", pc.Name)
			}
			if pc.OrgURL != "" {
				return validationErrorf("provider %s: orgUrl is only valid for azure", pc.Name)
			}
		case ProviderAzure:
			if pc.OrgURL == "" {
				return validationErrorf("provider %s: orgUrl must be set", pc.Name)
			}
		case "":
			return validationErrorf("provider entry %d: provider type must be set", i)
		default:
			return validationErrorf("provider %s: unknown provider type %q", pc.Name, pc.Provider)
		}

		if pc.Token == "" {
			return validationErrorf("provider %s: token must be set", pc.Name)
		}
		if pc.Concurrency < 0 {
			return validationErrorf("provider %s: concurrency must be positive", pc.Name)
		}
		if pc.Concurrency == 0 {
			pc.Concurrency = defaultConcurrency[pc.Provider]
		}
	}

	return nil
}
