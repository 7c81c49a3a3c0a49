package domain

import (
	"context"
	"path"
)

// RepositoryHandle identifies one discovered repository. Handles are
// immutable: adapters construct them during enumeration and the discovery
// stream hands each one to exactly one consumer. They are never cached
// across runs.
type RepositoryHandle struct {
	ProviderName  string
	Organization  string
	Project       string // empty for 2-level providers
	Name          string
	CloneURL      string
	DefaultBranch string
	IsDisabled    bool
}

// Slug renders the hierarchy path, omitting the project level for 2-level
// providers.
func (h RepositoryHandle) Slug() string {
	if h.Project == "" {
		return path.Join(h.Organization, h.Name)
	}
	return path.Join(h.Organization, h.Project, h.Name)
}

func (h RepositoryHandle) String() string {
	return h.ProviderName + ":" + h.Slug()
}

// Credentials are resolved once per provider construction by the external
// credential store. The core never persists them.
type Credentials struct {
	URL   string
	User  string
	Token string
}

// CredentialStore resolves the secrets for a configured provider instance.
type CredentialStore interface {
	Credentials(providerName string) (Credentials, error)
}

// RepositoryProvider is the uniform capability set every hosting provider
// adapter implements, hiding hierarchy depth and pagination behind a flat
// interface.
//
// Error taxonomy per call: *AuthError (fatal for this provider only),
// *RateLimitedError, *TransientError, *NotFoundError.
type RepositoryProvider interface {
	// Name is the registry key this adapter was configured under.
	Name() string

	// Authenticate verifies credentials. Adapters may cache a session
	// in memory for the process lifetime but never persist it.
	Authenticate(ctx context.Context) error

	// Organizations enumerates organization identifiers. Adapters whose
	// configuration pins a single organization/workspace return that
	// value without a network call.
	Organizations(ctx context.Context) ([]string, error)

	// HasProjects reports whether the provider has a project tier
	// between organization and repository.
	HasProjects() bool

	// Projects enumerates project identifiers under org. For 2-level
	// providers it returns a single empty-string project so downstream
	// code always works with a 3-tuple.
	Projects(ctx context.Context, org string) ([]string, error)

	// Repositories enumerates repositories under (org, project),
	// following API pagination transparently and calling yield for each
	// one. Enumeration stops when yield returns false. Disabled or
	// archived repositories are yielded with IsDisabled set rather than
	// omitted.
	Repositories(ctx context.Context, org, project string, yield func(RepositoryHandle) bool) error

	// AuthenticatedCloneURL embeds the provider credentials into the
	// handle's clone URL. This is the single call site raw tokens pass
	// through; the result must go through the masker before any log or
	// error detail.
	AuthenticatedCloneURL(h RepositoryHandle) (string, error)
}

// ProviderFactory builds a provider adapter from its validated config and
// resolved credentials.
type ProviderFactory func(ProviderConfig, Credentials) (RepositoryProvider, error)

// GitExecutor is the external collaborator that performs the actual git
// work. The core treats it as opaque.
type GitExecutor interface {
	Clone(ctx context.Context, url, dest string) error
	Pull(ctx context.Context, dest string) error
	// Status reports a read-only summary of the checkout at dest,
	// optionally fetching the remote first. It never mutates dest.
	Status(ctx context.Context, dest string, fetchRemote bool) (string, error)
	IsValidCheckout(dest string) bool
}
