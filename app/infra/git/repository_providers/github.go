package repository_providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/go-github/v72/github"
	"github.com/hashicorp/go-retryablehttp"

	"go.iain.rocks/repofleet/app/domain"
)

// GithubRepositoryProvider serves a single pinned GitHub organization.
// GitHub has no project tier, so the hierarchy is org/repo.
type GithubRepositoryProvider struct {
	name     string
	github   *github.Client
	orgName  string
	username string
	token    string
}

func NewGithubRepositoryProvider(name, username, token, orgName string) (*GithubRepositoryProvider, error) {
	if token == "" {
		return nil, fmt.Errorf("github provider %s: token must be set", name)
	}

	// Transient network failures retry here, at the adapter call site,
	// never in the executor.
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil
	client := github.NewClient(rc.StandardClient()).WithAuthToken(token)

	return &GithubRepositoryProvider{
		name:     name,
		github:   client,
		orgName:  orgName,
		username: username,
		token:    token,
	}, nil
}

func (g *GithubRepositoryProvider) Name() string { return g.name }

func (g *GithubRepositoryProvider) HasProjects() bool { return false }

func (g *GithubRepositoryProvider) Authenticate(ctx context.Context) error {
	if _, _, err := g.github.Users.Get(ctx, ""); err != nil {
		return &domain.AuthError{Provider: g.name, Err: err}
	}
	return nil
}

// Organizations returns the pinned organization without a network call.
func (g *GithubRepositoryProvider) Organizations(context.Context) ([]string, error) {
	return []string{g.orgName}, nil
}

// Projects returns the synthetic empty project of a 2-level provider.
func (g *GithubRepositoryProvider) Projects(context.Context, string) ([]string, error) {
	return []string{""}, nil
}

func (g *GithubRepositoryProvider) Repositories(ctx context.Context, org, _ string, yield func(domain.RepositoryHandle) bool) error {
	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		repos, resp, err := g.github.Repositories.ListByOrg(ctx, org, opts)
		if err != nil {
			return g.translateError(org, err)
		}

		for _, repo := range repos {
			h := domain.RepositoryHandle{
				ProviderName:  g.name,
				Organization:  org,
				Name:          repo.GetName(),
				CloneURL:      repo.GetCloneURL(),
				DefaultBranch: repo.GetDefaultBranch(),
				// Archived repositories are still listed so the
				// caller can report an accurate skip reason.
				IsDisabled: repo.GetArchived() || repo.GetDisabled(),
			}
			if !yield(h) {
				return nil
			}
		}

		if resp.NextPage == 0 {
			return nil
		}
		opts.Page = resp.NextPage
	}
}

// AuthenticatedCloneURL embeds the token as URL userinfo, GitHub's
// convention for PAT clones. Raw output must pass through the masker
// before reaching any log.
func (g *GithubRepositoryProvider) AuthenticatedCloneURL(h domain.RepositoryHandle) (string, error) {
	u, err := url.Parse(h.CloneURL)
	if err != nil {
		return "", fmt.Errorf("parse clone url: %w", err)
	}
	user := g.username
	if user == "" {
		user = "git"
	}
	u.User = url.UserPassword(user, g.token)
	return u.String(), nil
}

func (g *GithubRepositoryProvider) translateError(org string, err error) error {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return &domain.RateLimitedError{
			Provider:   g.name,
			RetryAfter: time.Until(rle.Rate.Reset.Time),
			Err:        err,
		}
	}
	var arle *github.AbuseRateLimitError
	if errors.As(err, &arle) {
		retryAfter := time.Duration(0)
		if arle.RetryAfter != nil {
			retryAfter = *arle.RetryAfter
		}
		return &domain.RateLimitedError{Provider: g.name, RetryAfter: retryAfter, Err: err}
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		switch ghErr.Response.StatusCode {
		case 401, 403:
			return &domain.AuthError{Provider: g.name, Err: err}
		case 404:
			return &domain.NotFoundError{Resource: "organization " + org}
		}
	}
	return err
}
