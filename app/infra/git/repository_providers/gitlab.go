package repository_providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"go.iain.rocks/repofleet/app/domain"
)

// Small interfaces to allow testing without a real GitLab client. Each
// matches just the methods we use from the respective service.
type gitlabGroupProjectLister interface {
	ListGroupProjects(gid interface{}, opt *gitlab.ListGroupProjectsOptions, options ...gitlab.RequestOptionFunc) ([]*gitlab.Project, *gitlab.Response, error)
}

type gitlabUserGetter interface {
	CurrentUser(options ...gitlab.RequestOptionFunc) (*gitlab.User, *gitlab.Response, error)
}

// GitlabRepositoryProvider serves a single pinned GitLab group. Subgroups
// are flattened into the group listing, so the hierarchy is group/project.
type GitlabRepositoryProvider struct {
	name     string
	groups   gitlabGroupProjectLister
	users    gitlabUserGetter
	org      string
	username string
	token    string
}

func NewGitlabRepositoryProvider(name, username, token, org string) (*GitlabRepositoryProvider, error) {
	if token == "" {
		return nil, fmt.Errorf("gitlab provider %s: token must be set", name)
	}
	// client-go retries transient failures itself; cap the attempts so a
	// high-concurrency batch cannot turn into a retry storm.
	client, err := gitlab.NewClient(token, gitlab.WithCustomRetryMax(3))
	if err != nil {
		return nil, err
	}
	return &GitlabRepositoryProvider{
		name:     name,
		groups:   client.Groups,
		users:    client.Users,
		org:      org,
		username: username,
		token:    token,
	}, nil
}

func (g *GitlabRepositoryProvider) Name() string { return g.name }

func (g *GitlabRepositoryProvider) HasProjects() bool { return false }

func (g *GitlabRepositoryProvider) Authenticate(ctx context.Context) error {
	if _, _, err := g.users.CurrentUser(gitlab.WithContext(ctx)); err != nil {
		return &domain.AuthError{Provider: g.name, Err: err}
	}
	return nil
}

// Organizations returns the pinned group without a network call.
func (g *GitlabRepositoryProvider) Organizations(context.Context) ([]string, error) {
	return []string{g.org}, nil
}

// Projects returns the synthetic empty project of a 2-level provider.
func (g *GitlabRepositoryProvider) Projects(context.Context, string) ([]string, error) {
	return []string{""}, nil
}

func (g *GitlabRepositoryProvider) Repositories(ctx context.Context, org, _ string, yield func(domain.RepositoryHandle) bool) error {
	trueValue := true
	opts := &gitlab.ListGroupProjectsOptions{
		IncludeSubGroups: &trueValue,
		ListOptions: gitlab.ListOptions{
			PerPage: 100,
			Page:    1,
		},
	}

	for {
		projects, resp, err := g.groups.ListGroupProjects(org, opts, gitlab.WithContext(ctx))
		if err != nil {
			return g.translateError(org, resp, err)
		}

		for _, project := range projects {
			h := domain.RepositoryHandle{
				ProviderName:  g.name,
				Organization:  org,
				Name:          project.Path,
				CloneURL:      project.HTTPURLToRepo,
				DefaultBranch: project.DefaultBranch,
				IsDisabled:    project.Archived,
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

// AuthenticatedCloneURL embeds the token as URL userinfo. GitLab accepts
// any username with a PAT; "oauth2" is the documented placeholder.
func (g *GitlabRepositoryProvider) AuthenticatedCloneURL(h domain.RepositoryHandle) (string, error) {
	u, err := url.Parse(h.CloneURL)
	if err != nil {
		return "", fmt.Errorf("parse clone url: %w", err)
	}
	user := g.username
	if user == "" {
		user = "oauth2"
	}
	u.User = url.UserPassword(user, g.token)
	return u.String(), nil
}

func (g *GitlabRepositoryProvider) translateError(org string, resp *gitlab.Response, err error) error {
	if resp == nil {
		return err
	}
	switch resp.StatusCode {
	case 401, 403:
		return &domain.AuthError{Provider: g.name, Err: err}
	case 404:
		return &domain.NotFoundError{Resource: "group " + org}
	case 429:
		retryAfter := time.Duration(0)
		if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil {
			retryAfter = time.Duration(secs) * time.Second
		}
		return &domain.RateLimitedError{Provider: g.name, RetryAfter: retryAfter, Err: err}
	}
	return err
}
