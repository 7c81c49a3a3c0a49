package repository_providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microsoft/azure-devops-go-api/azuredevops/v7"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/core"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/git"

	"go.iain.rocks/repofleet/app/domain"
)

// Small interfaces to allow testing without the full Azure DevOps clients.
type coreClient interface {
	GetProjects(context.Context, core.GetProjectsArgs) (*core.GetProjectsResponseValue, error)
}

type gitClient interface {
	GetRepositories(context.Context, git.GetRepositoriesArgs) (*[]git.GitRepository, error)
}

// Constructors are variables so tests can stub them.
var newCoreClient = func(ctx context.Context, conn *azuredevops.Connection) (coreClient, error) {
	return core.NewClient(ctx, conn)
}

var newGitClient = func(ctx context.Context, conn *azuredevops.Connection) (gitClient, error) {
	return git.NewClient(ctx, conn)
}

// AzureRepositoryProvider serves one Azure DevOps organization. Azure is
// the 3-level provider: organization/project/repository.
type AzureRepositoryProvider struct {
	name       string
	connection *azuredevops.Connection
	orgName    string
	username   string
	token      string

	// Session clients are created once per process during Authenticate
	// and cached in memory only.
	core coreClient
	git  gitClient
}

func NewAzureRepositoryProvider(name, username, token, orgURL string) (*AzureRepositoryProvider, error) {
	if token == "" {
		return nil, fmt.Errorf("azure provider %s: token must be set", name)
	}
	orgName, err := azureOrgName(orgURL)
	if err != nil {
		return nil, fmt.Errorf("azure provider %s: %w", name, err)
	}

	return &AzureRepositoryProvider{
		name:       name,
		connection: azuredevops.NewPatConnection(orgURL, token),
		orgName:    orgName,
		username:   username,
		token:      token,
	}, nil
}

// azureOrgName extracts the organization from either URL shape:
// https://dev.azure.com/org or https://org.visualstudio.com.
func azureOrgName(orgURL string) (string, error) {
	u, err := url.Parse(orgURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid organization url %q", orgURL)
	}
	if host, found := strings.CutSuffix(u.Host, ".visualstudio.com"); found {
		return host, nil
	}
	org := strings.Trim(u.Path, "/")
	if org == "" {
		return "", fmt.Errorf("organization url %q has no organization segment", orgURL)
	}
	return org, nil
}

func (a *AzureRepositoryProvider) Name() string { return a.name }

func (a *AzureRepositoryProvider) HasProjects() bool { return true }

func (a *AzureRepositoryProvider) Authenticate(ctx context.Context) error {
	cc, err := newCoreClient(ctx, a.connection)
	if err != nil {
		return &domain.AuthError{Provider: a.name, Err: err}
	}
	gc, err := newGitClient(ctx, a.connection)
	if err != nil {
		return &domain.AuthError{Provider: a.name, Err: err}
	}
	a.core = cc
	a.git = gc
	return nil
}

// Organizations returns the organization the connection is pinned to; the
// name was derived from the configured URL, so no network call.
func (a *AzureRepositoryProvider) Organizations(context.Context) ([]string, error) {
	return []string{a.orgName}, nil
}

func (a *AzureRepositoryProvider) Projects(ctx context.Context, org string) ([]string, error) {
	if err := a.checkOrg(org); err != nil {
		return nil, err
	}
	cc, err := a.coreClient(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	args := core.GetProjectsArgs{}
	for {
		resp, err := cc.GetProjects(ctx, args)
		if err != nil {
			return nil, a.translateError(err)
		}
		for _, project := range resp.Value {
			if project.Name != nil {
				names = append(names, *project.Name)
			}
		}
		if resp.ContinuationToken == "" {
			return names, nil
		}
		// The projects API pages with an integer continuation token
		// delivered as a string.
		token, err := strconv.Atoi(resp.ContinuationToken)
		if err != nil {
			return nil, fmt.Errorf("bad continuation token %q: %w", resp.ContinuationToken, err)
		}
		args.ContinuationToken = &token
	}
}

func (a *AzureRepositoryProvider) Repositories(ctx context.Context, org, project string, yield func(domain.RepositoryHandle) bool) error {
	if err := a.checkOrg(org); err != nil {
		return err
	}
	gc, err := a.gitClient(ctx)
	if err != nil {
		return err
	}

	trueValue := true
	args := git.GetRepositoriesArgs{
		Project:        &project,
		IncludeHidden:  &trueValue,
		IncludeAllUrls: &trueValue,
		IncludeLinks:   &trueValue,
	}

	repositories, err := gc.GetRepositories(ctx, args)
	if err != nil {
		return a.translateError(err)
	}
	if repositories == nil {
		return nil
	}

	for _, repo := range *repositories {
		h := domain.RepositoryHandle{
			ProviderName:  a.name,
			Organization:  org,
			Project:       project,
			DefaultBranch: refShortName(repo.DefaultBranch),
		}
		if repo.Name != nil {
			h.Name = *repo.Name
		}
		if repo.RemoteUrl != nil {
			h.CloneURL = *repo.RemoteUrl
		}
		if repo.IsDisabled != nil {
			h.IsDisabled = *repo.IsDisabled
		}
		if !yield(h) {
			return nil
		}
	}
	return nil
}

// AuthenticatedCloneURL embeds the PAT as URL userinfo, the Azure DevOps
// convention for HTTPS clones.
func (a *AzureRepositoryProvider) AuthenticatedCloneURL(h domain.RepositoryHandle) (string, error) {
	u, err := url.Parse(h.CloneURL)
	if err != nil {
		return "", fmt.Errorf("parse clone url: %w", err)
	}
	user := a.username
	if user == "" {
		user = "pat"
	}
	u.User = url.UserPassword(user, a.token)
	return u.String(), nil
}

// checkOrg guards against a directly addressed organization the connection
// is not pinned to. The connection can only ever query a.orgName, so
// answering for any other org would mislabel its repositories.
func (a *AzureRepositoryProvider) checkOrg(org string) error {
	if !strings.EqualFold(org, a.orgName) {
		return &domain.NotFoundError{Resource: "organization " + org}
	}
	return nil
}

func (a *AzureRepositoryProvider) coreClient(ctx context.Context) (coreClient, error) {
	if a.core != nil {
		return a.core, nil
	}
	cc, err := newCoreClient(ctx, a.connection)
	if err != nil {
		return nil, a.translateError(err)
	}
	a.core = cc
	return cc, nil
}

func (a *AzureRepositoryProvider) gitClient(ctx context.Context) (gitClient, error) {
	if a.git != nil {
		return a.git, nil
	}
	gc, err := newGitClient(ctx, a.connection)
	if err != nil {
		return nil, a.translateError(err)
	}
	a.git = gc
	return gc, nil
}

func (a *AzureRepositoryProvider) translateError(err error) error {
	var wrapped azuredevops.WrappedError
	if errors.As(err, &wrapped) && wrapped.StatusCode != nil {
		switch *wrapped.StatusCode {
		case 401, 403:
			return &domain.AuthError{Provider: a.name, Err: err}
		case 404:
			return &domain.NotFoundError{Resource: errMessage(wrapped)}
		case 429:
			return &domain.RateLimitedError{Provider: a.name, RetryAfter: 30 * time.Second, Err: err}
		}
	}
	return err
}

func errMessage(wrapped azuredevops.WrappedError) string {
	if wrapped.Message != nil {
		return *wrapped.Message
	}
	return "azure devops resource"
}

// refShortName turns refs/heads/main into main.
func refShortName(ref *string) string {
	if ref == nil {
		return ""
	}
	return strings.TrimPrefix(*ref, "refs/heads/")
}
