package gitrepo

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"code.gitea.io/sdk/gitea"
)

// DefaultBranch is the branch pushed to new repositories
const DefaultBranch = "main"

// Runner executes a program, streaming its output lines to consume
type Runner interface {
	RunArgs(ctx context.Context, name string, args []string, consume func(line string)) error
}

// GiteaConfig configures a Gitea provider
type GiteaConfig struct {
	URL      string
	Username string
	Password string
	Logger   *slog.Logger
}

// Gitea is a Provider backed by a Gitea server
type Gitea struct {
	client *gitea.Client
	cfg    GiteaConfig
	newGit func(dir string, env []string) Runner
	logger *slog.Logger
}

// NewGitea creates a Gitea provider. newGit returns the Runner used for git
// commands inside a working directory with env added to their environment.
func NewGitea(cfg GiteaConfig, newGit func(dir string, env []string) Runner) (*Gitea, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("gitea URL is required")
	}
	client, err := gitea.NewClient(cfg.URL, gitea.SetBasicAuth(cfg.Username, cfg.Password))
	if err != nil {
		return nil, fmt.Errorf("failed to create gitea client: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gitea{client: client, cfg: cfg, newGit: newGit, logger: logger}, nil
}

// CreateRepository creates the repository and pushes sourceDir as its
// first commit. A repository whose push failed is deleted again.
func (g *Gitea) CreateRepository(ctx context.Context, name, sourceDir string) (string, error) {
	g.client.SetContext(ctx)
	repo, _, err := g.client.CreateRepo(gitea.CreateRepoOption{
		Name:          name,
		Description:   "Kie cloud test project",
		DefaultBranch: DefaultBranch,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create repository %s: %w", name, err)
	}
	g.logger.Info("created git repository", "name", name, "url", repo.CloneURL)

	if sourceDir != "" {
		if err := g.push(ctx, sourceDir, repo.CloneURL); err != nil {
			if delErr := g.DeleteRepository(ctx, name); delErr != nil {
				g.logger.Warn("failed to delete repository after push error", "name", name, "error", delErr)
			}
			return "", err
		}
	}
	return repo.CloneURL, nil
}

func (g *Gitea) push(ctx context.Context, sourceDir, cloneURL string) error {
	workDir, err := os.MkdirTemp("", "gitrepo-*")
	if err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	if err := os.CopyFS(workDir, os.DirFS(sourceDir)); err != nil {
		return fmt.Errorf("failed to copy %s: %w", sourceDir, err)
	}

	git := g.newGit(workDir, authEnv(g.cfg.Username, g.cfg.Password))
	steps := [][]string{
		{"init", "-q", "-b", DefaultBranch},
		{"add", "-A"},
		{"-c", "user.name=" + g.cfg.Username, "-c", "user.email=" + g.cfg.Username + "@example.com", "commit", "-q", "-m", "Initial commit"},
		{"push", "-q", cloneURL, "HEAD:refs/heads/" + DefaultBranch},
	}
	for _, args := range steps {
		err := git.RunArgs(ctx, "git", args, func(line string) {
			g.logger.Debug(line, "command", "git "+args[0])
		})
		if err != nil {
			return fmt.Errorf("failed to push %s: %w", sourceDir, err)
		}
	}
	return nil
}

// authEnv passes basic credentials to git as an http.extraHeader so they
// never appear on a command line.
func authEnv(username, password string) []string {
	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return []string{
		"GIT_CONFIG_COUNT=1",
		"GIT_CONFIG_KEY_0=http.extraHeader",
		"GIT_CONFIG_VALUE_0=Authorization: Basic " + token,
		"GIT_TERMINAL_PROMPT=0",
	}
}

func (g *Gitea) owner(ctx context.Context) (string, error) {
	g.client.SetContext(ctx)
	user, _, err := g.client.GetMyUserInfo()
	if err != nil {
		return "", fmt.Errorf("failed to get gitea user: %w", err)
	}
	return user.UserName, nil
}

// DeleteRepository deletes a repository owned by the authenticated user
func (g *Gitea) DeleteRepository(ctx context.Context, name string) error {
	owner, err := g.owner(ctx)
	if err != nil {
		return err
	}
	resp, err := g.client.DeleteRepo(owner, name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s/%s", ErrRepositoryNotFound, owner, name)
		}
		return fmt.Errorf("failed to delete repository %s/%s: %w", owner, name, err)
	}
	g.logger.Info("deleted git repository", "name", name)
	return nil
}

// RepositoryURL returns the clone URL of an existing repository
func (g *Gitea) RepositoryURL(ctx context.Context, name string) (string, error) {
	owner, err := g.owner(ctx)
	if err != nil {
		return "", err
	}
	repo, resp, err := g.client.GetRepo(owner, name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s/%s", ErrRepositoryNotFound, owner, name)
		}
		return "", fmt.Errorf("failed to get repository %s/%s: %w", owner, name, err)
	}
	return repo.CloneURL, nil
}
