package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Supported GitHub adapter actions
const (
	ActionListRepositories = "list_repositories"
	ActionRepositoryInfo   = "repository_info"
)

// GitHubAdapter talks to the GitHub REST API with a bearer token
type GitHubAdapter struct {
	baseURL    string
	httpClient *http.Client
}

// GitHubOption customizes the adapter
type GitHubOption func(*GitHubAdapter)

// WithBaseURL overrides the API base URL (used in tests)
func WithBaseURL(base string) GitHubOption {
	return func(g *GitHubAdapter) { g.baseURL = base }
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(c *http.Client) GitHubOption {
	return func(g *GitHubAdapter) { g.httpClient = c }
}

// NewGitHubAdapter creates the GitHub adapter
func NewGitHubAdapter(opts ...GitHubOption) *GitHubAdapter {
	g := &GitHubAdapter{
		baseURL:    "https://api.github.com",
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ID returns the adapter identifier
func (g *GitHubAdapter) ID() string { return "github" }

// Call dispatches a GitHub action. Unknown actions are rejected; HTTP and
// API failures are returned as errors for the tool boundary to wrap.
func (g *GitHubAdapter) Call(ctx context.Context, token, action string, payload map[string]interface{}) (map[string]interface{}, error) {
	switch action {
	case ActionListRepositories:
		return g.listRepositories(ctx, token)
	case ActionRepositoryInfo:
		fullName, _ := payload["full_name"].(string)
		if fullName == "" {
			return nil, fmt.Errorf("repository_info requires full_name")
		}
		return g.repositoryInfo(ctx, token, fullName)
	default:
		return nil, fmt.Errorf("unsupported action: %s", action)
	}
}

func (g *GitHubAdapter) listRepositories(ctx context.Context, token string) (map[string]interface{}, error) {
	var repos []map[string]interface{}
	if err := g.get(ctx, token, "/user/repos?per_page=20", &repos); err != nil {
		return nil, err
	}

	results := make([]map[string]interface{}, 0, len(repos))
	for _, repo := range repos {
		results = append(results, map[string]interface{}{
			"full_name":   repo["full_name"],
			"private":     repo["private"],
			"html_url":    repo["html_url"],
			"description": repo["description"],
		})
	}

	return map[string]interface{}{
		"action":       ActionListRepositories,
		"repositories": results,
		"count":        len(results),
	}, nil
}

func (g *GitHubAdapter) repositoryInfo(ctx context.Context, token, fullName string) (map[string]interface{}, error) {
	var repo map[string]interface{}
	path := "/repos/" + fullName
	if err := g.get(ctx, token, path, &repo); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"action":     ActionRepositoryInfo,
		"repository": repo,
	}, nil
}

func (g *GitHubAdapter) get(ctx context.Context, token, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read github response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("GitHub API error")
		return fmt.Errorf("github API returned %d for %s", resp.StatusCode, path)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse github response: %w", err)
	}
	return nil
}
