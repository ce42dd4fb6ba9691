package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
)

// DefaultTimeout is the HTTP timeout of clients built by NewClient.
const DefaultTimeout = 30 * time.Second

// Options configures a Client.
type Options struct {
	// Token is a personal access or OAuth token. Public repositories can
	// be read without one.
	Token string

	// BaseURL overrides the API endpoint, for GitHub Enterprise
	// (https://host/api/v3/) or tests.
	BaseURL string

	// RequestsPerSecond throttles requests. Zero means DefaultRate and a
	// negative value disables throttling.
	RequestsPerSecond float64

	// HTTPClient is used instead of a client built from Token.
	HTTPClient *http.Client
}

// Client wraps the go-github client with rate limiting and error mapping.
type Client struct {
	gh      *gh.Client
	limiter *RateLimiter
}

// NewClient creates a GitHub API client.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		if opts.Token != "" {
			ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
			httpClient = oauth2.NewClient(ctx, ts)
		} else {
			httpClient = &http.Client{}
		}
		httpClient.Timeout = DefaultTimeout
	}

	client := gh.NewClient(httpClient)
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("github: invalid base URL %q: %w", opts.BaseURL, err)
		}
		client.BaseURL = u
	}

	perSecond := opts.RequestsPerSecond
	if perSecond == 0 {
		perSecond = DefaultRate
	}
	return &Client{gh: client, limiter: NewRateLimiter(perSecond)}, nil
}

// RateLimiter returns the client's limiter.
func (c *Client) RateLimiter() *RateLimiter {
	return c.limiter
}

// Repository fetches a repository.
func (c *Client) Repository(ctx context.Context, owner, repo string) (*gh.Repository, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	repository, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
	c.observe(resp)
	if err != nil {
		return nil, wrapError(err, "get repository")
	}
	return repository, nil
}

// Tree fetches the full tree at ref in one request.
func (c *Client) Tree(ctx context.Context, owner, repo, ref string) (*gh.Tree, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	tree, resp, err := c.gh.Git.GetTree(ctx, owner, repo, ref, true)
	c.observe(resp)
	if err != nil {
		return nil, wrapError(err, "get tree")
	}
	return tree, nil
}

// Blob fetches and decodes a file's content by SHA.
func (c *Client) Blob(ctx context.Context, owner, repo, sha string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	blob, resp, err := c.gh.Git.GetBlob(ctx, owner, repo, sha)
	c.observe(resp)
	if err != nil {
		return nil, wrapError(err, "get blob")
	}

	if blob.GetEncoding() != "base64" {
		return []byte(blob.GetContent()), nil
	}
	content := strings.ReplaceAll(blob.GetContent(), "\n", "")
	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("github: decode blob %s: %w", sha, err)
	}
	return data, nil
}

func (c *Client) observe(resp *gh.Response) {
	if resp != nil {
		c.limiter.Observe(resp.Response)
	}
}
