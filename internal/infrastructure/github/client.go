package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAPIURL     = "https://api.github.com"
	defaultGraphQLURL = "https://api.github.com/graphql"
	defaultPageSize   = 100
	userAgent         = "IssueTriage/1.0"
)

// Options configures the GitHub API client.
type Options struct {
	Token      string
	Owner      string
	Repo       string
	APIURL     string
	GraphQLURL string
	PageSize   int
	HTTPClient *http.Client
}

// Client talks to the REST and GraphQL endpoints of one repository.
type Client struct {
	token      string
	owner      string
	repo       string
	apiURL     string
	graphqlURL string
	pageSize   int
	http       *http.Client
}

// NewClient fills defaults for empty options.
func NewClient(opts Options) *Client {
	c := &Client{
		token:      opts.Token,
		owner:      opts.Owner,
		repo:       opts.Repo,
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		graphqlURL: opts.GraphQLURL,
		pageSize:   opts.PageSize,
		http:       opts.HTTPClient,
	}
	if c.apiURL == "" {
		c.apiURL = defaultAPIURL
	}
	if c.graphqlURL == "" {
		c.graphqlURL = defaultGraphQLURL
	}
	if c.pageSize <= 0 || c.pageSize > 100 {
		c.pageSize = defaultPageSize
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("github returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}
