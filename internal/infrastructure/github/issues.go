package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"IssueTriage/internal/domain"
	"IssueTriage/internal/feed"
)

// IssuesCategory lists open issues through the REST API.
type IssuesCategory struct {
	client *Client
}

var _ feed.Category = (*IssuesCategory)(nil)

// NewIssuesCategory wires the API client.
func NewIssuesCategory(client *Client) *IssuesCategory {
	return &IssuesCategory{client: client}
}

// Name identifies the category inside the registry.
func (i *IssuesCategory) Name() string {
	return domain.CategoryIssues
}

type issue struct {
	Number      int             `json:"number"`
	Title       string          `json:"title"`
	Body        *string         `json:"body"`
	PullRequest json.RawMessage `json:"pull_request,omitempty"`
}

// Fetch pages through open issues. Pull requests, which the issues endpoint
// also returns, are skipped.
func (i *IssuesCategory) Fetch(ctx context.Context, req feed.Request) ([]domain.Post, error) {
	var posts []domain.Post
	for page := 1; ; page++ {
		pageURL, err := i.pageURL(page)
		if err != nil {
			return nil, err
		}

		httpReq, err := i.client.newRequest(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}

		var batch []issue
		if err := i.client.do(httpReq, &batch); err != nil {
			return nil, fmt.Errorf("issues page %d: %w", page, err)
		}

		for _, it := range batch {
			if len(it.PullRequest) > 0 && string(it.PullRequest) != "null" {
				continue
			}
			if _, skip := req.Ignore[it.Number]; skip {
				continue
			}
			body := ""
			if it.Body != nil {
				body = *it.Body
			}
			posts = append(posts, domain.Post{
				Title:    it.Title,
				Num:      it.Number,
				Text:     feed.Body(body, 0),
				Category: domain.CategoryIssues,
			})
		}

		if len(batch) < i.client.pageSize {
			return posts, nil
		}
	}
}

func (i *IssuesCategory) pageURL(page int) (string, error) {
	base := fmt.Sprintf("%s/repos/%s/%s/issues", i.client.apiURL, url.PathEscape(i.client.owner), url.PathEscape(i.client.repo))
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse issues url: %w", err)
	}
	q := u.Query()
	q.Set("state", "open")
	q.Set("per_page", strconv.Itoa(i.client.pageSize))
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
