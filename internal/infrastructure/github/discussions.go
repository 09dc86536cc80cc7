package github

import (
	"context"
	"fmt"
	"strings"

	"IssueTriage/internal/domain"
	"IssueTriage/internal/feed"
)

const discussionsQuery = `query($owner: String!, $name: String!, $first: Int!, $after: String) {
  repository(owner: $owner, name: $name) {
    discussions(first: $first, after: $after, answered: false) {
      pageInfo { hasNextPage endCursor }
      nodes { number title body }
    }
  }
}`

// DiscussionsCategory lists unanswered discussions through GraphQL.
type DiscussionsCategory struct {
	client *Client
}

var _ feed.Category = (*DiscussionsCategory)(nil)

// NewDiscussionsCategory wires the API client.
func NewDiscussionsCategory(client *Client) *DiscussionsCategory {
	return &DiscussionsCategory{client: client}
}

// Name identifies the category inside the registry.
func (d *DiscussionsCategory) Name() string {
	return domain.CategoryDiscussions
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type discussionsResponse struct {
	Data struct {
		Repository *struct {
			Discussions struct {
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				Nodes []struct {
					Number int    `json:"number"`
					Title  string `json:"title"`
					Body   string `json:"body"`
				} `json:"nodes"`
			} `json:"discussions"`
		} `json:"repository"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// Fetch follows the discussions cursor until the last page. Bodies are capped
// at req.DiscussionMaxChars runes after stripping.
func (d *DiscussionsCategory) Fetch(ctx context.Context, req feed.Request) ([]domain.Post, error) {
	var (
		posts  []domain.Post
		cursor *string
	)
	for page := 1; ; page++ {
		payload := graphQLRequest{
			Query: discussionsQuery,
			Variables: map[string]any{
				"owner": d.client.owner,
				"name":  d.client.repo,
				"first": d.client.pageSize,
				"after": cursor,
			},
		}

		var resp discussionsResponse
		if err := d.client.postJSON(ctx, d.client.graphqlURL, payload, &resp); err != nil {
			return nil, fmt.Errorf("discussions page %d: %w", page, err)
		}
		if len(resp.Errors) > 0 {
			msgs := make([]string, 0, len(resp.Errors))
			for _, e := range resp.Errors {
				msgs = append(msgs, e.Message)
			}
			return nil, fmt.Errorf("discussions page %d: graphql: %s", page, strings.Join(msgs, "; "))
		}
		if resp.Data.Repository == nil {
			return nil, fmt.Errorf("repository %s/%s not found", d.client.owner, d.client.repo)
		}

		conn := resp.Data.Repository.Discussions
		for _, node := range conn.Nodes {
			if _, skip := req.Ignore[node.Number]; skip {
				continue
			}
			posts = append(posts, domain.Post{
				Title:    node.Title,
				Num:      node.Number,
				Text:     feed.Body(node.Body, req.DiscussionMaxChars),
				Category: domain.CategoryDiscussions,
			})
		}

		if !conn.PageInfo.HasNextPage || conn.PageInfo.EndCursor == "" {
			return posts, nil
		}
		next := conn.PageInfo.EndCursor
		cursor = &next
	}
}
