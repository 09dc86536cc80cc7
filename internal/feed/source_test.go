package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IssueTriage/internal/domain"
)

type stubCategory struct {
	name    string
	posts   []domain.Post
	err     error
	delay   time.Duration
	running *atomic.Int32
	peak    *atomic.Int32
}

func (s *stubCategory) Name() string { return s.name }

func (s *stubCategory) Fetch(ctx context.Context, _ Request) ([]domain.Post, error) {
	if s.running != nil {
		n := s.running.Add(1)
		defer s.running.Add(-1)
		for {
			old := s.peak.Load()
			if n <= old || s.peak.CompareAndSwap(old, n) {
				break
			}
		}
	}
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.posts, s.err
}

func collect(t *testing.T, src *Source, req Request) ([]domain.Post, error) {
	t.Helper()
	var posts []domain.Post
	for post, err := range src.Fetch(context.Background(), req) {
		if err != nil {
			return posts, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func TestSourceYieldsInCompletionOrder(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubCategory{name: domain.CategoryIssues, delay: 80 * time.Millisecond, posts: []domain.Post{{Num: 1}, {Num: 2}}})
	reg.Register(&stubCategory{name: domain.CategoryDiscussions, posts: []domain.Post{{Num: 10}}})

	posts, err := collect(t, NewSource(reg, nil), Request{
		Categories: []string{domain.CategoryIssues, domain.CategoryDiscussions},
		Ignore:     map[int]struct{}{2: {}},
	})
	require.NoError(t, err)

	require.Len(t, posts, 2)
	assert.Equal(t, 10, posts[0].Num)
	assert.Equal(t, domain.CategoryDiscussions, posts[0].Category)
	assert.Equal(t, 1, posts[1].Num)
	assert.Equal(t, domain.CategoryIssues, posts[1].Category)
}

func TestSourceBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var running, peak atomic.Int32
	reg := NewRegistry()
	names := []string{"a", "b", "c", "d"}
	for i, name := range names {
		reg.Register(&stubCategory{
			name:    name,
			delay:   30 * time.Millisecond,
			posts:   []domain.Post{{Num: i + 1}},
			running: &running,
			peak:    &peak,
		})
	}

	posts, err := collect(t, NewSource(reg, nil), Request{Categories: names})
	require.NoError(t, err)
	assert.Len(t, posts, 4)
	assert.LessOrEqual(t, peak.Load(), int32(workers))
}

func TestSourceCategoryFailure(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubCategory{name: domain.CategoryIssues, err: errors.New("401 Unauthorized")})

	_, err := collect(t, NewSource(reg, nil), Request{Categories: []string{domain.CategoryIssues}})
	require.ErrorContains(t, err, "fetch issues: 401 Unauthorized")
}

func TestSourceUnknownCategory(t *testing.T) {
	t.Parallel()

	_, err := collect(t, NewSource(NewRegistry(), nil), Request{Categories: []string{"wiki"}})
	require.ErrorContains(t, err, "wiki is not registered")
}

func TestSourceStopsWhenConsumerBreaks(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubCategory{name: domain.CategoryIssues, posts: []domain.Post{{Num: 1}, {Num: 2}, {Num: 3}}})

	var seen []int
	for post, err := range NewSource(reg, nil).Fetch(context.Background(), Request{Categories: []string{domain.CategoryIssues}}) {
		require.NoError(t, err)
		seen = append(seen, post.Num)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []int{1, 2}, seen)
}
