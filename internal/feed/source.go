package feed

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"IssueTriage/internal/domain"
	"IssueTriage/internal/ports"
)

// workers bounds how many categories are fetched at once.
const workers = 2

// Source implements PostSource over registered categories.
type Source struct {
	registry *Registry
	logger   *slog.Logger
}

var _ ports.PostSource = (*Source)(nil)

// NewSource wires the category registry.
func NewSource(reg *Registry, log *slog.Logger) *Source {
	return &Source{registry: reg, logger: log}
}

type batch struct {
	category string
	posts    []domain.Post
	err      error
}

// Fetch drains every requested category on a small worker pool and yields
// posts in the order categories complete. Ignored numbers are skipped. The
// first category failure is yielded as an error and ends the sequence.
func (s *Source) Fetch(ctx context.Context, req Request) iter.Seq2[domain.Post, error] {
	return func(yield func(domain.Post, error) bool) {
		if s.registry == nil {
			yield(domain.Post{}, fmt.Errorf("category registry is not configured"))
			return
		}

		categories := make([]Category, 0, len(req.Categories))
		for _, name := range req.Categories {
			category, err := s.registry.Resolve(name)
			if err != nil {
				yield(domain.Post{}, err)
				return
			}
			categories = append(categories, category)
		}
		if len(categories) == 0 {
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		s.debug("fetch posts", "categories", req.Categories, "ignored", len(req.Ignore))

		out := make(chan batch, len(categories))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		go func() {
			for _, category := range categories {
				g.Go(func() error {
					posts, err := category.Fetch(gctx, req)
					out <- batch{category: category.Name(), posts: posts, err: err}
					return err
				})
			}
			_ = g.Wait()
			close(out)
		}()

		for b := range out {
			if b.err != nil {
				yield(domain.Post{}, fmt.Errorf("fetch %s: %w", b.category, b.err))
				return
			}
			s.debug("category fetched", "category", b.category, "count", len(b.posts))
			for _, post := range b.posts {
				if _, skip := req.Ignore[post.Num]; skip {
					continue
				}
				if post.Category == "" {
					post.Category = b.category
				}
				if !yield(post, nil) {
					return
				}
			}
		}
	}
}

func (s *Source) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
