package feed

import (
	"context"
	"fmt"

	"IssueTriage/internal/domain"
)

// Request carries all parameters of one fetch.
type Request = domain.FetchRequest

// Category lists the open posts of one kind (issues, discussions).
type Category interface {
	Name() string
	Fetch(ctx context.Context, req Request) ([]domain.Post, error)
}

// Registry keeps a mapping from category names to their implementations.
type Registry struct {
	categories map[string]Category
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{categories: map[string]Category{}}
}

// Register adds or replaces a category implementation.
func (r *Registry) Register(category Category) {
	if r.categories == nil {
		r.categories = map[string]Category{}
	}
	r.categories[category.Name()] = category
}

// Resolve returns a category by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Category, error) {
	if category, ok := r.categories[name]; ok {
		return category, nil
	}
	return nil, fmt.Errorf("category %s is not registered", name)
}
