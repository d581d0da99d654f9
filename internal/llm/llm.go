package llm

import (
	"context"
	"errors"
	"fmt"

	"shared-basket/internal/shared"
)

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is an interface for generating text from a prompt.
// Implementations are asked for a single JSON object as output.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// ErrNoProvider is returned by an empty fallback chain.
var ErrNoProvider = errors.New("no text generator configured")

// FallbackGenerator tries each generator in order until one succeeds.
type FallbackGenerator struct {
	generators []TextGenerator
}

// NewFallbackGenerator skips nil entries so optional providers can be passed directly.
func NewFallbackGenerator(generators ...TextGenerator) *FallbackGenerator {
	f := &FallbackGenerator{}
	for _, g := range generators {
		if g != nil {
			f.generators = append(f.generators, g)
		}
	}
	return f
}

func (f *FallbackGenerator) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	if len(f.generators) == 0 {
		return ContentResponse{}, ErrNoProvider
	}

	var errs []error
	for i, g := range f.generators {
		resp, err := g.GenerateContent(ctx, prompt)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return ContentResponse{}, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("provider %d: %w", i, err))
	}
	return ContentResponse{}, errors.Join(errs...)
}

// Close closes every generator that holds resources.
func (f *FallbackGenerator) Close() error {
	var errs []error
	for _, g := range f.generators {
		if c, ok := g.(Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
