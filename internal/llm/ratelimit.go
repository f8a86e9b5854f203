package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// limitedProvider waits on a shared token bucket before every remote call
type limitedProvider struct {
	next    Provider
	limiter *rate.Limiter
}

// NewLimiter returns a token bucket allowing perSecond calls with the given burst.
// A non-positive rate disables limiting and returns nil.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// WithRateLimit wraps p so every call consumes one token from limiter.
// A nil limiter returns p unchanged.
func WithRateLimit(p Provider, limiter *rate.Limiter) Provider {
	if limiter == nil {
		return p
	}
	return &limitedProvider{next: p, limiter: limiter}
}

// LimitFactory applies the same limiter to every provider built by f
func LimitFactory(f Factory, limiter *rate.Limiter) Factory {
	if limiter == nil {
		return f
	}
	return func(apiKey string) (Provider, error) {
		p, err := f(apiKey)
		if err != nil {
			return nil, err
		}
		return WithRateLimit(p, limiter), nil
	}
}

func (p *limitedProvider) wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

func (p *limitedProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	return p.next.Complete(ctx, req)
}

func (p *limitedProvider) Embed(ctx context.Context, model, input string) ([]float64, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.next.Embed(ctx, model, input)
}

func (p *limitedProvider) ListModels(ctx context.Context) ([]string, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.next.ListModels(ctx)
}
