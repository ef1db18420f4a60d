package enrichment

import (
	"context"
	"errors"
	"time"

	"multibagger/observability"
)

// Result is the outcome of a chain run.
type Result struct {
	Insight *Insight
	Tried   []string // providers attempted, in order, excluding the fallback
}

// Chain tries providers in order and falls back to the rule-based provider
// when none succeeds. Enrich always returns an insight.
type Chain struct {
	providers []Provider
	fallback  *RuleBasedProvider
	health    *HealthCache
	timeout   time.Duration
}

// NewChain builds a chain over providers. A zero timeout leaves provider
// calls bound only by the caller's context.
func NewChain(providers []Provider, healthTTL, timeout time.Duration) *Chain {
	return &Chain{
		providers: providers,
		fallback:  NewRuleBasedProvider(),
		health:    NewHealthCache(healthTTL),
		timeout:   timeout,
	}
}

// Providers returns the provider names in the order they are tried.
func (c *Chain) Providers() []string {
	names := make([]string, 0, len(c.providers)+1)
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return append(names, c.fallback.Name())
}

func (c *Chain) Enrich(ctx context.Context, prompt Prompt) Result {
	metrics := observability.GetMetrics()
	log := observability.WithSymbol(prompt.Symbol)
	var tried []string

	for _, p := range c.providers {
		if ctx.Err() != nil {
			break
		}

		name := p.Name()
		if c.health.Skip(name) {
			log.Debug("skipping recently failed enrichment provider", "provider", name)
			metrics.RecordEnrichment(name, "skipped")
			continue
		}
		tried = append(tried, name)

		insight, err := c.attempt(ctx, p, prompt)
		if err != nil {
			log.Warn("enrichment provider failed",
				"provider", name,
				"error", err)
			metrics.RecordEnrichment(name, "error")
			// a cancelled parent says nothing about provider health
			if !errors.Is(err, context.Canceled) || ctx.Err() == nil {
				c.health.Set(name, false)
			}
			continue
		}

		c.health.Set(name, true)
		metrics.RecordEnrichment(name, "success")
		log.Debug("enrichment completed", "provider", name)
		return Result{Insight: insight, Tried: tried}
	}

	metrics.RecordEnrichment(c.fallback.Name(), "fallback")
	return Result{Insight: c.fallback.Derive(prompt), Tried: tried}
}

func (c *Chain) attempt(ctx context.Context, p Provider, prompt Prompt) (*Insight, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	insight, err := p.AttemptEnrich(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if insight == nil {
		return nil, errors.New("provider returned no insight")
	}
	return insight, nil
}
