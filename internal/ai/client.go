// Package ai builds the domain prompts for case classification, judgments,
// and reconciliation plans, and runs them against a rate-limited,
// failure-prone text-generation backend with bounded retries and daily
// quota enforcement.
package ai

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/koguma/bearcourt/internal/config"
	"github.com/koguma/bearcourt/internal/fault"
	"github.com/koguma/bearcourt/internal/models"
	"github.com/koguma/bearcourt/internal/quota"
	"github.com/koguma/bearcourt/internal/retry"
)

// classifyCacheTTL keeps classification results for a week; identical
// statement pairs are common when a case is retried or resubmitted.
const classifyCacheTTL = 7 * 24 * time.Hour

// Options tune a single GenerateText call. Zero values select the client
// defaults.
type Options struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
}

// JudgmentResult is the structured outcome of a judgment generation.
type JudgmentResult struct {
	Content string
	Ratio   models.ResponsibilityRatio
	Summary string
}

// Client composes the backend, quota tracker, retry policy, and
// classification cache into the three domain operations.
type Client struct {
	backend Backend
	quota   *quota.Tracker
	cache   Cache
	policy  retry.Policy

	model       string
	maxTokens   int
	temperature float32
}

// NewClient wires a client from configuration. Pass nil for cache to use
// an in-process cache.
func NewClient(cfg config.AIConfig, backend Backend, tracker *quota.Tracker, cache Cache) *Client {
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.MaxRetries
	policy.ShouldRetry = Retryable
	return &Client{
		backend:     backend,
		quota:       tracker,
		cache:       cache,
		policy:      policy,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Model returns the configured backend model name, recorded on judgments.
func (c *Client) Model() string { return c.model }

// GenerateText checks the daily quota, runs the backend call under the
// retry policy, and commits quota usage only after success. Exhausted
// retries surface as a distinct fault kind per failure class: rate-limited,
// auth misconfiguration, or generic unavailability.
func (c *Client) GenerateText(ctx context.Context, prompt string, opts Options) (string, error) {
	if err := c.quota.CheckAndReserve(); err != nil {
		return "", err
	}

	req := Request{
		SystemPrompt: opts.SystemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    c.maxTokens,
		Temperature:  c.temperature,
		TopP:         1,
	}
	if req.SystemPrompt == "" {
		req.SystemPrompt = defaultSystemPrompt
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = opts.Temperature
	}

	text, err := retry.Do(ctx, c.policy, func() (string, error) {
		return c.backend.Complete(ctx, req)
	})
	if err != nil {
		switch StatusCode(err) {
		case 429:
			return "", fault.Wrap(fault.KindAIService, "AI backend rate limited", err)
		case 401, 403:
			return "", fault.Wrap(fault.KindAIService, "AI backend authentication failed", err)
		default:
			return "", fault.Wrap(fault.KindAIService, "AI backend unavailable", err)
		}
	}

	if err := c.quota.Commit(); err != nil {
		// The call succeeded; a failed counter write must not discard it.
		log.Printf("ai: quota commit failed: %v", err)
	}
	return text, nil
}

// ClassifyCaseType assigns one of the six dispute categories to a statement
// pair. Results are cached by content hash for a week, and cache hits
// bypass the quota entirely. Backend failure and unrecognized output both
// fall back to the generic category.
func (c *Client) ClassifyCaseType(ctx context.Context, plaintiffStatement, defendantStatement string) string {
	cacheKey := HashKey("caseType", plaintiffStatement+defendantStatement)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached
	}

	response, err := c.GenerateText(ctx, classifyPrompt(plaintiffStatement, defendantStatement), Options{
		SystemPrompt: classifySystemPrompt,
		MaxTokens:    10,
		Temperature:  0.3, // near-deterministic: classification must be stable
	})
	if err != nil {
		log.Printf("ai: classify case type: %v", err)
		return models.CaseTypeOther
	}

	caseType := strings.Trim(strings.TrimSpace(response), "。.，,")
	if !models.ValidCaseType(caseType) {
		caseType = models.CaseTypeOther
	}

	c.cache.Set(cacheKey, caseType, classifyCacheTTL)
	return caseType
}

// GenerateJudgment produces the judgment narrative, extracts and
// renormalizes the responsibility split, and condenses a summary with a
// second call. A failed summary call degrades to literal truncation rather
// than failing the judgment.
func (c *Client) GenerateJudgment(ctx context.Context, caseType, plaintiffStatement, defendantStatement string) (*JudgmentResult, error) {
	content, err := c.GenerateText(ctx, judgmentPrompt(caseType, plaintiffStatement, defendantStatement), Options{
		SystemPrompt: judgeSystemPrompt,
		MaxTokens:    2000,
		Temperature:  0.7,
	})
	if err != nil {
		return nil, err
	}

	ratio := extractRatio(content)

	summary, err := c.GenerateText(ctx, summaryPrompt(content), Options{
		MaxTokens:   150,
		Temperature: 0.5,
	})
	if err != nil {
		log.Printf("ai: summary generation failed, truncating: %v", err)
		summary = truncateSummary(content)
	}

	return &JudgmentResult{
		Content: content,
		Ratio:   ratio,
		Summary: strings.TrimSpace(summary),
	}, nil
}

// GenerateReconciliationPlans produces 3-5 structured plans from a
// judgment. Plan parsing has no fallback: malformed output is a
// Validation fault.
func (c *Client) GenerateReconciliationPlans(ctx context.Context, caseType string, ratio models.ResponsibilityRatio, judgmentSummary string) ([]PlanContent, error) {
	content, err := c.GenerateText(ctx, planPrompt(caseType, ratio, judgmentSummary), Options{
		SystemPrompt: planSystemPrompt,
		MaxTokens:    3000,
		Temperature:  0.8, // plans benefit from variety
	})
	if err != nil {
		return nil, err
	}
	return parsePlans(content)
}
