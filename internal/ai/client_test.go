package ai

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/koguma/bearcourt/internal/config"
	"github.com/koguma/bearcourt/internal/fault"
	"github.com/koguma/bearcourt/internal/models"
	"github.com/koguma/bearcourt/internal/quota"
)

// fakeBackend drives the client with canned responses per call.
type fakeBackend struct {
	calls    int32
	complete func(call int, req Request) (string, error)
}

func (f *fakeBackend) Complete(_ context.Context, req Request) (string, error) {
	n := int(atomic.AddInt32(&f.calls, 1))
	return f.complete(n, req)
}

func (f *fakeBackend) callCount() int { return int(atomic.LoadInt32(&f.calls)) }

func testClientConfig(limit int) config.AIConfig {
	return config.AIConfig{
		Model:       "test-model",
		MaxTokens:   500,
		Temperature: 0.7,
		DailyLimit:  limit,
		MaxRetries:  3,
	}
}

func newTestClient(limit int, backend Backend) *Client {
	tracker := quota.NewTracker(quota.NewMemoryStore(), limit)
	return NewClient(testClientConfig(limit), backend, tracker, nil)
}

func TestGenerateText_Success(t *testing.T) {
	backend := &fakeBackend{complete: func(int, Request) (string, error) {
		return "回應內容", nil
	}}
	c := newTestClient(10, backend)

	got, err := c.GenerateText(context.Background(), "提示", Options{})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if got != "回應內容" {
		t.Errorf("text = %q", got)
	}
	if backend.callCount() != 1 {
		t.Errorf("backend calls = %d, want 1", backend.callCount())
	}
}

func TestGenerateText_QuotaEnforcedBeforeBackend(t *testing.T) {
	backend := &fakeBackend{complete: func(int, Request) (string, error) {
		return "ok", nil
	}}
	const limit = 2
	c := newTestClient(limit, backend)

	for i := 0; i < limit; i++ {
		if _, err := c.GenerateText(context.Background(), "p", Options{}); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}

	_, err := c.GenerateText(context.Background(), "p", Options{})
	if !fault.Is(err, fault.KindQuotaExceeded) {
		t.Errorf("err kind = %v, want QuotaExceeded", fault.KindOf(err))
	}
	if backend.callCount() != limit {
		t.Errorf("backend calls = %d, want %d: the over-limit call must not reach the backend", backend.callCount(), limit)
	}
}

func TestGenerateText_FailedCallsDoNotConsumeQuota(t *testing.T) {
	backend := &fakeBackend{complete: func(call int, _ Request) (string, error) {
		if call <= 3 {
			return "", &StatusError{Code: 400, Message: "bad request"}
		}
		return "ok", nil
	}}
	c := newTestClient(1, backend)

	ctx := context.Background()
	if _, err := c.GenerateText(ctx, "p", Options{}); err == nil {
		t.Fatal("expected failure")
	}
	// Earlier failures must not have consumed the single quota slot.
	if _, err := c.GenerateText(ctx, "p", Options{}); err != nil {
		t.Fatalf("unexpected quota exhaustion: %v", err)
	}
}

func TestGenerateText_Retries5xxUpToMaxAttempts(t *testing.T) {
	backend := &fakeBackend{complete: func(int, Request) (string, error) {
		return "", &StatusError{Code: 503, Message: "unavailable"}
	}}
	tracker := quota.NewTracker(quota.NewMemoryStore(), 10)
	cfg := testClientConfig(10)
	c := NewClient(cfg, backend, tracker, nil)
	c.policy.InitialDelay = 0 // keep the test fast

	_, err := c.GenerateText(context.Background(), "p", Options{})
	if !fault.Is(err, fault.KindAIService) {
		t.Errorf("err kind = %v, want AIService", fault.KindOf(err))
	}
	if backend.callCount() != cfg.MaxRetries {
		t.Errorf("backend calls = %d, want exactly %d", backend.callCount(), cfg.MaxRetries)
	}
}

func TestGenerateText_4xxNotRetried(t *testing.T) {
	backend := &fakeBackend{complete: func(int, Request) (string, error) {
		return "", &StatusError{Code: 401, Message: "bad key"}
	}}
	c := newTestClient(10, backend)

	_, err := c.GenerateText(context.Background(), "p", Options{})
	if !fault.Is(err, fault.KindAIService) {
		t.Errorf("err kind = %v, want AIService", fault.KindOf(err))
	}
	if !strings.Contains(err.Error(), "authentication") {
		t.Errorf("err = %q, want auth failure to be named", err.Error())
	}
	if backend.callCount() != 1 {
		t.Errorf("backend calls = %d, want exactly 1 for a 4xx failure", backend.callCount())
	}
}

func TestGenerateText_RateLimitedSurfacedDistinctly(t *testing.T) {
	backend := &fakeBackend{complete: func(int, Request) (string, error) {
		return "", &StatusError{Code: 429, Message: "slow down"}
	}}
	c := newTestClient(10, backend)

	_, err := c.GenerateText(context.Background(), "p", Options{})
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("err = %q, want rate-limit failure to be named", err.Error())
	}
}

func TestClassifyCaseType_ValidatedAndCached(t *testing.T) {
	backend := &fakeBackend{complete: func(int, Request) (string, error) {
		return "生活習慣衝突。", nil
	}}
	c := newTestClient(10, backend)

	ctx := context.Background()
	got := c.ClassifyCaseType(ctx, "陳述A", "陳述B")
	if got != "生活習慣衝突" {
		t.Errorf("type = %q, want 生活習慣衝突 (punctuation stripped)", got)
	}

	// Second identical call hits the cache and bypasses the backend.
	got = c.ClassifyCaseType(ctx, "陳述A", "陳述B")
	if got != "生活習慣衝突" {
		t.Errorf("cached type = %q", got)
	}
	if backend.callCount() != 1 {
		t.Errorf("backend calls = %d, want 1 (cache hit must bypass quota and backend)", backend.callCount())
	}
}

func TestClassifyCaseType_UnrecognizedFallsBack(t *testing.T) {
	backend := &fakeBackend{complete: func(int, Request) (string, error) {
		return "戀愛衝突", nil
	}}
	c := newTestClient(10, backend)

	got := c.ClassifyCaseType(context.Background(), "a", "b")
	if got != models.CaseTypeOther {
		t.Errorf("type = %q, want fallback %q", got, models.CaseTypeOther)
	}
}

func TestClassifyCaseType_BackendFailureFallsBack(t *testing.T) {
	backend := &fakeBackend{complete: func(int, Request) (string, error) {
		return "", &StatusError{Code: 400, Message: "nope"}
	}}
	c := newTestClient(10, backend)

	got := c.ClassifyCaseType(context.Background(), "a", "b")
	if got != models.CaseTypeOther {
		t.Errorf("type = %q, want fallback %q", got, models.CaseTypeOther)
	}
}

const judgmentText = "## ⚖️ 判決結果\n**責任分比例**：\n- 原告：70% 責任\n- 被告：20% 責任\n雙方都要多體諒彼此。"

func TestGenerateJudgment_FullFlow(t *testing.T) {
	backend := &fakeBackend{complete: func(call int, req Request) (string, error) {
		if call == 1 {
			return judgmentText, nil
		}
		return "雙方各有責任，建議多溝通。", nil // summary call
	}}
	c := newTestClient(10, backend)

	res, err := c.GenerateJudgment(context.Background(), models.CaseTypeOther, "原告的話", "被告的話")
	if err != nil {
		t.Fatalf("GenerateJudgment: %v", err)
	}
	if res.Content != judgmentText {
		t.Error("content should be the raw judgment text")
	}
	want := models.ResponsibilityRatio{Plaintiff: 78, Defendant: 22}
	if res.Ratio != want {
		t.Errorf("ratio = %+v, want %+v (renormalized from 70/20)", res.Ratio, want)
	}
	if res.Summary != "雙方各有責任，建議多溝通。" {
		t.Errorf("summary = %q", res.Summary)
	}
	if backend.callCount() != 2 {
		t.Errorf("backend calls = %d, want 2 (judgment + summary)", backend.callCount())
	}
}

func TestGenerateJudgment_SummaryFailureTruncates(t *testing.T) {
	backend := &fakeBackend{complete: func(call int, _ Request) (string, error) {
		if call == 1 {
			return judgmentText, nil
		}
		return "", &StatusError{Code: 400, Message: "no summary for you"}
	}}
	c := newTestClient(10, backend)

	res, err := c.GenerateJudgment(context.Background(), models.CaseTypeOther, "a", "b")
	if err != nil {
		t.Fatalf("GenerateJudgment: %v", err)
	}
	if res.Summary == "" {
		t.Error("summary should fall back to truncated content")
	}
	if !strings.HasPrefix(judgmentText, strings.TrimSuffix(res.Summary, "...")) {
		t.Errorf("fallback summary %q should be a prefix of the content", res.Summary)
	}
}

func TestGenerateJudgment_JudgmentFailureAborts(t *testing.T) {
	backend := &fakeBackend{complete: func(int, Request) (string, error) {
		return "", &StatusError{Code: 400, Message: "nope"}
	}}
	c := newTestClient(10, backend)

	_, err := c.GenerateJudgment(context.Background(), models.CaseTypeOther, "a", "b")
	if !fault.Is(err, fault.KindAIService) {
		t.Errorf("err kind = %v, want AIService", fault.KindOf(err))
	}
}

func TestGenerateReconciliationPlans_ParsesStructuredOutput(t *testing.T) {
	backend := &fakeBackend{complete: func(int, Request) (string, error) {
		return "為你們設計了方案：\n" + validPlanJSON, nil
	}}
	c := newTestClient(10, backend)

	plans, err := c.GenerateReconciliationPlans(context.Background(), models.CaseTypeOther,
		models.ResponsibilityRatio{Plaintiff: 60, Defendant: 40}, "摘要")
	if err != nil {
		t.Fatalf("GenerateReconciliationPlans: %v", err)
	}
	if len(plans) != 2 {
		t.Errorf("len = %d, want 2", len(plans))
	}
}

func TestGenerateReconciliationPlans_UnparseableIsHardError(t *testing.T) {
	backend := &fakeBackend{complete: func(int, Request) (string, error) {
		return "抱歉，我幫不上忙。", nil
	}}
	c := newTestClient(10, backend)

	_, err := c.GenerateReconciliationPlans(context.Background(), models.CaseTypeOther,
		models.ResponsibilityRatio{Plaintiff: 50, Defendant: 50}, "摘要")
	if !fault.Is(err, fault.KindValidation) {
		t.Errorf("err kind = %v, want Validation", fault.KindOf(err))
	}
}
