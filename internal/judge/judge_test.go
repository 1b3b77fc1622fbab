package judge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/koguma/bearcourt/internal/ai"
	"github.com/koguma/bearcourt/internal/fault"
	"github.com/koguma/bearcourt/internal/lock"
	"github.com/koguma/bearcourt/internal/models"
)

type fakeGenerator struct {
	judgmentCalls int32
	planCalls     int32

	result  *ai.JudgmentResult
	err     error
	plans   []ai.PlanContent
	planErr error

	// onJudgment, when set, runs inside GenerateJudgment after the call
	// counter bumps. Lets tests hold the generator mid-flight.
	onJudgment func()
}

func (f *fakeGenerator) GenerateJudgment(_ context.Context, _, _, _ string) (*ai.JudgmentResult, error) {
	atomic.AddInt32(&f.judgmentCalls, 1)
	if f.onJudgment != nil {
		f.onJudgment()
	}
	return f.result, f.err
}

func (f *fakeGenerator) GenerateReconciliationPlans(_ context.Context, _ string, _ models.ResponsibilityRatio, _ string) ([]ai.PlanContent, error) {
	atomic.AddInt32(&f.planCalls, 1)
	return f.plans, f.planErr
}

func (f *fakeGenerator) Model() string { return "test-model" }

func goodResult() *ai.JudgmentResult {
	return &ai.JudgmentResult{
		Content: "# 判決書\n\n原告：60% 責任\n被告：40% 責任",
		Summary: "雙方各有責任",
		Ratio:   models.ResponsibilityRatio{Plaintiff: 60, Defendant: 40},
	}
}

func openJudgeTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(&models.Case{}, &models.Judgment{},
		&models.ReconciliationPlan{}, &models.GuestSession{})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedQuickCase(t *testing.T, db *gorm.DB, status string) (*models.Case, *models.GuestSession) {
	t.Helper()
	sess := &models.GuestSession{
		ID:        "guest_" + status,
		ExpiresAt: time.Now().Add(models.SessionExpiry),
	}
	if err := db.Create(sess).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}
	statement := strings.Repeat("雙方對家務分工的期待落差很大。", 5)
	c := &models.Case{
		ID:                 "case-" + status,
		Type:               "生活習慣衝突",
		Status:             status,
		Mode:               models.CaseModeQuick,
		SessionID:          &sess.ID,
		PlaintiffStatement: statement,
		DefendantStatement: statement,
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed case: %v", err)
	}
	return c, sess
}

func newTestService(db *gorm.DB, gen *fakeGenerator) *Service {
	return NewService(db, gen, lock.NewMemoryStore(), 2*time.Minute)
}

func TestGenerateJudgment(t *testing.T) {
	db := openJudgeTestDB(t)
	gen := &fakeGenerator{result: goodResult()}
	svc := newTestService(db, gen)
	c, sess := seedQuickCase(t, db, models.CaseStatusSubmitted)

	j, err := svc.GenerateJudgment(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("GenerateJudgment: %v", err)
	}
	if j.PlaintiffRatio != 60 || j.DefendantRatio != 40 {
		t.Errorf("ratio = %d/%d, want 60/40", j.PlaintiffRatio, j.DefendantRatio)
	}
	if j.AIModel != "test-model" {
		t.Errorf("AIModel = %q, want test-model", j.AIModel)
	}
	if j.PromptVersion != ai.PromptVersion {
		t.Errorf("PromptVersion = %q, want %q", j.PromptVersion, ai.PromptVersion)
	}

	var got models.Case
	if err := db.First(&got, "id = ?", c.ID).Error; err != nil {
		t.Fatalf("reload case: %v", err)
	}
	if got.Status != models.CaseStatusCompleted {
		t.Errorf("case status = %q, want completed", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	var gotSess models.GuestSession
	if err := db.First(&gotSess, "id = ?", sess.ID).Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if time.Until(gotSess.ExpiresAt) < 6*24*time.Hour {
		t.Errorf("session expiry %v from now, want extended to ~7d", time.Until(gotSess.ExpiresAt))
	}
}

func TestGenerateJudgmentIdempotent(t *testing.T) {
	db := openJudgeTestDB(t)
	gen := &fakeGenerator{result: goodResult()}
	svc := newTestService(db, gen)
	c, _ := seedQuickCase(t, db, models.CaseStatusSubmitted)

	first, err := svc.GenerateJudgment(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := svc.GenerateJudgment(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second call returned a different judgment: %s vs %s", first.ID, second.ID)
	}
	if n := atomic.LoadInt32(&gen.judgmentCalls); n != 1 {
		t.Errorf("generator called %d times, want 1", n)
	}
}

func TestGenerateJudgmentCaseNotReady(t *testing.T) {
	db := openJudgeTestDB(t)
	gen := &fakeGenerator{result: goodResult()}
	svc := newTestService(db, gen)

	for _, status := range []string{models.CaseStatusDraft, models.CaseStatusCancelled} {
		c, _ := seedQuickCase(t, db, status)
		_, err := svc.GenerateJudgment(context.Background(), c.ID)
		if fault.KindOf(err) != fault.KindCaseNotReady {
			t.Errorf("status %s: kind = %v, want CaseNotReady", status, fault.KindOf(err))
		}
	}
	if n := atomic.LoadInt32(&gen.judgmentCalls); n != 0 {
		t.Errorf("generator called %d times for unready cases, want 0", n)
	}
}

func TestGenerateJudgmentMissingCase(t *testing.T) {
	db := openJudgeTestDB(t)
	svc := newTestService(db, &fakeGenerator{result: goodResult()})

	_, err := svc.GenerateJudgment(context.Background(), "ghost")
	if fault.KindOf(err) != fault.KindNotFound {
		t.Errorf("kind = %v, want NotFound", fault.KindOf(err))
	}
}

func TestGenerateJudgmentBackendFailure(t *testing.T) {
	db := openJudgeTestDB(t)
	gen := &fakeGenerator{err: fault.New(fault.KindAIService, "AI service unavailable")}
	svc := newTestService(db, gen)
	c, _ := seedQuickCase(t, db, models.CaseStatusSubmitted)

	_, err := svc.GenerateJudgment(context.Background(), c.ID)
	if fault.KindOf(err) != fault.KindAIService {
		t.Fatalf("kind = %v, want AIService", fault.KindOf(err))
	}

	var count int64
	db.Model(&models.Judgment{}).Count(&count)
	if count != 0 {
		t.Errorf("judgments persisted after failure: %d", count)
	}
	var got models.Case
	if err := db.First(&got, "id = ?", c.ID).Error; err != nil {
		t.Fatalf("reload case: %v", err)
	}
	if got.Status != models.CaseStatusSubmitted {
		t.Errorf("case status = %q after failure, want submitted", got.Status)
	}

	// Lock must be released so a retry can proceed.
	gen.err = nil
	gen.result = goodResult()
	if _, err := svc.GenerateJudgment(context.Background(), c.ID); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

func TestGenerateJudgmentInvalidRatio(t *testing.T) {
	db := openJudgeTestDB(t)
	gen := &fakeGenerator{result: &ai.JudgmentResult{
		Content: "bad",
		Ratio:   models.ResponsibilityRatio{Plaintiff: 60, Defendant: 30},
	}}
	svc := newTestService(db, gen)
	c, _ := seedQuickCase(t, db, models.CaseStatusSubmitted)

	_, err := svc.GenerateJudgment(context.Background(), c.ID)
	if fault.KindOf(err) != fault.KindValidation {
		t.Fatalf("kind = %v, want Validation", fault.KindOf(err))
	}
	var count int64
	db.Model(&models.Judgment{}).Count(&count)
	if count != 0 {
		t.Errorf("judgments persisted despite invalid ratio: %d", count)
	}
}

func TestGenerateJudgmentConcurrent(t *testing.T) {
	db := openJudgeTestDB(t)

	inFlight := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	gen := &fakeGenerator{result: goodResult()}
	gen.onJudgment = func() {
		once.Do(func() { close(inFlight) })
		<-release
	}
	svc := newTestService(db, gen)
	c, _ := seedQuickCase(t, db, models.CaseStatusSubmitted)

	winner := make(chan error, 1)
	go func() {
		_, err := svc.GenerateJudgment(context.Background(), c.ID)
		winner <- err
	}()
	<-inFlight

	// Contenders arrive while the winner holds the lock.
	const contenders = 8
	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.GenerateJudgment(context.Background(), c.ID)
		}(i)
	}
	wg.Wait()
	close(release)

	if err := <-winner; err != nil {
		t.Fatalf("winner: %v", err)
	}
	for i, err := range errs {
		if fault.KindOf(err) != fault.KindLockConflict {
			t.Errorf("contender %d: kind = %v, want LockConflict", i, fault.KindOf(err))
		}
	}
	if n := atomic.LoadInt32(&gen.judgmentCalls); n != 1 {
		t.Errorf("generator called %d times, want 1", n)
	}
	var count int64
	db.Model(&models.Judgment{}).Count(&count)
	if count != 1 {
		t.Errorf("judgment rows = %d, want 1", count)
	}

	// Late arrivals get the stored judgment.
	late, err := svc.GenerateJudgment(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("late call: %v", err)
	}
	if late.CaseID != c.ID {
		t.Errorf("late judgment CaseID = %q, want %q", late.CaseID, c.ID)
	}
}

func TestGenerateJudgmentCancelledContext(t *testing.T) {
	db := openJudgeTestDB(t)
	gen := &fakeGenerator{result: goodResult()}
	locks := lock.NewMemoryStore()
	svc := NewService(db, gen, locks, 2*time.Minute)
	c, _ := seedQuickCase(t, db, models.CaseStatusSubmitted)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.GenerateJudgment(ctx, c.ID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if locks.Held("judgment:lock:" + c.ID) {
		t.Error("cancelled call took the generation lock")
	}
	if n := atomic.LoadInt32(&gen.judgmentCalls); n != 0 {
		t.Errorf("generator called %d times for cancelled context, want 0", n)
	}

	// A live caller is unaffected.
	if _, err := svc.GenerateJudgment(context.Background(), c.ID); err != nil {
		t.Errorf("follow-up call: %v", err)
	}
}

func TestGetJudgment(t *testing.T) {
	db := openJudgeTestDB(t)
	gen := &fakeGenerator{result: goodResult()}
	svc := newTestService(db, gen)
	c, _ := seedQuickCase(t, db, models.CaseStatusSubmitted)

	if _, err := svc.GetJudgment(c.ID); fault.KindOf(err) != fault.KindNotFound {
		t.Errorf("before generation kind = %v, want NotFound", fault.KindOf(err))
	}

	j, err := svc.GenerateJudgment(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("GenerateJudgment: %v", err)
	}
	got, err := svc.GetJudgment(c.ID)
	if err != nil {
		t.Fatalf("GetJudgment: %v", err)
	}
	if got.ID != j.ID {
		t.Errorf("GetJudgment ID = %q, want %q", got.ID, j.ID)
	}
}
