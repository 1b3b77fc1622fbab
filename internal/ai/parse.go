package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/koguma/bearcourt/internal/fault"
	"github.com/koguma/bearcourt/internal/models"
)

var (
	plaintiffRatioRe = regexp.MustCompile(`原告[：:]\s*(\d+)%\s*責任`)
	defendantRatioRe = regexp.MustCompile(`被告[：:]\s*(\d+)%\s*責任`)
)

// extractRatio pulls the responsibility split out of judgment text. Absent
// numbers default to 50/50. When the raw pair does not sum to 100 it is
// rescaled proportionally: the plaintiff share is rounded half away from
// zero and the defendant takes the remainder, so the result always sums to
// exactly 100.
func extractRatio(content string) models.ResponsibilityRatio {
	plaintiff, defendant := 50, 50

	if m := plaintiffRatioRe.FindStringSubmatch(content); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			plaintiff = n
		}
	}
	if m := defendantRatioRe.FindStringSubmatch(content); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			defendant = n
		}
	}

	total := plaintiff + defendant
	if total == 0 {
		return models.ResponsibilityRatio{Plaintiff: 50, Defendant: 50}
	}
	if total != 100 {
		plaintiff = int(math.Round(float64(plaintiff) * 100 / float64(total)))
		defendant = 100 - plaintiff
	}
	return models.ResponsibilityRatio{Plaintiff: plaintiff, Defendant: defendant}
}

// PlanContent is the decoded shape of one reconciliation plan in the
// model's JSON output. Cost scores are 1-5 each.
type PlanContent struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Steps             []string `json:"steps"`
	ExpectedEffect    string   `json:"expected_effect"`
	TimeCost          int      `json:"time_cost"`
	MoneyCost         int      `json:"money_cost"`
	EmotionCost       int      `json:"emotion_cost"`
	SkillRequirement  int      `json:"skill_requirement"`
	PlanType          string   `json:"plan_type"`
	EstimatedDuration int      `json:"estimated_duration"`
	DifficultyLevel   string   `json:"difficulty_level"`
}

// costScore sums the four 1-5 cost dimensions.
func (p PlanContent) costScore() int {
	return p.TimeCost + p.MoneyCost + p.EmotionCost + p.SkillRequirement
}

// Difficulty grades the plan by total cost: <=8 easy, <=12 medium, else hard.
func (p PlanContent) Difficulty() string {
	score := p.costScore()
	switch {
	case score <= 8:
		return models.DifficultyEasy
	case score <= 12:
		return models.DifficultyMedium
	default:
		return models.DifficultyHard
	}
}

// EstimatedDays returns the model-provided duration, or derives one from
// the difficulty grade when absent.
func (p PlanContent) EstimatedDays() int {
	if p.EstimatedDuration > 0 {
		return p.EstimatedDuration
	}
	switch p.Difficulty() {
	case models.DifficultyEasy:
		return 1
	case models.DifficultyMedium:
		return 5
	default:
		return 14
	}
}

// validate checks the fields the persistence layer depends on.
func (p PlanContent) validate() error {
	if p.Title == "" {
		return fmt.Errorf("missing title")
	}
	if p.Description == "" {
		return fmt.Errorf("plan %q: missing description", p.Title)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan %q: missing steps", p.Title)
	}
	if !models.ValidPlanType(p.PlanType) {
		return fmt.Errorf("plan %q: unknown plan_type %q", p.Title, p.PlanType)
	}
	for _, cost := range []int{p.TimeCost, p.MoneyCost, p.EmotionCost, p.SkillRequirement} {
		if cost < 1 || cost > 5 {
			return fmt.Errorf("plan %q: cost score %d out of range 1-5", p.Title, cost)
		}
	}
	return nil
}

// parsePlans decodes the model's plan list. The model sometimes wraps the
// JSON array in surrounding prose, so when a direct decode fails the first
// bracketed substring is tried before giving up. Unlike the summary step
// there is no safe fallback for structured plans: failure is a
// ValidationError.
func parsePlans(content string) ([]PlanContent, error) {
	var plans []PlanContent
	if err := json.Unmarshal([]byte(content), &plans); err != nil {
		extracted, ok := extractArray(content)
		if !ok {
			return nil, fault.Wrap(fault.KindValidation, "no plan list found in AI output", err)
		}
		if err := json.Unmarshal([]byte(extracted), &plans); err != nil {
			return nil, fault.Wrap(fault.KindValidation, "malformed plan list in AI output", err)
		}
	}

	if len(plans) == 0 {
		return nil, fault.New(fault.KindValidation, "AI output contained an empty plan list")
	}
	for i := range plans {
		if err := plans[i].validate(); err != nil {
			return nil, fault.Wrap(fault.KindValidation, "invalid reconciliation plan", err)
		}
		plans[i].DifficultyLevel = plans[i].Difficulty()
		plans[i].EstimatedDuration = plans[i].EstimatedDays()
	}
	return plans, nil
}

// extractArray returns the outermost bracketed substring of content.
func extractArray(content string) (string, bool) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

// truncateSummary falls back to a literal prefix of the judgment when the
// summary call fails.
func truncateSummary(content string) string {
	runes := []rune(content)
	if len(runes) <= 100 {
		return content
	}
	return string(runes[:100]) + "..."
}
