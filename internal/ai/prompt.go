package ai

import (
	"fmt"
	"strings"

	"github.com/koguma/bearcourt/internal/models"
)

// PromptVersion is persisted with each judgment so regenerated content can
// be traced to the prompt that produced it.
const PromptVersion = "v1.0"

const (
	judgeSystemPrompt    = "你是一位溫暖、公正的母熊法官。"
	classifySystemPrompt = "你是一個專業的衝突分析師。"
	planSystemPrompt     = "你是一位溫暖的母熊法官，專門設計和好方案。"
	defaultSystemPrompt  = "你是一個有用的助手。"
)

// classifyPrompt asks the model to pick one label from the closed taxonomy.
func classifyPrompt(plaintiffStatement, defendantStatement string) string {
	var b strings.Builder
	b.WriteString("請分析以下兩個陳述，判斷案件類型。\n\n案件類型包括：\n")
	for i, ct := range models.CaseTypes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, ct)
	}
	fmt.Fprintf(&b, "\n原告陳述：%s\n被告陳述：%s\n\n", plaintiffStatement, defendantStatement)
	b.WriteString("請只返回案件類型名稱（如：生活習慣衝突），不要返回其他內容。")
	return b.String()
}

// judgmentPrompt asks for a full judgment in a fixed Markdown shape whose
// responsibility-split section the parser extracts.
func judgmentPrompt(caseType, plaintiffStatement, defendantStatement string) string {
	if defendantStatement == "" {
		defendantStatement = "暫無"
	}
	return fmt.Sprintf(`角色設定：
你是一位溫暖、公正的母熊法官，你的使命是保護和呵護每一對情侶。
即使是在法庭，你也會用大愛、包容、保護的方式幫助他們解決衝突。

任務：
基於以下案件信息，生成一份溫暖、公正、實用的判決書。

案件信息：
- 案件類型：%s
- 原告陳述：%s
- 被告陳述：%s

判決書要求：
1. 問題分析（200-300字）：識別核心問題，分析雙方立場，理解雙方需求。
2. 判決結果（100-200字）：明確判決，說明理由，強調理解和包容。
3. 具體建議（300-500字）：提供3-5條可執行的行動建議。
4. 關係修復建議（200-300字）：如何修復關係、重建信任、預防類似衝突。

語言風格：溫暖親和、專業但不冷漠、鼓勵而非指責。

輸出格式：Markdown格式，必須包含責任分比例，格式如下：
## ⚖️ 判決結果
**責任分比例**：
- 原告：[X]%% 責任
- 被告：[Y]%% 責任`, caseType, plaintiffStatement, defendantStatement)
}

// summaryPrompt condenses a judgment into 50-100 characters.
func summaryPrompt(content string) string {
	return fmt.Sprintf("請為以下判決書生成一個簡短的摘要（50-100字）：\n\n%s\n\n請只返回摘要內容，不要返回其他內容。", content)
}

// planPrompt asks for 3-5 reconciliation plans as a JSON array.
func planPrompt(caseType string, ratio models.ResponsibilityRatio, judgmentSummary string) string {
	return fmt.Sprintf(`角色設定：
你是一位溫暖的母熊法官，專門為情侶設計和好方案。

任務：
基於以下判決信息，生成3-5個和好方案，幫助雙方修復關係。

判決信息：
- 案件類型：%s
- 責任分比例：原告%d%%，被告%d%%
- 判決摘要：%s

方案要求：
1. 每個方案包含：方案標題、方案描述（100-200字）、執行步驟（3-5步）、預期效果、
   難度評估（時間成本1-5、金錢成本1-5、情感成本1-5、技能要求1-5）。
2. 方案類型多樣化：日常活動、溝通練習、親密互動。
3. 根據案件類型推薦合適的活動。

輸出格式：JSON數組，每個方案包含：
{
  "title": "方案標題",
  "description": "方案描述",
  "steps": ["步驟1", "步驟2"],
  "expected_effect": "預期效果",
  "time_cost": 1,
  "money_cost": 1,
  "emotion_cost": 1,
  "skill_requirement": 1,
  "plan_type": "activity|communication|intimacy",
  "estimated_duration": 1
}`, caseType, ratio.Plaintiff, ratio.Defendant, judgmentSummary)
}
