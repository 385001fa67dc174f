/*
 * @module service/engine/reasoning_test
 * @description 解释生成器单元测试:确定性、规则优先级与无风险缺省文案
 * @architecture 测试层
 * @stateFlow 特征构造 -> 解释生成 -> 文本断言
 * @rules 相同输入产生相同解释;触发项按固定优先级排列
 * @dependencies testing, stretchr/testify
 */

package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExplainDeterministic 测试解释生成的确定性
func TestExplainDeterministic(t *testing.T) {
	features := FeatureVector{
		IntentIsHarmful:      true,
		ContentToxicityScore: 0.9,
		RiskLevel:            1.0,
	}

	first := Explain(features, DecisionDeny, 0.87, 0)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Explain(features, DecisionDeny, 0.87, 0))
	}
}

// TestExplainFormat 测试解释文本格式包含决策与置信度
func TestExplainFormat(t *testing.T) {
	text := Explain(FeatureVector{IsBusinessHours: true}, DecisionAllow, 0.92, 0)

	assert.True(t, strings.HasPrefix(text, "决策: ALLOW (置信度 0.92)。"), text)
	assert.Contains(t, text, "依据:")
}

// TestExplainFactorPriority 测试触发项按固定优先级排列
func TestExplainFactorPriority(t *testing.T) {
	features := FeatureVector{
		IntentIsHarmful:      true,
		ContentToxicityScore: 0.95,
		IsBusinessHours:      false,
		RiskLevel:            1.0,
	}

	text := Explain(features, DecisionDeny, 0.9, 0)

	harmfulIdx := strings.Index(text, "检测到潜在有害意图")
	toxicIdx := strings.Index(text, "内容毒性评分过高")
	hoursIdx := strings.Index(text, "请求发生于非工作时间")
	riskIdx := strings.Index(text, "上下文风险等级为高")

	require.GreaterOrEqual(t, harmfulIdx, 0)
	require.GreaterOrEqual(t, toxicIdx, 0)
	require.GreaterOrEqual(t, hoursIdx, 0)
	require.GreaterOrEqual(t, riskIdx, 0)

	assert.Less(t, harmfulIdx, toxicIdx)
	assert.Less(t, toxicIdx, hoursIdx)
	assert.Less(t, hoursIdx, riskIdx)
}

// TestExplainToxicityThreshold 测试毒性因素仅在超阈值时出现,非正阈值采用默认0.7
func TestExplainToxicityThreshold(t *testing.T) {
	below := Explain(FeatureVector{ContentToxicityScore: 0.7, IsBusinessHours: true}, DecisionMonitor, 0.6, 0)
	assert.NotContains(t, below, "内容毒性评分过高")

	above := Explain(FeatureVector{ContentToxicityScore: 0.71, IsBusinessHours: true}, DecisionMonitor, 0.6, 0)
	assert.Contains(t, above, "内容毒性评分过高")
}

// TestExplainConfiguredToxicityThreshold 测试配置阈值生效,同一评分随阈值改变触发结果
func TestExplainConfiguredToxicityThreshold(t *testing.T) {
	features := FeatureVector{ContentToxicityScore: 0.4, IsBusinessHours: true}

	strict := Explain(features, DecisionMonitor, 0.6, 0.3)
	assert.Contains(t, strict, "内容毒性评分过高")

	lenient := Explain(features, DecisionMonitor, 0.6, 0.5)
	assert.NotContains(t, lenient, "内容毒性评分过高")
}

// TestExplainHelpfulIntent 测试高置信求助意图因素
func TestExplainHelpfulIntent(t *testing.T) {
	features := FeatureVector{
		IntentIsHelpful:  true,
		IntentConfidence: 0.9,
		IsBusinessHours:  true,
	}
	assert.Contains(t, Explain(features, DecisionAllow, 0.8, 0), "高置信求助意图")

	features.IntentConfidence = 0.7
	assert.NotContains(t, Explain(features, DecisionAllow, 0.8, 0), "高置信求助意图")
}

// TestExplainNoRiskFactors 测试无触发项时的缺省文案
func TestExplainNoRiskFactors(t *testing.T) {
	features := FeatureVector{
		IntentIsHelpful:  true,
		IntentConfidence: 0.5,
		IsBusinessHours:  true,
	}

	text := Explain(features, DecisionAllow, 0.75, 0)
	assert.Contains(t, text, "未发现显著风险因素")
}
