/*
 * @module service/engine/reasoning
 * @description 解释生成器,按固定优先级规则从特征与决策生成确定性解释文本
 * @architecture 分层架构 - 领域服务层,纯函数无副作用
 * @stateFlow 特征 -> 规则按序评估 -> 触发项拼接 -> 解释文本
 * @rules 规则顺序固定:有害意图 > 高置信求助意图 > 毒性超配置阈值(默认0.7) > 非工作时间 > 高风险;无触发项时输出通用无风险说明
 * @dependencies fmt, strings
 * @refs service/engine/feature_extractor.go, service/config/engine_config.go
 */

package engine

import (
	"fmt"
	"strings"
)

// defaultToxicityThreshold 未配置时解释规则使用的毒性阈值
const defaultToxicityThreshold = 0.7

// helpfulConfidenceThreshold 求助意图的高置信阈值
const helpfulConfidenceThreshold = 0.8

// Explain 生成决策解释,相同输入与阈值产生相同输出
// toxicityThreshold非正时采用默认阈值
func Explain(features FeatureVector, decision Decision, confidence float64, toxicityThreshold float64) string {
	if toxicityThreshold <= 0 {
		toxicityThreshold = defaultToxicityThreshold
	}

	var factors []string

	if features.IntentIsHarmful {
		factors = append(factors, "检测到潜在有害意图")
	}
	if features.IntentIsHelpful && features.IntentConfidence > helpfulConfidenceThreshold {
		factors = append(factors, fmt.Sprintf("高置信求助意图(%.2f)", features.IntentConfidence))
	}
	if features.ContentToxicityScore > toxicityThreshold {
		factors = append(factors, fmt.Sprintf("内容毒性评分过高(%.2f)", features.ContentToxicityScore))
	}
	if !features.IsBusinessHours {
		factors = append(factors, "请求发生于非工作时间")
	}
	if features.RiskLevel >= 1.0 {
		factors = append(factors, "上下文风险等级为高")
	}

	if len(factors) == 0 {
		factors = append(factors, "未发现显著风险因素")
	}

	return fmt.Sprintf("决策: %s (置信度 %.2f)。依据: %s。",
		strings.ToUpper(string(decision)), confidence, strings.Join(factors, "; "))
}
