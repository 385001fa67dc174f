/*
 * @module service/engine/types
 * @description 决策引擎核心类型定义:决策、模型类型、版本状态、反馈类型枚举及请求/响应结构
 * @architecture 分层架构 - 领域模型层
 * @stateFlow 请求 -> 特征提取 -> 路由 -> 预测 -> 响应/日志
 * @rules 枚举为封闭集合,消费点必须穷尽匹配;未知值通过IsValid在边界拒绝
 * @dependencies github.com/spf13/cast
 * @refs service/engine/engine.go, service/models
 */

package engine

import (
	"time"

	"github.com/spf13/cast"
)

// Decision 治理决策枚举
type Decision string

const (
	DecisionAllow    Decision = "allow"
	DecisionDeny     Decision = "deny"
	DecisionEscalate Decision = "escalate"
	DecisionMonitor  Decision = "monitor"
)

// DecisionClasses 决策类别的固定顺序,索引即模型输出类别下标
var DecisionClasses = []Decision{DecisionAllow, DecisionDeny, DecisionEscalate, DecisionMonitor}

// IsValid 校验决策值是否属于封闭集合
func (d Decision) IsValid() bool {
	switch d {
	case DecisionAllow, DecisionDeny, DecisionEscalate, DecisionMonitor:
		return true
	}
	return false
}

// Index 返回决策对应的类别下标,未知值返回-1
func (d Decision) Index() int {
	for i, c := range DecisionClasses {
		if c == d {
			return i
		}
	}
	return -1
}

// DecisionFromIndex 按类别下标还原决策,越界回退MONITOR
func DecisionFromIndex(i int) Decision {
	if i < 0 || i >= len(DecisionClasses) {
		return DecisionMonitor
	}
	return DecisionClasses[i]
}

// ModelType 模型类型枚举
type ModelType string

const (
	ModelTypeRandomForest  ModelType = "random_forest"  // 批量训练的基线模型
	ModelTypeOnlineLearner ModelType = "online_learner" // 增量更新的在线模型
	ModelTypeEnsemble      ModelType = "ensemble"       // 预留的组合器类型
)

// SupportedModelTypes 冷启动时必须就绪的模型类型
var SupportedModelTypes = []ModelType{ModelTypeRandomForest, ModelTypeOnlineLearner}

// IsValid 校验模型类型
func (t ModelType) IsValid() bool {
	switch t {
	case ModelTypeRandomForest, ModelTypeOnlineLearner, ModelTypeEnsemble:
		return true
	}
	return false
}

// VersionStatus 模型版本生命周期状态
type VersionStatus string

const (
	StatusTraining  VersionStatus = "training"
	StatusActive    VersionStatus = "active"
	StatusCandidate VersionStatus = "candidate"
	StatusFailed    VersionStatus = "failed"
	StatusRetired   VersionStatus = "retired"
)

// FeedbackType 反馈类型枚举
type FeedbackType string

const (
	FeedbackCorrect    FeedbackType = "correct"
	FeedbackIncorrect  FeedbackType = "incorrect"
	FeedbackEscalated  FeedbackType = "escalated"
	FeedbackOverridden FeedbackType = "overridden"
)

// IsValid 校验反馈类型
func (f FeedbackType) IsValid() bool {
	switch f {
	case FeedbackCorrect, FeedbackIncorrect, FeedbackEscalated, FeedbackOverridden:
		return true
	}
	return false
}

// RequestContext 请求上下文,枚举引擎识别的键及其默认值
type RequestContext struct {
	IntentClass      string  `json:"intent_class"`      // 上游意图分类,缺省unknown
	IntentConfidence float64 `json:"intent_confidence"` // 意图置信度,缺省0.5
	PolicyMatchCount int     `json:"policy_match_count"`
	PolicyDenyCount  int     `json:"policy_deny_count"`
	PolicyAllowCount int     `json:"policy_allow_count"`
	RiskLevel        string  `json:"risk_level"` // low/medium/high,缺省low
	ComplianceFlags  int     `json:"compliance_flags"`
	SensitivityScore float64 `json:"sensitivity_score"`
	UserHistoryScore float64 `json:"user_history_score"` // 缺省0.5(中性)
}

// ParseRequestContext 从自由格式上下文映射解析识别的键,缺失键落到中性默认值
func ParseRequestContext(raw map[string]interface{}) RequestContext {
	rc := RequestContext{
		IntentClass:      "unknown",
		IntentConfidence: 0.5,
		RiskLevel:        "low",
		UserHistoryScore: 0.5,
	}
	if raw == nil {
		return rc
	}

	if v, ok := raw["intent_class"]; ok {
		rc.IntentClass = cast.ToString(v)
	}
	if v, ok := raw["intent_confidence"]; ok {
		rc.IntentConfidence = clip(cast.ToFloat64(v), 0, 1)
	}
	if v, ok := raw["policy_match_count"]; ok {
		rc.PolicyMatchCount = cast.ToInt(v)
	}
	if v, ok := raw["policy_deny_count"]; ok {
		rc.PolicyDenyCount = cast.ToInt(v)
	}
	if v, ok := raw["policy_allow_count"]; ok {
		rc.PolicyAllowCount = cast.ToInt(v)
	}
	if v, ok := raw["risk_level"]; ok {
		rc.RiskLevel = cast.ToString(v)
	}
	if v, ok := raw["compliance_flags"]; ok {
		rc.ComplianceFlags = cast.ToInt(v)
	}
	if v, ok := raw["sensitivity_score"]; ok {
		rc.SensitivityScore = clip(cast.ToFloat64(v), 0, 1)
	}
	if v, ok := raw["user_history_score"]; ok {
		rc.UserHistoryScore = clip(cast.ToFloat64(v), 0, 1)
	}
	return rc
}

// GovernanceRequest 治理请求,引擎内只读
type GovernanceRequest struct {
	RequestID string         `json:"request_id"`
	Content   string         `json:"content"`
	Context   RequestContext `json:"context"`
	UserID    string         `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// GovernanceResponse 治理响应,一次请求产生一份,构造后不可变
type GovernanceResponse struct {
	RequestID    string        `json:"request_id"`
	Decision     Decision      `json:"decision"`
	Confidence   float64       `json:"confidence"`
	Reasoning    string        `json:"reasoning"`
	ModelVersion string        `json:"model_version"`
	ModelType    ModelType     `json:"model_type"`
	Features     FeatureVector `json:"features"`
	UsedABTest   bool          `json:"used_ab_test"`
	ABTestID     string        `json:"ab_test_id,omitempty"`
	LatencyMS    float64       `json:"latency_ms"`
	Timestamp    time.Time     `json:"timestamp"`
}

// FeedbackSubmission 反馈提交
type FeedbackSubmission struct {
	RequestID       string                 `json:"request_id"`
	UserID          string                 `json:"user_id"`
	FeedbackType    FeedbackType           `json:"feedback_type"`
	CorrectDecision *Decision              `json:"correct_decision,omitempty"`
	Rationale       string                 `json:"rationale"`
	Severity        string                 `json:"severity"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// DriftDetectionResult 漂移检测结果;"无数据"以结果缺失表示,不落入本类型
type DriftDetectionResult struct {
	CheckID          string             `json:"check_id"`
	ModelVersion     string             `json:"model_version"`
	DriftDetected    bool               `json:"drift_detected"`
	DriftScore       float64            `json:"drift_score"`
	Threshold        float64            `json:"threshold"`
	AffectedFeatures []string           `json:"affected_features"`
	ReferenceSamples int                `json:"reference_samples"`
	CurrentSamples   int                `json:"current_samples"`
	Details          map[string]float64 `json:"details,omitempty"`
	Timestamp        time.Time          `json:"timestamp"`
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
