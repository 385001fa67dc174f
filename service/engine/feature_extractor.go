/*
 * @module service/engine/feature_extractor
 * @description 特征提取器,将治理请求确定性地映射为固定18维归一化特征向量
 * @architecture 分层架构 - 领域服务层,纯函数无I/O
 * @stateFlow 请求内容 -> 文本信号 -> 上下文信号 -> 时间信号 -> 归一化向量
 * @rules 相同输入必须产生相同输出;缺失上下文键落中性默认值而非报错;所有数值归一到文档范围
 * @dependencies github.com/spf13/cast(经types.go), regexp, strings
 * @refs service/engine/types.go, service/config/engine_config.go
 */

package engine

import (
	"regexp"
	"strings"

	"governance-engine-service/service/config"
)

// FeatureDimension 特征向量维度,模型输入恒为18维
const FeatureDimension = 18

// FeatureVector 特征向量记录,构造后不可变
// intent_class 作为类别来源保留在记录上,模型向量由其派生的两个意图标志承载
type FeatureVector struct {
	IntentConfidence     float64 `json:"intent_confidence"` // [0,1]
	IntentClass          string  `json:"intent_class"`      // helpful/harmful/neutral/unknown
	IntentIsHelpful      bool    `json:"intent_is_helpful"`
	IntentIsHarmful      bool    `json:"intent_is_harmful"`
	ContentLength        float64 `json:"content_length"` // len/10000截断到[0,1]
	ContentHasURLs       bool    `json:"content_has_urls"`
	ContentHasEmail      bool    `json:"content_has_email"`
	ContentHasCode       bool    `json:"content_has_code"`
	ContentToxicityScore float64 `json:"content_toxicity_score"` // [0,1]
	UserHistoryScore     float64 `json:"user_history_score"`     // [0,1],缺省0.5
	TimeOfDay            float64 `json:"time_of_day"`            // hour/23
	DayOfWeek            float64 `json:"day_of_week"`            // weekday/6,周日为0
	IsBusinessHours      bool    `json:"is_business_hours"`
	PolicyMatchCount     float64 `json:"policy_match_count"` // clip(n,0,20)/20
	PolicyDenyCount      float64 `json:"policy_deny_count"`  // clip(n,0,20)/20
	PolicyAllowCount     float64 `json:"policy_allow_count"` // clip(n,0,20)/20
	RiskLevel            float64 `json:"risk_level"`         // low=0 medium=0.5 high=1
	ComplianceFlags      float64 `json:"compliance_flags"`   // clip(n,0,10)/10
	SensitivityScore     float64 `json:"sensitivity_score"`  // [0,1]
}

// featureNames 向量槽位名称,顺序与Vector()严格一致
var featureNames = []string{
	"intent_confidence",
	"intent_is_helpful",
	"intent_is_harmful",
	"content_length",
	"content_has_urls",
	"content_has_email",
	"content_has_code",
	"content_toxicity_score",
	"user_history_score",
	"time_of_day",
	"day_of_week",
	"is_business_hours",
	"policy_match_count",
	"policy_deny_count",
	"policy_allow_count",
	"risk_level",
	"compliance_flags",
	"sensitivity_score",
}

// FeatureNames 返回18个向量槽位名称
func FeatureNames() []string {
	names := make([]string, len(featureNames))
	copy(names, featureNames)
	return names
}

// Vector 返回模型就绪的18维数值表示
func (f FeatureVector) Vector() []float64 {
	return []float64{
		f.IntentConfidence,
		boolToFloat(f.IntentIsHelpful),
		boolToFloat(f.IntentIsHarmful),
		f.ContentLength,
		boolToFloat(f.ContentHasURLs),
		boolToFloat(f.ContentHasEmail),
		boolToFloat(f.ContentHasCode),
		f.ContentToxicityScore,
		f.UserHistoryScore,
		f.TimeOfDay,
		f.DayOfWeek,
		boolToFloat(f.IsBusinessHours),
		f.PolicyMatchCount,
		f.PolicyDenyCount,
		f.PolicyAllowCount,
		f.RiskLevel,
		f.ComplianceFlags,
		f.SensitivityScore,
	}
}

var (
	urlPattern   = regexp.MustCompile(`(?i)https?://|www\.`)
	emailPattern = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.]+`)
	codePattern  = regexp.MustCompile("```|\\bfunc \\w+\\(|\\bdef \\w+\\(|#include\\s*<|<script|\\bSELECT\\b.+\\bFROM\\b")
)

// toxicLexicon 毒性词表,命中权重累加后截断到[0,1]
var toxicLexicon = map[string]float64{
	"hate":    0.4,
	"kill":    0.5,
	"attack":  0.4,
	"stupid":  0.3,
	"idiot":   0.4,
	"destroy": 0.4,
	"die":     0.4,
	"worst":   0.2,
	"garbage": 0.2,
	"trash":   0.2,
}

// harmfulKeywords 有害意图关键词
var harmfulKeywords = []string{
	"hack", "exploit", "attack", "steal", "weapon", "kill",
	"malware", "bypass security", "destroy", "ddos",
}

// helpfulKeywords 求助意图关键词
var helpfulKeywords = []string{
	"help", "please", "thank", "how do i", "how to", "assist",
	"explain", "what is",
}

// FeatureExtractor 特征提取器
type FeatureExtractor struct {
	cfg *config.Manager
}

// NewFeatureExtractor 创建特征提取器
func NewFeatureExtractor(cfg *config.Manager) *FeatureExtractor {
	return &FeatureExtractor{cfg: cfg}
}

// Extract 提取特征向量,纯函数:仅依赖请求内容、上下文与时间戳
func (fe *FeatureExtractor) Extract(req *GovernanceRequest) FeatureVector {
	cfg := fe.cfg.Current()
	content := req.Content
	lower := strings.ToLower(content)
	rc := req.Context

	class, confidence := inferIntent(lower, rc)

	localTime := req.Timestamp.In(cfg.Location())
	hour := localTime.Hour()
	weekday := int(localTime.Weekday())
	isBusiness := weekday >= 1 && weekday <= 5 &&
		hour >= cfg.BusinessHoursStart && hour < cfg.BusinessHoursEnd

	return FeatureVector{
		IntentConfidence:     clip(confidence, 0, 1),
		IntentClass:          class,
		IntentIsHelpful:      class == "helpful",
		IntentIsHarmful:      class == "harmful",
		ContentLength:        clip(float64(len(content))/10000.0, 0, 1),
		ContentHasURLs:       urlPattern.MatchString(content),
		ContentHasEmail:      emailPattern.MatchString(content),
		ContentHasCode:       codePattern.MatchString(content),
		ContentToxicityScore: toxicityScore(lower),
		UserHistoryScore:     clip(rc.UserHistoryScore, 0, 1),
		TimeOfDay:            float64(hour) / 23.0,
		DayOfWeek:            float64(weekday) / 6.0,
		IsBusinessHours:      isBusiness,
		PolicyMatchCount:     normalizeCount(rc.PolicyMatchCount, 20),
		PolicyDenyCount:      normalizeCount(rc.PolicyDenyCount, 20),
		PolicyAllowCount:     normalizeCount(rc.PolicyAllowCount, 20),
		RiskLevel:            riskLevelOrdinal(rc.RiskLevel),
		ComplianceFlags:      normalizeCount(rc.ComplianceFlags, 10),
		SensitivityScore:     clip(rc.SensitivityScore, 0, 1),
	}
}

// inferIntent 推断意图类别;上游上下文给出分类时优先采用,否则从内容关键词推断
func inferIntent(lower string, rc RequestContext) (string, float64) {
	switch rc.IntentClass {
	case "helpful", "harmful", "neutral":
		return rc.IntentClass, rc.IntentConfidence
	}

	for _, kw := range harmfulKeywords {
		if strings.Contains(lower, kw) {
			return "harmful", 0.9
		}
	}
	for _, kw := range helpfulKeywords {
		if strings.Contains(lower, kw) {
			return "helpful", 0.85
		}
	}
	return "neutral", 0.6
}

// toxicityScore 基于词表的毒性评分
func toxicityScore(lower string) float64 {
	score := 0.0
	for term, weight := range toxicLexicon {
		if strings.Contains(lower, term) {
			score += weight
		}
	}
	return clip(score, 0, 1)
}

// riskLevelOrdinal 风险等级序数编码
func riskLevelOrdinal(level string) float64 {
	switch strings.ToLower(level) {
	case "high":
		return 1.0
	case "medium":
		return 0.5
	default:
		return 0.0
	}
}

func normalizeCount(n, max int) float64 {
	if n < 0 {
		n = 0
	}
	if n > max {
		n = max
	}
	return float64(n) / float64(max)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
