/*
 * @module service/models/model_version
 * @description 模型版本与A/B测试相关模型定义,包括版本生命周期、评估指标、流量切分配置
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/model.md
 * @stateFlow 模型版本生命周期: training -> active/candidate/failed -> retired
 * @rules 每个模型类型在任一时刻至多存在一个 active 版本,traffic_split 创建后不可修改
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/engine/registry.go, service/engine/ab_router.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ModelVersion 模型版本模型
type ModelVersion struct {
	ID              string          `gorm:"type:uuid;primary_key" json:"id"`
	ModelType       string          `gorm:"not null;index" json:"model_type"` // random_forest/online_learner/ensemble
	Status          string          `gorm:"not null;index" json:"status"`     // training/active/candidate/failed/retired
	Accuracy        float64         `json:"accuracy"`
	Precision       float64         `json:"precision"`
	Recall          float64         `json:"recall"`
	F1Score         float64         `json:"f1_score"`
	TrainingSamples int64           `json:"training_samples"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	DeployedAt      *time.Time      `json:"deployed_at"`
	RetiredAt       *time.Time      `json:"retired_at"`
	Metadata        JSONB           `gorm:"type:jsonb" json:"metadata"`
	ArtifactWeights JSONB           `gorm:"type:jsonb" json:"artifact_weights"` // 序列化的模型参数快照
	ReferenceMeans  JSONBFloatArray `gorm:"type:jsonb" json:"reference_means"`  // 训练集特征均值,漂移检测基准分布
}

// BeforeCreate 创建前钩子
func (m *ModelVersion) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// ABTest A/B测试配置模型
type ABTest struct {
	ID                 string     `gorm:"type:uuid;primary_key" json:"id"`
	ModelType          string     `gorm:"not null;index" json:"model_type"`
	ChampionVersionID  string     `gorm:"type:uuid;not null" json:"champion_version_id"`
	CandidateVersionID string     `gorm:"type:uuid;not null" json:"candidate_version_id"`
	TrafficSplit       float64    `gorm:"not null" json:"traffic_split"`                 // 流向候选版本的概率,(0,1),创建后不可变
	Status             string     `gorm:"not null;index;default:'active'" json:"status"` // active/completed/cancelled
	StartedAt          time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"started_at"`
	EndedAt            *time.Time `json:"ended_at"`
	ChampionServed     int64      `json:"champion_served"`
	CandidateServed    int64      `json:"candidate_served"`
	Metrics            JSONB      `gorm:"type:jsonb" json:"metrics"`
}

// BeforeCreate 创建前钩子
func (t *ABTest) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}
