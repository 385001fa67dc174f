/*
 * @module service/models/drift
 * @description 特征漂移检测结果模型定义
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/model.md
 * @stateFlow 漂移检测执行 -> 结果持久化 -> 历史查询
 * @rules "无数据"不产生记录,与 drift_detected=false 严格区分
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/engine/drift_monitor.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DriftCheckRecord 漂移检测记录模型
type DriftCheckRecord struct {
	ID               string           `gorm:"type:uuid;primary_key" json:"id"`
	ModelVersion     string           `gorm:"not null;index" json:"model_version"`
	DriftDetected    bool             `gorm:"not null" json:"drift_detected"`
	DriftScore       float64          `gorm:"not null" json:"drift_score"`
	Threshold        float64          `gorm:"not null" json:"threshold"`
	AffectedFeatures JSONBStringArray `gorm:"type:jsonb" json:"affected_features"`
	ReferenceSamples int64            `json:"reference_samples"`
	CurrentSamples   int64            `json:"current_samples"`
	Details          JSONB            `gorm:"type:jsonb" json:"details"`
	CheckedAt        time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"checked_at"`
}

// BeforeCreate 创建前钩子
func (d *DriftCheckRecord) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}
