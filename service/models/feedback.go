/*
 * @module service/models/feedback
 * @description 决策反馈相关模型定义,记录人工反馈及由此触发的在线学习纠正
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/model.md
 * @stateFlow 反馈提交 -> 持久化记录 -> 在线学习纠正(可选)
 * @rules 反馈必须引用已记录的预测请求,纠正标签与原决策不同时才触发学习
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/engine/feedback_loop.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FeedbackRecord 决策反馈记录模型
type FeedbackRecord struct {
	ID               string    `gorm:"type:uuid;primary_key" json:"id"`
	RequestID        string    `gorm:"not null;index" json:"request_id"`
	UserID           string    `json:"user_id"`
	FeedbackType     string    `gorm:"not null" json:"feedback_type"` // correct/incorrect/escalated/overridden
	OriginalDecision string    `gorm:"not null" json:"original_decision"`
	CorrectDecision  *string   `json:"correct_decision"`
	ModelVersion     string    `json:"model_version"`
	Rationale        string    `json:"rationale"`
	Severity         string    `gorm:"default:'low'" json:"severity"`
	LearnerUpdated   bool      `json:"learner_updated"` // 是否触发了在线学习更新
	Metadata         JSONB     `gorm:"type:jsonb" json:"metadata"`
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// BeforeCreate 创建前钩子
func (f *FeedbackRecord) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}
