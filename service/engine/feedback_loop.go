/*
 * @module service/engine/feedback_loop
 * @description 反馈闭环,消费人工反馈、持久化纠正记录并驱动在线学习器单样本更新
 * @architecture 分层架构 - 领域服务层
 * @stateFlow 反馈提交 -> 查找已记录预测 -> 持久化反馈 -> 在线学习更新 -> 指标计数
 * @rules 未知request_id返回false不报错;存储失败与学习失败互不阻塞;每学习器单写者,学习写不阻塞并发预测读
 * @dependencies gorm.io/gorm, governance-engine-service/service/predlog
 * @refs service/engine/registry.go, service/engine/learner.go, service/models/feedback.go
 */

package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"governance-engine-service/service/config"
	"governance-engine-service/service/models"
	"governance-engine-service/service/predlog"
)

func predictionKey(requestID string) string {
	return "prediction:" + requestID
}

func feedbackKey(requestID string) string {
	return "feedback:" + requestID
}

// learnerActivity 单个在线学习器的活动状态
type learnerActivity struct {
	VersionID   string     `json:"version_id"`
	SamplesSeen int64      `json:"samples_seen"`
	LastUpdate  *time.Time `json:"last_update,omitempty"`
}

// FeedbackLoop 反馈/在线学习闭环
type FeedbackLoop struct {
	registry *ModelRegistry
	store    predlog.Store
	db       *gorm.DB
	cfg      *config.Manager
	stats    *engineStats

	// 每模型类型单写者纪律:同一学习器的增量更新串行化
	learnMu map[ModelType]*sync.Mutex

	updateMu    sync.RWMutex
	lastUpdates map[ModelType]time.Time
}

// NewFeedbackLoop 创建反馈闭环
func NewFeedbackLoop(registry *ModelRegistry, store predlog.Store, db *gorm.DB,
	cfg *config.Manager, stats *engineStats) *FeedbackLoop {

	learnMu := make(map[ModelType]*sync.Mutex, len(SupportedModelTypes))
	for _, mt := range SupportedModelTypes {
		learnMu[mt] = &sync.Mutex{}
	}
	return &FeedbackLoop{
		registry:    registry,
		store:       store,
		db:          db,
		cfg:         cfg,
		stats:       stats,
		learnMu:     learnMu,
		lastUpdates: make(map[ModelType]time.Time),
	}
}

// Submit 提交反馈
// 返回false仅当:引用的预测未被记录,或两个存储目标均写入失败;部分成功视为成功
func (l *FeedbackLoop) Submit(ctx context.Context, fb FeedbackSubmission) bool {
	data, found, err := l.store.Get(ctx, predictionKey(fb.RequestID))
	if err != nil {
		slog.Error("反馈目标查找失败", "request_id", fb.RequestID, "error", err)
		return false
	}
	if !found {
		slog.Debug("反馈引用的预测不存在或已过期", "request_id", fb.RequestID)
		return false
	}

	var resp GovernanceResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		slog.Error("已记录预测反序列化失败", "request_id", fb.RequestID, "error", err)
		return false
	}

	// 在线学习更新:纠正标签与原决策不同时,对在线学习器做一次单样本更新
	learned := false
	if fb.CorrectDecision != nil && fb.CorrectDecision.IsValid() &&
		*fb.CorrectDecision != resp.Decision {
		learned = l.learnOne(resp.Features, *fb.CorrectDecision)
	}

	// 持久化反馈:缓存与长期库互相独立,任一成功即视为已存储
	storedCache := l.persistCache(ctx, fb, resp)
	storedDB := l.persistRecord(fb, resp, learned)
	if !storedCache && !storedDB {
		slog.Error("反馈持久化完全失败", "request_id", fb.RequestID)
		return false
	}

	feedbackTotal.WithLabelValues(string(fb.FeedbackType)).Inc()
	l.stats.recordFeedback(fb.FeedbackType, resp.ModelVersion)
	return true
}

// learnOne 对在线学习器做单样本纠正更新,单写者串行,不阻塞并发预测读
func (l *FeedbackLoop) learnOne(features FeatureVector, label Decision) bool {
	versionID, ok := l.registry.GetActive(ModelTypeOnlineLearner)
	if !ok {
		slog.Warn("在线学习器不可用,跳过纠正更新")
		return false
	}
	handle, ok := l.registry.GetHandle(versionID)
	if !ok {
		slog.Warn("在线学习器制品缺失,跳过纠正更新", "version", versionID)
		return false
	}

	mu := l.learnMu[ModelTypeOnlineLearner]
	mu.Lock()
	err := handle.LearnOne(features.Vector(), label)
	mu.Unlock()

	if err != nil {
		slog.Error("在线学习更新失败", "version", versionID, "error", err)
		return false
	}

	onlineUpdatesTotal.WithLabelValues(string(ModelTypeOnlineLearner)).Inc()
	l.stats.recordOnlineUpdate()

	l.updateMu.Lock()
	l.lastUpdates[ModelTypeOnlineLearner] = time.Now()
	l.updateMu.Unlock()
	return true
}

// persistCache 反馈写入TTL缓存(30天保留)
func (l *FeedbackLoop) persistCache(ctx context.Context, fb FeedbackSubmission, resp GovernanceResponse) bool {
	payload := map[string]interface{}{
		"feedback":          fb,
		"original_decision": resp.Decision,
		"model_version":     resp.ModelVersion,
		"recorded_at":       time.Now(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	if err := l.store.Put(ctx, feedbackKey(fb.RequestID), data, l.cfg.Current().FeedbackTTL()); err != nil {
		slog.Error("反馈缓存写入失败", "request_id", fb.RequestID, "error", err)
		logFailureTotal.WithLabelValues("feedback_cache").Inc()
		l.stats.recordLogFailure()
		return false
	}
	return true
}

// persistRecord 反馈写入长期记录库
func (l *FeedbackLoop) persistRecord(fb FeedbackSubmission, resp GovernanceResponse, learned bool) bool {
	if l.db == nil {
		return false
	}

	record := models.FeedbackRecord{
		RequestID:        fb.RequestID,
		UserID:           fb.UserID,
		FeedbackType:     string(fb.FeedbackType),
		OriginalDecision: string(resp.Decision),
		ModelVersion:     resp.ModelVersion,
		Rationale:        fb.Rationale,
		Severity:         fb.Severity,
		LearnerUpdated:   learned,
		Metadata:         models.JSONB(fb.Metadata),
	}
	if fb.CorrectDecision != nil {
		cd := string(*fb.CorrectDecision)
		record.CorrectDecision = &cd
	}

	if err := l.db.Create(&record).Error; err != nil {
		slog.Error("反馈记录持久化失败", "request_id", fb.RequestID, "error", err)
		logFailureTotal.WithLabelValues("feedback_store").Inc()
		l.stats.recordLogFailure()
		return false
	}
	return true
}

// LearnerStatus 各在线学习器的活动状态
func (l *FeedbackLoop) LearnerStatus() map[ModelType]learnerActivity {
	out := make(map[ModelType]learnerActivity)

	versionID, ok := l.registry.GetActive(ModelTypeOnlineLearner)
	if !ok {
		return out
	}

	activity := learnerActivity{VersionID: versionID}
	if handle, ok := l.registry.GetHandle(versionID); ok {
		activity.SamplesSeen = handle.SamplesSeen()
	}

	l.updateMu.RLock()
	if t, ok := l.lastUpdates[ModelTypeOnlineLearner]; ok {
		cp := t
		activity.LastUpdate = &cp
	}
	l.updateMu.RUnlock()

	out[ModelTypeOnlineLearner] = activity
	return out
}
