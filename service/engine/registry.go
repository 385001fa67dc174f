/*
 * @module service/engine/registry
 * @description 模型注册表,管理模型版本生命周期、活动版本指针、持久化恢复与冷启动基线训练
 * @architecture 分层架构 - 领域服务层,活动版本唯一归属本模块
 * @stateFlow 注册(candidate) -> 晋升(active,旧版本原子退役) -> 退役(retired)
 * @rules 每类型任一时刻恰有一个active版本对读者可见;晋升在同一临界区内完成新旧交换
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/engine/learner.go, service/engine/ab_router.go, service/models/model_version.go
 */

package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"governance-engine-service/service/models"
)

// 冷启动合成训练数据的固定种子,保证基线可复现
const baselineSeed int64 = 20240601

type versionEntry struct {
	record         models.ModelVersion
	handle         ModelHandle
	referenceMeans []float64
}

// ModelRegistry 模型注册表
type ModelRegistry struct {
	db *gorm.DB

	mu       sync.RWMutex
	versions map[string]*versionEntry
	active   map[ModelType]string // 每类型唯一的活动版本指针
	disabled map[ModelType]string // 冷启动失败的类型及原因
}

// NewModelRegistry 创建模型注册表
func NewModelRegistry(db *gorm.DB) *ModelRegistry {
	return &ModelRegistry{
		db:       db,
		versions: make(map[string]*versionEntry),
		active:   make(map[ModelType]string),
		disabled: make(map[ModelType]string),
	}
}

// Bootstrap 冷启动:为每个支持的类型保证存在一个active版本
// 基线类型从合成数据训练,在线类型提供全新增量学习器
// 某一类型失败仅禁用该类型,不影响其他类型
func (r *ModelRegistry) Bootstrap(syntheticSamples int) {
	for _, mt := range SupportedModelTypes {
		if err := r.bootstrapType(mt, syntheticSamples); err != nil {
			slog.Error("模型类型冷启动失败,该类型已禁用",
				"model_type", mt, "error", err)
			r.mu.Lock()
			r.disabled[mt] = err.Error()
			r.mu.Unlock()
		}
	}
}

func (r *ModelRegistry) bootstrapType(mt ModelType, syntheticSamples int) error {
	switch mt {
	case ModelTypeRandomForest:
		if r.restorePersisted(mt, 0.1) {
			return nil
		}
		clf, metrics, refMeans, err := trainBaseline(syntheticSamples, baselineSeed)
		if err != nil {
			return fmt.Errorf("训练基线模型失败: %w", err)
		}
		versionID, err := r.Register(mt, clf, metrics, int64(syntheticSamples), refMeans,
			models.JSONB{"source": "synthetic_bootstrap"})
		if err != nil {
			return err
		}
		if err := r.Promote(versionID); err != nil {
			return err
		}
		slog.Info("基线模型冷启动完成",
			"model_type", mt, "version", versionID, "accuracy", metrics.Accuracy)
		return nil

	case ModelTypeOnlineLearner:
		if r.restorePersisted(mt, 0.05) {
			return nil
		}
		learner := newSoftmaxClassifier(0.05)
		versionID, err := r.Register(mt, learner, EvalMetrics{}, 0, nil,
			models.JSONB{"source": "fresh_online_learner"})
		if err != nil {
			return err
		}
		if err := r.Promote(versionID); err != nil {
			return err
		}
		slog.Info("在线学习器冷启动完成", "model_type", mt, "version", versionID)
		return nil

	default:
		return fmt.Errorf("不支持冷启动的模型类型: %s", mt)
	}
}

// restorePersisted 从数据库恢复该类型的active版本,成功时跳过冷启动训练
// 制品缺失或权重不可解时返回false,回退为重新训练
func (r *ModelRegistry) restorePersisted(mt ModelType, learningRate float64) bool {
	if r.db == nil {
		return false
	}

	var record models.ModelVersion
	err := r.db.Where("model_type = ? AND status = ?", string(mt), string(StatusActive)).
		Order("created_at DESC").First(&record).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			slog.Error("查询持久化模型版本失败", "model_type", mt, "error", err)
		}
		return false
	}

	weights, ok := artifactWeights(record.ArtifactWeights)
	if !ok {
		slog.Warn("持久化版本缺少制品权重,回退重新训练",
			"model_type", mt, "version", record.ID)
		return false
	}
	clf, err := newSoftmaxClassifierFromWeights(learningRate, weights)
	if err != nil {
		slog.Warn("持久化制品权重不可用,回退重新训练",
			"model_type", mt, "version", record.ID, "error", err)
		return false
	}
	clf.samplesSeen = record.TrainingSamples

	r.mu.Lock()
	r.versions[record.ID] = &versionEntry{
		record:         record,
		handle:         clf,
		referenceMeans: []float64(record.ReferenceMeans),
	}
	r.active[mt] = record.ID
	delete(r.disabled, mt)
	r.mu.Unlock()

	slog.Info("从持久化制品恢复活动模型版本", "model_type", mt, "version", record.ID)
	return true
}

// artifactWeights 从制品快照解出权重矩阵,JSONB往返后数值类型不定,经JSON再编解码归一
func artifactWeights(artifact models.JSONB) ([][]float64, bool) {
	raw, ok := artifact["weights"]
	if !ok {
		return nil, false
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	var weights [][]float64
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, false
	}
	return weights, true
}

// Register 注册新模型版本,初始状态candidate
func (r *ModelRegistry) Register(mt ModelType, handle ModelHandle, metrics EvalMetrics,
	trainingSamples int64, referenceMeans []float64, metadata models.JSONB) (string, error) {

	if !mt.IsValid() {
		return "", fmt.Errorf("无效的模型类型: %s", mt)
	}
	if handle == nil {
		return "", fmt.Errorf("模型句柄不能为空")
	}

	record := models.ModelVersion{
		ID:              uuid.New().String(),
		ModelType:       string(mt),
		Status:          string(StatusCandidate),
		Accuracy:        metrics.Accuracy,
		Precision:       metrics.Precision,
		Recall:          metrics.Recall,
		F1Score:         metrics.F1,
		TrainingSamples: trainingSamples,
		CreatedAt:       time.Now(),
		Metadata:        metadata,
		ReferenceMeans:  models.JSONBFloatArray(referenceMeans),
	}
	if clf, ok := handle.(*softmaxClassifier); ok {
		record.ArtifactWeights = models.JSONB{"weights": clf.snapshotWeights()}
	}

	if err := r.persistCreate(&record); err != nil {
		// 注册表为权威状态,持久化失败降级为软失败
		slog.Error("模型版本持久化失败", "model_type", mt, "error", err)
	}

	r.mu.Lock()
	r.versions[record.ID] = &versionEntry{
		record:         record,
		handle:         handle,
		referenceMeans: referenceMeans,
	}
	r.mu.Unlock()

	return record.ID, nil
}

// Promote 将版本晋升为active,并在同一临界区内退役同类型的旧active版本
// 并发读者观察到的始终是完整交换:不存在零个或两个active版本的窗口
func (r *ModelRegistry) Promote(versionID string) error {
	now := time.Now()

	r.mu.Lock()
	entry, ok := r.versions[versionID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("模型版本不存在: %s", versionID)
	}
	mt := ModelType(entry.record.ModelType)

	if prevID, exists := r.active[mt]; exists && prevID != versionID {
		if prev, ok := r.versions[prevID]; ok {
			prev.record.Status = string(StatusRetired)
			prev.record.RetiredAt = &now
		}
	}

	entry.record.Status = string(StatusActive)
	entry.record.DeployedAt = &now
	r.active[mt] = versionID
	delete(r.disabled, mt)
	// 临界区内取值拷贝,持久化在锁外进行,不得再读entry指针
	promoted := entry.record
	r.mu.Unlock()

	r.persistPromotion(promoted)
	slog.Info("模型版本已晋升", "model_type", mt, "version", versionID)
	return nil
}

// GetActive 获取指定类型的活动版本ID
func (r *ModelRegistry) GetActive(mt ModelType) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.active[mt]
	return id, ok
}

// GetHandle 获取版本对应的模型句柄
func (r *ModelRegistry) GetHandle(versionID string) (ModelHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.versions[versionID]
	if !ok || entry.handle == nil {
		return nil, false
	}
	return entry.handle, true
}

// Version 获取版本元数据副本
func (r *ModelRegistry) Version(versionID string) (models.ModelVersion, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.versions[versionID]
	if !ok {
		return models.ModelVersion{}, false
	}
	return entry.record, true
}

// ReferenceMeans 获取版本的基准特征均值,漂移检测参考分布
func (r *ModelRegistry) ReferenceMeans(versionID string) ([]float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.versions[versionID]
	if !ok || len(entry.referenceMeans) == 0 {
		return nil, false
	}
	out := make([]float64, len(entry.referenceMeans))
	copy(out, entry.referenceMeans)
	return out, true
}

// ActiveVersions 获取各类型的活动版本映射
func (r *ModelRegistry) ActiveVersions() map[ModelType]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[ModelType]string, len(r.active))
	for mt, id := range r.active {
		out[mt] = id
	}
	return out
}

// ListVersions 列出全部版本元数据
func (r *ModelRegistry) ListVersions() []models.ModelVersion {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ModelVersion, 0, len(r.versions))
	for _, entry := range r.versions {
		out = append(out, entry.record)
	}
	return out
}

// DisabledTypes 获取冷启动失败被禁用的类型
func (r *ModelRegistry) DisabledTypes() map[ModelType]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[ModelType]string, len(r.disabled))
	for mt, reason := range r.disabled {
		out[mt] = reason
	}
	return out
}

func (r *ModelRegistry) persistCreate(record *models.ModelVersion) error {
	if r.db == nil {
		return nil
	}
	return r.db.Create(record).Error
}

// persistPromotion 将晋升结果镜像到数据库
// 事务内退役同类型的全部旧active行,数据库与注册表一样保持每类型单active
func (r *ModelRegistry) persistPromotion(promoted models.ModelVersion) {
	if r.db == nil {
		return
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ModelVersion{}).
			Where("model_type = ? AND status = ? AND id <> ?",
				promoted.ModelType, string(StatusActive), promoted.ID).
			Updates(map[string]interface{}{
				"status":     string(StatusRetired),
				"retired_at": promoted.DeployedAt,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.ModelVersion{}).Where("id = ?", promoted.ID).
			Updates(map[string]interface{}{
				"status":      string(StatusActive),
				"deployed_at": promoted.DeployedAt,
			}).Error
	})
	if err != nil {
		slog.Error("模型晋升持久化失败", "version", promoted.ID, "error", err)
	}
}
