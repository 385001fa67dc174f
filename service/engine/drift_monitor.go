/*
 * @module service/engine/drift_monitor
 * @description 漂移监控器,对比基准特征分布与近期预测窗口分布并按阈值判定漂移
 * @architecture 分层架构 - 领域服务层,统计距离为可注入协作者
 * @stateFlow 取基准分布 -> 取近期窗口 -> 距离计算 -> 阈值判定 -> 结果持久化
 * @rules 任一窗口数据不足返回显式"无数据"(nil结果),与drift_detected=false严格区分;计算错误降级为无数据;检出漂移记warning日志
 * @dependencies gorm.io/gorm, governance-engine-service/service/predlog
 * @refs service/engine/registry.go, service/models/drift.go, service/config/engine_config.go
 */

package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"governance-engine-service/service/config"
	"governance-engine-service/service/models"
	"governance-engine-service/service/predlog"
)

// DistanceFunc 统计距离协作者,比较两个特征均值分布
// 统计量的数值内部实现不属于引擎职责,默认实现为逐特征均值绝对差的平均
type DistanceFunc func(reference, current []float64) float64

// MeanAbsoluteDistance 默认距离实现
func MeanAbsoluteDistance(reference, current []float64) float64 {
	n := len(reference)
	if len(current) < n {
		n = len(current)
	}
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += math.Abs(reference[i] - current[i])
	}
	return sum / float64(n)
}

// DriftMonitor 漂移监控器
type DriftMonitor struct {
	registry *ModelRegistry
	store    predlog.Store
	db       *gorm.DB
	cfg      *config.Manager
	distance DistanceFunc
}

// NewDriftMonitor 创建漂移监控器,distance为nil时使用默认距离
func NewDriftMonitor(registry *ModelRegistry, store predlog.Store, db *gorm.DB,
	cfg *config.Manager, distance DistanceFunc) *DriftMonitor {

	if distance == nil {
		distance = MeanAbsoluteDistance
	}
	return &DriftMonitor{
		registry: registry,
		store:    store,
		db:       db,
		cfg:      cfg,
		distance: distance,
	}
}

// Check 执行漂移检测
// versionID为空时检测活动基线版本;返回(nil, nil)表示显式"无数据"
func (m *DriftMonitor) Check(ctx context.Context, versionID string) (*DriftDetectionResult, error) {
	cfg := m.cfg.Current()

	if versionID == "" {
		active, ok := m.registry.GetActive(ModelTypeRandomForest)
		if !ok {
			driftChecksTotal.WithLabelValues("no_data").Inc()
			return nil, nil
		}
		versionID = active
	}

	reference, ok := m.registry.ReferenceMeans(versionID)
	if !ok {
		driftChecksTotal.WithLabelValues("no_data").Inc()
		return nil, nil
	}

	currentMeans, currentCount := m.currentWindowMeans(ctx, cfg)
	if currentCount < cfg.DriftMinSamples {
		driftChecksTotal.WithLabelValues("no_data").Inc()
		return nil, nil
	}

	score, err := m.safeDistance(reference, currentMeans)
	if err != nil {
		// 不可恢复的计算错误按无数据处理,不向调用方抛错
		slog.Error("漂移距离计算失败", "version", versionID, "error", err)
		driftChecksTotal.WithLabelValues("no_data").Inc()
		return nil, nil
	}

	threshold := cfg.DriftThreshold
	detected := score > threshold

	names := FeatureNames()
	var affected []string
	details := make(map[string]float64, len(names))
	for i, name := range names {
		// 基准与当前均值都可能短于特征全维,逐特征比较以两者较短为界
		if i >= len(currentMeans) || i >= len(reference) {
			break
		}
		diff := math.Abs(reference[i] - currentMeans[i])
		details[name] = diff
		if diff > threshold {
			affected = append(affected, name)
		}
	}

	result := &DriftDetectionResult{
		CheckID:          uuid.New().String(),
		ModelVersion:     versionID,
		DriftDetected:    detected,
		DriftScore:       score,
		Threshold:        threshold,
		AffectedFeatures: affected,
		ReferenceSamples: len(reference),
		CurrentSamples:   currentCount,
		Details:          details,
		Timestamp:        time.Now(),
	}

	if detected {
		slog.Warn("检测到特征分布漂移",
			"version", versionID,
			"drift_score", score,
			"threshold", threshold,
			"affected_features", affected)
		driftChecksTotal.WithLabelValues("detected").Inc()
	} else {
		driftChecksTotal.WithLabelValues("none").Inc()
	}

	m.persist(result)
	return result, nil
}

// currentWindowMeans 从预测日志近期窗口计算当前特征均值
func (m *DriftMonitor) currentWindowMeans(ctx context.Context, cfg *config.EngineConfig) ([]float64, int) {
	entries, err := m.store.Recent(ctx, cfg.RecentWindowSize)
	if err != nil {
		slog.Error("读取近期预测窗口失败", "error", err)
		return nil, 0
	}

	cutoff := time.Now().Add(-cfg.DriftWindow())
	means := make([]float64, FeatureDimension)
	count := 0

	for _, raw := range entries {
		var resp GovernanceResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			continue
		}
		if resp.Timestamp.Before(cutoff) {
			continue
		}
		vec := resp.Features.Vector()
		for i, x := range vec {
			means[i] += x
		}
		count++
	}

	if count == 0 {
		return nil, 0
	}
	for i := range means {
		means[i] /= float64(count)
	}
	return means, count
}

// safeDistance 距离协作者调用的panic防护
func (m *DriftMonitor) safeDistance(reference, current []float64) (score float64, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &inferencePanic{value: rec}
		}
	}()
	score = m.distance(reference, current)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, &inferencePanic{value: "距离计算产生非法数值"}
	}
	return score, nil
}

// persist 漂移结果持久化,尽力而为
func (m *DriftMonitor) persist(result *DriftDetectionResult) {
	if m.db == nil {
		return
	}

	details := make(models.JSONB, len(result.Details))
	for k, v := range result.Details {
		details[k] = v
	}
	record := models.DriftCheckRecord{
		ID:               result.CheckID,
		ModelVersion:     result.ModelVersion,
		DriftDetected:    result.DriftDetected,
		DriftScore:       result.DriftScore,
		Threshold:        result.Threshold,
		AffectedFeatures: models.JSONBStringArray(result.AffectedFeatures),
		ReferenceSamples: int64(result.ReferenceSamples),
		CurrentSamples:   int64(result.CurrentSamples),
		Details:          details,
		CheckedAt:        result.Timestamp,
	}
	if err := m.db.Create(&record).Error; err != nil {
		slog.Error("漂移检测结果持久化失败", "check_id", result.CheckID, "error", err)
		logFailureTotal.WithLabelValues("drift_store").Inc()
	}
}

// History 查询历史漂移检测记录
func (m *DriftMonitor) History(versionID string, limit int) ([]models.DriftCheckRecord, error) {
	if m.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := m.db.Model(&models.DriftCheckRecord{}).Order("checked_at DESC").Limit(limit)
	if versionID != "" {
		query = query.Where("model_version = ?", versionID)
	}

	var records []models.DriftCheckRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
