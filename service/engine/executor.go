/*
 * @module service/engine/executor
 * @description 预测执行器,调用选中模型句柄并执行保守回退策略
 * @architecture 分层架构 - 领域服务层
 * @stateFlow 特征向量 -> 限时推理 -> argmax决策 / 回退(MONITOR,0.5)
 * @rules 句柄缺失、panic、输出畸形或超时一律回退(MONITOR,0.5,{}),绝不向调用方抛错;热路径无阻塞I/O
 * @dependencies math, time
 * @refs service/engine/registry.go, service/engine/learner.go
 */

package engine

import (
	"log/slog"
	"math"
	"time"
)

// 回退原因,用于指标分类
const (
	fallbackUnavailable = "unavailable"
	fallbackFault       = "fault"
	fallbackMalformed   = "malformed"
	fallbackTimeout     = "timeout"
)

// PredictionExecutor 预测执行器
type PredictionExecutor struct {
	registry *ModelRegistry
	timeout  time.Duration
	stats    *engineStats
}

// NewPredictionExecutor 创建预测执行器
func NewPredictionExecutor(registry *ModelRegistry, timeout time.Duration, stats *engineStats) *PredictionExecutor {
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	return &PredictionExecutor{registry: registry, timeout: timeout, stats: stats}
}

type inferenceResult struct {
	probs map[Decision]float64
	err   error
}

// Predict 执行预测
// 正常路径返回argmax决策及其概率;任何故障返回保守默认(MONITOR, 0.5, 空概率)
func (e *PredictionExecutor) Predict(features FeatureVector, versionID string) (Decision, float64, map[Decision]float64) {
	handle, ok := e.registry.GetHandle(versionID)
	if !ok {
		return e.fallback(versionID, fallbackUnavailable)
	}

	// 限时推理:句柄实现不可信,panic与超时都折算为回退
	resultCh := make(chan inferenceResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				resultCh <- inferenceResult{err: &inferencePanic{value: rec}}
			}
		}()
		probs, err := handle.PredictProba(features.Vector())
		resultCh <- inferenceResult{probs: probs, err: err}
	}()

	var result inferenceResult
	select {
	case result = <-resultCh:
	case <-time.After(e.timeout):
		return e.fallback(versionID, fallbackTimeout)
	}

	if result.err != nil {
		return e.fallback(versionID, fallbackFault)
	}
	if !validProbs(result.probs) {
		return e.fallback(versionID, fallbackMalformed)
	}

	decision := argmaxDecision(result.probs)
	return decision, result.probs[decision], result.probs
}

func (e *PredictionExecutor) fallback(versionID, reason string) (Decision, float64, map[Decision]float64) {
	fallbackTotal.WithLabelValues(reason).Inc()
	if e.stats != nil {
		e.stats.recordFallback()
	}
	slog.Warn("预测回退保守决策", "version", versionID, "reason", reason)
	return DecisionMonitor, 0.5, map[Decision]float64{}
}

// validProbs 校验模型输出:非空、无NaN/负值、概率质量近似归一
func validProbs(probs map[Decision]float64) bool {
	if len(probs) == 0 {
		return false
	}
	sum := 0.0
	for d, p := range probs {
		if !d.IsValid() || math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return false
		}
		sum += p
	}
	return sum > 0.5 && sum < 1.5
}

type inferencePanic struct {
	value interface{}
}

func (p *inferencePanic) Error() string {
	return "模型推理发生panic"
}
