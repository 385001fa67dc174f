/*
 * @module service/engine/metrics
 * @description 决策引擎Prometheus指标与进程内聚合计数器
 * @architecture 分层架构 - 可观测性层
 * @stateFlow 请求处理 -> 原子递增 -> /metrics 暴露
 * @rules 计数器原子递增即可,不要求跨指标事务一致;日志软失败必须可经指标观察
 * @dependencies github.com/prometheus/client_golang
 * @refs main.go, service/engine/engine.go
 */

package engine

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govengine_predictions_total",
		Help: "治理决策总数,按模型类型与决策分类",
	}, []string{"model_type", "decision"})

	predictionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "govengine_prediction_latency_seconds",
		Help:    "预测处理延迟",
		Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	fallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govengine_prediction_fallback_total",
		Help: "预测回退MONITOR的次数,按原因分类",
	}, []string{"reason"})

	logFailureTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govengine_log_write_failures_total",
		Help: "尽力而为日志写入失败次数,按存储目标分类",
	}, []string{"target"})

	feedbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govengine_feedback_total",
		Help: "反馈提交总数,按反馈类型分类",
	}, []string{"feedback_type"})

	onlineUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govengine_online_updates_total",
		Help: "在线学习器增量更新次数,按模型类型分类",
	}, []string{"model_type"})

	abRoutedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govengine_ab_routed_total",
		Help: "A/B路由次数,按测试与分组分类",
	}, []string{"test_id", "arm"})

	driftChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govengine_drift_checks_total",
		Help: "漂移检测执行次数,按结果分类",
	}, []string{"outcome"})
)

// engineStats 进程内聚合计数,供status/model_metrics接口直接读取
type engineStats struct {
	predictions   int64
	fallbacks     int64
	feedback      int64
	logFailures   int64
	onlineUpdates int64

	mu                sync.RWMutex
	byVersion         map[string]int64 // 版本 -> 预测次数
	feedbackByVersion map[string]int64 // 版本 -> 反馈次数
	byFeedback        map[FeedbackType]int64
}

func newEngineStats() *engineStats {
	return &engineStats{
		byVersion:         make(map[string]int64),
		feedbackByVersion: make(map[string]int64),
		byFeedback:        make(map[FeedbackType]int64),
	}
}

func (s *engineStats) recordPrediction(versionID string) {
	atomic.AddInt64(&s.predictions, 1)
	s.mu.Lock()
	s.byVersion[versionID]++
	s.mu.Unlock()
}

func (s *engineStats) recordFallback() {
	atomic.AddInt64(&s.fallbacks, 1)
}

func (s *engineStats) recordFeedback(ft FeedbackType, versionID string) {
	atomic.AddInt64(&s.feedback, 1)
	s.mu.Lock()
	s.byFeedback[ft]++
	if versionID != "" {
		s.feedbackByVersion[versionID]++
	}
	s.mu.Unlock()
}

func (s *engineStats) recordLogFailure() {
	atomic.AddInt64(&s.logFailures, 1)
}

func (s *engineStats) recordOnlineUpdate() {
	atomic.AddInt64(&s.onlineUpdates, 1)
}

func (s *engineStats) versionPredictions(versionID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byVersion[versionID]
}

func (s *engineStats) versionFeedback(versionID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feedbackByVersion[versionID]
}

func (s *engineStats) snapshot() map[string]interface{} {
	s.mu.RLock()
	feedbackByType := make(map[FeedbackType]int64, len(s.byFeedback))
	for k, v := range s.byFeedback {
		feedbackByType[k] = v
	}
	s.mu.RUnlock()

	return map[string]interface{}{
		"predictions_total":    atomic.LoadInt64(&s.predictions),
		"fallbacks_total":      atomic.LoadInt64(&s.fallbacks),
		"feedback_total":       atomic.LoadInt64(&s.feedback),
		"log_failures_total":   atomic.LoadInt64(&s.logFailures),
		"online_updates_total": atomic.LoadInt64(&s.onlineUpdates),
		"feedback_by_type":     feedbackByType,
	}
}
