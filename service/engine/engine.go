/*
 * @module service/engine/engine
 * @description 决策引擎门面,编排特征提取、A/B路由、预测执行、解释生成与日志写入
 * @architecture 分层架构 - 领域服务层,显式上下文对象替代进程级单例
 * @stateFlow 请求 -> 特征提取 -> 路由选版 -> 限时预测 -> 解释 -> 响应 + 异步日志/审计
 * @rules 预测热路径同步只读内存状态,无阻塞I/O;日志与审计写在决策返回后异步尽力而为
 * @dependencies gorm.io/gorm, governance-engine-service/service/predlog, governance-engine-service/service/audit
 * @refs service/engine/registry.go, service/engine/feedback_loop.go, service/engine/drift_monitor.go
 */

package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"governance-engine-service/service/audit"
	"governance-engine-service/service/config"
	"governance-engine-service/service/models"
	"governance-engine-service/service/predlog"
)

// PredictInput 预测操作输入
type PredictInput struct {
	Content   string
	Context   map[string]interface{}
	UserID    string
	SessionID string
	UseABTest bool
}

// VersionMetrics 单版本运行指标
type VersionMetrics struct {
	Version         models.ModelVersion `json:"version"`
	PredictionCount int64               `json:"prediction_count"`
	FeedbackCount   int64               `json:"feedback_count"`
}

// DecisionEngine 决策引擎,启动时构造一次并传递给各请求处理器
type DecisionEngine struct {
	cfg       *config.Manager
	extractor *FeatureExtractor
	registry  *ModelRegistry
	router    *ABRouter
	executor  *PredictionExecutor
	feedback  *FeedbackLoop
	drift     *DriftMonitor
	store     predlog.Store
	publisher *audit.Publisher
	stats     *engineStats
}

// NewDecisionEngine 创建决策引擎
func NewDecisionEngine(db *gorm.DB, store predlog.Store, publisher *audit.Publisher,
	cfg *config.Manager) *DecisionEngine {

	stats := newEngineStats()
	registry := NewModelRegistry(db)

	return &DecisionEngine{
		cfg:       cfg,
		extractor: NewFeatureExtractor(cfg),
		registry:  registry,
		router:    NewABRouter(registry, db),
		executor:  NewPredictionExecutor(registry, cfg.Current().InferenceTimeout(), stats),
		feedback:  NewFeedbackLoop(registry, store, db, cfg, stats),
		drift:     NewDriftMonitor(registry, store, db, cfg, nil),
		store:     store,
		publisher: publisher,
		stats:     stats,
	}
}

// Bootstrap 冷启动:保证每个支持的模型类型存在活动版本后才可服务流量
func (e *DecisionEngine) Bootstrap() {
	e.registry.Bootstrap(e.cfg.Current().SyntheticSamples)
}

// Registry 模型注册表
func (e *DecisionEngine) Registry() *ModelRegistry {
	return e.registry
}

// Router A/B路由器
func (e *DecisionEngine) Router() *ABRouter {
	return e.router
}

// Predict 执行一次治理决策
// 决策路径全程同步且无阻塞I/O;预测日志与审计事件在响应构造后异步写入
func (e *DecisionEngine) Predict(ctx context.Context, in PredictInput) *GovernanceResponse {
	start := time.Now()

	req := &GovernanceRequest{
		RequestID: uuid.New().String(),
		Content:   in.Content,
		Context:   ParseRequestContext(in.Context),
		UserID:    in.UserID,
		SessionID: in.SessionID,
		Timestamp: start,
	}

	features := e.extractor.Extract(req)

	mt := ModelTypeRandomForest
	versionID, abInfo := e.router.Select(mt, in.UseABTest)
	if versionID == "" {
		// 基线类型被禁用时退到在线学习器,两者皆缺由执行器回退MONITOR
		mt = ModelTypeOnlineLearner
		versionID, abInfo = e.router.Select(mt, false)
	}

	decision, confidence, _ := e.executor.Predict(features, versionID)
	latency := time.Since(start)

	resp := &GovernanceResponse{
		RequestID:    req.RequestID,
		Decision:     decision,
		Confidence:   confidence,
		Reasoning:    Explain(features, decision, confidence, e.cfg.Current().ToxicityThreshold),
		ModelVersion: versionID,
		ModelType:    mt,
		Features:     features,
		LatencyMS:    float64(latency.Microseconds()) / 1000.0,
		Timestamp:    start,
	}
	if abInfo != nil {
		resp.UsedABTest = true
		resp.ABTestID = abInfo.TestID
	}

	predictionsTotal.WithLabelValues(string(mt), string(decision)).Inc()
	predictionLatency.Observe(latency.Seconds())
	e.stats.recordPrediction(versionID)

	// 日志与审计脱离响应路径,失败仅计入软失败指标
	go e.logPrediction(resp)
	go e.publishAudit(resp)

	return resp
}

// logPrediction 预测结果写入TTL日志与漂移近期窗口
func (e *DecisionEngine) logPrediction(resp *GovernanceResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := e.store.Put(ctx, predictionKey(resp.RequestID), data, e.cfg.Current().PredictionTTL()); err != nil {
		slog.Error("预测日志写入失败", "request_id", resp.RequestID, "error", err)
		logFailureTotal.WithLabelValues("prediction_log").Inc()
		e.stats.recordLogFailure()
	}
	if err := e.store.AppendRecent(ctx, data); err != nil {
		slog.Error("漂移窗口写入失败", "request_id", resp.RequestID, "error", err)
		logFailureTotal.WithLabelValues("drift_window").Inc()
		e.stats.recordLogFailure()
	}
}

// publishAudit 发布决策审计事件,尽力而为
func (e *DecisionEngine) publishAudit(resp *GovernanceResponse) {
	if !e.publisher.Enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	event := audit.DecisionEvent{
		RequestID:    resp.RequestID,
		Decision:     string(resp.Decision),
		Confidence:   resp.Confidence,
		ModelVersion: resp.ModelVersion,
		ModelType:    string(resp.ModelType),
		UsedABTest:   resp.UsedABTest,
		LatencyMS:    resp.LatencyMS,
		Timestamp:    resp.Timestamp,
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		slog.Error("决策审计事件发布失败", "request_id", resp.RequestID, "error", err)
		logFailureTotal.WithLabelValues("audit_stream").Inc()
		e.stats.recordLogFailure()
	}
}

// GetLoggedPrediction 按请求ID读取已记录的预测响应
func (e *DecisionEngine) GetLoggedPrediction(ctx context.Context, requestID string) (*GovernanceResponse, bool) {
	data, found, err := e.store.Get(ctx, predictionKey(requestID))
	if err != nil || !found {
		return nil, false
	}
	var resp GovernanceResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

// SubmitFeedback 提交反馈
func (e *DecisionEngine) SubmitFeedback(ctx context.Context, fb FeedbackSubmission) bool {
	return e.feedback.Submit(ctx, fb)
}

// DriftCheck 执行漂移检测,nil结果表示无数据
func (e *DecisionEngine) DriftCheck(ctx context.Context, versionID string) (*DriftDetectionResult, error) {
	return e.drift.Check(ctx, versionID)
}

// DriftHistory 查询历史漂移检测记录
func (e *DecisionEngine) DriftHistory(versionID string, limit int) ([]models.DriftCheckRecord, error) {
	return e.drift.History(versionID, limit)
}

// DriftMonitor 漂移监控器
func (e *DecisionEngine) DriftMonitor() *DriftMonitor {
	return e.drift
}

// Status 引擎运行状态:各类型活动版本、进行中的A/B测试与聚合指标
func (e *DecisionEngine) Status() map[string]interface{} {
	return map[string]interface{}{
		"active_versions": e.registry.ActiveVersions(),
		"disabled_types":  e.registry.DisabledTypes(),
		"ab_tests":        e.router.ActiveTests(),
		"metrics":         e.stats.snapshot(),
	}
}

// ModelMetrics 各版本评估指标与预测、反馈计数
func (e *DecisionEngine) ModelMetrics() []VersionMetrics {
	versions := e.registry.ListVersions()
	out := make([]VersionMetrics, 0, len(versions))
	for _, v := range versions {
		out = append(out, VersionMetrics{
			Version:         v,
			PredictionCount: e.stats.versionPredictions(v.ID),
			FeedbackCount:   e.stats.versionFeedback(v.ID),
		})
	}
	return out
}

// OnlineLearningStatus 各在线学习器活动状态
func (e *DecisionEngine) OnlineLearningStatus() map[ModelType]learnerActivity {
	return e.feedback.LearnerStatus()
}

// Close 释放引擎持有的外部资源
func (e *DecisionEngine) Close() {
	if err := e.store.Close(); err != nil {
		slog.Error("关闭日志存储失败", "error", err)
	}
	if err := e.publisher.Close(); err != nil {
		slog.Error("关闭审计发布器失败", "error", err)
	}
}
