/*
 * @module service/engine/drift_scheduler
 * @description 漂移检测调度器,按cron周期对活动基线版本执行漂移检测
 * @architecture 分层架构 - 服务层
 * @stateFlow 启动调度器 -> 周期触发检测 -> 结果落库/告警日志 -> 停止
 * @rules 调度在请求热路径之外运行;检测失败仅记录日志,不影响服务
 * @dependencies github.com/robfig/cron/v3
 * @refs service/engine/drift_monitor.go, service/config/engine_config.go
 */

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"governance-engine-service/service/config"
)

// DriftScheduler 周期漂移检测调度器
type DriftScheduler struct {
	monitor *DriftMonitor
	cfg     *config.Manager
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewDriftScheduler 创建漂移检测调度器
func NewDriftScheduler(monitor *DriftMonitor, cfg *config.Manager) *DriftScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &DriftScheduler{
		monitor: monitor,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start 启动调度器
func (s *DriftScheduler) Start() error {
	if s.started {
		return fmt.Errorf("漂移检测调度器已经启动")
	}

	spec := s.cfg.Current().DriftCheckCron
	if _, err := s.cron.AddFunc(spec, s.runCheck); err != nil {
		return fmt.Errorf("注册漂移检测任务失败: %w", err)
	}

	s.cron.Start()
	s.started = true
	slog.Info("漂移检测调度器启动完成", "cron", spec)
	return nil
}

// Stop 停止调度器
func (s *DriftScheduler) Stop() {
	if !s.started {
		return
	}
	s.cancel()
	s.cron.Stop()
	s.started = false
	slog.Info("漂移检测调度器已停止")
}

// runCheck 对活动基线版本执行一次漂移检测
func (s *DriftScheduler) runCheck() {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	result, err := s.monitor.Check(ctx, "")
	if err != nil {
		slog.Error("周期漂移检测失败", "error", err)
		return
	}
	if result == nil {
		slog.Debug("周期漂移检测: 数据不足")
		return
	}
	slog.Debug("周期漂移检测完成",
		"version", result.ModelVersion,
		"drift_detected", result.DriftDetected,
		"drift_score", result.DriftScore)
}
