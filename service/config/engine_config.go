/*
 * @module service/config/engine_config
 * @description 决策引擎配置管理,支持YAML文件、环境变量覆盖与阈值热加载
 * @architecture 分层架构 - 配置层
 * @stateFlow 加载默认值 -> 读取YAML文件 -> 环境变量覆盖 -> fsnotify监听热加载
 * @rules 热加载仅对阈值类字段生效,时区和存储地址等启动期字段变更需重启
 * @dependencies gopkg.in/yaml.v3, github.com/fsnotify/fsnotify
 * @refs service/engine/engine.go, service/engine/drift_monitor.go
 */

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// EngineConfig 决策引擎配置
type EngineConfig struct {
	Timezone           string  `yaml:"timezone"`             // 时间特征计算使用的时区
	BusinessHoursStart int     `yaml:"business_hours_start"` // 工作时间起始小时(含)
	BusinessHoursEnd   int     `yaml:"business_hours_end"`   // 工作时间结束小时(不含)
	ToxicityThreshold  float64 `yaml:"toxicity_threshold"`   // 解释生成中的毒性阈值
	DriftThreshold     float64 `yaml:"drift_threshold"`      // 漂移检测阈值
	DriftWindowHours   int     `yaml:"drift_window_hours"`   // 当前分布窗口时长
	DriftMinSamples    int     `yaml:"drift_min_samples"`    // 窗口最小样本数,不足视为无数据
	DriftCheckCron     string  `yaml:"drift_check_cron"`     // 周期漂移检测cron表达式(含秒)
	InferenceTimeoutMS int     `yaml:"inference_timeout_ms"` // 模型推理超时,超时回退MONITOR
	SyntheticSamples   int     `yaml:"synthetic_samples"`    // 冷启动基线模型的合成训练样本数
	PredictionTTLHours int     `yaml:"prediction_ttl_hours"` // 预测日志保留时长
	FeedbackTTLHours   int     `yaml:"feedback_ttl_hours"`   // 反馈记录缓存保留时长
	RecentWindowSize   int     `yaml:"recent_window_size"`   // 漂移当前窗口最大条目数
	AuditTopic         string  `yaml:"audit_topic"`          // 决策审计事件Kafka主题
}

// DefaultConfig 返回默认配置
func DefaultConfig() *EngineConfig {
	return &EngineConfig{
		Timezone:           "Asia/Shanghai",
		BusinessHoursStart: 9,
		BusinessHoursEnd:   18,
		ToxicityThreshold:  0.7,
		DriftThreshold:     0.1,
		DriftWindowHours:   24,
		DriftMinSamples:    30,
		DriftCheckCron:     "0 */15 * * * *",
		InferenceTimeoutMS: 50,
		SyntheticSamples:   2000,
		PredictionTTLHours: 7 * 24,
		FeedbackTTLHours:   30 * 24,
		RecentWindowSize:   5000,
		AuditTopic:         "governance-decisions",
	}
}

// PredictionTTL 预测日志TTL
func (c *EngineConfig) PredictionTTL() time.Duration {
	return time.Duration(c.PredictionTTLHours) * time.Hour
}

// FeedbackTTL 反馈记录TTL
func (c *EngineConfig) FeedbackTTL() time.Duration {
	return time.Duration(c.FeedbackTTLHours) * time.Hour
}

// InferenceTimeout 模型推理超时时长
func (c *EngineConfig) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutMS) * time.Millisecond
}

// DriftWindow 漂移检测当前窗口时长
func (c *EngineConfig) DriftWindow() time.Duration {
	return time.Duration(c.DriftWindowHours) * time.Hour
}

// Location 解析配置时区,解析失败时回退UTC
func (c *EngineConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Manager 配置管理器,持有配置快照并支持热加载
type Manager struct {
	path    string
	current atomic.Value // *EngineConfig
	watcher *fsnotify.Watcher
}

// NewManager 创建配置管理器,path为空时使用默认配置加环境变量覆盖
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path}
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	m.current.Store(cfg)
	return m, nil
}

// Current 获取当前配置快照
func (m *Manager) Current() *EngineConfig {
	return m.current.Load().(*EngineConfig)
}

// Watch 启动配置文件监听,阈值变更即时生效
func (m *Manager) Watch() error {
	if m.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建配置监听器失败: %w", err)
	}
	if err := watcher.Add(m.path); err != nil {
		watcher.Close()
		return fmt.Errorf("监听配置文件失败: %w", err)
	}
	m.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := load(m.path)
				if err != nil {
					slog.Error("配置热加载失败", "path", m.path, "error", err)
					continue
				}
				m.current.Store(cfg)
				slog.Info("配置热加载完成",
					"drift_threshold", cfg.DriftThreshold,
					"toxicity_threshold", cfg.ToxicityThreshold)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("配置监听错误", "error", err)
			}
		}
	}()

	return nil
}

// Close 停止配置监听
func (m *Manager) Close() {
	if m.watcher != nil {
		m.watcher.Close()
	}
}

// load 加载配置: 默认值 -> YAML文件 -> 环境变量
func load(path string) (*EngineConfig, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
			slog.Warn("配置文件不存在,使用默认配置", "path", path)
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.DriftThreshold <= 0 {
		return nil, fmt.Errorf("无效的漂移阈值: %f", cfg.DriftThreshold)
	}
	if cfg.BusinessHoursStart < 0 || cfg.BusinessHoursEnd > 24 || cfg.BusinessHoursStart >= cfg.BusinessHoursEnd {
		return nil, fmt.Errorf("无效的工作时间配置: %d-%d", cfg.BusinessHoursStart, cfg.BusinessHoursEnd)
	}

	return cfg, nil
}

// applyEnvOverrides 应用环境变量覆盖
func applyEnvOverrides(cfg *EngineConfig) {
	if val := os.Getenv("ENGINE_TIMEZONE"); val != "" {
		cfg.Timezone = val
	}
	if val := os.Getenv("ENGINE_DRIFT_THRESHOLD"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.DriftThreshold = f
		}
	}
	if val := os.Getenv("ENGINE_AUDIT_TOPIC"); val != "" {
		cfg.AuditTopic = val
	}
	if val := os.Getenv("ENGINE_SYNTHETIC_SAMPLES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.SyntheticSamples = n
		}
	}
}
