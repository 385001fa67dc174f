/*
 * @module service/engine/helpers_test
 * @description 引擎测试共享辅助:桩模型句柄、测试配置与窗口数据工厂
 * @architecture 测试层
 * @stateFlow 测试准备 -> 桩注入 -> 断言
 * @rules 桩句柄实现ModelHandle完整契约,可配置延迟、panic与畸形输出
 * @dependencies testing, stretchr/testify
 */

package engine

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"governance-engine-service/service/config"
	"governance-engine-service/service/models"
	"governance-engine-service/service/predlog"
)

// newTestConfig 创建默认测试配置
func newTestConfig(t *testing.T) *config.Manager {
	t.Helper()
	m, err := config.NewManager("")
	require.NoError(t, err)
	return m
}

// stubHandle 可配置的桩模型句柄
type stubHandle struct {
	mu         sync.Mutex
	probs      map[Decision]float64
	predictErr error
	panicValue interface{}
	delay      time.Duration
	learnCalls int
	lastLabel  Decision
	samples    int64
}

func (s *stubHandle) PredictProba(features []float64) (map[Decision]float64, error) {
	if s.panicValue != nil {
		panic(s.panicValue)
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.predictErr != nil {
		return nil, s.predictErr
	}
	out := make(map[Decision]float64, len(s.probs))
	for d, p := range s.probs {
		out[d] = p
	}
	return out, nil
}

func (s *stubHandle) LearnOne(features []float64, label Decision) error {
	s.mu.Lock()
	s.learnCalls++
	s.lastLabel = label
	s.mu.Unlock()
	atomic.AddInt64(&s.samples, 1)
	return nil
}

func (s *stubHandle) SamplesSeen() int64 {
	return atomic.LoadInt64(&s.samples)
}

func (s *stubHandle) learnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.learnCalls
}

func (s *stubHandle) learnedLabel() Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLabel
}

// registerStub 注册桩版本并返回版本ID
func registerStub(t *testing.T, r *ModelRegistry, mt ModelType, h ModelHandle, refMeans []float64) string {
	t.Helper()
	id, err := r.Register(mt, h, EvalMetrics{Accuracy: 0.9}, 100, refMeans,
		models.JSONB{"source": "test"})
	require.NoError(t, err)
	return id
}

// allowProbs 倾向允许的合法概率分布
func allowProbs() map[Decision]float64 {
	return map[Decision]float64{
		DecisionAllow:    0.7,
		DecisionDeny:     0.1,
		DecisionEscalate: 0.1,
		DecisionMonitor:  0.1,
	}
}

// benignFeatures 低风险特征向量
func benignFeatures() FeatureVector {
	return FeatureVector{
		IntentConfidence: 0.85,
		IntentClass:      "helpful",
		IntentIsHelpful:  true,
		ContentLength:    0.01,
		UserHistoryScore: 0.9,
		TimeOfDay:        10.0 / 23.0,
		DayOfWeek:        2.0 / 6.0,
		IsBusinessHours:  true,
	}
}

// appendLoggedPredictions 向近期窗口写入n条带指定特征的预测记录
func appendLoggedPredictions(t *testing.T, store predlog.Store, n int, fv FeatureVector) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		resp := GovernanceResponse{
			RequestID: "win-" + time.Now().Format("150405.000000000"),
			Decision:  DecisionAllow,
			Features:  fv,
			Timestamp: time.Now(),
		}
		data, err := json.Marshal(resp)
		require.NoError(t, err)
		require.NoError(t, store.AppendRecent(ctx, data))
	}
}
