/*
 * @module service/engine/executor_test
 * @description 预测执行器单元测试:正常路径与全部回退场景
 * @architecture 测试层
 * @stateFlow 句柄注入 -> 预测 -> 决策/回退断言
 * @rules 句柄缺失、报错、panic、畸形输出与超时一律回退(MONITOR, 0.5, 空概率)
 * @dependencies testing, stretchr/testify
 */

package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutorFixture(t *testing.T, handle ModelHandle, timeout time.Duration) (*PredictionExecutor, string) {
	t.Helper()
	registry := NewModelRegistry(nil)
	versionID := registerStub(t, registry, ModelTypeRandomForest, handle, nil)
	return NewPredictionExecutor(registry, timeout, newEngineStats()), versionID
}

func assertFallback(t *testing.T, decision Decision, confidence float64, probs map[Decision]float64) {
	t.Helper()
	assert.Equal(t, DecisionMonitor, decision)
	assert.Equal(t, 0.5, confidence)
	assert.Empty(t, probs)
}

// TestExecutorHappyPath 测试正常预测返回argmax决策
func TestExecutorHappyPath(t *testing.T) {
	executor, versionID := newExecutorFixture(t, &stubHandle{probs: allowProbs()}, 0)

	decision, confidence, probs := executor.Predict(benignFeatures(), versionID)
	assert.Equal(t, DecisionAllow, decision)
	assert.Equal(t, 0.7, confidence)
	require.Len(t, probs, len(DecisionClasses))
}

// TestExecutorFallbackUnknownVersion 测试版本制品缺失时回退
func TestExecutorFallbackUnknownVersion(t *testing.T) {
	executor := NewPredictionExecutor(NewModelRegistry(nil), 0, newEngineStats())

	decision, confidence, probs := executor.Predict(benignFeatures(), "no-such-version")
	assertFallback(t, decision, confidence, probs)
}

// TestExecutorFallbackOnError 测试推理报错时回退
func TestExecutorFallbackOnError(t *testing.T) {
	executor, versionID := newExecutorFixture(t,
		&stubHandle{predictErr: errors.New("模型内部错误")}, 0)

	decision, confidence, probs := executor.Predict(benignFeatures(), versionID)
	assertFallback(t, decision, confidence, probs)
}

// TestExecutorFallbackOnPanic 测试推理panic时回退而非崩溃
func TestExecutorFallbackOnPanic(t *testing.T) {
	executor, versionID := newExecutorFixture(t, &stubHandle{panicValue: "boom"}, 0)

	decision, confidence, probs := executor.Predict(benignFeatures(), versionID)
	assertFallback(t, decision, confidence, probs)
}

// TestExecutorFallbackOnMalformedOutput 测试畸形概率输出回退
func TestExecutorFallbackOnMalformedOutput(t *testing.T) {
	cases := []struct {
		name  string
		probs map[Decision]float64
	}{
		{"空概率", map[Decision]float64{}},
		{"含NaN", map[Decision]float64{DecisionAllow: math.NaN(), DecisionDeny: 0.5}},
		{"含负值", map[Decision]float64{DecisionAllow: -0.2, DecisionDeny: 1.2}},
		{"质量不归一", map[Decision]float64{DecisionAllow: 2.0, DecisionDeny: 1.0}},
		{"未知决策键", map[Decision]float64{Decision("block"): 1.0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			executor, versionID := newExecutorFixture(t, &stubHandle{probs: tc.probs}, 0)
			decision, confidence, probs := executor.Predict(benignFeatures(), versionID)
			assertFallback(t, decision, confidence, probs)
		})
	}
}

// TestExecutorFallbackOnTimeout 测试推理超时回退
func TestExecutorFallbackOnTimeout(t *testing.T) {
	executor, versionID := newExecutorFixture(t,
		&stubHandle{probs: allowProbs(), delay: 200 * time.Millisecond}, 10*time.Millisecond)

	start := time.Now()
	decision, confidence, probs := executor.Predict(benignFeatures(), versionID)
	elapsed := time.Since(start)

	assertFallback(t, decision, confidence, probs)
	assert.Less(t, elapsed, 150*time.Millisecond, "超时回退不应等待完整推理")
}

// TestValidProbs 测试概率校验边界
func TestValidProbs(t *testing.T) {
	assert.True(t, validProbs(allowProbs()))
	assert.False(t, validProbs(nil))
	assert.False(t, validProbs(map[Decision]float64{DecisionAllow: math.Inf(1)}))
	assert.True(t, validProbs(map[Decision]float64{DecisionAllow: 0.6, DecisionDeny: 0.41}))
}
