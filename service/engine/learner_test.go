/*
 * @module service/engine/learner_test
 * @description softmax分类器单元测试:批量训练、增量学习、概率输出与合成标注规则
 * @architecture 测试层
 * @stateFlow 样本生成 -> 训练 -> 预测/评估断言
 * @rules 固定种子下训练结果可复现;增量学习必须能扭转预测
 * @dependencies testing, stretchr/testify
 */

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTrainBaseline 测试基线训练的指标与基准分布
func TestTrainBaseline(t *testing.T) {
	clf, metrics, means, err := trainBaseline(2000, baselineSeed)
	require.NoError(t, err)
	require.NotNil(t, clf)

	assert.Greater(t, metrics.Accuracy, 0.6, "基线模型在留出集上的准确率过低")
	assert.GreaterOrEqual(t, metrics.Precision, 0.0)
	assert.GreaterOrEqual(t, metrics.Recall, 0.0)
	assert.LessOrEqual(t, metrics.F1, 1.0)

	require.Len(t, means, FeatureDimension)
	for i, m := range means {
		assert.GreaterOrEqual(t, m, 0.0, "特征 %d 均值越界", i)
		assert.LessOrEqual(t, m, 1.0, "特征 %d 均值越界", i)
	}
	assert.Equal(t, int64(2000*4/5), clf.SamplesSeen())
}

// TestTrainBaselineReproducible 测试固定种子下训练可复现
func TestTrainBaselineReproducible(t *testing.T) {
	clf1, m1, _, err := trainBaseline(500, baselineSeed)
	require.NoError(t, err)
	clf2, m2, _, err := trainBaseline(500, baselineSeed)
	require.NoError(t, err)

	assert.Equal(t, m1, m2)
	assert.Equal(t, clf1.snapshotWeights(), clf2.snapshotWeights())
}

// TestTrainBaselineRejectsTinySample 测试样本数不足时报错
func TestTrainBaselineRejectsTinySample(t *testing.T) {
	_, _, _, err := trainBaseline(50, baselineSeed)
	assert.Error(t, err)
}

// TestPredictProbaSumsToOne 测试概率输出归一
func TestPredictProbaSumsToOne(t *testing.T) {
	clf := newSoftmaxClassifier(0.1)
	probs, err := clf.PredictProba(benignFeatures().Vector())
	require.NoError(t, err)
	require.Len(t, probs, len(DecisionClasses))

	sum := 0.0
	for d, p := range probs {
		assert.True(t, d.IsValid())
		assert.GreaterOrEqual(t, p, 0.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

// TestPredictProbaDimensionMismatch 测试维度不匹配报错
func TestPredictProbaDimensionMismatch(t *testing.T) {
	clf := newSoftmaxClassifier(0.1)
	_, err := clf.PredictProba([]float64{1, 2, 3})
	assert.Error(t, err)

	err = clf.LearnOne([]float64{1, 2, 3}, DecisionDeny)
	assert.Error(t, err)
}

// TestLearnOneShiftsPrediction 测试重复纠正能扭转预测
func TestLearnOneShiftsPrediction(t *testing.T) {
	clf := newSoftmaxClassifier(0.5)
	vec := benignFeatures().Vector()

	for i := 0; i < 50; i++ {
		require.NoError(t, clf.LearnOne(vec, DecisionDeny))
	}

	probs, err := clf.PredictProba(vec)
	require.NoError(t, err)
	assert.Equal(t, DecisionDeny, argmaxDecision(probs))
	assert.Equal(t, int64(50), clf.SamplesSeen())
}

// TestLearnOneRejectsUnknownLabel 测试未知标签报错
func TestLearnOneRejectsUnknownLabel(t *testing.T) {
	clf := newSoftmaxClassifier(0.1)
	err := clf.LearnOne(benignFeatures().Vector(), Decision("block"))
	assert.Error(t, err)
	assert.Equal(t, int64(0), clf.SamplesSeen())
}

// TestSyntheticLabelRules 测试合成标注规则覆盖各决策分支
func TestSyntheticLabelRules(t *testing.T) {
	base := func() []float64 {
		f := make([]float64, FeatureDimension)
		f[slotUserHistory] = 0.5
		return f
	}

	harmful := base()
	harmful[slotIntentHarmful] = 1.0
	assert.Equal(t, DecisionDeny.Index(), syntheticLabel(harmful))

	toxic := base()
	toxic[slotToxicity] = 0.8
	assert.Equal(t, DecisionDeny.Index(), syntheticLabel(toxic))

	escalate := base()
	escalate[slotRiskLevel] = 1.0
	escalate[slotCompliance] = 0.4
	assert.Equal(t, DecisionEscalate.Index(), syntheticLabel(escalate))

	monitor := base()
	monitor[slotToxicity] = 0.5
	assert.Equal(t, DecisionMonitor.Index(), syntheticLabel(monitor))

	badHistory := base()
	badHistory[slotUserHistory] = 0.1
	assert.Equal(t, DecisionMonitor.Index(), syntheticLabel(badHistory))

	assert.Equal(t, DecisionAllow.Index(), syntheticLabel(base()))
}

// TestArgmaxDecisionDeterministic 测试并列概率时取固定类别顺序中靠前者
func TestArgmaxDecisionDeterministic(t *testing.T) {
	probs := map[Decision]float64{
		DecisionAllow:    0.4,
		DecisionDeny:     0.4,
		DecisionEscalate: 0.1,
		DecisionMonitor:  0.1,
	}
	for i := 0; i < 20; i++ {
		assert.Equal(t, DecisionAllow, argmaxDecision(probs))
	}
}

// TestDecisionIndexRoundTrip 测试决策下标映射
func TestDecisionIndexRoundTrip(t *testing.T) {
	for i, d := range DecisionClasses {
		assert.Equal(t, i, d.Index())
		assert.Equal(t, d, DecisionFromIndex(i))
	}
	assert.Equal(t, DecisionMonitor, DecisionFromIndex(-1))
	assert.Equal(t, DecisionMonitor, DecisionFromIndex(99))
	assert.Equal(t, -1, Decision("block").Index())
}
