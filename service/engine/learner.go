/*
 * @module service/engine/learner
 * @description 模型句柄定义与默认实现:softmax线性分类器,支持批量训练与单样本增量更新
 * @architecture 能力接口模式 - 注册表持有不透明句柄,具体算法可替换
 * @stateFlow 合成数据生成 -> 批量训练(基线) / 零权重初始化(在线) -> 预测/增量学习
 * @rules 预测读与学习写通过读写锁隔离,读方不会观察到撕裂的权重更新
 * @dependencies math, math/rand, sync
 * @refs service/engine/registry.go, service/engine/executor.go, service/engine/feedback_loop.go
 */

package engine

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
)

// ModelHandle 模型句柄能力接口,分类算法实现细节对引擎不可见
type ModelHandle interface {
	// PredictProba 返回各决策类别的概率
	PredictProba(features []float64) (map[Decision]float64, error)
	// LearnOne 单样本增量更新
	LearnOne(features []float64, label Decision) error
	// SamplesSeen 已学习样本总数
	SamplesSeen() int64
}

// EvalMetrics 模型评估指标
type EvalMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// softmaxClassifier 多类别softmax线性分类器,基线与在线学习器的默认后端
type softmaxClassifier struct {
	mu           sync.RWMutex
	weights      [][]float64 // numClasses x (FeatureDimension+1),末位为偏置
	learningRate float64
	samplesSeen  int64
}

func newSoftmaxClassifier(learningRate float64) *softmaxClassifier {
	weights := make([][]float64, len(DecisionClasses))
	for i := range weights {
		weights[i] = make([]float64, FeatureDimension+1)
	}
	return &softmaxClassifier{weights: weights, learningRate: learningRate}
}

// newSoftmaxClassifierFromWeights 从持久化权重快照重建分类器,维度不符视为制品损坏
func newSoftmaxClassifierFromWeights(learningRate float64, weights [][]float64) (*softmaxClassifier, error) {
	if len(weights) != len(DecisionClasses) {
		return nil, fmt.Errorf("权重类别数不匹配: 期望%d, 实际%d", len(DecisionClasses), len(weights))
	}
	clf := newSoftmaxClassifier(learningRate)
	for i, w := range weights {
		if len(w) != FeatureDimension+1 {
			return nil, fmt.Errorf("权重维度不匹配: 期望%d, 实际%d", FeatureDimension+1, len(w))
		}
		copy(clf.weights[i], w)
	}
	return clf, nil
}

// PredictProba 计算类别概率
func (c *softmaxClassifier) PredictProba(features []float64) (map[Decision]float64, error) {
	if len(features) != FeatureDimension {
		return nil, fmt.Errorf("特征维度不匹配: 期望%d, 实际%d", FeatureDimension, len(features))
	}

	c.mu.RLock()
	scores := make([]float64, len(c.weights))
	for i, w := range c.weights {
		s := w[FeatureDimension] // 偏置
		for j, x := range features {
			s += w[j] * x
		}
		scores[i] = s
	}
	c.mu.RUnlock()

	probs := softmax(scores)
	out := make(map[Decision]float64, len(probs))
	for i, p := range probs {
		out[DecisionClasses[i]] = p
	}
	return out, nil
}

// LearnOne 单样本随机梯度下降更新
func (c *softmaxClassifier) LearnOne(features []float64, label Decision) error {
	if len(features) != FeatureDimension {
		return fmt.Errorf("特征维度不匹配: 期望%d, 实际%d", FeatureDimension, len(features))
	}
	target := label.Index()
	if target < 0 {
		return fmt.Errorf("未知的决策标签: %s", label)
	}

	c.mu.Lock()
	c.step(features, target)
	c.mu.Unlock()

	atomic.AddInt64(&c.samplesSeen, 1)
	return nil
}

// SamplesSeen 已学习样本总数
func (c *softmaxClassifier) SamplesSeen() int64 {
	return atomic.LoadInt64(&c.samplesSeen)
}

// step 单步梯度更新,调用方必须持有写锁
func (c *softmaxClassifier) step(features []float64, target int) {
	scores := make([]float64, len(c.weights))
	for i, w := range c.weights {
		s := w[FeatureDimension]
		for j, x := range features {
			s += w[j] * x
		}
		scores[i] = s
	}
	probs := softmax(scores)

	for i := range c.weights {
		indicator := 0.0
		if i == target {
			indicator = 1.0
		}
		grad := c.learningRate * (indicator - probs[i])
		for j, x := range features {
			c.weights[i][j] += grad * x
		}
		c.weights[i][FeatureDimension] += grad
	}
}

// fit 批量训练,固定遍历顺序保证可复现
func (c *softmaxClassifier) fit(samples []labeledSample, epochs int) {
	c.mu.Lock()
	for e := 0; e < epochs; e++ {
		for _, s := range samples {
			c.step(s.features, s.label)
		}
	}
	c.mu.Unlock()
	atomic.AddInt64(&c.samplesSeen, int64(len(samples)))
}

// snapshotWeights 导出权重快照,用于制品持久化
func (c *softmaxClassifier) snapshotWeights() [][]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([][]float64, len(c.weights))
	for i, w := range c.weights {
		out[i] = make([]float64, len(w))
		copy(out[i], w)
	}
	return out
}

func softmax(scores []float64) []float64 {
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	sum := 0.0
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// labeledSample 带标签的训练样本
type labeledSample struct {
	features []float64
	label    int
}

// 向量槽位下标,与FeatureVector.Vector()顺序一致
const (
	slotIntentHarmful = 2
	slotToxicity      = 7
	slotUserHistory   = 8
	slotPolicyDeny    = 13
	slotRiskLevel     = 15
	slotCompliance    = 16
	slotSensitivity   = 17
)

// generateSyntheticSamples 生成冷启动基线模型的合成训练样本
// 标签遵循治理策略规则,固定种子保证训练可复现
func generateSyntheticSamples(n int, seed int64) []labeledSample {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]labeledSample, 0, n)

	for i := 0; i < n; i++ {
		f := make([]float64, FeatureDimension)
		f[0] = rng.Float64() // intent_confidence
		harmful := rng.Float64() < 0.2
		helpful := !harmful && rng.Float64() < 0.5
		if helpful {
			f[1] = 1.0
		}
		if harmful {
			f[slotIntentHarmful] = 1.0
		}
		f[3] = rng.Float64() * 0.5              // content_length
		f[4] = float64(rng.Intn(2))             // has_urls
		f[5] = float64(rng.Intn(2))             // has_email
		f[6] = float64(rng.Intn(2))             // has_code
		f[slotToxicity] = rng.Float64()         // toxicity
		f[slotUserHistory] = rng.Float64()      // user_history
		f[9] = rng.Float64()                    // time_of_day
		f[10] = float64(rng.Intn(7)) / 6.0      // day_of_week
		f[11] = float64(rng.Intn(2))            // is_business_hours
		f[12] = rng.Float64() * 0.5             // policy_match
		f[slotPolicyDeny] = rng.Float64() * 0.5 // policy_deny
		f[14] = rng.Float64() * 0.5             // policy_allow
		f[slotRiskLevel] = []float64{0, 0.5, 1}[rng.Intn(3)]
		f[slotCompliance] = rng.Float64() * 0.6 // compliance_flags
		f[slotSensitivity] = rng.Float64()      // sensitivity

		samples = append(samples, labeledSample{features: f, label: syntheticLabel(f)})
	}
	return samples
}

// syntheticLabel 治理策略标注规则
func syntheticLabel(f []float64) int {
	switch {
	case f[slotIntentHarmful] > 0.5 || f[slotToxicity] > 0.7:
		return DecisionDeny.Index()
	case f[slotRiskLevel] >= 1.0 && (f[slotCompliance] > 0.3 || f[slotSensitivity] > 0.8):
		return DecisionEscalate.Index()
	case f[slotToxicity] > 0.4 || f[slotPolicyDeny] > 0.3 || f[slotUserHistory] < 0.15:
		return DecisionMonitor.Index()
	default:
		return DecisionAllow.Index()
	}
}

// trainBaseline 训练基线分类器并在留出集上评估
func trainBaseline(sampleCount int, seed int64) (*softmaxClassifier, EvalMetrics, []float64, error) {
	if sampleCount < 100 {
		return nil, EvalMetrics{}, nil, fmt.Errorf("合成样本数不足: %d", sampleCount)
	}

	samples := generateSyntheticSamples(sampleCount, seed)
	split := len(samples) * 4 / 5
	train, holdout := samples[:split], samples[split:]

	clf := newSoftmaxClassifier(0.1)
	clf.fit(train, 40)

	metrics := evaluate(clf, holdout)
	return clf, metrics, featureMeans(train), nil
}

// evaluate 计算留出集上的准确率与宏平均精确率/召回率/F1
func evaluate(clf *softmaxClassifier, holdout []labeledSample) EvalMetrics {
	numClasses := len(DecisionClasses)
	tp := make([]float64, numClasses)
	fp := make([]float64, numClasses)
	fn := make([]float64, numClasses)
	correct := 0

	for _, s := range holdout {
		probs, err := clf.PredictProba(s.features)
		if err != nil {
			continue
		}
		pred := argmaxDecision(probs).Index()
		if pred == s.label {
			correct++
			tp[pred]++
		} else {
			fp[pred]++
			fn[s.label]++
		}
	}

	var precision, recall float64
	for i := 0; i < numClasses; i++ {
		if tp[i]+fp[i] > 0 {
			precision += tp[i] / (tp[i] + fp[i])
		}
		if tp[i]+fn[i] > 0 {
			recall += tp[i] / (tp[i] + fn[i])
		}
	}
	precision /= float64(numClasses)
	recall /= float64(numClasses)

	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	accuracy := 0.0
	if len(holdout) > 0 {
		accuracy = float64(correct) / float64(len(holdout))
	}

	return EvalMetrics{Accuracy: accuracy, Precision: precision, Recall: recall, F1: f1}
}

// featureMeans 计算逐特征均值,作为漂移检测的基准分布
func featureMeans(samples []labeledSample) []float64 {
	means := make([]float64, FeatureDimension)
	if len(samples) == 0 {
		return means
	}
	for _, s := range samples {
		for j, x := range s.features {
			means[j] += x
		}
	}
	for j := range means {
		means[j] /= float64(len(samples))
	}
	return means
}

// argmaxDecision 取概率最大的决策,遍历固定类别顺序保证确定性
func argmaxDecision(probs map[Decision]float64) Decision {
	best := DecisionMonitor
	bestP := math.Inf(-1)
	for _, d := range DecisionClasses {
		if p, ok := probs[d]; ok && p > bestP {
			best = d
			bestP = p
		}
	}
	return best
}
