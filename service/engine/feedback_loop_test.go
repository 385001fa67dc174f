/*
 * @module service/engine/feedback_loop_test
 * @description 反馈闭环单元测试:未知请求拒绝、纠正触发单次在线更新与部分成功语义
 * @architecture 测试层
 * @stateFlow 预测记录写入 -> 反馈提交 -> 学习/持久化断言
 * @rules 未知request_id返回false;纠正标签与原决策相同时不触发学习;任一存储成功即视为成功
 * @dependencies testing, stretchr/testify, testutil
 */

package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/gorm"
	"governance-engine-service/service/models"
	"governance-engine-service/service/predlog"
	"governance-engine-service/testutil"
)

type feedbackFixture struct {
	loop    *FeedbackLoop
	store   *predlog.MemoryStore
	learner *stubHandle
}

func newFeedbackFixture(t *testing.T, db *gorm.DB) *feedbackFixture {
	t.Helper()

	registry := NewModelRegistry(nil)
	learner := &stubHandle{probs: allowProbs()}
	versionID := registerStub(t, registry, ModelTypeOnlineLearner, learner, nil)
	require.NoError(t, registry.Promote(versionID))

	store := predlog.NewMemoryStore(100)
	loop := NewFeedbackLoop(registry, store, db, newTestConfig(t), newEngineStats())
	return &feedbackFixture{loop: loop, store: store, learner: learner}
}

// logPredictionFor 写入一条已记录的预测,供反馈引用
func (f *feedbackFixture) logPredictionFor(t *testing.T, requestID string, decision Decision) GovernanceResponse {
	t.Helper()
	resp := GovernanceResponse{
		RequestID:    requestID,
		Decision:     decision,
		Confidence:   0.8,
		ModelVersion: "v-test",
		Features:     benignFeatures(),
		Timestamp:    time.Now(),
	}
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	require.NoError(t, f.store.Put(context.Background(), predictionKey(requestID), data, time.Hour))
	return resp
}

func decisionPtr(d Decision) *Decision {
	return &d
}

// TestSubmitUnknownRequestID 测试引用未知预测返回false且不panic
func TestSubmitUnknownRequestID(t *testing.T) {
	fixture := newFeedbackFixture(t, nil)

	ok := fixture.loop.Submit(context.Background(), FeedbackSubmission{
		RequestID:       "never-logged",
		FeedbackType:    FeedbackIncorrect,
		CorrectDecision: decisionPtr(DecisionDeny),
	})

	assert.False(t, ok)
	assert.Equal(t, 0, fixture.learner.learnCount())
}

// TestSubmitCorrectionTriggersOnlineUpdate 测试纠正标签不同触发恰好一次增量更新
func TestSubmitCorrectionTriggersOnlineUpdate(t *testing.T) {
	tdb := testutil.NewTestDB()
	fixture := newFeedbackFixture(t, tdb.DB)
	fixture.logPredictionFor(t, "req-1", DecisionMonitor)

	ok := fixture.loop.Submit(context.Background(), FeedbackSubmission{
		RequestID:       "req-1",
		UserID:          "reviewer-1",
		FeedbackType:    FeedbackIncorrect,
		CorrectDecision: decisionPtr(DecisionDeny),
		Rationale:       "内容明显违规",
		Severity:        "high",
	})

	require.True(t, ok)
	assert.Equal(t, 1, fixture.learner.learnCount())
	assert.Equal(t, DecisionDeny, fixture.learner.learnedLabel())
	assert.Equal(t, int64(1), fixture.learner.SamplesSeen())

	// 长期记录携带学习标记
	var record models.FeedbackRecord
	require.NoError(t, tdb.DB.First(&record, "request_id = ?", "req-1").Error)
	assert.Equal(t, string(FeedbackIncorrect), record.FeedbackType)
	assert.Equal(t, string(DecisionMonitor), record.OriginalDecision)
	require.NotNil(t, record.CorrectDecision)
	assert.Equal(t, string(DecisionDeny), *record.CorrectDecision)
	assert.True(t, record.LearnerUpdated)

	// 学习器状态暴露最近更新时间
	status := fixture.loop.LearnerStatus()
	activity, ok := status[ModelTypeOnlineLearner]
	require.True(t, ok)
	assert.Equal(t, int64(1), activity.SamplesSeen)
	assert.NotNil(t, activity.LastUpdate)
}

// TestSubmitMatchingDecisionSkipsLearning 测试纠正标签与原决策相同不触发学习
func TestSubmitMatchingDecisionSkipsLearning(t *testing.T) {
	fixture := newFeedbackFixture(t, nil)
	fixture.logPredictionFor(t, "req-2", DecisionMonitor)

	ok := fixture.loop.Submit(context.Background(), FeedbackSubmission{
		RequestID:       "req-2",
		FeedbackType:    FeedbackCorrect,
		CorrectDecision: decisionPtr(DecisionMonitor),
	})

	assert.True(t, ok)
	assert.Equal(t, 0, fixture.learner.learnCount())
}

// TestSubmitWithoutCorrection 测试无纠正标签的反馈只记录不学习
func TestSubmitWithoutCorrection(t *testing.T) {
	fixture := newFeedbackFixture(t, nil)
	fixture.logPredictionFor(t, "req-3", DecisionAllow)

	ok := fixture.loop.Submit(context.Background(), FeedbackSubmission{
		RequestID:    "req-3",
		FeedbackType: FeedbackCorrect,
	})

	assert.True(t, ok)
	assert.Equal(t, 0, fixture.learner.learnCount())
}

// TestSubmitPartialStorageSuccess 测试单个存储目标成功即视为成功
func TestSubmitPartialStorageSuccess(t *testing.T) {
	// db为nil时长期库不可用,仅缓存成功
	fixture := newFeedbackFixture(t, nil)
	fixture.logPredictionFor(t, "req-4", DecisionAllow)

	ok := fixture.loop.Submit(context.Background(), FeedbackSubmission{
		RequestID:    "req-4",
		FeedbackType: FeedbackEscalated,
	})
	assert.True(t, ok)

	// 缓存中可查到反馈
	data, found, err := fixture.store.Get(context.Background(), feedbackKey("req-4"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.NotEmpty(t, data)
}

// TestSubmitInvalidCorrectionIgnored 测试非法纠正标签不触发学习但反馈仍受理
func TestSubmitInvalidCorrectionIgnored(t *testing.T) {
	fixture := newFeedbackFixture(t, nil)
	fixture.logPredictionFor(t, "req-5", DecisionAllow)

	bad := Decision("block")
	ok := fixture.loop.Submit(context.Background(), FeedbackSubmission{
		RequestID:       "req-5",
		FeedbackType:    FeedbackOverridden,
		CorrectDecision: &bad,
	})

	assert.True(t, ok)
	assert.Equal(t, 0, fixture.learner.learnCount())
}
