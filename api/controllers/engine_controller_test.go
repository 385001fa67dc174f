/*
 * @module api/controllers/engine_controller_test
 * @description 决策引擎与反馈控制器单元测试
 * @architecture 测试层
 * @stateFlow 测试准备 -> 请求构建 -> 响应验证
 * @rules 输入校验错误以结构化envelope返回;预测接口对引擎内部故障不返回5xx
 * @dependencies testing, net/http/httptest, stretchr/testify
 */

package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"governance-engine-service/service/audit"
	"governance-engine-service/service/config"
	"governance-engine-service/service/engine"
	"governance-engine-service/service/predlog"
	"governance-engine-service/testutil"
)

func newControllerEngine(t *testing.T) *engine.DecisionEngine {
	t.Helper()
	cfg, err := config.NewManager("")
	require.NoError(t, err)

	eng := engine.NewDecisionEngine(testutil.NewTestDB().DB, predlog.NewMemoryStore(100),
		&audit.Publisher{}, cfg)
	eng.Bootstrap()
	return eng
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) APIResponse {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response APIResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

// TestPredictEndpoint 测试预测接口正常路径
func TestPredictEndpoint(t *testing.T) {
	controller := NewEngineController(newControllerEngine(t))

	response := postJSON(t, controller.Predict, "/governance/predict", PredictRequest{
		Content: "please review this document for me",
		Context: map[string]interface{}{"risk_level": "low"},
	})

	assert.Equal(t, 0, response.Status)
	require.NotNil(t, response.Data)

	data, ok := response.Data.(map[string]interface{})
	require.True(t, ok, "响应数据应该是map类型")

	decision, ok := data["decision"].(string)
	require.True(t, ok)
	assert.True(t, engine.Decision(decision).IsValid(), "返回未知决策: %s", decision)

	confidence, ok := data["confidence"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, confidence, 0.0)
	assert.LessOrEqual(t, confidence, 1.0)

	assert.NotEmpty(t, data["request_id"])
	assert.NotEmpty(t, data["reasoning"])
}

// TestPredictEndpointValidation 测试预测接口输入校验
func TestPredictEndpointValidation(t *testing.T) {
	controller := NewEngineController(newControllerEngine(t))

	// content为空
	response := postJSON(t, controller.Predict, "/governance/predict", PredictRequest{})
	assert.Equal(t, http.StatusBadRequest, response.Status)

	// 请求体非法JSON
	req := httptest.NewRequest(http.MethodPost, "/governance/predict",
		bytes.NewReader([]byte("{not-json")))
	w := httptest.NewRecorder()
	controller.Predict(w, req)

	var bad APIResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&bad))
	assert.Equal(t, http.StatusBadRequest, bad.Status)
}

// TestEngineStatusEndpoint 测试引擎状态接口
func TestEngineStatusEndpoint(t *testing.T) {
	controller := NewEngineController(newControllerEngine(t))

	req := httptest.NewRequest(http.MethodGet, "/governance/status", nil)
	w := httptest.NewRecorder()
	controller.Status(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response APIResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, 0, response.Status)

	data, ok := response.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, data, "active_versions")
	assert.Contains(t, data, "ab_tests")
	assert.Contains(t, data, "metrics")

	active, ok := data["active_versions"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, active, 2, "冷启动后应有两个活动版本")
}

// TestModelMetricsEndpoint 测试模型指标接口
func TestModelMetricsEndpoint(t *testing.T) {
	controller := NewEngineController(newControllerEngine(t))

	req := httptest.NewRequest(http.MethodGet, "/governance/models/metrics", nil)
	w := httptest.NewRecorder()
	controller.ModelMetrics(w, req)

	var response APIResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, 0, response.Status)

	versions, ok := response.Data.([]interface{})
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(versions), 2)
}

// TestCreateABTestEndpointValidation 测试A/B测试创建校验
func TestCreateABTestEndpointValidation(t *testing.T) {
	controller := NewEngineController(newControllerEngine(t))

	response := postJSON(t, controller.CreateABTest, "/governance/ab-tests", CreateABTestRequest{
		ChampionVersionID:  "no-such-version",
		CandidateVersionID: "another-missing",
		TrafficSplit:       1.5,
	})
	assert.Equal(t, http.StatusBadRequest, response.Status)
}

// TestCompleteABTestEndpoint 测试A/B测试结束接口校验
func TestCompleteABTestEndpoint(t *testing.T) {
	controller := NewEngineController(newControllerEngine(t))

	router := chi.NewRouter()
	router.Post("/governance/ab-tests/{testID}/complete", controller.CompleteABTest)

	payload, err := json.Marshal(CompleteABTestRequest{Status: "completed"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost,
		"/governance/ab-tests/no-such-test/complete", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response APIResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, http.StatusBadRequest, response.Status)
}

// TestSubmitFeedbackEndpoint 测试反馈接口校验与未知请求处理
func TestSubmitFeedbackEndpoint(t *testing.T) {
	controller := NewFeedbackController(newControllerEngine(t))

	// request_id为空
	response := postJSON(t, controller.SubmitFeedback, "/governance/feedback", FeedbackRequest{
		FeedbackType: "correct",
	})
	assert.Equal(t, http.StatusBadRequest, response.Status)

	// 未知反馈类型
	response = postJSON(t, controller.SubmitFeedback, "/governance/feedback", FeedbackRequest{
		RequestID:    "req-1",
		FeedbackType: "thumbs_up",
	})
	assert.Equal(t, http.StatusBadRequest, response.Status)

	// 非法纠正决策
	response = postJSON(t, controller.SubmitFeedback, "/governance/feedback", FeedbackRequest{
		RequestID:       "req-1",
		FeedbackType:    "incorrect",
		CorrectDecision: "block",
	})
	assert.Equal(t, http.StatusBadRequest, response.Status)

	// 引用不存在的预测
	response = postJSON(t, controller.SubmitFeedback, "/governance/feedback", FeedbackRequest{
		RequestID:    "never-logged",
		FeedbackType: "incorrect",
	})
	assert.Equal(t, http.StatusNotFound, response.Status)
}
