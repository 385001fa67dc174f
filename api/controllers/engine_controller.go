/*
 * @module api/controllers/engine_controller
 * @description 决策引擎控制器,提供预测、状态查询、模型指标、A/B测试与在线学习状态API
 * @architecture 分层架构 - 控制器层,对引擎逻辑操作1:1适配
 * @stateFlow HTTP请求处理流程
 * @rules 输入校验在控制器边界完成;引擎内部故障已降级,预测接口永不返回5xx
 * @dependencies governance-engine-service/service/engine, github.com/go-chi/render
 * @refs api/routes.go, service/engine/engine.go
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"governance-engine-service/service/engine"
)

// EngineController 决策引擎控制器
type EngineController struct {
	engine *engine.DecisionEngine
}

// NewEngineController 创建决策引擎控制器实例
func NewEngineController(eng *engine.DecisionEngine) *EngineController {
	return &EngineController{engine: eng}
}

// PredictRequest 预测请求体
type PredictRequest struct {
	Content   string                 `json:"content"`
	Context   map[string]interface{} `json:"context,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	UseABTest bool                   `json:"use_ab_test,omitempty"`
}

// Predict 执行治理决策
// @Summary 内容治理决策
// @Description 对提交内容执行实时治理决策,返回决策、置信度与解释
// @Tags 决策引擎
// @Accept json
// @Produce json
// @Param request body PredictRequest true "预测请求"
// @Success 200 {object} APIResponse{data=engine.GovernanceResponse} "决策成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Router /governance/predict [post]
func (c *EngineController) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}
	if req.Content == "" {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "content不能为空",
		})
		return
	}

	resp := c.engine.Predict(r.Context(), engine.PredictInput{
		Content:   req.Content,
		Context:   req.Context,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		UseABTest: req.UseABTest,
	})

	render.JSON(w, r, APIResponse{Status: 0, Msg: "决策成功", Data: resp})
}

// Status 引擎状态
// @Summary 引擎运行状态
// @Description 各模型类型的活动版本、进行中的A/B测试与聚合指标
// @Tags 决策引擎
// @Produce json
// @Success 200 {object} APIResponse "获取成功"
// @Router /governance/status [get]
func (c *EngineController) Status(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, APIResponse{Status: 0, Msg: "获取成功", Data: c.engine.Status()})
}

// ModelMetrics 模型指标
// @Summary 各版本评估指标
// @Description 每个模型版本的accuracy/precision/recall/F1与预测计数
// @Tags 决策引擎
// @Produce json
// @Success 200 {object} APIResponse{data=[]engine.VersionMetrics} "获取成功"
// @Router /governance/models/metrics [get]
func (c *EngineController) ModelMetrics(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, APIResponse{Status: 0, Msg: "获取成功", Data: c.engine.ModelMetrics()})
}

// CreateABTestRequest A/B测试创建请求体
type CreateABTestRequest struct {
	ChampionVersionID  string  `json:"champion_version_id"`
	CandidateVersionID string  `json:"candidate_version_id"`
	TrafficSplit       float64 `json:"traffic_split"`
}

// ABTests 进行中的A/B测试
// @Summary A/B测试列表
// @Tags 决策引擎
// @Produce json
// @Success 200 {object} APIResponse "获取成功"
// @Router /governance/ab-tests [get]
func (c *EngineController) ABTests(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, APIResponse{Status: 0, Msg: "获取成功", Data: c.engine.Router().ActiveTests()})
}

// CreateABTest 创建A/B测试
// @Summary 创建A/B测试
// @Description 在冠军与候选版本间按traffic_split分流,切分比例创建后不可变
// @Tags 决策引擎
// @Accept json
// @Produce json
// @Param request body CreateABTestRequest true "A/B测试配置"
// @Success 201 {object} APIResponse "创建成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Router /governance/ab-tests [post]
func (c *EngineController) CreateABTest(w http.ResponseWriter, r *http.Request) {
	var req CreateABTestRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	test, err := c.engine.Router().CreateTest(req.ChampionVersionID, req.CandidateVersionID, req.TrafficSplit)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    err.Error(),
		})
		return
	}

	render.JSON(w, r, APIResponse{Status: http.StatusCreated, Msg: "创建A/B测试成功", Data: test})
}

// CompleteABTestRequest A/B测试结束请求体
type CompleteABTestRequest struct {
	Status string `json:"status"` // completed/cancelled
}

// CompleteABTest 结束A/B测试
// @Summary 结束A/B测试
// @Description 以completed或cancelled状态结束进行中的A/B测试,路由即刻回到活动版本
// @Tags 决策引擎
// @Accept json
// @Produce json
// @Param testID path string true "测试ID"
// @Param request body CompleteABTestRequest true "结束状态"
// @Success 200 {object} APIResponse "结束成功"
// @Failure 400 {object} APIResponse "请求参数错误或测试不存在"
// @Router /governance/ab-tests/{testID}/complete [post]
func (c *EngineController) CompleteABTest(w http.ResponseWriter, r *http.Request) {
	testID := chi.URLParam(r, "testID")

	var req CompleteABTestRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	if err := c.engine.Router().CompleteTest(testID, req.Status); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    err.Error(),
		})
		return
	}

	render.JSON(w, r, APIResponse{Status: 0, Msg: "A/B测试已结束"})
}

// OnlineLearningStatus 在线学习状态
// @Summary 在线学习器活动状态
// @Tags 决策引擎
// @Produce json
// @Success 200 {object} APIResponse "获取成功"
// @Router /governance/online-learning/status [get]
func (c *EngineController) OnlineLearningStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, APIResponse{Status: 0, Msg: "获取成功", Data: c.engine.OnlineLearningStatus()})
}
