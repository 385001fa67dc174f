/*
 * @module api/controllers/feedback_controller
 * @description 反馈控制器,接收对历史决策的人工反馈
 * @architecture 分层架构 - 控制器层
 * @stateFlow HTTP请求处理流程
 * @rules 引用未知request_id返回结构化失败而非异常;反馈类型在边界校验
 * @dependencies governance-engine-service/service/engine, github.com/go-chi/render
 * @refs api/routes.go, service/engine/feedback_loop.go
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/render"

	"governance-engine-service/service/engine"
)

// FeedbackController 反馈控制器
type FeedbackController struct {
	engine *engine.DecisionEngine
}

// NewFeedbackController 创建反馈控制器实例
func NewFeedbackController(eng *engine.DecisionEngine) *FeedbackController {
	return &FeedbackController{engine: eng}
}

// FeedbackRequest 反馈请求体
type FeedbackRequest struct {
	RequestID       string                 `json:"request_id"`
	UserID          string                 `json:"user_id,omitempty"`
	FeedbackType    string                 `json:"feedback_type"`
	CorrectDecision string                 `json:"correct_decision,omitempty"`
	Rationale       string                 `json:"rationale,omitempty"`
	Severity        string                 `json:"severity,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// SubmitFeedback 提交决策反馈
// @Summary 提交决策反馈
// @Description 对已记录的决策提交反馈,纠正标签与原决策不同时触发在线学习更新
// @Tags 反馈
// @Accept json
// @Produce json
// @Param request body FeedbackRequest true "反馈内容"
// @Success 200 {object} APIResponse "反馈已受理"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 404 {object} APIResponse "引用的决策不存在或已过期"
// @Router /governance/feedback [post]
func (c *FeedbackController) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	if req.RequestID == "" {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "request_id不能为空",
		})
		return
	}

	ft := engine.FeedbackType(req.FeedbackType)
	if !ft.IsValid() {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "无效的反馈类型",
		})
		return
	}

	fb := engine.FeedbackSubmission{
		RequestID:    req.RequestID,
		UserID:       req.UserID,
		FeedbackType: ft,
		Rationale:    req.Rationale,
		Severity:     req.Severity,
		Metadata:     req.Metadata,
	}
	if req.CorrectDecision != "" {
		cd := engine.Decision(req.CorrectDecision)
		if !cd.IsValid() {
			render.JSON(w, r, APIResponse{
				Status: http.StatusBadRequest,
				Msg:    "无效的纠正决策",
			})
			return
		}
		fb.CorrectDecision = &cd
	}

	if ok := c.engine.SubmitFeedback(r.Context(), fb); !ok {
		render.JSON(w, r, APIResponse{
			Status: http.StatusNotFound,
			Msg:    "反馈处理失败: 引用的决策不存在或存储不可用",
		})
		return
	}

	render.JSON(w, r, APIResponse{Status: 0, Msg: "反馈已受理"})
}
