/*
 * @module api/controllers/drift_controller
 * @description 漂移检测控制器,提供按需漂移检测与历史记录查询API
 * @architecture 分层架构 - 控制器层
 * @stateFlow HTTP请求处理流程
 * @rules "无数据"是正常结果而非错误,以no_data标记返回
 * @dependencies governance-engine-service/service/engine, github.com/go-chi/render
 * @refs api/routes.go, service/engine/drift_monitor.go
 */

package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"governance-engine-service/service/engine"
)

// DriftController 漂移检测控制器
type DriftController struct {
	engine *engine.DecisionEngine
}

// NewDriftController 创建漂移检测控制器实例
func NewDriftController(eng *engine.DecisionEngine) *DriftController {
	return &DriftController{engine: eng}
}

// DriftCheck 执行漂移检测
// @Summary 执行漂移检测
// @Description 对指定模型版本(缺省为活动基线)执行一次漂移检测
// @Tags 漂移监控
// @Produce json
// @Param model_version query string false "模型版本ID,缺省为活动基线版本"
// @Success 200 {object} APIResponse "检测完成或无数据"
// @Failure 500 {object} APIResponse "检测执行失败"
// @Router /governance/drift/check [post]
func (c *DriftController) DriftCheck(w http.ResponseWriter, r *http.Request) {
	versionID := r.URL.Query().Get("model_version")

	result, err := c.engine.DriftCheck(r.Context(), versionID)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "漂移检测执行失败",
		})
		return
	}
	if result == nil {
		render.JSON(w, r, APIResponse{
			Status: 0,
			Msg:    "数据不足,无法检测",
			Data:   map[string]interface{}{"no_data": true},
		})
		return
	}

	render.JSON(w, r, APIResponse{Status: 0, Msg: "检测完成", Data: result})
}

// DriftHistory 历史漂移记录
// @Summary 查询历史漂移检测记录
// @Tags 漂移监控
// @Produce json
// @Param model_version query string false "模型版本ID"
// @Param limit query int false "返回条数上限" default(50)
// @Success 200 {object} APIResponse "获取成功"
// @Failure 500 {object} APIResponse "查询失败"
// @Router /governance/drift/history [get]
func (c *DriftController) DriftHistory(w http.ResponseWriter, r *http.Request) {
	versionID := r.URL.Query().Get("model_version")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := c.engine.DriftHistory(versionID, limit)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "查询漂移历史失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{Status: 0, Msg: "获取成功", Data: records})
}
