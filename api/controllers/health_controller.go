/*
 * @module api/controllers/health_controller
 * @description 健康检查控制器,提供存活与就绪探针
 * @architecture 分层架构 - 控制器层
 * @stateFlow HTTP请求处理流程
 * @rules 就绪探针要求决策引擎已完成冷启动且存在至少一个活动模型版本
 * @dependencies net/http, github.com/go-chi/render
 * @refs api/routes.go
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/render"

	"governance-engine-service/service/engine"
)

// HealthController 健康检查控制器
type HealthController struct {
	engine *engine.DecisionEngine
}

// NewHealthController 创建健康检查控制器实例
func NewHealthController(eng *engine.DecisionEngine) *HealthController {
	return &HealthController{engine: eng}
}

// Health 存活探针
// @Summary 存活检查
// @Tags 健康检查
// @Produce json
// @Success 200 {object} APIResponse "服务存活"
// @Router /health [get]
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, APIResponse{Status: 0, Msg: "ok"})
}

// Ready 就绪探针
// @Summary 就绪检查
// @Description 检查决策引擎是否已有活动模型版本可服务流量
// @Tags 健康检查
// @Produce json
// @Success 200 {object} APIResponse "服务就绪"
// @Failure 503 {object} APIResponse "引擎未就绪"
// @Router /ready [get]
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	if len(c.engine.Registry().ActiveVersions()) == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, APIResponse{
			Status: http.StatusServiceUnavailable,
			Msg:    "决策引擎尚无活动模型版本",
		})
		return
	}
	render.JSON(w, r, APIResponse{Status: 0, Msg: "ready"})
}
