/*
 * @module api/routes
 * @description API路由配置模块,负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范,统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs api/controllers
 */

package api

import (
	"governance-engine-service/api/controllers"
	"governance-engine-service/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController(service.GlobalEngine)
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// 决策引擎
	r.Route("/governance", func(r chi.Router) {
		engineController := controllers.NewEngineController(service.GlobalEngine)
		feedbackController := controllers.NewFeedbackController(service.GlobalEngine)
		driftController := controllers.NewDriftController(service.GlobalEngine)

		// 治理决策
		r.Post("/predict", engineController.Predict)

		// 反馈提交
		r.Post("/feedback", feedbackController.SubmitFeedback)

		// 引擎状态与模型指标
		r.Get("/status", engineController.Status)
		r.Get("/models/metrics", engineController.ModelMetrics)

		// A/B测试管理
		r.Get("/ab-tests", engineController.ABTests)
		r.Post("/ab-tests", engineController.CreateABTest)
		r.Post("/ab-tests/{testID}/complete", engineController.CompleteABTest)

		// 在线学习状态
		r.Get("/online-learning/status", engineController.OnlineLearningStatus)

		// 漂移监控
		r.Post("/drift/check", driftController.DriftCheck)
		r.Get("/drift/history", driftController.DriftHistory)
	})
}
