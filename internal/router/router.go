// Package router 提供路由注册
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/handler"
	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/metrics"
	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/middleware"
)

// New 创建 gin 引擎并注册中间件与路由
func New(healthHandler *handler.HealthHandler, riskHandler *handler.RiskHandler) *gin.Engine {
	handler.RegisterValidation()

	engine := gin.New()

	// 中间件链: Recovery → Trace → Logger → Metrics
	engine.Use(
		middleware.Recovery(),
		middleware.Trace(),
		middleware.Logger(),
		middleware.Metrics(),
	)

	// 健康检查
	engine.GET("/health/live", healthHandler.Live)
	engine.GET("/health/ready", healthHandler.Ready)

	// Prometheus 监控端点
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	risk := engine.Group("/api/risk")
	{
		risk.POST("/check", riskHandler.Check)
		risk.GET("/health", riskHandler.Health)
		risk.GET("/audit-logs", riskHandler.ListAuditLogs)
		risk.GET("/audit-logs/stats", riskHandler.AuditStats)
	}

	return engine
}
