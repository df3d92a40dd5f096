// Package app 提供自成交风控服务的应用入口
//
// ========================================
// 自成交风控服务对接总览
// ========================================
//
// ## 服务信息
// - 服务名: risk-service
// - HTTP 端口: 9002 (RISK_SERVER_PORT)
// - gRPC 端口: 50056 (仅健康检查)
//
// ## 可选依赖
// - PostgreSQL: 审计日志 (audit.enabled)
// - Kafka: 自成交拒绝事件 risk-alerts (kafka.enabled)
// - Nacos: 服务注册 (nacos.enabled)
//
// 可选依赖不可用时服务降级运行, 判定结果不受影响。
//
// ========================================
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/config"
	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/discovery"
	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/handler"
	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/kafka"
	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/repository"
	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/router"
	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/rules"
	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/service"
	"github.com/eidos-exchange/eidos/eidos-selftrade/pkg/logger"
)

// App 应用实例
type App struct {
	cfg *config.Config

	// 基础设施
	db            *gorm.DB
	kafkaProducer *kafka.Producer
	registrar     *discovery.Registrar

	// 服务
	riskSvc   *service.RiskService
	auditRepo *repository.AuditLogRepository

	// 服务端
	httpServer    *http.Server
	httpListener  net.Listener
	grpcServer    *grpc.Server
	healthServer  *health.Server
	healthHandler *handler.HealthHandler
}

// New 创建应用实例
func New(cfg *config.Config) *App {
	return &App{cfg: cfg}
}

// Run 启动应用
func (a *App) Run() error {
	// 1. 审计数据库
	if a.cfg.Audit.Enabled {
		if err := a.initDB(); err != nil {
			return fmt.Errorf("failed to init database: %w", err)
		}
	}

	// 2. Kafka 生产者
	if a.cfg.Kafka.Enabled {
		if err := a.initKafka(); err != nil {
			logger.Warn("failed to init kafka, running without kafka", "error", err)
		}
	}

	// 3. 服务层
	a.initServices()

	// 4. gRPC 健康检查
	if err := a.startGRPC(); err != nil {
		return fmt.Errorf("failed to start gRPC: %w", err)
	}

	// 5. HTTP 服务
	if err := a.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 6. 服务注册
	if a.cfg.Nacos.Enabled {
		if err := a.initDiscovery(); err != nil {
			logger.Warn("failed to register to nacos", "error", err)
		}
	}

	a.healthHandler.SetReady(true)
	return nil
}

// Shutdown 优雅关闭
func (a *App) Shutdown(ctx context.Context) error {
	logger.Info("shutting down risk service...")

	if a.healthHandler != nil {
		a.healthHandler.SetReady(false)
	}
	if a.healthServer != nil {
		a.healthServer.Shutdown()
	}

	// 关闭顺序: 服务注册注销 -> 服务端 -> 消息队列 -> 数据库
	if a.registrar != nil {
		if err := a.registrar.Deregister(); err != nil {
			logger.Warn("deregister from nacos failed", "error", err)
		}
	}

	var shutdownErr error
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			logger.Error("http server shutdown error", "error", err)
			shutdownErr = err
		}
	}

	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}

	if a.kafkaProducer != nil {
		if err := a.kafkaProducer.Close(); err != nil {
			logger.Warn("close kafka producer failed", "error", err)
		}
	}

	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	logger.Info("risk service stopped")
	return shutdownErr
}

// initDB 初始化审计数据库
func (a *App) initDB() error {
	pg := a.cfg.Postgres
	db, err := gorm.Open(postgres.Open(pg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(pg.MaxConnections)
	sqlDB.SetMaxIdleConns(pg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(pg.ConnMaxLifetimeMinutes) * time.Minute)

	a.db = db
	a.auditRepo = repository.NewAuditLogRepository(db)

	if a.cfg.Audit.AutoMigrate {
		if err := a.auditRepo.Migrate(); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		logger.Info("database migrated")
	}
	return nil
}

// initKafka 初始化 Kafka 生产者
func (a *App) initKafka() error {
	producer, err := kafka.NewProducer(a.cfg.Kafka.Brokers, a.cfg.Kafka.ClientID, a.cfg.Kafka.Topic)
	if err != nil {
		return err
	}
	a.kafkaProducer = producer
	logger.Info("kafka producer initialized",
		"brokers", a.cfg.Kafka.Brokers,
		"topic", producer.Topic())
	return nil
}

// initServices 初始化服务层
func (a *App) initServices() {
	a.riskSvc = service.NewRiskService(rules.SelfTradeConfig{
		Enabled:      a.cfg.SelfTrade.Enabled,
		TimeWindowMs: a.cfg.SelfTrade.TimeWindowMs,
	})

	if a.kafkaProducer != nil {
		a.riskSvc.SetOnDecision(a.kafkaProducer.DecisionCallback())
	}
	if a.auditRepo != nil {
		a.riskSvc.SetAuditRecorder(a.auditRepo)
	}
}

// startGRPC 启动 gRPC 健康检查服务, 端口为 0 时不启动
func (a *App) startGRPC() error {
	if a.cfg.Service.GRPCPort == 0 {
		return nil
	}

	addr := fmt.Sprintf(":%d", a.cfg.Service.GRPCPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	a.grpcServer = grpc.NewServer()
	a.healthServer = health.NewServer()
	grpc_health_v1.RegisterHealthServer(a.grpcServer, a.healthServer)
	a.healthServer.SetServingStatus(a.cfg.Service.Name, grpc_health_v1.HealthCheckResponse_SERVING)

	logger.Info("starting gRPC server",
		"addr", addr,
		"service", a.cfg.Service.Name)

	go func() {
		if err := a.grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err)
		}
	}()
	return nil
}

// startHTTPServer 启动 HTTP 服务
func (a *App) startHTTPServer() error {
	a.healthHandler = handler.NewHealthHandler()
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			a.healthHandler.AddDependency("postgres", sqlDB)
		}
	}

	// 未开启审计时传入 nil 接口
	var audit handler.AuditLogLister
	if a.auditRepo != nil {
		audit = a.auditRepo
	}
	riskHandler := handler.NewRiskHandler(a.riskSvc, audit, a.cfg.Service.Name, a.cfg.Service.HTTPPort)

	addr := fmt.Sprintf(":%d", a.cfg.Service.HTTPPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	a.httpListener = lis

	a.httpServer = &http.Server{
		Handler:           router.New(a.healthHandler, riskHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting HTTP server",
		"addr", lis.Addr().String(),
		"self_trade_enabled", a.riskSvc.SelfTradeEnabled(),
		"time_window_ms", a.riskSvc.TimeWindowMs())

	go func() {
		if err := a.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	return nil
}

// initDiscovery 注册 HTTP 端点到 Nacos
func (a *App) initDiscovery() error {
	registrar, err := discovery.NewRegistrar(&a.cfg.Nacos)
	if err != nil {
		return err
	}

	instance := discovery.NewInstance(a.cfg.Service.Name, a.cfg.Service.HTTPPort, a.cfg.Nacos.Group, map[string]string{
		"env":       a.cfg.Service.Env,
		"protocol":  "http",
		"grpc_port": fmt.Sprintf("%d", a.cfg.Service.GRPCPort),
	})
	if err := registrar.Register(instance); err != nil {
		return err
	}
	a.registrar = registrar
	return nil
}

// HTTPAddr 返回 HTTP 实际监听地址
func (a *App) HTTPAddr() string {
	if a.httpListener == nil {
		return ""
	}
	return a.httpListener.Addr().String()
}

// GetConfig 获取配置
func (a *App) GetConfig() *config.Config {
	return a.cfg
}
