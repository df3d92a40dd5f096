package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/app"
	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/config"
	"github.com/eidos-exchange/eidos/eidos-selftrade/pkg/logger"
)

func main() {
	// 解析命令行参数
	configPath := flag.String("config", "config/config.yaml", "config file path")
	envFile := flag.String("env", ".env", "dotenv file path")
	flag.Parse()

	// .env 可选, 不覆盖已有环境变量
	envErr := godotenv.Load(*envFile)

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 初始化日志
	if err := logger.Init(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: cfg.Service.Name,
		Environment: cfg.Service.Env,
	}); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	if envErr != nil && !os.IsNotExist(envErr) {
		logger.Warn("failed to load env file", "path", *envFile, "error", envErr)
	}

	logger.Info("starting service",
		"service", cfg.Service.Name,
		"env", cfg.Service.Env,
		"http_port", cfg.Service.HTTPPort,
		"grpc_port", cfg.Service.GRPCPort,
		"self_trade_enabled", cfg.SelfTrade.Enabled,
		"time_window_ms", cfg.SelfTrade.TimeWindowMs)

	// 创建应用实例
	application := app.New(cfg)

	// 启动应用
	if err := application.Run(); err != nil {
		logger.Fatal("failed to start application", "error", err)
	}

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down service...")

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown gracefully", "error", err)
	}

	logger.Info("service stopped")
}
