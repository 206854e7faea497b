package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opsinsight/opsinsight-go/internal/client"
	"github.com/opsinsight/opsinsight-go/internal/config"
	"github.com/opsinsight/opsinsight-go/internal/handler"
	"github.com/opsinsight/opsinsight-go/internal/middleware"
	"github.com/opsinsight/opsinsight-go/internal/service"
	"github.com/opsinsight/opsinsight-go/pkg/logger"
	redispkg "github.com/opsinsight/opsinsight-go/pkg/redis"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 加载配置
	cfg, err := config.LoadConfig("configs/opsinsight.yaml")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 初始化日志
	zapLogger, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("opsinsight 服务启动中...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 派发状态存储
	var store service.StatusStore = service.NewMemoryStatusStore(cfg.Dispatch.StatusTTL)
	if cfg.Redis.Enabled {
		rdb, err := redispkg.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			zapLogger.Fatal("初始化 Redis 失败", zap.Error(err))
		}
		defer rdb.Close()
		store = service.NewRedisStatusStore(rdb, cfg.Dispatch.StatusTTL)
		zapLogger.Info("派发状态使用 Redis 存储", zap.String("host", cfg.Redis.Host))
	}

	// 外部服务客户端
	completer := client.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout, zapLogger)
	emailSender, err := newEmailSender(ctx, cfg.Email, zapLogger)
	if err != nil {
		zapLogger.Fatal("初始化邮件发送失败", zap.Error(err))
	}
	graph := client.NewGraphClient(cfg.Teams, cfg.Dispatch.Timeout, zapLogger)

	// 初始化服务
	guard := service.NewGuard(cfg.Email, cfg.Teams)
	relay := service.NewRelayService(completer, guard, cfg.OpenAI.SystemPrompt, cfg.Email.Subject, zapLogger)
	dispatcher := service.NewDispatcher(emailSender, graph, store, cfg.Dispatch.Timeout, zapLogger)
	sessionService := service.NewSessionService(zapLogger)
	go sessionService.Run(ctx)

	// 初始化处理器
	relayHandler := handler.NewRelayHandler(relay, dispatcher, zapLogger)
	apiHandler := handler.NewAPIHandler(cfg.Server.Name, sessionService, store, zapLogger)
	wsHandler := handler.NewWebSocketHandler(sessionService, relay, dispatcher, zapLogger)

	// 初始化路由
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(zapLogger), middleware.CORS())

	r.POST("/", relayHandler.Chat)
	r.POST("/uploadfile/", relayHandler.Upload)
	r.GET("/ws", wsHandler.HandleWebSocket)
	r.GET("/api/health", apiHandler.Health)
	r.GET("/api/dispatch/:id", apiHandler.DispatchStatus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		zapLogger.Info("opsinsight 服务启动成功", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("收到退出信号，开始关闭")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP 服务关闭失败", zap.Error(err))
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		zapLogger.Warn("仍有派发任务未完成", zap.Error(err))
	}

	zapLogger.Info("opsinsight 服务已退出")
}

// newEmailSender 按 email.provider 选择发送通道
func newEmailSender(ctx context.Context, cfg config.EmailConfig, logger *zap.Logger) (service.EmailSender, error) {
	switch cfg.Provider {
	case config.EmailProviderSES:
		return client.NewSESSender(ctx, cfg.SES.Region, cfg.SES.From, logger)
	case config.EmailProviderSMTP:
		return client.NewSMTPSender(cfg.SMTP, logger), nil
	default:
		return nil, fmt.Errorf("未知的邮件通道: %s", cfg.Provider)
	}
}
