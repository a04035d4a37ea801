package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weisyn/rollup-prover/internal/api/http/handlers"
	"github.com/weisyn/rollup-prover/internal/api/http/middleware"
	apiconfig "github.com/weisyn/rollup-prover/internal/config/api"
	"github.com/weisyn/rollup-prover/internal/core/infrastructure/metrics"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
)

// Dependencies HTTP 服务器依赖
type Dependencies struct {
	Options  *apiconfig.APIOptions
	Logger   log.Logger
	Clock    clock.Clock
	Version  string
	Proofs   handlers.ProofService
	Store    handlers.StorePinger
	Registry handlers.RegistryStatus
	Executor handlers.StatsProvider // 可选
	Memory   *metrics.MemoryDoctor  // 可选
	Gatherer prometheus.Gatherer    // 为nil时不暴露 /metrics
	Metrics  prometheus.Registerer  // 为nil时不采集请求指标
}

// Server HTTP服务器
// 负责证明提交/查询、健康检查与指标导出
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	options    *apiconfig.APIOptions
	logger     log.Logger
	listener   net.Listener
	done       chan struct{}
}

// NewServer 创建HTTP服务器并注册全部路由
func NewServer(deps Dependencies) (*Server, error) {
	if deps.Options == nil || deps.Logger == nil || deps.Clock == nil {
		return nil, fmt.Errorf("http server: options, logger and clock are required")
	}
	if deps.Proofs == nil {
		return nil, fmt.Errorf("http server: proof service is required")
	}

	router := gin.New()
	zl := deps.Logger.GetZapLogger()

	router.Use(
		gin.Recovery(),
		middleware.NewRequestID().Middleware(),
		middleware.NewLogger(deps.Logger, "/health/live", "/health/ready", "/metrics").Middleware(),
	)
	if deps.Metrics != nil && deps.Options.EnableMetrics {
		router.Use(middleware.NewMetrics(deps.Metrics).Middleware())
	}
	router.Use(
		middleware.NewRateLimit(zl, deps.Clock, deps.Options.ReadRateLimit, deps.Options.WriteRateLimit).Middleware(),
		middleware.BodyLimit(deps.Options.MaxRequestBytes),
		middleware.ErrorHandler(zl),
	)

	s := &Server{
		router:  router,
		options: deps.Options,
		logger:  deps.Logger,
	}
	s.setupRoutes(deps)
	return s, nil
}

// setupRoutes 注册路由
func (s *Server) setupRoutes(deps Dependencies) {
	zl := deps.Logger.GetZapLogger()

	handlers.NewProofHandler(zl, deps.Proofs, deps.Options.MaxBatchIDs).RegisterRoutes(s.router)
	handlers.NewHealthHandler(zl, deps.Clock, deps.Version, deps.Store, deps.Registry, deps.Executor, deps.Memory).
		RegisterRoutes(s.router)
	if deps.Memory != nil {
		handlers.NewMemoryHandler(zl, deps.Memory).RegisterRoutes(s.router)
	}

	if deps.Gatherer != nil && deps.Options.EnableMetrics {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{
			ErrorLog: promLogger{s.logger},
		})))
	}
}

// Handler 返回路由（测试使用）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr 实际监听地址；未启动时为空
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start 启动HTTP服务器
// 端口在返回前已完成监听，被占用时直接返回错误
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.options.Host, s.options.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.options.ReadTimeout,
		WriteTimeout: s.options.WriteTimeout,
		IdleTimeout:  s.options.IdleTimeout,
	}
	s.done = make(chan struct{})
	s.startGoroutine()

	s.logger.Infof("✅ HTTP服务器启动成功，监听地址: %s", listener.Addr())
	s.logger.Infof("🩺 健康检查: http://%s/health", listener.Addr())
	return nil
}

// Stop 停止HTTP服务器
// 等待活跃请求处理完成，超过 ShutdownTimeout 后返回错误
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("正在关闭HTTP服务器")

	timeout := s.options.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	stopCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(stopCtx); err != nil {
		s.logger.Errorf("HTTP服务器关闭出错: %v", err)
		return err
	}
	<-s.done
	s.logger.Info("HTTP服务器已关闭")
	return nil
}

func (s *Server) startGoroutine() {
	go func() {
		defer close(s.done)
		// 正常关闭时返回 http.ErrServerClosed，不视为错误
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("❌ HTTP服务器运行失败: %v", err)
		}
	}()
}

// promLogger 将 promhttp 的错误日志接入统一日志
type promLogger struct {
	logger log.Logger
}

func (l promLogger) Println(v ...interface{}) {
	l.logger.Error(fmt.Sprint(v...))
}
