package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FleetAssign/FleetAssign/internal/common/config"
	"github.com/FleetAssign/FleetAssign/internal/common/discovery"
	"github.com/FleetAssign/FleetAssign/internal/common/logger"
	"github.com/FleetAssign/FleetAssign/internal/common/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterFunc 用于挂载业务路由。
type RegisterFunc func(mux *http.ServeMux) error

type RunHTTPOptions struct {
	ShutdownTimeout time.Duration
	HealthPath      string
	EnableMetrics   bool
	RateLimiter     middleware.RateLimiter
}

func defaultRunHTTPOptions() RunHTTPOptions {
	return RunHTTPOptions{
		ShutdownTimeout: 5 * time.Second,
		HealthPath:      "/healthz",
		EnableMetrics:   true,
	}
}

// RunHTTPServer 统一的 HTTP 服务启动模板：
// - 初始化 listener + http server（含 middleware 链）
// - 注册 healthz / metrics
// - 注册业务路由
// - 注册到 Consul（HTTP check）
// - 优雅退出
func RunHTTPServer(cfg *config.Config, log logger.Logger, register RegisterFunc, opts ...func(*RunHTTPOptions)) error {
	if cfg == nil {
		return fmt.Errorf("cfg is nil")
	}
	if log == nil {
		return fmt.Errorf("log is nil")
	}

	o := defaultRunHTTPOptions()
	for _, apply := range opts {
		if apply != nil {
			apply(&o)
		}
	}

	// 初始化 Consul 客户端（失败不阻塞服务启动）
	consulClient, err := discovery.NewConsulClient(cfg.Consul.Host, cfg.Consul.Port)
	if err != nil {
		log.Warnf("failed to connect to Consul: %v", err)
		consulClient = nil
	}

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(o.HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if o.EnableMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}

	if register != nil {
		if err := register(mux); err != nil {
			return fmt.Errorf("failed to register http routes: %w", err)
		}
	}

	// 构建统一的 middleware 链（按顺序执行）
	chain := Chain(
		Recovery(log),               // 异常恢复，避免服务崩溃
		Tracing(cfg.Server.Name),    // 链路追踪
		AccessLog(log),              // 访问日志
		RateLimit(o.RateLimiter),    // 限流
		JWTAuth(cfg.Auth, log),      // JWT 鉴权
		RBAC(cfg.Auth),              // 角色限权
	)

	srv := &http.Server{
		Handler:           chain(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 注册到 Consul（成功才 defer 注销）
	if consulClient != nil {
		serviceID := fmt.Sprintf("%s-%s", cfg.Server.Name, uuid.New().String())
		registry := discovery.NewServiceRegistry(
			consulClient,
			serviceID,
			cfg.Server.Name,
			cfg.Server.Host,
			cfg.Server.HTTPPort,
			o.HealthPath,
			[]string{"http"},
		)
		if err := registry.Register(); err != nil {
			log.Warnf("failed to register service to Consul: %v", err)
		} else {
			log.Infof("Service registered to Consul: %s", serviceID)
			defer func() {
				if err := registry.Deregister(); err != nil {
					log.Warnf("failed to deregister service from Consul: %v", err)
				}
			}()
		}
	}

	log.Infof("%s starting on %s:%d", cfg.Server.Name, cfg.Server.Host, cfg.Server.HTTPPort)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Infof("received signal %v, shutting down...", sig)
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http serve failed: %w", err)
		}
		return nil
	}

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), o.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("http shutdown timeout, forcing close...")
		_ = srv.Close()
	} else {
		log.Info("http server stopped gracefully")
	}

	return nil
}

// WithShutdownTimeout 修改优雅退出等待时间。
func WithShutdownTimeout(d time.Duration) func(*RunHTTPOptions) {
	return func(o *RunHTTPOptions) {
		if d > 0 {
			o.ShutdownTimeout = d
		}
	}
}

// WithMetrics 控制是否暴露 /metrics。
func WithMetrics(enable bool) func(*RunHTTPOptions) {
	return func(o *RunHTTPOptions) {
		o.EnableMetrics = enable
	}
}

// WithRateLimiter 设置全局限流器。
func WithRateLimiter(rl middleware.RateLimiter) func(*RunHTTPOptions) {
	return func(o *RunHTTPOptions) {
		o.RateLimiter = rl
	}
}
