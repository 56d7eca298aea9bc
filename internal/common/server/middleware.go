package server

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/FleetAssign/FleetAssign/internal/common/auth"
	"github.com/FleetAssign/FleetAssign/internal/common/config"
	"github.com/FleetAssign/FleetAssign/internal/common/logger"
	"github.com/FleetAssign/FleetAssign/internal/common/middleware"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// Middleware 标准的 http.Handler 包装器。
type Middleware func(http.Handler) http.Handler

// Chain 将多个 middleware 串起来（按传入顺序执行，第一个在最外层）。
func Chain(mws ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] == nil {
				continue
			}
			h = mws[i](h)
		}
		return h
	}
}

// statusRecorder 捕获写回的 HTTP 状态码，供访问日志和 tracing 使用。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Recovery 防止 panic 直接把进程打崩，并记录栈信息。
func Recovery(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if log != nil {
						log.Errorf("panic in http path=%s err=%v stack=%s", r.URL.Path, rec, string(debug.Stack()))
					}
					WriteError(w, http.StatusInternalServerError, "internal_error", nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Tracing 基于 OpenTracing 的最小 server middleware：
// - 从请求头里提取上游 span context（uber-trace-id / traceparent 等，取决于注入格式）
// - 创建 server span 并注入 ctx，方便业务侧 opentracing.StartSpanFromContext 使用
func Tracing(serviceName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracer := opentracing.GlobalTracer()

			var parent opentracing.SpanContext
			if sc, err := tracer.Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(r.Header)); err == nil {
				parent = sc
			}

			operation := r.Method + " " + r.URL.Path
			var span opentracing.Span
			if parent != nil {
				span = tracer.StartSpan(operation, ext.RPCServerOption(parent))
			} else {
				span = tracer.StartSpan(operation)
			}
			defer span.Finish()

			ext.SpanKindRPCServer.Set(span)
			ext.Component.Set(span, "http")
			ext.HTTPMethod.Set(span, r.Method)
			ext.HTTPUrl.Set(span, r.URL.Path)
			if serviceName != "" {
				span.SetTag("service", serviceName)
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(opentracing.ContextWithSpan(r.Context(), span)))
			ext.HTTPStatusCode.Set(span, uint16(rec.status))
		})
	}
}

// AccessLog 记录每个 HTTP 请求的耗时/状态。
func AccessLog(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			cost := time.Since(start)

			if log != nil {
				fields := map[string]interface{}{
					"method": r.Method,
					"path":   r.URL.Path,
					"status": rec.status,
					"cost":   cost.String(),
				}
				if rec.status >= http.StatusBadRequest {
					log.WithFields(fields).Warn("http request failed")
				} else {
					log.WithFields(fields).Info("http request ok")
				}
			}
		})
	}
}

// RateLimit 超出限流阈值时直接返回 429。
func RateLimit(rl middleware.RateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl != nil && !rl.Allow(r.Context()) {
				WriteError(w, http.StatusTooManyRequests, "rate_limited", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type authContextKey struct{}

// AuthInfo 从 JWT 中解析出的最小用户信息（放入 ctx，供业务侧使用）。
type AuthInfo struct {
	Subject string   // 用户 ID
	Roles   []string // 角色列表（RBAC）
}

// AuthFromContext 从 ctx 中取出鉴权信息。
func AuthFromContext(ctx context.Context) (AuthInfo, bool) {
	v := ctx.Value(authContextKey{})
	if v == nil {
		return AuthInfo{}, false
	}
	ai, ok := v.(AuthInfo)
	return ai, ok
}

// JWTAuth JWT 鉴权：
// - 从 `Authorization: Bearer <token>` 读取 token
// - 校验签名与标准字段（auth.ParseAccessToken）
// - 将解析结果写入 ctx
func JWTAuth(cfg config.AuthConfig, log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isPublicPath(cfg.PublicPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if strings.TrimSpace(cfg.JWTSecret) == "" {
				if log != nil {
					log.Warn("auth enabled but jwt_secret is empty")
				}
				WriteError(w, http.StatusUnauthorized, "auth_not_configured", nil)
				return
			}

			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				WriteError(w, http.StatusUnauthorized, "missing_authorization", nil)
				return
			}
			tokenStr := raw
			if strings.HasPrefix(strings.ToLower(tokenStr), "bearer ") {
				tokenStr = strings.TrimSpace(tokenStr[len("bearer "):])
			}
			claims, err := auth.ParseAccessToken(cfg, tokenStr)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "invalid_token", nil)
				return
			}

			ctx := context.WithValue(r.Context(), authContextKey{}, AuthInfo{
				Subject: claims.Subject,
				Roles:   claims.Roles,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RBAC 基于 path -> roles 的简单限权：
// - 若 cfg.RBAC[path] 存在且非空，则要求 token roles 与之有交集
// - 未配置的 path 默认放行（即“只鉴权，不限权”）
func RBAC(cfg config.AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isPublicPath(cfg.PublicPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			required := cfg.RBAC[r.URL.Path]
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			ai, ok := AuthFromContext(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, "missing_auth_context", nil)
				return
			}
			if !hasAnyRole(ai.Roles, required) {
				WriteError(w, http.StatusForbidden, "permission_denied", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasAnyRole(got, required []string) bool {
	if len(got) == 0 || len(required) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(got))
	for _, r := range got {
		r = strings.TrimSpace(strings.ToLower(r))
		if r == "" {
			continue
		}
		set[r] = struct{}{}
	}
	for _, r := range required {
		r = strings.TrimSpace(strings.ToLower(r))
		if r == "" {
			continue
		}
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

func isPublicPath(public []string, path string) bool {
	if path == "" || len(public) == 0 {
		return false
	}
	for _, p := range public {
		if strings.TrimSpace(p) == path {
			return true
		}
	}
	return false
}
