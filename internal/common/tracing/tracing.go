package tracing

import (
	"fmt"
	"io"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

// InitTracer 初始化 Jaeger Tracer 并设置为全局 tracer。
// endpoint 支持两种形式：
// - "host:port"            → UDP 上报到 jaeger-agent
// - "http://...:14268/..." → 直接上报到 collector
func InitTracer(serviceName, endpoint string, sampler float64) (opentracing.Tracer, io.Closer, error) {
	reporter := &jaegercfg.ReporterConfig{LogSpans: true}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		reporter.CollectorEndpoint = endpoint
	} else {
		reporter.LocalAgentHostPort = endpoint
	}

	cfg := &jaegercfg.Configuration{
		ServiceName: serviceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: sampler,
		},
		Reporter: reporter,
	}

	tracer, closer, err := cfg.NewTracer(jaegercfg.Logger(jaeger.StdLogger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init jaeger tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer, nil
}
