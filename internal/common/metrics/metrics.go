package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder 记录调度决策相关的 Prometheus 指标。
// nil Recorder 上的所有方法都是 no-op，方便测试直接传 nil。
type Recorder struct {
	decisions  *prometheus.CounterVec
	violations prometheus.Counter
}

// NewRecorder 在指定 Registerer 上注册调度指标。
// reg 为 nil 时使用默认 Registerer；重复注册时复用已有 collector。
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_decisions_total",
		Help: "Total number of assignment scheduling decisions by operation and outcome",
	}, []string{"op", "outcome"})
	violations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assignment_invariant_violations_total",
		Help: "Times a conflicting write raced past an accepted proposal",
	})

	if err := reg.Register(decisions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			decisions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(violations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			violations = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}

	return &Recorder{decisions: decisions, violations: violations}, nil
}

// RecordDecision 按操作（create/close/cancel/propose）和结果（accepted/conflict/invalid/not_found/error）计数。
func (r *Recorder) RecordDecision(op, outcome string) {
	if r == nil {
		return
	}
	r.decisions.WithLabelValues(op, outcome).Inc()
}

// RecordInvariantViolation 记录一次“已接受的提案在提交时发现冲突”的竞态。
func (r *Recorder) RecordInvariantViolation() {
	if r == nil {
		return
	}
	r.violations.Inc()
}
