// Package metrics Prometheus 指标导出
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 包含蓝图生成与验证的全部指标
type Metrics struct {
	// 编排指标
	AttemptsTotal *prometheus.CounterVec // 按动作与结果计数
	RunsTotal     *prometheus.CounterVec // 按最终结果计数
	RunDuration   prometheus.Histogram

	// 验证沙盒指标
	ValidationsTotal   *prometheus.CounterVec
	ValidationDuration *prometheus.HistogramVec
	ContainerStarts    *prometheus.CounterVec

	registry *prometheus.Registry
}

// New 创建指标实例
//
// 使用独立 Registry，避免同进程多实例的重复注册冲突。
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		AttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Total orchestration attempts by action and status",
			},
			[]string{"action", "status"},
		),
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total orchestration runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "End-to-end run duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
		),
		ValidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validations_total",
				Help:      "Total script validations by image and status",
			},
			[]string{"image", "status"},
		),
		ValidationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "validation_duration_seconds",
				Help:      "Script validation duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"image"},
		),
		ContainerStarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "container_starts_total",
				Help:      "Total validation containers created by image",
			},
			[]string{"image"},
		),
		registry: registry,
	}
}

// ObserveAttempt 记录一次编排尝试
func (m *Metrics) ObserveAttempt(action string, success bool) {
	m.AttemptsTotal.WithLabelValues(action, statusLabel(success)).Inc()
}

// ObserveRun 记录一次完整运行
func (m *Metrics) ObserveRun(success bool, duration time.Duration) {
	m.RunsTotal.WithLabelValues(statusLabel(success)).Inc()
	m.RunDuration.Observe(duration.Seconds())
}

// ObserveValidation 记录一次验证
func (m *Metrics) ObserveValidation(image string, ok bool, duration time.Duration) {
	m.ValidationsTotal.WithLabelValues(image, statusLabel(ok)).Inc()
	m.ValidationDuration.WithLabelValues(image).Observe(duration.Seconds())
}

// ContainerStarted 记录一次容器创建
func (m *Metrics) ContainerStarted(image string) {
	m.ContainerStarts.WithLabelValues(image).Inc()
}

// Handler 返回 /metrics HTTP Handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve 在指定地址暴露 /metrics（阻塞）
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}

func statusLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
