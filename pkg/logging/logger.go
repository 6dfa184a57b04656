// Package logging 结构化日志
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// ContextKey 上下文键类型
type ContextKey string

const (
	RunIDKey      ContextKey = "run_id"
	DescriptorKey ContextKey = "descriptor"
)

// Logger 结构化日志器
type Logger struct {
	*slog.Logger
	component string
}

// Config 日志配置
type Config struct {
	Level     string `json:"level"`
	Format    string `json:"format"` // json or text
	Output    string `json:"output"` // stdout, stderr, or file path
	Component string `json:"component"`
}

// New 创建新的日志器
func New(cfg Config) *Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var output io.Writer
	switch cfg.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			output = os.Stdout
		} else {
			output = f
		}
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		Logger:    slog.New(handler),
		component: cfg.Component,
	}
}

// Default 创建默认日志器
func Default(component string) *Logger {
	return New(Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		Output:    "stdout",
		Component: component,
	})
}

// WithContext 从上下文提取追踪信息
func (l *Logger) WithContext(ctx context.Context) *Logger {
	attrs := []any{slog.String("component", l.component)}

	if runID, ok := ctx.Value(RunIDKey).(string); ok && runID != "" {
		attrs = append(attrs, slog.String("run_id", runID))
	}
	if descriptor, ok := ctx.Value(DescriptorKey).(string); ok && descriptor != "" {
		attrs = append(attrs, slog.String("descriptor", descriptor))
	}

	return &Logger{
		Logger:    l.Logger.With(attrs...),
		component: l.component,
	}
}

// WithDescriptor 添加技术栈描述符键
func (l *Logger) WithDescriptor(key string) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.String("descriptor", key)),
		component: l.component,
	}
}

// WithAttempt 添加尝试序号
func (l *Logger) WithAttempt(attempt, budget int) *Logger {
	return &Logger{
		Logger: l.Logger.With(
			slog.Int("attempt", attempt),
			slog.Int("budget", budget),
		),
		component: l.component,
	}
}

// WithContainerID 添加容器 ID
func (l *Logger) WithContainerID(containerID string) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.String("container_id", containerID)),
		component: l.component,
	}
}

// WithError 添加错误信息
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{
		Logger:    l.Logger.With(slog.String("error", err.Error())),
		component: l.component,
	}
}

// WithDuration 添加持续时间
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.Float64("duration_ms", float64(d.Milliseconds()))),
		component: l.component,
	}
}

// AttemptLog 编排尝试日志
func (l *Logger) AttemptLog(action string, attempt, budget int, descriptor string) {
	l.Logger.Info("Attempt",
		slog.String("action", action),
		slog.Int("attempt", attempt),
		slog.Int("budget", budget),
		slog.String("descriptor", descriptor),
	)
}

// VerdictLog 验证结论日志
func (l *Logger) VerdictLog(descriptor string, ok bool, exitCode *int, duration time.Duration) {
	attrs := []any{
		slog.String("descriptor", descriptor),
		slog.Bool("ok", ok),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	}
	if exitCode != nil {
		attrs = append(attrs, slog.Int("exit_code", *exitCode))
	}
	if ok {
		l.Logger.Info("Validation verdict", attrs...)
	} else {
		l.Logger.Warn("Validation verdict", attrs...)
	}
}

// ScriptLine 透传被执行脚本的单行输出
func (l *Logger) ScriptLine(line string) {
	l.Logger.Info(line, slog.String("source", "script"))
}
