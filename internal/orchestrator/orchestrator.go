// Package orchestrator 蓝图生成编排
//
// 在生成协作方与执行沙盒之间循环推进 GENERATE → VALIDATE → FIX
// 状态机，受尝试预算约束。每次循环迭代消耗一个预算单位；
// FIX 动作在同一单位内完成修补与复验。
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"blueprint-forge/internal/generator"
	"blueprint-forge/internal/harness"
	"blueprint-forge/internal/metrics"
	"blueprint-forge/internal/model"
	"blueprint-forge/internal/repository"
	"blueprint-forge/internal/storage"
	"blueprint-forge/pkg/logging"
)

const (
	// defaultGoal 首次生成的目标描述，下发时附带参考脚本
	defaultGoal = "Create a setup for the given technology stack that works on both Alpine and Debian"
	// defaultFixInstruction 无上游诊断时的兜底修复指令
	defaultFixInstruction = "Fix the run.sh file that failed validation"
	// exhaustedMessage 预算耗尽且无失败诊断可用时的最终消息
	exhaustedMessage = "maximum attempts reached without success"
)

// Validator 执行沙盒边界，每次调用恰好产生一个结论
type Validator interface {
	Validate(ctx context.Context, key, script, baseImage string, limits harness.ResourceLimits) model.ValidationVerdict
}

// Orchestrator 单描述符生成流程编排器
//
// Run 调用之间不保留任何状态；并发调用不同描述符互不影响，
// 同一描述符的并发由调用方（runlock）串行化。
type Orchestrator struct {
	gen       generator.Generator
	validator Validator
	repo      *repository.Repository
	store     *storage.Store
	mirror    *repository.Mirror
	metrics   *metrics.Metrics
	log       *logging.Logger

	image  string
	limits harness.ResourceLimits
	goal   string
}

// Option 编排器可选配置
type Option func(*Orchestrator)

// WithImage 设置验证容器基础镜像
func WithImage(image string) Option {
	return func(o *Orchestrator) { o.image = image }
}

// WithLimits 设置验证容器资源上限
func WithLimits(limits harness.ResourceLimits) Option {
	return func(o *Orchestrator) { o.limits = limits }
}

// WithHistory 启用尝试历史落库
func WithHistory(store *storage.Store) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithMirror 启用成功蓝图的对象存储镜像
func WithMirror(m *repository.Mirror) Option {
	return func(o *Orchestrator) { o.mirror = m }
}

// WithMetrics 启用指标上报
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithGoal 覆盖首次生成的目标描述
func WithGoal(goal string) Option {
	return func(o *Orchestrator) { o.goal = goal }
}

// New 创建编排器
func New(gen generator.Generator, v Validator, repo *repository.Repository, log *logging.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:       gen,
		validator: v,
		repo:      repo,
		log:       log,
		image:     "alpine:latest",
		limits:    harness.DefaultLimits(),
		goal:      seededGoal(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// seededGoal 拼装默认生成目标：目标描述 + 参考脚本
func seededGoal() string {
	return defaultGoal + "\n\nReference run.sh:\n" + generator.ExampleScript()
}

// Run 执行一次完整的生成流程
//
// 返回最终成败与人类可读的最终消息：成功时为验证成功摘要，
// 失败时为最后一次失败的诊断文本。maxAttempts 为 0 时不发起
// 任何协作方或沙盒调用，直接失败。
func (o *Orchestrator) Run(ctx context.Context, d model.TechnologyDescriptor, maxAttempts int) (bool, string) {
	start := time.Now()
	runID := fmt.Sprintf("%s-%d", d.Key(), start.UnixNano())
	log := o.log.WithDescriptor(d.Key())

	state := model.NewAttemptState(maxAttempts)
	lastMessage := exhaustedMessage

	for !state.Exhausted() {
		log.AttemptLog(string(state.Action), state.AttemptNumber, maxAttempts, d.Key())
		attemptStart := time.Now()

		switch state.Action {
		case model.ActionGenerate:
			res, err := o.gen.Generate(ctx, o.goal, d)
			if err != nil {
				// 协作方协议级故障，重试无意义，立即终止
				log.WithError(err).Error("generator unavailable, aborting run")
				o.record(ctx, runID, d, state, false, nil, err.Error(), attemptStart)
				return o.finish(log, start, false, err.Error())
			}
			o.record(ctx, runID, d, state, res.Success, nil, res.Message, attemptStart)
			if !res.Success {
				log.Warn("generation failed: " + res.Message)
				msg := res.Message
				lastMessage = res.Message
				state.Advance(model.ActionFix, &msg)
				continue
			}
			if _, err := o.repo.Write(d, res.Script); err != nil {
				log.WithError(err).Error("persist generated script")
				return o.finish(log, start, false, err.Error())
			}
			log.Info("generation succeeded: " + res.Message)
			state.Advance(model.ActionValidate, nil)

		case model.ActionValidate:
			verdict := o.validate(ctx, d)
			o.record(ctx, runID, d, state, verdict.OK, verdict.ExitCode, verdict.Diagnostic, attemptStart)
			if verdict.OK {
				o.publish(ctx, log, d)
				return o.finish(log, start, true, verdict.Diagnostic)
			}
			diag := verdict.Diagnostic
			lastMessage = diag
			state.Advance(model.ActionFix, &diag)

		case model.ActionFix:
			instruction := defaultFixInstruction
			if state.Context != nil && *state.Context != "" {
				instruction = *state.Context
			}
			res, err := o.gen.Fix(ctx, instruction, d)
			if err != nil {
				log.WithError(err).Error("generator unavailable, aborting run")
				o.record(ctx, runID, d, state, false, nil, err.Error(), attemptStart)
				return o.finish(log, start, false, err.Error())
			}
			if !res.Success {
				// 修复失败没有进一步的恢复路径
				o.record(ctx, runID, d, state, false, nil, res.Message, attemptStart)
				log.Warn("fix failed: " + res.Message)
				return o.finish(log, start, false, res.Message)
			}
			if _, err := o.repo.Write(d, res.Script); err != nil {
				log.WithError(err).Error("persist fixed script")
				return o.finish(log, start, false, err.Error())
			}
			// 修补后立即复验，与修复共用同一预算单位
			verdict := o.validate(ctx, d)
			o.record(ctx, runID, d, state, verdict.OK, verdict.ExitCode, verdict.Diagnostic, attemptStart)
			if verdict.OK {
				o.publish(ctx, log, d)
				return o.finish(log, start, true, verdict.Diagnostic)
			}
			diag := verdict.Diagnostic
			lastMessage = diag
			state.Advance(model.ActionFix, &diag)
		}
	}

	log.Warn(exhaustedMessage)
	return o.finish(log, start, false, lastMessage)
}

// validate 从仓库读出当前脚本并交给沙盒验证
func (o *Orchestrator) validate(ctx context.Context, d model.TechnologyDescriptor) model.ValidationVerdict {
	script, err := o.repo.Read(d)
	if err != nil {
		return model.FailureVerdict(nil, fmt.Sprintf("read script for %s: %v", d.Key(), err))
	}
	return o.validator.Validate(ctx, d.Key(), script, o.image, o.limits)
}

// publish 成功后镜像到对象存储，失败只告警不影响结果
func (o *Orchestrator) publish(ctx context.Context, log *logging.Logger, d model.TechnologyDescriptor) {
	if o.mirror == nil {
		return
	}
	content, err := o.repo.Read(d)
	if err != nil {
		log.WithError(err).Warn("read script for mirror")
		return
	}
	artifact := model.ScriptArtifact{
		Descriptor: d,
		Content:    content,
		Path:       o.repo.ScriptPath(d),
	}
	if err := o.mirror.Publish(ctx, artifact); err != nil {
		log.WithError(err).Warn("mirror publish failed")
	}
}

// record 落一条尝试历史并上报指标
func (o *Orchestrator) record(ctx context.Context, runID string, d model.TechnologyDescriptor, state *model.AttemptState, ok bool, exitCode *int, diagnostic string, started time.Time) {
	if o.metrics != nil {
		o.metrics.ObserveAttempt(string(state.Action), ok)
	}
	if o.store == nil {
		return
	}
	rec := &storage.AttemptRecord{
		RunID:      runID,
		Descriptor: d.Key(),
		Action:     string(state.Action),
		Attempt:    state.AttemptNumber,
		OK:         ok,
		ExitCode:   exitCode,
		Diagnostic: diagnostic,
		DurationMS: time.Since(started).Milliseconds(),
	}
	if err := o.store.RecordAttempt(ctx, rec); err != nil {
		o.log.WithError(err).Warn("record attempt history")
	}
}

// finish 统一收口运行结果
func (o *Orchestrator) finish(log *logging.Logger, started time.Time, success bool, message string) (bool, string) {
	duration := time.Since(started)
	if o.metrics != nil {
		o.metrics.ObserveRun(success, duration)
	}
	if success {
		log.WithDuration(duration).Info("run finished: success")
	} else {
		log.WithDuration(duration).Warn("run finished: failure")
	}
	return success, message
}
