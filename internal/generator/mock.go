package generator

import (
	"context"

	"blueprint-forge/internal/model"
)

// ============================================================================
// ScriptedGenerator - 预置响应的 Generator 实现（用于测试）
// ============================================================================

// Call 记录一次对协作方的调用
type Call struct {
	Method     string // "generate" 或 "fix"
	Prompt     string
	Descriptor model.TechnologyDescriptor
}

// ScriptedGenerator 按预置序列逐次返回结果
type ScriptedGenerator struct {
	GenerateResults []ResultOrErr
	FixResults      []ResultOrErr
	Calls           []Call

	genIdx int
	fixIdx int
}

// ResultOrErr 单次预置响应
type ResultOrErr struct {
	Result *Result
	Err    error
}

// Generate 返回下一个预置的生成结果
func (s *ScriptedGenerator) Generate(ctx context.Context, goal string, d model.TechnologyDescriptor) (*Result, error) {
	s.Calls = append(s.Calls, Call{Method: "generate", Prompt: goal, Descriptor: d})
	r := s.next(&s.genIdx, s.GenerateResults)
	return r.Result, r.Err
}

// Fix 返回下一个预置的修复结果
func (s *ScriptedGenerator) Fix(ctx context.Context, instruction string, d model.TechnologyDescriptor) (*Result, error) {
	s.Calls = append(s.Calls, Call{Method: "fix", Prompt: instruction, Descriptor: d})
	r := s.next(&s.fixIdx, s.FixResults)
	return r.Result, r.Err
}

// next 超出预置序列后重复最后一个响应
func (s *ScriptedGenerator) next(idx *int, results []ResultOrErr) ResultOrErr {
	if len(results) == 0 {
		return ResultOrErr{Result: &Result{Success: false, Message: "no scripted result"}}
	}
	i := *idx
	if i >= len(results) {
		i = len(results) - 1
	}
	*idx++
	return results[i]
}
