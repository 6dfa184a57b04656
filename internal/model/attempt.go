package model

// Action 编排动作枚举
type Action string

const (
	ActionGenerate Action = "generate" // 首次生成脚本
	ActionValidate Action = "validate" // 在隔离环境中验证脚本
	ActionFix      Action = "fix"      // 根据诊断修复脚本
)

// AttemptState 单次编排运行的循环状态
//
// 由编排器独占持有，随循环迭代原地更新，循环退出即丢弃，
// 不做持久化。Context 向前传递上一次失败的诊断文本。
type AttemptState struct {
	Action        Action
	AttemptNumber int
	Context       *string
	Budget        int
}

// NewAttemptState 创建初始状态，首个动作恒为 GENERATE
func NewAttemptState(budget int) *AttemptState {
	return &AttemptState{
		Action:        ActionGenerate,
		AttemptNumber: 1,
		Budget:        budget,
	}
}

// Exhausted 预算是否已耗尽
func (s *AttemptState) Exhausted() bool {
	return s.AttemptNumber > s.Budget
}

// Advance 进入下一个动作并消耗一个预算单位
func (s *AttemptState) Advance(next Action, context *string) {
	s.Action = next
	s.Context = context
	s.AttemptNumber++
}
