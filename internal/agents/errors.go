package agents

import "fmt"

// StageError 阶段执行错误
// 携带出错的代理名称和所处阶段
type StageError struct {
	Agent string // 代理名称
	Stage string // 阶段名称
	Err   error  // 底层错误
}

// Error 实现error接口
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed in agent %s: %v", e.Stage, e.Agent, e.Err)
}

// Unwrap 返回底层错误
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError 创建新的阶段错误
func NewStageError(agent, stage string, err error) *StageError {
	return &StageError{
		Agent: agent,
		Stage: stage,
		Err:   err,
	}
}

// ParseError 响应解析错误
type ParseError struct {
	Stage   string // 阶段名称
	Message string // 错误描述
}

// Error 实现error接口
func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s response: %s", e.Stage, e.Message)
}

// NewParseError 创建新的解析错误
func NewParseError(stage, message string) *ParseError {
	return &ParseError{
		Stage:   stage,
		Message: message,
	}
}
