package agents

import (
	"context"

	"github.com/fyerfyer/standards-review-system/internal/llm"
	"github.com/fyerfyer/standards-review-system/internal/models"
)

// 流水线阶段名称
const (
	StageReview      = "review"
	StageEnhancement = "enhancement"
	StageValidation  = "validation"
	StageFinalReport = "final_report"
)

// StageResult 单个阶段的结构化输出
// 固定字段名到自由文本的映射
type StageResult map[string]string

// Input 阶段输入
// 携带标准文档和此前各阶段已产生的结果
type Input struct {
	Document    models.StandardDocument // 被审查的标准文档
	Review      StageResult             // 审查阶段输出
	Enhancement StageResult             // 增强阶段输出
	Validation  StageResult             // 验证阶段输出
}

// Agent 流水线代理接口
// 每个代理封装一次大模型调用和响应解析
type Agent interface {
	// Execute 执行本阶段，返回结构化结果
	Execute(ctx context.Context, input Input) (StageResult, error)

	// Name 返回代理名称
	Name() string

	// Stage 返回代理所属的阶段名称
	Stage() string
}

// executor 共享的模型调用与解析逻辑
// 各代理通过组合复用，避免继承层次
type executor struct {
	client llm.Client // 大模型客户端
	name   string     // 代理名称
	stage  string     // 阶段名称
	fields []string   // 本阶段的字段结构
}

// run 调用大模型并将响应解析为本阶段的字段结构
func (e *executor) run(ctx context.Context, systemPrompt, userPrompt string) (StageResult, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: userPrompt},
	}

	resp, err := e.client.Chat(ctx, messages)
	if err != nil {
		return nil, NewStageError(e.name, e.stage, err)
	}

	result, err := ParseSections(resp.Text, e.stage, e.fields)
	if err != nil {
		return nil, NewStageError(e.name, e.stage, err)
	}

	return result, nil
}
