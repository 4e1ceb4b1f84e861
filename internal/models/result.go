package models

// StandardDocument 重建后的标准文档
// 由流水线在内容查找后构造，仅被审查阶段消费，构造后不可变
type StandardDocument struct {
	Name    string // 标准名称（文件名去扩展名）
	Content string // 清洗后的完整文本
}

// PipelineResult 一次流水线运行的聚合结果
// 序列化后的顶层键固定为四个阶段名
type PipelineResult struct {
	StandardID  string            `json:"-"`            // 标准ID，不序列化，用于命名输出文件
	Review      map[string]string `json:"review"`       // 审查阶段字段
	Enhancement map[string]string `json:"enhancement"`  // 增强阶段字段
	Validation  map[string]string `json:"validation"`   // 验证阶段字段
	FinalReport map[string]string `json:"final_report"` // 报告阶段字段
}
