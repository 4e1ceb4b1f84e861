package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskIngestStandard 单个标准文件的摄取任务
	TaskIngestStandard TaskType = "ingest_standard"
	// TaskIngestDirectory 目录批量摄取任务
	TaskIngestDirectory TaskType = "ingest_directory"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	StandardID  string          `json:"standard_id"`  // 关联的标准ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷数据，不同任务类型对应不同结构
	Result      json.RawMessage `json:"result"`       // 任务结果数据，不同任务类型对应不同结构
	Error       string          `json:"error"`        // 错误信息（如果处理失败）
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// IngestStandardPayload 标准摄取任务载荷
type IngestStandardPayload struct {
	FilePath string `json:"file_path"` // 文件存储路径
	FileName string `json:"file_name"` // 文件名
	FileType string `json:"file_type"` // 文件类型
}

// IngestStandardResult 标准摄取任务结果
type IngestStandardResult struct {
	StandardID string `json:"standard_id"` // 标准ID
	ChunkCount int    `json:"chunk_count"` // 分块数量
	Dimension  int    `json:"dimension"`   // 向量维度
	Error      string `json:"error"`       // 错误信息（如果有）
}

// IngestDirectoryPayload 目录批量摄取任务载荷
type IngestDirectoryPayload struct {
	Dir string `json:"dir"` // 标准文件目录
}

// IngestDirectoryResult 目录批量摄取任务结果
type IngestDirectoryResult struct {
	Total     int      `json:"total"`     // 发现的文件数
	Succeeded int      `json:"succeeded"` // 成功摄取数
	Failed    []string `json:"failed"`    // 摄取失败的标准ID列表
}
