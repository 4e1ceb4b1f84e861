package taskqueue

import (
	"context"
	"encoding/json"
	"time"
)

// Queue 定义任务队列的接口
// 负责任务的入队、获取状态和结果等操作
type Queue interface {
	// Enqueue 将任务加入队列
	Enqueue(ctx context.Context, taskType TaskType, standardID string, payload interface{}) (string, error)

	// EnqueueAt 在指定时间将任务加入队列
	EnqueueAt(ctx context.Context, taskType TaskType, standardID string, payload interface{}, processAt time.Time) (string, error)

	// EnqueueIn 在指定延迟后将任务加入队列
	EnqueueIn(ctx context.Context, taskType TaskType, standardID string, payload interface{}, delay time.Duration) (string, error)

	// GetTask 获取任务信息
	GetTask(ctx context.Context, taskID string) (*Task, error)

	// GetTasksByStandard 获取标准相关的所有任务
	GetTasksByStandard(ctx context.Context, standardID string) ([]*Task, error)

	// WaitForTask 等待任务完成并返回结果
	// timeout为0表示不设置超时
	WaitForTask(ctx context.Context, taskID string, timeout time.Duration) (*Task, error)

	// DeleteTask 删除任务
	DeleteTask(ctx context.Context, taskID string) error

	// UpdateTaskStatus 更新任务状态和结果
	UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, result interface{}, errorMsg string) error

	// Close 关闭队列连接
	Close() error
}

// Handler 任务处理器接口
// 负责实际执行任务的逻辑
type Handler interface {
	// ProcessTask 处理任务
	ProcessTask(ctx context.Context, task *Task) error

	// GetTaskTypes 返回此处理器支持的任务类型
	GetTaskTypes() []TaskType
}

// Worker 工作者接口
// 负责运行一组Handler来处理队列中的任务
type Worker interface {
	// RegisterHandler 注册任务处理器
	RegisterHandler(taskType TaskType, handler Handler)

	// Start 启动工作者，开始处理任务
	Start() error

	// Stop 停止工作者
	Stop()
}

// Config 队列配置
type Config struct {
	RedisAddr     string         // Redis地址
	RedisPassword string         // Redis密码
	RedisDB       int            // Redis数据库
	Concurrency   int            // 并发处理任务数
	RetryLimit    int            // 最大重试次数
	RetryDelay    time.Duration  // 重试延迟
	Queues        map[string]int // 队列名称到优先级的映射
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		RedisAddr:   "localhost:6379",
		RedisDB:     0,
		Concurrency: 4,
		RetryLimit:  3,
		RetryDelay:  time.Minute,
		Queues: map[string]int{
			"default": 3, // 默认任务
			"low":     1, // 低优先级任务
		},
	}
}

// TaskInfo 表示任务的元信息
// 用于传递给客户端的简化任务信息
type TaskInfo struct {
	ID          string     `json:"id"`           // 任务唯一标识符
	Type        TaskType   `json:"type"`         // 任务类型
	StandardID  string     `json:"standard_id"`  // 关联的标准ID
	Status      TaskStatus `json:"status"`       // 任务状态
	Error       string     `json:"error"`        // 错误信息
	CreatedAt   time.Time  `json:"created_at"`   // 创建时间
	StartedAt   *time.Time `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time `json:"completed_at"` // 完成时间
}

// Factory 队列工厂函数类型
// 用于创建不同类型的队列实现
type Factory func(cfg *Config) (Queue, error)

// NewTaskInfo 从Task创建TaskInfo
func NewTaskInfo(task *Task) *TaskInfo {
	return &TaskInfo{
		ID:          task.ID,
		Type:        task.Type,
		StandardID:  task.StandardID,
		Status:      task.Status,
		Error:       task.Error,
		CreatedAt:   task.CreatedAt,
		StartedAt:   task.StartedAt,
		CompletedAt: task.CompletedAt,
	}
}

// ErrTaskNotFound 任务未找到错误
var ErrTaskNotFound = TaskError("task not found")

// ErrTaskTimeout 任务超时错误
var ErrTaskTimeout = TaskError("task timed out")

// ErrInvalidPayload 无效的任务载荷错误
var ErrInvalidPayload = TaskError("invalid task payload")

// TaskError 任务错误类型
type TaskError string

// Error 实现error接口
func (e TaskError) Error() string {
	return string(e)
}

// MarshalPayload 将任务载荷序列化为JSON
func MarshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(payload)
}

// UnmarshalPayload 将JSON反序列化为任务载荷
func UnmarshalPayload(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
