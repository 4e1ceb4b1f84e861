package taskqueue

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Ingestor 标准摄取接口
// 由服务层实现，任务处理器通过它执行实际的摄取逻辑
type Ingestor interface {
	// IngestFile 摄取单个标准文件，返回标准ID和分块数量
	IngestFile(ctx context.Context, filePath string) (string, int, error)

	// IngestDirectory 摄取目录下的所有标准文件
	IngestDirectory(ctx context.Context, dir string) (*IngestDirectoryResult, error)
}

// IngestHandler 标准摄取任务处理器
type IngestHandler struct {
	queue    Queue          // 任务队列，用于写回结果
	ingestor Ingestor       // 实际执行摄取的服务
	logger   *logrus.Logger // 日志记录器
}

// NewIngestHandler 创建摄取任务处理器
func NewIngestHandler(queue Queue, ingestor Ingestor, logger *logrus.Logger) *IngestHandler {
	if logger == nil {
		logger = logrus.New()
	}

	return &IngestHandler{
		queue:    queue,
		ingestor: ingestor,
		logger:   logger,
	}
}

// GetTaskTypes 返回支持的任务类型
func (h *IngestHandler) GetTaskTypes() []TaskType {
	return []TaskType{TaskIngestStandard, TaskIngestDirectory}
}

// ProcessTask 处理摄取任务
func (h *IngestHandler) ProcessTask(ctx context.Context, task *Task) error {
	switch task.Type {
	case TaskIngestStandard:
		return h.processIngestStandard(ctx, task)
	case TaskIngestDirectory:
		return h.processIngestDirectory(ctx, task)
	default:
		return fmt.Errorf("unsupported task type: %s", task.Type)
	}
}

// processIngestStandard 处理单个标准文件的摄取
func (h *IngestHandler) processIngestStandard(ctx context.Context, task *Task) error {
	var payload IngestStandardPayload
	if err := UnmarshalPayload(task.Payload, &payload); err != nil {
		return ErrInvalidPayload
	}

	if payload.FilePath == "" {
		return ErrInvalidPayload
	}

	standardID, chunkCount, err := h.ingestor.IngestFile(ctx, payload.FilePath)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"task_id":   task.ID,
			"file_path": payload.FilePath,
		}).Error("Failed to ingest standard")
		return err
	}

	result := IngestStandardResult{
		StandardID: standardID,
		ChunkCount: chunkCount,
	}

	if err := h.queue.UpdateTaskStatus(ctx, task.ID, StatusProcessing, result, ""); err != nil {
		h.logger.WithError(err).WithField("task_id", task.ID).Warn("Failed to record ingest result")
	}

	h.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"standard_id": standardID,
		"chunk_count": chunkCount,
	}).Info("Standard ingested successfully")

	return nil
}

// processIngestDirectory 处理目录批量摄取
func (h *IngestHandler) processIngestDirectory(ctx context.Context, task *Task) error {
	var payload IngestDirectoryPayload
	if err := UnmarshalPayload(task.Payload, &payload); err != nil {
		return ErrInvalidPayload
	}

	if payload.Dir == "" {
		return ErrInvalidPayload
	}

	result, err := h.ingestor.IngestDirectory(ctx, payload.Dir)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"task_id": task.ID,
			"dir":     payload.Dir,
		}).Error("Failed to ingest directory")
		return err
	}

	if err := h.queue.UpdateTaskStatus(ctx, task.ID, StatusProcessing, result, ""); err != nil {
		h.logger.WithError(err).WithField("task_id", task.ID).Warn("Failed to record ingest result")
	}

	h.logger.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"total":     result.Total,
		"succeeded": result.Succeeded,
		"failed":    len(result.Failed),
	}).Info("Directory ingested")

	return nil
}
