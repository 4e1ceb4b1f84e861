package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisTest 设置一个miniredis实例用于测试
// 返回Redis地址和一个清理函数
func setupRedisTest(t *testing.T) (string, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	return mr.Addr(), func() {
		mr.Close()
	}
}

func newTestQueue(t *testing.T) (Queue, func()) {
	redisAddr, cleanup := setupRedisTest(t)

	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	}

	queue, err := NewRedisQueue(cfg)
	require.NoError(t, err)

	return queue, func() {
		queue.Close()
		cleanup()
	}
}

// TestNewRedisQueue 测试创建Redis队列实例
func TestNewRedisQueue(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	}

	queue, err := NewRedisQueue(cfg)
	assert.NoError(t, err)
	assert.NotNil(t, queue)

	err = queue.Close()
	assert.NoError(t, err)
}

// TestRedisQueue_Enqueue 测试队列入队功能
func TestRedisQueue_Enqueue(t *testing.T) {
	queue, cleanup := newTestQueue(t)
	defer cleanup()

	ctx := context.Background()
	payload := &IngestStandardPayload{
		FilePath: "/data/standards/FAS_32.pdf",
		FileName: "FAS_32.pdf",
		FileType: "pdf",
	}

	// 测试基本入队
	taskID, err := queue.Enqueue(ctx, TaskIngestStandard, "FAS_32", payload)
	assert.NoError(t, err)
	assert.NotEmpty(t, taskID)

	// 验证任务已入队
	task, err := queue.GetTask(ctx, taskID)
	assert.NoError(t, err)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, TaskIngestStandard, task.Type)
	assert.Equal(t, "FAS_32", task.StandardID)
	assert.Equal(t, StatusPending, task.Status)
	assert.NotNil(t, task.Payload)
}

// TestRedisQueue_EnqueueAt 测试延时入队功能
func TestRedisQueue_EnqueueAt(t *testing.T) {
	queue, cleanup := newTestQueue(t)
	defer cleanup()

	ctx := context.Background()
	payload := &IngestStandardPayload{
		FilePath: "/data/standards/FAS_32.pdf",
		FileName: "FAS_32.pdf",
		FileType: "pdf",
	}

	// 测试延时入队
	processAt := time.Now().Add(time.Second)
	taskID, err := queue.EnqueueAt(ctx, TaskIngestStandard, "FAS_32", payload, processAt)
	assert.NoError(t, err)
	assert.NotEmpty(t, taskID)

	task, err := queue.GetTask(ctx, taskID)
	assert.NoError(t, err)
	assert.Equal(t, StatusPending, task.Status)
}

// TestRedisQueue_UpdateTaskStatus 测试任务状态更新
func TestRedisQueue_UpdateTaskStatus(t *testing.T) {
	queue, cleanup := newTestQueue(t)
	defer cleanup()

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskIngestStandard, "FAS_32", &IngestStandardPayload{
		FilePath: "/data/standards/FAS_32.pdf",
	})
	require.NoError(t, err)

	// 更新为处理中
	err = queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, "")
	require.NoError(t, err)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, task.Status)
	assert.NotNil(t, task.StartedAt, "处理中状态应设置开始时间")

	// 更新为已完成，带结果
	result := &IngestStandardResult{StandardID: "FAS_32", ChunkCount: 3}
	err = queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, result, "")
	require.NoError(t, err)

	task, err = queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.NotNil(t, task.CompletedAt, "终态应设置完成时间")

	var got IngestStandardResult
	require.NoError(t, UnmarshalPayload(task.Result, &got))
	assert.Equal(t, 3, got.ChunkCount)
}

// TestRedisQueue_GetTasksByStandard 测试按标准查询任务
func TestRedisQueue_GetTasksByStandard(t *testing.T) {
	queue, cleanup := newTestQueue(t)
	defer cleanup()

	ctx := context.Background()
	_, err := queue.Enqueue(ctx, TaskIngestStandard, "FAS_32", nil)
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, TaskIngestStandard, "FAS_32", nil)
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, TaskIngestStandard, "FAS_4", nil)
	require.NoError(t, err)

	tasks, err := queue.GetTasksByStandard(ctx, "FAS_32")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, err = queue.GetTasksByStandard(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

// TestRedisQueue_WaitForTask 测试等待任务完成
func TestRedisQueue_WaitForTask(t *testing.T) {
	queue, cleanup := newTestQueue(t)
	defer cleanup()

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskIngestStandard, "FAS_32", nil)
	require.NoError(t, err)

	// 已完成的任务应立即返回
	require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, nil, ""))

	task, err := queue.WaitForTask(ctx, taskID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)

	// 未完成的任务应超时
	pendingID, err := queue.Enqueue(ctx, TaskIngestStandard, "FAS_4", nil)
	require.NoError(t, err)

	_, err = queue.WaitForTask(ctx, pendingID, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrTaskTimeout)
}

// TestRedisQueue_GetTaskNotFound 测试获取不存在的任务
func TestRedisQueue_GetTaskNotFound(t *testing.T) {
	queue, cleanup := newTestQueue(t)
	defer cleanup()

	_, err := queue.GetTask(context.Background(), "non-existent")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

// TestNewQueueFactory 测试队列工厂
func TestNewQueueFactory(t *testing.T) {
	_, err := NewQueue("unknown", nil)
	assert.Error(t, err, "未知的队列实现应返回错误")
}

// stubIngestor 测试用的摄取桩实现
type stubIngestor struct {
	chunkCount int
	err        error
	calls      []string
}

func (s *stubIngestor) IngestFile(ctx context.Context, filePath string) (string, int, error) {
	s.calls = append(s.calls, filePath)
	if s.err != nil {
		return "", 0, s.err
	}
	return "FAS_32", s.chunkCount, nil
}

func (s *stubIngestor) IngestDirectory(ctx context.Context, dir string) (*IngestDirectoryResult, error) {
	s.calls = append(s.calls, dir)
	if s.err != nil {
		return nil, s.err
	}
	return &IngestDirectoryResult{Total: 2, Succeeded: 2}, nil
}

// TestIngestHandler 测试摄取任务处理器
func TestIngestHandler(t *testing.T) {
	queue, cleanup := newTestQueue(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("IngestStandard", func(t *testing.T) {
		ingestor := &stubIngestor{chunkCount: 3}
		handler := NewIngestHandler(queue, ingestor, nil)

		taskID, err := queue.Enqueue(ctx, TaskIngestStandard, "FAS_32", &IngestStandardPayload{
			FilePath: "/data/standards/FAS_32.pdf",
		})
		require.NoError(t, err)

		task, err := queue.GetTask(ctx, taskID)
		require.NoError(t, err)

		require.NoError(t, handler.ProcessTask(ctx, task))
		assert.Equal(t, []string{"/data/standards/FAS_32.pdf"}, ingestor.calls)
	})

	t.Run("IngestDirectory", func(t *testing.T) {
		ingestor := &stubIngestor{}
		handler := NewIngestHandler(queue, ingestor, nil)

		taskID, err := queue.Enqueue(ctx, TaskIngestDirectory, "", &IngestDirectoryPayload{
			Dir: "/data/standards",
		})
		require.NoError(t, err)

		task, err := queue.GetTask(ctx, taskID)
		require.NoError(t, err)

		require.NoError(t, handler.ProcessTask(ctx, task))
		assert.Equal(t, []string{"/data/standards"}, ingestor.calls)
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		ingestor := &stubIngestor{}
		handler := NewIngestHandler(queue, ingestor, nil)

		taskID, err := queue.Enqueue(ctx, TaskIngestStandard, "FAS_32", &IngestStandardPayload{})
		require.NoError(t, err)

		task, err := queue.GetTask(ctx, taskID)
		require.NoError(t, err)

		err = handler.ProcessTask(ctx, task)
		assert.ErrorIs(t, err, ErrInvalidPayload)
		assert.Empty(t, ingestor.calls, "无效载荷不应触发摄取")
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		handler := NewIngestHandler(queue, &stubIngestor{}, nil)
		err := handler.ProcessTask(ctx, &Task{ID: "t1", Type: "unknown"})
		assert.Error(t, err)
	})
}
