package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/standards-review-system/internal/cache"
	"github.com/fyerfyer/standards-review-system/internal/document"
	"github.com/fyerfyer/standards-review-system/internal/embedding"
	"github.com/fyerfyer/standards-review-system/internal/models"
	"github.com/fyerfyer/standards-review-system/internal/repository"
	"github.com/fyerfyer/standards-review-system/internal/vectordb"
	"github.com/fyerfyer/standards-review-system/pkg/storage"
	"github.com/fyerfyer/standards-review-system/pkg/taskqueue"
)

// StandardService 标准摄取服务
// 负责协调标准文档的解析、清洗、分块、向量化和入库
type StandardService struct {
	storage      storage.Storage               // 原始文件存储
	splitter     document.Splitter             // 文本分块器
	embedder     embedding.Client              // 嵌入模型客户端
	vectorDB     vectordb.Repository           // 向量数据库
	repo         repository.StandardRepository // 标准元数据存储
	cache        cache.Cache                   // 嵌入结果缓存
	taskQueue    taskqueue.Queue               // 任务队列
	asyncEnabled bool                          // 是否启用异步摄取
	batchSize    int                           // 嵌入批处理大小
	timeout      time.Duration                 // 摄取超时时间
	logger       *logrus.Logger                // 日志记录器
}

// StandardOption 标准服务配置选项
type StandardOption func(*StandardService)

// NewStandardService 创建标准摄取服务
func NewStandardService(
	storage storage.Storage,
	splitter document.Splitter,
	embedder embedding.Client,
	vectorDB vectordb.Repository,
	opts ...StandardOption,
) *StandardService {
	srv := &StandardService{
		storage:   storage,
		splitter:  splitter,
		embedder:  embedder,
		vectorDB:  vectorDB,
		batchSize: 10,
		timeout:   time.Minute * 10,
		logger:    logrus.New(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// WithStandardRepository 设置标准仓储
func WithStandardRepository(repo repository.StandardRepository) StandardOption {
	return func(s *StandardService) {
		s.repo = repo
	}
}

// WithEmbeddingCache 设置嵌入结果缓存
func WithEmbeddingCache(c cache.Cache) StandardOption {
	return func(s *StandardService) {
		s.cache = c
	}
}

// WithTaskQueue 设置任务队列，启用异步摄取
func WithTaskQueue(queue taskqueue.Queue) StandardOption {
	return func(s *StandardService) {
		s.taskQueue = queue
		s.asyncEnabled = queue != nil
	}
}

// WithBatchSize 设置嵌入批处理大小
func WithBatchSize(size int) StandardOption {
	return func(s *StandardService) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithTimeout 设置摄取超时时间
func WithTimeout(timeout time.Duration) StandardOption {
	return func(s *StandardService) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) StandardOption {
	return func(s *StandardService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// IngestUpload 摄取上传的标准文件
// 先保存原始文件，再执行摄取流程
func (s *StandardService) IngestUpload(ctx context.Context, reader io.Reader, filename string) (string, int, error) {
	info, err := s.storage.Save(reader, filename)
	if err != nil {
		return "", 0, fmt.Errorf("failed to save uploaded file: %w", err)
	}

	// 异步模式下入队后立即返回
	if s.asyncEnabled && s.taskQueue != nil {
		if err := s.ensureRecord(info.ID, info); err != nil {
			return "", 0, err
		}

		payload := taskqueue.IngestStandardPayload{
			FilePath: info.Path,
			FileName: info.Name,
			FileType: strings.TrimPrefix(filepath.Ext(info.Name), "."),
		}
		if _, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskIngestStandard, info.ID, payload); err != nil {
			return "", 0, fmt.Errorf("failed to enqueue ingest task: %w", err)
		}

		s.logger.WithField("standard_id", info.ID).Info("Standard enqueued for async ingestion")
		return info.ID, 0, nil
	}

	file, err := s.storage.Get(info.ID)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read saved file: %w", err)
	}
	defer file.Close()

	count, err := s.ingest(ctx, info.ID, info, func() (string, error) {
		parser, err := document.ParserFactory(info.Name)
		if err != nil {
			return "", err
		}
		return parser.ParseReader(file, info.Name)
	})

	return info.ID, count, err
}

// IngestFile 摄取本地磁盘上的标准文件
// 实现taskqueue.Ingestor接口
func (s *StandardService) IngestFile(ctx context.Context, filePath string) (string, int, error) {
	standardID := document.StandardName(filePath)
	if standardID == "" {
		return "", 0, fmt.Errorf("invalid file path: %s", filePath)
	}

	stat, err := os.Stat(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat file: %w", err)
	}

	info := storage.FileInfo{
		ID:   standardID,
		Name: filepath.Base(filePath),
		Size: stat.Size(),
		Path: filePath,
	}

	count, err := s.ingest(ctx, standardID, info, func() (string, error) {
		parser, err := document.ParserFactory(filePath)
		if err != nil {
			return "", err
		}
		return parser.Parse(filePath)
	})

	return standardID, count, err
}

// IngestDirectory 摄取目录下的所有受支持的标准文件
// 单个文件失败不影响其他文件
func (s *StandardService) IngestDirectory(ctx context.Context, dir string) (*taskqueue.IngestDirectoryResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	result := &taskqueue.IngestDirectoryResult{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filePath := filepath.Join(dir, entry.Name())
		if _, err := document.ParserFactory(filePath); err != nil {
			// 跳过不支持的文件类型
			continue
		}

		result.Total++
		standardID, _, err := s.IngestFile(ctx, filePath)
		if err != nil {
			s.logger.WithError(err).WithField("file", entry.Name()).Error("Failed to ingest standard file")
			if standardID == "" {
				standardID = document.StandardName(filePath)
			}
			result.Failed = append(result.Failed, standardID)
			continue
		}
		result.Succeeded++
	}

	sort.Strings(result.Failed)
	return result, nil
}

// ingest 执行摄取流程：解析、清洗、分块、向量化、入库
func (s *StandardService) ingest(ctx context.Context, standardID string, info storage.FileInfo, parse func() (string, error)) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.WithFields(logrus.Fields{
		"standard_id": standardID,
		"file_name":   info.Name,
	}).Info("Starting standard ingestion")

	if err := s.ensureRecord(standardID, info); err != nil {
		return 0, err
	}
	s.updateStatus(standardID, models.StandardProcessing, "")

	// 解析文档内容
	content, err := parse()
	if err != nil {
		s.failStandard(standardID, fmt.Sprintf("failed to parse document: %v", err))
		return 0, fmt.Errorf("failed to parse document: %w", err)
	}

	// 清洗文本
	content = document.CleanText(content)
	if content == "" {
		s.failStandard(standardID, document.ErrNoTextContent.Error())
		return 0, document.ErrNoTextContent
	}
	s.updateProgress(standardID, 20)

	// 文本分块
	chunks, err := s.splitter.Split(content)
	if err != nil {
		s.failStandard(standardID, fmt.Sprintf("failed to split content: %v", err))
		return 0, fmt.Errorf("failed to split content: %w", err)
	}
	if len(chunks) == 0 {
		s.failStandard(standardID, document.ErrNoTextContent.Error())
		return 0, document.ErrNoTextContent
	}
	s.updateProgress(standardID, 40)

	// 向量化
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedTexts(ctx, texts)
	if err != nil {
		s.failStandard(standardID, fmt.Sprintf("failed to generate embeddings: %v", err))
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	s.updateProgress(standardID, 70)

	// 先清理旧数据，避免重新摄取后残留多余分块
	if err := s.vectorDB.DeleteByStandardID(standardID); err != nil {
		s.logger.WithError(err).Warn("Failed to clear existing vectors")
	}
	if s.repo != nil {
		if err := s.repo.DeleteChunks(standardID); err != nil {
			s.logger.WithError(err).Warn("Failed to clear existing chunk records")
		}
	}

	// 构建向量分块并入库，ID为<标准ID>_<序号>
	now := time.Now()
	vdbChunks := make([]vectordb.Chunk, len(chunks))
	dbChunks := make([]*models.StandardChunk, len(chunks))
	for i, chunk := range chunks {
		chunkID := fmt.Sprintf("%s_%d", standardID, chunk.Index)
		vdbChunks[i] = vectordb.Chunk{
			ID:         chunkID,
			StandardID: standardID,
			Position:   chunk.Index,
			Text:       chunk.Text,
			Vector:     vectors[i],
			CreatedAt:  now,
			Metadata: map[string]interface{}{
				"source": info.Name,
			},
		}
		dbChunks[i] = &models.StandardChunk{
			StandardID: standardID,
			ChunkID:    chunkID,
			Position:   chunk.Index,
			Text:       chunk.Text,
		}
	}

	if err := s.vectorDB.AddBatch(vdbChunks); err != nil {
		s.failStandard(standardID, fmt.Sprintf("failed to store vectors: %v", err))
		return 0, fmt.Errorf("failed to store vectors: %w", err)
	}

	if s.repo != nil {
		if err := s.repo.SaveChunks(dbChunks); err != nil {
			s.logger.WithError(err).Error("Failed to save chunk records")
			// 向量已入库，不中断流程
		}
	}

	s.markCompleted(standardID, len(chunks))

	s.logger.WithFields(logrus.Fields{
		"standard_id": standardID,
		"chunk_count": len(chunks),
	}).Info("Standard ingestion completed")

	return len(chunks), nil
}

// embedTexts 带缓存的批量向量化
// 命中缓存的文本不再调用嵌入服务
func (s *StandardService) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if s.cache == nil {
		return embedding.EmbedAll(ctx, s.embedder, texts, s.batchSize)
	}

	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		key := cache.EmbeddingKey(s.embedder.Name(), text)
		if value, found, err := s.cache.Get(key); err == nil && found {
			var vector []float32
			if err := json.Unmarshal([]byte(value), &vector); err == nil && len(vector) > 0 {
				vectors[i] = vector
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	embedded, err := embedding.EmbedAll(ctx, s.embedder, missing, s.batchSize)
	if err != nil {
		return nil, err
	}

	for j, vector := range embedded {
		idx := missingIdx[j]
		vectors[idx] = vector

		key := cache.EmbeddingKey(s.embedder.Name(), missing[j])
		if data, err := json.Marshal(vector); err == nil {
			if err := s.cache.Set(key, string(data), 0); err != nil {
				s.logger.WithError(err).Debug("Failed to cache embedding")
			}
		}
	}

	return vectors, nil
}

// DeleteStandard 删除标准及其全部相关数据
func (s *StandardService) DeleteStandard(ctx context.Context, standardID string) error {
	s.logger.WithField("standard_id", standardID).Info("Deleting standard")

	// 从向量数据库中删除
	if err := s.vectorDB.DeleteByStandardID(standardID); err != nil {
		return fmt.Errorf("failed to delete standard vectors: %w", err)
	}

	// 从存储中删除原始文件
	if err := s.storage.Delete(standardID); err != nil {
		// 文件可能已被删除，记录但不中断
		s.logger.WithError(err).Warn("Failed to delete file from storage")
	}

	// 删除元数据记录
	if s.repo != nil {
		if err := s.repo.Delete(standardID); err != nil && !errors.Is(err, models.ErrStandardNotFound) {
			return fmt.Errorf("failed to delete standard record: %w", err)
		}
	}

	return nil
}

// GetStandard 获取标准元数据
func (s *StandardService) GetStandard(ctx context.Context, standardID string) (*models.Standard, error) {
	if s.repo == nil {
		return nil, models.ErrStandardNotFound
	}
	return s.repo.GetByID(standardID)
}

// ListStandards 列出标准元数据，支持分页和筛选
func (s *StandardService) ListStandards(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Standard, int64, error) {
	if s.repo == nil {
		return nil, 0, fmt.Errorf("standard repository not configured")
	}
	return s.repo.List(offset, limit, filters)
}

// CountChunks 统计标准的分块数量
func (s *StandardService) CountChunks(ctx context.Context, standardID string) (int, error) {
	if s.repo == nil {
		return 0, fmt.Errorf("standard repository not configured")
	}
	return s.repo.CountChunks(standardID)
}

// ensureRecord 确保标准元数据记录存在
func (s *StandardService) ensureRecord(standardID string, info storage.FileInfo) error {
	if s.repo == nil {
		return nil
	}

	existing, err := s.repo.GetByID(standardID)
	if err == nil {
		// 已存在则更新文件信息
		existing.FileName = info.Name
		existing.FilePath = info.Path
		existing.FileSize = info.Size
		return s.repo.Update(existing)
	}
	if !errors.Is(err, models.ErrStandardNotFound) {
		return fmt.Errorf("failed to check standard record: %w", err)
	}

	standard := &models.Standard{
		ID:         standardID,
		FileName:   info.Name,
		FileType:   strings.TrimPrefix(filepath.Ext(info.Name), "."),
		FilePath:   info.Path,
		FileSize:   info.Size,
		Status:     models.StandardUploaded,
		UploadedAt: time.Now(),
	}
	return s.repo.Create(standard)
}

// updateStatus 更新标准状态
func (s *StandardService) updateStatus(standardID string, status models.StandardStatus, errMsg string) {
	if s.repo == nil {
		return
	}
	if err := s.repo.UpdateStatus(standardID, status, errMsg); err != nil {
		s.logger.WithError(err).Warn("Failed to update standard status")
	}
}

// updateProgress 更新标准处理进度
func (s *StandardService) updateProgress(standardID string, progress int) {
	if s.repo == nil {
		return
	}
	if err := s.repo.UpdateProgress(standardID, progress); err != nil {
		s.logger.WithError(err).Warn("Failed to update standard progress")
	}
}

// failStandard 将标准标记为失败状态
func (s *StandardService) failStandard(standardID string, errMsg string) {
	s.updateStatus(standardID, models.StandardFailed, errMsg)
}

// markCompleted 将标准标记为完成并记录分块数量
func (s *StandardService) markCompleted(standardID string, chunkCount int) {
	if s.repo == nil {
		return
	}

	s.updateProgress(standardID, 100)
	s.updateStatus(standardID, models.StandardCompleted, "")

	standard, err := s.repo.GetByID(standardID)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to record chunk count")
		return
	}
	standard.ChunkCount = chunkCount
	if err := s.repo.Update(standard); err != nil {
		s.logger.WithError(err).Warn("Failed to record chunk count")
	}
}
