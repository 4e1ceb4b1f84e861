package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fyerfyer/standards-review-system/internal/cache"
	"github.com/fyerfyer/standards-review-system/internal/document"
	"github.com/fyerfyer/standards-review-system/internal/models"
	"github.com/fyerfyer/standards-review-system/internal/repository"
	"github.com/fyerfyer/standards-review-system/internal/vectordb"
	"github.com/fyerfyer/standards-review-system/pkg/storage"
)

// newServiceTestDB 创建内存SQLite数据库
func newServiceTestDB(t *testing.T) *gorm.DB {
	dbName := fmt.Sprintf("file:svcdb_%d?mode=memory", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")

	err = db.AutoMigrate(&models.Standard{}, &models.StandardChunk{}, &models.PipelineRun{})
	require.NoError(t, err, "Failed to run migrations")

	return db
}

// newServiceTestRepo 基于测试数据库创建仓储
func newServiceTestRepo(db *gorm.DB) repository.StandardRepository {
	return repository.NewStandardRepositoryWithDB(db)
}

// countingEmbedder 测试用嵌入客户端，统计调用的文本数量
type countingEmbedder struct {
	embedded int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embedded++
	return []float32{1, 0, 0}, nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.embedded += len(texts)
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, float32(i), 0}
	}
	return vectors, nil
}

func (c *countingEmbedder) Name() string {
	return "stub-embedder"
}

// standardTestEnv 标准服务测试环境
type standardTestEnv struct {
	service  *StandardService
	embedder *countingEmbedder
	vectorDB vectordb.Repository
	repo     repository.StandardRepository
	storeDir string
	dataDir  string
}

// newStandardTestEnv 创建标准服务测试环境
func newStandardTestEnv(t *testing.T, opts ...StandardOption) *standardTestEnv {
	storeDir := t.TempDir()
	localStorage, err := storage.NewLocalStorage(storage.LocalConfig{Path: storeDir})
	require.NoError(t, err)

	splitter, err := document.NewWindowSplitter(document.SplitterConfig{
		ChunkSize:    40,
		ChunkOverlap: 10,
	})
	require.NoError(t, err)

	vdb, err := vectordb.NewRepository(vectordb.Config{
		Type:         "memory",
		InMemory:     true,
		Dimension:    3,
		DistanceType: vectordb.Cosine,
	})
	require.NoError(t, err)
	t.Cleanup(func() { vdb.Close() })

	repo := newServiceTestRepo(newServiceTestDB(t))
	embedder := &countingEmbedder{}

	allOpts := append([]StandardOption{
		WithStandardRepository(repo),
		WithBatchSize(4),
	}, opts...)

	srv := NewStandardService(localStorage, splitter, embedder, vdb, allOpts...)

	return &standardTestEnv{
		service:  srv,
		embedder: embedder,
		vectorDB: vdb,
		repo:     repo,
		storeDir: storeDir,
		dataDir:  t.TempDir(),
	}
}

// writeStandardFile 在数据目录中写入一个标准文本文件
func (env *standardTestEnv) writeStandardFile(t *testing.T, name, content string) string {
	path := filepath.Join(env.dataDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestStandardService_IngestFile(t *testing.T) {
	env := newStandardTestEnv(t)
	content := "This standard establishes principles for the recognition of financial instruments in interim reports."
	path := env.writeStandardFile(t, "FAS_32.txt", content)

	standardID, chunkCount, err := env.service.IngestFile(context.Background(), path)
	require.NoError(t, err, "摄取标准文件不应失败")
	assert.Equal(t, "FAS_32", standardID, "标准ID应为文件名去扩展名")
	assert.Greater(t, chunkCount, 1, "长文本应被分成多个分块")

	// 向量数据库中应有对应分块
	chunks, err := env.vectorDB.GetByStandardID("FAS_32")
	require.NoError(t, err)
	require.Len(t, chunks, chunkCount)
	assert.Equal(t, "FAS_32_0", chunks[0].ID, "分块ID格式应为<标准ID>_<序号>")

	// 元数据记录应为完成状态
	standard, err := env.repo.GetByID("FAS_32")
	require.NoError(t, err)
	assert.Equal(t, models.StandardCompleted, standard.Status)
	assert.Equal(t, chunkCount, standard.ChunkCount)
	assert.Equal(t, 100, standard.Progress)
	assert.NotNil(t, standard.ProcessedAt)

	// 分块记录应与向量库一致
	dbChunks, err := env.repo.GetChunks("FAS_32")
	require.NoError(t, err)
	assert.Len(t, dbChunks, chunkCount)
}

func TestStandardService_ReingestIdempotent(t *testing.T) {
	env := newStandardTestEnv(t)
	longContent := "This standard establishes principles for the recognition of financial instruments in interim reports."
	path := env.writeStandardFile(t, "FAS_32.txt", longContent)

	_, firstCount, err := env.service.IngestFile(context.Background(), path)
	require.NoError(t, err)

	// 换成更短的内容重新摄取，不应残留旧分块
	require.NoError(t, os.WriteFile(path, []byte("short replacement text"), 0644))

	_, secondCount, err := env.service.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Less(t, secondCount, firstCount, "较短的内容应产生更少的分块")

	total, err := env.vectorDB.Count()
	require.NoError(t, err)
	assert.Equal(t, secondCount, total, "重新摄取不应残留旧分块")

	dbCount, err := env.repo.CountChunks("FAS_32")
	require.NoError(t, err)
	assert.Equal(t, secondCount, dbCount)
}

func TestStandardService_IngestUpload(t *testing.T) {
	env := newStandardTestEnv(t)
	content := "Uploaded standard content for review and classification purposes."

	standardID, chunkCount, err := env.service.IngestUpload(context.Background(),
		bytes.NewBufferString(content), "FAS_4.txt")
	require.NoError(t, err)
	assert.Equal(t, "FAS_4", standardID)
	assert.Greater(t, chunkCount, 0)

	// 原始文件应被保存
	exists, err := env.service.storage.Exists("FAS_4")
	require.NoError(t, err)
	assert.True(t, exists, "上传的原始文件应被保存")

	chunks, err := env.vectorDB.GetByStandardID("FAS_4")
	require.NoError(t, err)
	assert.Len(t, chunks, chunkCount)
}

func TestStandardService_IngestDirectory(t *testing.T) {
	env := newStandardTestEnv(t)
	env.writeStandardFile(t, "FAS_32.txt", "First standard content for testing directory ingestion.")
	env.writeStandardFile(t, "FAS_4.md", "# Second Standard\n\nSecond standard content for testing.")
	env.writeStandardFile(t, "notes.docx", "unsupported file should be skipped")

	result, err := env.service.IngestDirectory(context.Background(), env.dataDir)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total, "不支持的文件类型应被跳过")
	assert.Equal(t, 2, result.Succeeded)
	assert.Empty(t, result.Failed)

	standards, err := env.vectorDB.ListStandards()
	require.NoError(t, err)
	assert.Equal(t, []string{"FAS_32", "FAS_4"}, standards)

	t.Run("MissingDirectory", func(t *testing.T) {
		_, err := env.service.IngestDirectory(context.Background(), filepath.Join(env.dataDir, "missing"))
		assert.Error(t, err)
	})
}

func TestStandardService_IngestFailure(t *testing.T) {
	env := newStandardTestEnv(t)

	t.Run("EmptyContent", func(t *testing.T) {
		path := env.writeStandardFile(t, "FAS_10.txt", "   \n\n  ")

		_, _, err := env.service.IngestFile(context.Background(), path)
		assert.ErrorIs(t, err, document.ErrNoTextContent)

		// 失败应被记录到元数据
		standard, err := env.repo.GetByID("FAS_10")
		require.NoError(t, err)
		assert.Equal(t, models.StandardFailed, standard.Status)
		assert.NotEmpty(t, standard.Error)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, _, err := env.service.IngestFile(context.Background(), filepath.Join(env.dataDir, "missing.txt"))
		assert.Error(t, err)
	})
}

func TestStandardService_EmbeddingCache(t *testing.T) {
	memCache, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)

	env := newStandardTestEnv(t, WithEmbeddingCache(memCache))
	path := env.writeStandardFile(t, "FAS_32.txt", "Cached standard content used to verify embedding reuse across ingestions.")

	_, chunkCount, err := env.service.IngestFile(context.Background(), path)
	require.NoError(t, err)
	firstCalls := env.embedder.embedded
	assert.Equal(t, chunkCount, firstCalls, "首次摄取每个分块都应调用嵌入服务")

	// 内容不变时重新摄取应全部命中缓存
	_, _, err = env.service.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, firstCalls, env.embedder.embedded, "缓存命中时不应再调用嵌入服务")
}

func TestStandardService_DeleteStandard(t *testing.T) {
	env := newStandardTestEnv(t)
	content := "Standard content that will be deleted after ingestion."

	_, _, err := env.service.IngestUpload(context.Background(), bytes.NewBufferString(content), "FAS_32.txt")
	require.NoError(t, err)

	require.NoError(t, env.service.DeleteStandard(context.Background(), "FAS_32"))

	chunks, err := env.vectorDB.GetByStandardID("FAS_32")
	require.NoError(t, err)
	assert.Empty(t, chunks, "删除后向量数据库中不应有分块")

	_, err = env.repo.GetByID("FAS_32")
	assert.ErrorIs(t, err, models.ErrStandardNotFound)

	exists, err := env.service.storage.Exists("FAS_32")
	require.NoError(t, err)
	assert.False(t, exists, "删除后原始文件不应存在")
}

func TestStandardService_ListStandards(t *testing.T) {
	env := newStandardTestEnv(t)
	env.writeStandardFile(t, "FAS_32.txt", "First standard content for the listing test case.")
	path := filepath.Join(env.dataDir, "FAS_32.txt")

	_, _, err := env.service.IngestFile(context.Background(), path)
	require.NoError(t, err)

	standards, total, err := env.service.ListStandards(context.Background(), 0, 10, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, standards, 1)
	assert.Equal(t, "FAS_32", standards[0].ID)
}
