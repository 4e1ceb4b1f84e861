package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fyerfyer/standards-review-system/internal/database"
	"github.com/fyerfyer/standards-review-system/internal/models"
)

func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	// 使用唯一的内存数据库标识符
	dbName := fmt.Sprintf("file:memdb_%d?mode=memory", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")

	err = db.AutoMigrate(&models.Standard{}, &models.StandardChunk{}, &models.PipelineRun{})
	require.NoError(t, err, "Failed to run migrations")

	originalDB := database.DB
	database.DB = db

	cleanup := func() {
		database.DB = originalDB
	}

	return db, cleanup
}

func newTestStandard(id string) *models.Standard {
	return &models.Standard{
		ID:         id,
		FileName:   id + ".pdf",
		FileType:   "pdf",
		FilePath:   "/data/standards/" + id + ".pdf",
		FileSize:   2048,
		Status:     models.StandardUploaded,
		UploadedAt: time.Now(),
		UpdatedAt:  time.Now(),
	}
}

func TestStandardRepository_CreateAndGet(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStandardRepository()

	standard := newTestStandard("FAS_32")
	require.NoError(t, repo.Create(standard), "创建标准记录不应失败")

	got, err := repo.GetByID("FAS_32")
	require.NoError(t, err)
	assert.Equal(t, "FAS_32.pdf", got.FileName)
	assert.Equal(t, models.StandardUploaded, got.Status)

	t.Run("EmptyID", func(t *testing.T) {
		err := repo.Create(&models.Standard{})
		assert.Error(t, err, "空ID应返回错误")
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetByID("missing")
		assert.ErrorIs(t, err, models.ErrStandardNotFound)
	})
}

func TestStandardRepository_UpdateStatus(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStandardRepository()
	require.NoError(t, repo.Create(newTestStandard("FAS_32")))

	require.NoError(t, repo.UpdateStatus("FAS_32", models.StandardProcessing, ""))
	got, err := repo.GetByID("FAS_32")
	require.NoError(t, err)
	assert.Equal(t, models.StandardProcessing, got.Status)
	assert.Nil(t, got.ProcessedAt, "处理中状态不应设置完成时间")

	require.NoError(t, repo.UpdateStatus("FAS_32", models.StandardFailed, "extract failed"))
	got, err = repo.GetByID("FAS_32")
	require.NoError(t, err)
	assert.Equal(t, models.StandardFailed, got.Status)
	assert.Equal(t, "extract failed", got.Error, "错误信息应被保存")
	assert.NotNil(t, got.ProcessedAt, "终态应设置完成时间")
}

func TestStandardRepository_List(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStandardRepository()
	require.NoError(t, repo.Create(newTestStandard("FAS_32")))
	require.NoError(t, repo.Create(newTestStandard("FAS_4")))
	require.NoError(t, repo.UpdateStatus("FAS_4", models.StandardCompleted, ""))

	t.Run("All", func(t *testing.T) {
		standards, total, err := repo.List(0, 10, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Len(t, standards, 2)
	})

	t.Run("FilterByStatus", func(t *testing.T) {
		standards, total, err := repo.List(0, 10, map[string]interface{}{
			"status": models.StandardCompleted,
		})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, standards, 1)
		assert.Equal(t, "FAS_4", standards[0].ID)
	})

	t.Run("Pagination", func(t *testing.T) {
		standards, total, err := repo.List(0, 1, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 2, total, "总数应不受分页影响")
		assert.Len(t, standards, 1)
	})
}

func TestStandardRepository_Chunks(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStandardRepository()
	require.NoError(t, repo.Create(newTestStandard("FAS_32")))

	chunks := []*models.StandardChunk{
		{StandardID: "FAS_32", ChunkID: "FAS_32_1", Position: 1, Text: "second"},
		{StandardID: "FAS_32", ChunkID: "FAS_32_0", Position: 0, Text: "first"},
	}
	require.NoError(t, repo.SaveChunks(chunks))

	got, err := repo.GetChunks("FAS_32")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text, "分块应按序号升序返回")

	count, err := repo.CountChunks("FAS_32")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repo.DeleteChunks("FAS_32"))
	count, err = repo.CountChunks("FAS_32")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStandardRepository_Runs(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStandardRepository()
	require.NoError(t, repo.Create(newTestStandard("FAS_32")))

	run := &models.PipelineRun{
		StandardID:  "FAS_32",
		ReviewModel: "qwen-plus",
		ReportModel: "qwen-max",
		StartedAt:   time.Now().Add(-time.Minute),
	}
	require.NoError(t, repo.CreateRun(run))
	assert.Equal(t, models.RunPending, run.Stage, "新建运行记录应处于待处理阶段")

	run.Stage = models.RunReviewed
	require.NoError(t, repo.UpdateRun(run))

	later := &models.PipelineRun{StandardID: "FAS_32", StartedAt: time.Now()}
	require.NoError(t, repo.CreateRun(later))

	latest, err := repo.GetLatestRun("FAS_32")
	require.NoError(t, err)
	assert.Equal(t, later.ID, latest.ID, "应返回最近一次运行记录")

	runs, err := repo.ListRuns("FAS_32")
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	t.Run("NoRuns", func(t *testing.T) {
		_, err := repo.GetLatestRun("missing")
		assert.ErrorIs(t, err, models.ErrRunNotFound)
	})
}

func TestStandardRepository_Delete(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStandardRepository()
	require.NoError(t, repo.Create(newTestStandard("FAS_32")))
	require.NoError(t, repo.SaveChunks([]*models.StandardChunk{
		{StandardID: "FAS_32", ChunkID: "FAS_32_0", Position: 0, Text: "chunk"},
	}))
	require.NoError(t, repo.CreateRun(&models.PipelineRun{StandardID: "FAS_32"}))

	require.NoError(t, repo.Delete("FAS_32"))

	_, err := repo.GetByID("FAS_32")
	assert.ErrorIs(t, err, models.ErrStandardNotFound)

	count, err := repo.CountChunks("FAS_32")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "删除标准应级联删除分块记录")

	runs, err := repo.ListRuns("FAS_32")
	require.NoError(t, err)
	assert.Empty(t, runs, "删除标准应级联删除运行记录")
}
