package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/standards-review-system/api/middleware"
	"github.com/fyerfyer/standards-review-system/api/model"
	"github.com/fyerfyer/standards-review-system/internal/models"
	"github.com/fyerfyer/standards-review-system/internal/services"
)

// StandardHandler 处理标准文档相关的API请求
type StandardHandler struct {
	standardService *services.StandardService // 标准摄取服务
	logger          *logrus.Logger            // 日志记录器
}

// NewStandardHandler 创建新的标准处理器
func NewStandardHandler(standardService *services.StandardService) *StandardHandler {
	return &StandardHandler{
		standardService: standardService,
		logger:          middleware.GetLogger(),
	}
}

// UploadStandard 处理标准上传请求
// POST /api/standards
func (h *StandardHandler) UploadStandard(c *gin.Context) {
	// 绑定请求参数
	var req model.StandardUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WithField("error", err.Error()).Warn("Invalid standard upload request")

		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			bindErrorMessage(err),
		))
		return
	}

	// 检查文件类型
	filename := req.File.Filename
	if !isValidFileType(filepath.Ext(filename)) {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"unsupported file type, only .pdf, .md, .markdown and .txt are accepted",
		))
		return
	}

	// 打开上传的文件
	file, err := req.File.Open()
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": filename,
		}).Error("Failed to open uploaded file")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"failed to open uploaded file",
		))
		return
	}
	defer file.Close()

	// 保存并摄取标准
	standardID, chunkCount, err := h.standardService.IngestUpload(c.Request.Context(), file, filename)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": filename,
		}).Error("Failed to ingest standard")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"failed to ingest standard",
		))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"standard_id": standardID,
		"filename":    filename,
		"chunk_count": chunkCount,
	}).Info("Standard uploaded and ingested")

	status := string(models.StandardCompleted)
	if chunkCount == 0 {
		// 异步模式下摄取尚未完成
		status = string(models.StandardProcessing)
	}

	resp := model.StandardUploadResponse{
		StandardID: standardID,
		FileName:   filename,
		Status:     status,
		ChunkCount: chunkCount,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetStandardStatus 获取标准处理状态
// GET /api/standards/:id/status
func (h *StandardHandler) GetStandardStatus(c *gin.Context) {
	// 绑定路径参数
	var req model.StandardStatusRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "invalid standard id"))
		return
	}

	standard, err := h.standardService.GetStandard(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrStandardNotFound) {
			c.JSON(http.StatusNotFound, model.NewErrorResponse(http.StatusNotFound, "standard not found"))
			return
		}

		h.logger.WithFields(logrus.Fields{
			"error":       err.Error(),
			"standard_id": req.ID,
		}).Error("Failed to get standard info")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError, "failed to get standard info"))
		return
	}

	resp := model.StandardStatusResponse{
		StandardID: standard.ID,
		Status:     string(standard.Status),
		FileName:   standard.FileName,
		Progress:   standard.Progress,
		ChunkCount: standard.ChunkCount,
		Error:      standard.Error,
		UploadedAt: standard.UploadedAt.Format(time.RFC3339),
		UpdatedAt:  standard.UpdatedAt.Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// ListStandards 获取标准列表
// GET /api/standards
func (h *StandardHandler) ListStandards(c *gin.Context) {
	// 绑定查询参数
	var req model.StandardListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, bindErrorMessage(err)))
		return
	}

	// 构建过滤条件
	filters := make(map[string]interface{})
	if req.Status != "" {
		filters["status"] = req.Status
	}

	page := req.GetPage()
	pageSize := req.GetPageSize()
	offset := (page - 1) * pageSize

	standards, total, err := h.standardService.ListStandards(c.Request.Context(), offset, pageSize, filters)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to list standards")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError, "failed to list standards"))
		return
	}

	infos := make([]model.StandardInfo, len(standards))
	for i, standard := range standards {
		infos[i] = model.NewStandardInfo(standard)
	}

	resp := model.StandardListResponse{
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
		Standards: infos,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// DeleteStandard 删除标准
// DELETE /api/standards/:id
func (h *StandardHandler) DeleteStandard(c *gin.Context) {
	// 绑定路径参数
	var req model.StandardDeleteRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "invalid standard id"))
		return
	}

	if err := h.standardService.DeleteStandard(c.Request.Context(), req.ID); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":       err.Error(),
			"standard_id": req.ID,
		}).Error("Failed to delete standard")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"failed to delete standard",
		))
		return
	}

	h.logger.WithField("standard_id", req.ID).Info("Standard deleted successfully")

	resp := model.StandardDeleteResponse{
		Success:    true,
		StandardID: req.ID,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// isValidFileType 检查文件类型是否有效
func isValidFileType(ext string) bool {
	validTypes := map[string]bool{
		".pdf":      true,
		".md":       true,
		".markdown": true,
		".txt":      true,
	}
	return validTypes[ext]
}
