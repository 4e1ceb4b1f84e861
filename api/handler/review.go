package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/standards-review-system/api/middleware"
	"github.com/fyerfyer/standards-review-system/api/model"
	"github.com/fyerfyer/standards-review-system/internal/models"
	"github.com/fyerfyer/standards-review-system/internal/services"
)

// ReviewHandler 处理标准审查相关的API请求
type ReviewHandler struct {
	pipelineService *services.PipelineService // 审查流水线服务
	logger          *logrus.Logger            // 日志记录器
}

// NewReviewHandler 创建新的审查处理器
func NewReviewHandler(pipelineService *services.PipelineService) *ReviewHandler {
	return &ReviewHandler{
		pipelineService: pipelineService,
		logger:          middleware.GetLogger(),
	}
}

// StartReview 对指定标准执行完整的审查流水线
// POST /api/reviews/:id
func (h *ReviewHandler) StartReview(c *gin.Context) {
	// 绑定路径参数
	var req model.ReviewRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "invalid standard id"))
		return
	}

	h.logger.WithField("standard_id", req.ID).Info("Starting review pipeline")

	result, err := h.pipelineService.Process(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrStandardNotFound) {
			c.JSON(http.StatusNotFound, model.NewErrorResponse(http.StatusNotFound, "standard not found"))
			return
		}

		h.logger.WithFields(logrus.Fields{
			"error":       err.Error(),
			"standard_id": req.ID,
		}).Error("Review pipeline failed")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"review pipeline failed",
		))
		return
	}

	resp := model.ReviewResponse{
		StandardID: req.ID,
		Result:     result,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetLatestReview 获取标准最近一次审查运行记录
// GET /api/reviews/:id
func (h *ReviewHandler) GetLatestReview(c *gin.Context) {
	// 绑定路径参数
	var req model.ReviewRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "invalid standard id"))
		return
	}

	run, err := h.pipelineService.GetLatestRun(req.ID)
	if err != nil {
		if errors.Is(err, models.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, model.NewErrorResponse(http.StatusNotFound, "no review run found for standard"))
			return
		}

		h.logger.WithFields(logrus.Fields{
			"error":       err.Error(),
			"standard_id": req.ID,
		}).Error("Failed to get review run")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"failed to get review run",
		))
		return
	}

	resp := model.ReviewRunResponse{
		StandardID:  run.StandardID,
		Stage:       string(run.Stage),
		ReviewModel: run.ReviewModel,
		ReportModel: run.ReportModel,
		Error:       run.Error,
		StartedAt:   run.StartedAt.Format(time.RFC3339),
	}
	if run.CompletedAt != nil {
		resp.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// ListReviewable 列出向量库中所有可审查的标准
// GET /api/reviews
func (h *ReviewHandler) ListReviewable(c *gin.Context) {
	standards, err := h.pipelineService.ListStandards()
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to list reviewable standards")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"failed to list reviewable standards",
		))
		return
	}

	resp := model.ReviewableListResponse{
		Total:     len(standards),
		Standards: standards,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}
