package api

import (
	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/standards-review-system/api/handler"
	"github.com/fyerfyer/standards-review-system/api/middleware"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(
	standardHandler *handler.StandardHandler,
	reviewHandler *handler.ReviewHandler,
) *gin.Engine {
	// 创建默认的Gin路由引擎
	router := gin.Default()

	// 应用全局中间件
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(middleware.SetTraceID())

	// 在调试模式下记录请求体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	// 创建API分组
	api := router.Group("/api")
	{
		// 标准管理API
		standardGroup := api.Group("/standards")
		{
			// 上传标准 - POST /api/standards
			standardGroup.POST("", standardHandler.UploadStandard)

			// 获取标准状态 - GET /api/standards/:id/status
			standardGroup.GET("/:id/status", standardHandler.GetStandardStatus)

			// 获取标准列表 - GET /api/standards
			standardGroup.GET("", standardHandler.ListStandards)

			// 删除标准 - DELETE /api/standards/:id
			standardGroup.DELETE("/:id", standardHandler.DeleteStandard)
		}

		// 审查API
		reviewGroup := api.Group("/reviews")
		{
			// 执行审查流水线 - POST /api/reviews/:id
			reviewGroup.POST("/:id", reviewHandler.StartReview)

			// 获取最近一次审查记录 - GET /api/reviews/:id
			reviewGroup.GET("/:id", reviewHandler.GetLatestReview)

			// 获取可审查标准列表 - GET /api/reviews
			reviewGroup.GET("", reviewHandler.ListReviewable)
		}

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件
// 如果需要支持跨域请求，可以启用此中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
