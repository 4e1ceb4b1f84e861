package middleware

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log = logrus.New()

// 初始化日志配置
func init() {
	// 设置日志格式为JSON格式
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	// 通过LOG_FILE环境变量启用滚动日志文件
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     30, // 天
			Compress:   true,
		}
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	} else {
		log.SetOutput(os.Stdout)
	}

	// 根据环境变量设置日志级别
	if os.Getenv("DEBUG") == "true" {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// Logger 日志中间件
// 记录请求信息和响应时间
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 开始时间
		start := time.Now()

		// 记录请求路径
		path := c.Request.URL.Path

		// 处理请求前
		c.Next()

		// 请求处理完成后获取结果信息
		latency := time.Since(start)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method

		// 记录日志
		log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency":     latency.String(),
			"client_ip":   clientIP,
			"method":      method,
			"path":        path,
			"user_agent":  c.Request.UserAgent(),
		}).Info("HTTP request")
	}
}

// RequestBodyLog 请求体日志中间件
// 在DEBUG模式下记录请求体内容
func RequestBodyLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 仅在debug级别时记录请求体
		if log.Level >= logrus.DebugLevel {
			var buf bytes.Buffer
			tee := io.TeeReader(c.Request.Body, &buf)
			body, _ := io.ReadAll(tee)
			c.Request.Body = io.NopCloser(&buf)

			if len(body) > 0 {
				log.WithFields(logrus.Fields{
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
					"body":   string(body),
				}).Debug("Request body")
			}
		}

		c.Next()
	}
}

// SetTraceID 将追踪ID设置到上下文和响应头中
func SetTraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从请求头中获取追踪ID
		traceID := c.GetHeader("X-Trace-ID")

		// 如果没有，则生成一个新的
		if traceID == "" {
			traceID = generateTraceID()
		}

		// 设置到上下文
		c.Set("TraceID", traceID)

		// 设置到响应头
		c.Header("X-Trace-ID", traceID)

		c.Next()
	}
}

// generateTraceID 生成追踪ID
func generateTraceID() string {
	return time.Now().Format("20060102150405.000000")
}

// GetLogger 返回API层共享的日志记录器
func GetLogger() *logrus.Logger {
	return log
}
