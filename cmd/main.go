package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/standards-review-system/api"
	"github.com/fyerfyer/standards-review-system/api/handler"
	"github.com/fyerfyer/standards-review-system/api/middleware"
	appconfig "github.com/fyerfyer/standards-review-system/config"
	"github.com/fyerfyer/standards-review-system/internal/cache"
	"github.com/fyerfyer/standards-review-system/internal/database"
	"github.com/fyerfyer/standards-review-system/internal/document"
	"github.com/fyerfyer/standards-review-system/internal/embedding"
	"github.com/fyerfyer/standards-review-system/internal/llm"
	"github.com/fyerfyer/standards-review-system/internal/repository"
	"github.com/fyerfyer/standards-review-system/internal/services"
	"github.com/fyerfyer/standards-review-system/internal/vectordb"
	"github.com/fyerfyer/standards-review-system/pkg/storage"
	"github.com/fyerfyer/standards-review-system/pkg/taskqueue"
)

// 命令行参数
type cliFlags struct {
	ConfigFile string // 配置文件路径
	Mode       string // 运行模式 (debug/release)
	LogLevel   string // 日志级别
	IngestDir  string // 摄取目录中的所有标准后退出
	Process    string // 对指定标准执行审查流水线后退出
	ProcessAll bool   // 对所有标准执行审查流水线后退出
	List       bool   // 列出可审查的标准后退出
}

func main() {
	// 加载.env文件（如果存在）
	_ = godotenv.Load()

	flags := parseFlags()

	// 加载配置
	cfg, err := appconfig.Load(flags.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	// 设置Gin模式
	gin.SetMode(flags.Mode)

	// 初始化日志
	logger := setupLogger(flags.LogLevel)
	logger.Info("Starting Standards Review System...")

	// 初始化元数据数据库
	if err := setupDatabase(cfg, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// 创建文件存储服务
	fileStorage, err := setupStorage(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// 创建向量数据库
	vectorDB, err := setupVectorDB(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize vector database: %v", err)
	}
	defer vectorDB.Close()

	// 创建嵌入客户端
	embeddingClient, err := setupEmbedding(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize embedding client: %v", err)
	}

	// 创建两档大语言模型客户端
	// 审查和增强阶段使用review模型，验证和报告阶段使用report模型
	reviewClient, err := setupLLM(cfg, cfg.LLM.ReviewModel)
	if err != nil {
		logger.Fatalf("Failed to initialize review LLM client: %v", err)
	}
	reportClient, err := setupLLM(cfg, cfg.LLM.ReportModel)
	if err != nil {
		logger.Fatalf("Failed to initialize report LLM client: %v", err)
	}

	// 创建文本分块器
	splitter, err := document.NewWindowSplitter(document.SplitterConfig{
		ChunkSize:    cfg.Document.ChunkSize,
		ChunkOverlap: cfg.Document.ChunkOverlap,
	})
	if err != nil {
		logger.Fatalf("Failed to create text splitter: %v", err)
	}

	// 初始化任务队列（如果启用）
	var queue taskqueue.Queue
	if cfg.Queue.Enable {
		queue, err = setupTaskQueue(cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		logger.Info("Task queue initialized successfully")
	}

	// 创建仓储
	repo := repository.NewStandardRepository()

	// 创建标准摄取服务
	standardOptions := []services.StandardOption{
		services.WithStandardRepository(repo),
		services.WithBatchSize(cfg.Embed.BatchSize),
		services.WithLogger(logger),
	}

	// 启用缓存时为嵌入结果添加缓存
	if cfg.Cache.Enable {
		cacheService, err := setupCache(cfg)
		if err != nil {
			logger.Fatalf("Failed to initialize cache: %v", err)
		}
		standardOptions = append(standardOptions, services.WithEmbeddingCache(cacheService))
	}

	if queue != nil {
		standardOptions = append(standardOptions, services.WithTaskQueue(queue))
		logger.Info("Standard ingestion will use async task queue")
	}

	standardService := services.NewStandardService(
		fileStorage,
		splitter,
		embeddingClient,
		vectorDB,
		standardOptions...,
	)

	// 创建审查流水线服务
	pipelineService := services.NewPipelineService(
		vectorDB,
		reviewClient,
		reportClient,
		services.WithPipelineRepository(repo),
		services.WithResultWriter(services.NewResultWriter(cfg.Results.Dir, logger)),
		services.WithPipelineLogger(logger),
	)

	// 命令行模式：执行指定操作后退出
	if runCLI(flags, standardService, pipelineService, logger) {
		return
	}

	// 启动任务队列工作者（如果启用）
	if queue != nil {
		worker, err := setupWorker(queue, cfg, standardService, logger)
		if err != nil {
			logger.Fatalf("Failed to start task queue worker: %v", err)
		}
		defer worker.Stop()
	}

	// 初始化API处理器
	standardHandler := handler.NewStandardHandler(standardService)
	reviewHandler := handler.NewReviewHandler(pipelineService)

	// 设置路由
	r := api.SetupRouter(standardHandler, reviewHandler)

	// 启动HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// 优雅关闭
	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() cliFlags {
	flags := cliFlags{}

	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file")
	flag.StringVar(&flags.Mode, "mode", "release", "Run mode (debug/release)")
	flag.StringVar(&flags.LogLevel, "log-level", "info", "Log level (debug/info/warn/error)")

	// 命令行操作模式
	flag.StringVar(&flags.IngestDir, "ingest", "", "Ingest all standards in the given directory and exit")
	flag.StringVar(&flags.Process, "process", "", "Run the review pipeline for the given standard and exit")
	flag.BoolVar(&flags.ProcessAll, "process-all", false, "Run the review pipeline for all standards and exit")
	flag.BoolVar(&flags.List, "list", false, "List reviewable standards and exit")

	flag.Parse()
	return flags
}

// runCLI 执行命令行操作，返回是否已处理
func runCLI(
	flags cliFlags,
	standardService *services.StandardService,
	pipelineService *services.PipelineService,
	logger *logrus.Logger,
) bool {
	ctx := context.Background()

	switch {
	case flags.IngestDir != "":
		result, err := standardService.IngestDirectory(ctx, flags.IngestDir)
		if err != nil {
			logger.Fatalf("Failed to ingest directory: %v", err)
		}
		logger.WithFields(logrus.Fields{
			"total":     result.Total,
			"succeeded": result.Succeeded,
			"failed":    len(result.Failed),
		}).Info("Directory ingestion finished")
		for _, name := range result.Failed {
			logger.Warnf("Failed to ingest standard: %s", name)
		}
		return true

	case flags.Process != "":
		if _, err := pipelineService.Process(ctx, flags.Process); err != nil {
			logger.Fatalf("Review pipeline failed for %s: %v", flags.Process, err)
		}
		logger.Infof("Review pipeline completed for %s", flags.Process)
		return true

	case flags.ProcessAll:
		failed, err := pipelineService.ProcessAll(ctx)
		if err != nil {
			logger.Fatalf("Failed to process standards: %v", err)
		}
		for _, name := range failed {
			logger.Warnf("Review pipeline failed for standard: %s", name)
		}
		logger.Infof("Review pipeline finished, %d failed", len(failed))
		return true

	case flags.List:
		standards, err := pipelineService.ListStandards()
		if err != nil {
			logger.Fatalf("Failed to list standards: %v", err)
		}
		for _, name := range standards {
			fmt.Println(name)
		}
		return true
	}

	return false
}

// setupLogger 设置日志系统
func setupLogger(level string) *logrus.Logger {
	logger := middleware.GetLogger()

	switch level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}

// setupDatabase 设置元数据数据库
func setupDatabase(cfg *appconfig.Config, logger *logrus.Logger) error {
	dbConfig := database.DefaultConfig()
	dbConfig.Type = cfg.Database.Type
	dbConfig.DSN = cfg.Database.DSN

	return database.Setup(dbConfig, logger)
}

// setupStorage 设置文件存储服务
func setupStorage(cfg *appconfig.Config) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case "minio":
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		})
	default:
		return storage.NewLocalStorage(storage.LocalConfig{
			Path: cfg.Storage.Path,
		})
	}
}

// setupVectorDB 设置向量数据库
// faiss初始化失败时回退到文件实现
func setupVectorDB(cfg *appconfig.Config, logger *logrus.Logger) (vectordb.Repository, error) {
	vdbConfig := vectordb.Config{
		Type:              cfg.VectorDB.Type,
		Path:              collectionPath(cfg, cfg.VectorDB.Type),
		Dimension:         cfg.VectorDB.Dim,
		DistanceType:      vectordb.DistanceType(cfg.VectorDB.Distance),
		CreateIfNotExists: true,
	}

	repo, err := vectordb.NewRepository(vdbConfig)
	if err != nil && cfg.VectorDB.Type == "faiss" {
		logger.Warnf("Failed to initialize FAISS vector database: %v", err)
		logger.Warn("Falling back to file-based vector database")

		vdbConfig.Type = "file"
		vdbConfig.Path = collectionPath(cfg, "file")
		return vectordb.NewRepository(vdbConfig)
	}

	return repo, err
}

// collectionPath 拼接集合在存储目录下的文件路径
// faiss使用索引文件，其余实现使用JSON快照
func collectionPath(cfg *appconfig.Config, dbType string) string {
	if cfg.VectorDB.Collection == "" {
		return cfg.VectorDB.Path
	}

	ext := ".json"
	if dbType == "faiss" {
		ext = ".index"
	}
	return filepath.Join(cfg.VectorDB.Path, cfg.VectorDB.Collection+ext)
}

// setupEmbedding 设置嵌入模型客户端
func setupEmbedding(cfg *appconfig.Config) (embedding.Client, error) {
	return embedding.NewClient(cfg.Embed.Provider,
		embedding.WithAPIKey(cfg.Embed.APIKey),
		embedding.WithModel(cfg.Embed.Model),
		embedding.WithDimensions(cfg.Embed.Dimensions),
		embedding.WithBatchSize(cfg.Embed.BatchSize),
	)
}

// setupLLM 设置大语言模型客户端
func setupLLM(cfg *appconfig.Config, model string) (llm.Client, error) {
	opts := []llm.Option{
		llm.WithAPIKey(cfg.LLM.APIKey),
		llm.WithModel(model),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTemperature(cfg.LLM.Temperature),
	}
	if cfg.LLM.Endpoint != "" {
		opts = append(opts, llm.WithBaseURL(cfg.LLM.Endpoint))
	}

	return llm.NewClient(cfg.LLM.Provider, opts...)
}

// setupCache 设置嵌入结果缓存
func setupCache(cfg *appconfig.Config) (cache.Cache, error) {
	cacheConfig := cache.Config{
		Type:            cfg.Cache.Type,
		DefaultTTL:      time.Duration(cfg.Cache.TTL) * time.Second,
		CleanupInterval: 10 * time.Minute,
	}

	if cfg.Cache.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Cache.Address
		cacheConfig.RedisPassword = cfg.Cache.Password
		cacheConfig.RedisDB = cfg.Cache.DB
	}

	return cache.NewCache(cacheConfig)
}

// setupTaskQueue 设置任务队列
func setupTaskQueue(cfg *appconfig.Config, logger *logrus.Logger) (taskqueue.Queue, error) {
	queueConfig := taskqueue.DefaultConfig()
	queueConfig.RedisAddr = cfg.Queue.RedisAddr
	queueConfig.RedisPassword = cfg.Queue.RedisPassword
	queueConfig.RedisDB = cfg.Queue.RedisDB
	queueConfig.Concurrency = cfg.Queue.Concurrency
	queueConfig.RetryLimit = cfg.Queue.RetryLimit
	queueConfig.RetryDelay = time.Duration(cfg.Queue.RetryDelay) * time.Second

	logger.WithFields(logrus.Fields{
		"type":        cfg.Queue.Type,
		"redis_addr":  cfg.Queue.RedisAddr,
		"concurrency": cfg.Queue.Concurrency,
	}).Info("Setting up task queue")

	return taskqueue.NewQueue(cfg.Queue.Type, queueConfig)
}

// setupWorker 启动任务队列工作者并注册摄取处理器
func setupWorker(
	queue taskqueue.Queue,
	cfg *appconfig.Config,
	standardService *services.StandardService,
	logger *logrus.Logger,
) (taskqueue.Worker, error) {
	redisQueue, ok := queue.(*taskqueue.RedisQueue)
	if !ok {
		return nil, fmt.Errorf("task queue type %T does not support workers", queue)
	}

	queueConfig := taskqueue.DefaultConfig()
	queueConfig.RedisAddr = cfg.Queue.RedisAddr
	queueConfig.RedisPassword = cfg.Queue.RedisPassword
	queueConfig.RedisDB = cfg.Queue.RedisDB
	queueConfig.Concurrency = cfg.Queue.Concurrency
	queueConfig.RetryLimit = cfg.Queue.RetryLimit
	queueConfig.RetryDelay = time.Duration(cfg.Queue.RetryDelay) * time.Second

	worker := taskqueue.NewRedisWorker(redisQueue, queueConfig)

	ingestHandler := taskqueue.NewIngestHandler(queue, standardService, logger)
	for _, taskType := range ingestHandler.GetTaskTypes() {
		worker.RegisterHandler(taskType, ingestHandler)
	}

	if err := worker.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}

	logger.Info("Task queue worker started")
	return worker, nil
}
