package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	VectorDB VectorDBConfig `mapstructure:"vectordb"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Embed    EmbedConfig    `mapstructure:"embed"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Database DatabaseConfig `mapstructure:"database"`
	Document DocumentConfig `mapstructure:"document"`
	Results  ResultsConfig  `mapstructure:"results"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"` // 服务器主机
	Port int    `mapstructure:"port"` // 服务器端口
}

// StorageConfig 标准文档存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type"`     // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`     // 本地存储路径
	Bucket    string `mapstructure:"bucket"`   // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"` // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// VectorDBConfig 向量数据库配置
type VectorDBConfig struct {
	Type       string `mapstructure:"type"`       // 向量数据库类型：file 或 faiss
	Path       string `mapstructure:"path"`       // 数据库文件路径
	Collection string `mapstructure:"collection"` // 集合名称
	Dim        int    `mapstructure:"dim"`        // 向量维度
	Distance   string `mapstructure:"distance"`   // 距离度量方式：cosine, l2, dot
}

// LLMConfig 大语言模型配置
// 审查阶段与报告阶段使用不同档位的模型
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`     // 提供商：tongyi
	ReviewModel string  `mapstructure:"review_model"` // 审查/增强阶段模型
	ReportModel string  `mapstructure:"report_model"` // 验证/报告阶段模型
	APIKey      string  `mapstructure:"api_key"`      // API密钥
	Endpoint    string  `mapstructure:"endpoint"`     // API端点
	MaxTokens   int     `mapstructure:"max_tokens"`   // 最大生成token数量
	Temperature float32 `mapstructure:"temperature"`  // 采样温度
}

// EmbedConfig 向量嵌入模型配置
type EmbedConfig struct {
	Provider   string `mapstructure:"provider"`   // 提供商：tongyi
	Model      string `mapstructure:"model"`      // 模型名称
	APIKey     string `mapstructure:"api_key"`    // API密钥
	Endpoint   string `mapstructure:"endpoint"`   // API端点
	BatchSize  int    `mapstructure:"batch_size"` // 批处理大小
	Dimensions int    `mapstructure:"dimensions"` // 向量维度
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`   // 是否启用缓存
	Type     string `mapstructure:"type"`     // 缓存类型：memory 或 redis
	Address  string `mapstructure:"address"`  // Redis地址
	Password string `mapstructure:"password"` // Redis密码
	DB       int    `mapstructure:"db"`       // Redis数据库
	TTL      int    `mapstructure:"ttl"`      // 缓存TTL（秒）
}

// QueueConfig 入库任务队列配置
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`         // 是否启用任务队列
	Type          string `mapstructure:"type"`           // 队列类型：redis
	RedisAddr     string `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string `mapstructure:"redis_password"` // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`       // Redis数据库编号
	Concurrency   int    `mapstructure:"concurrency"`    // 任务处理并发数
	RetryLimit    int    `mapstructure:"retry_limit"`    // 任务最大重试次数
	RetryDelay    int    `mapstructure:"retry_delay"`    // 重试延迟(秒)
}

// DatabaseConfig 元数据数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // 数据库类型: sqlite
	DSN  string `mapstructure:"dsn"`  // 数据源名称
}

// DocumentConfig 文档处理配置
type DocumentConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`    // 分块大小
	ChunkOverlap int `mapstructure:"chunk_overlap"` // 分块重叠大小
}

// ResultsConfig 流水线结果输出配置
type ResultsConfig struct {
	Dir string `mapstructure:"dir"` // 结果输出目录
}

// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	var config Config

	// 设置默认配置路径
	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	v.SetConfigFile(configPath)

	// 尝试读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果找不到配置文件，创建一个默认配置文件
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found at %s, using defaults", configPath)
			setDefaults(v)
			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err == nil {
				if err := v.WriteConfigAs(configPath); err != nil {
					log.Printf("Warning: Could not write default config to %s: %v", configPath, err)
				}
			}
		} else {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	// 设置默认值
	setDefaults(v)

	// 支持环境变量覆盖
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 解析配置到结构体
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	return expandEnvironmentVariables(&config), nil
}

// Validate 校验必需的配置项
// 缺少API凭证视为启动时错误，而不是调用时错误
func (c *Config) Validate() error {
	if c.Embed.APIKey == "" {
		return fmt.Errorf("embedding API key is required (set EMBED_API_KEY or embed.api_key)")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required (set LLM_API_KEY or llm.api_key)")
	}
	if c.Document.ChunkOverlap >= c.Document.ChunkSize {
		return fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)",
			c.Document.ChunkOverlap, c.Document.ChunkSize)
	}
	return nil
}

// expandEnvironmentVariables 处理配置项中的${VAR}形式的环境变量引用
func expandEnvironmentVariables(cfg *Config) *Config {
	cfg.Embed.APIKey = expandEnv(cfg.Embed.APIKey)
	cfg.LLM.APIKey = expandEnv(cfg.LLM.APIKey)
	cfg.Storage.AccessKey = expandEnv(cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = expandEnv(cfg.Storage.SecretKey)
	return cfg
}

// expandEnv 将${VAR}形式的值替换为对应环境变量
func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envVar := value[2 : len(value)-1]
		if envVal := os.Getenv(envVar); envVal != "" {
			return envVal
		}
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./data/standards")
	v.SetDefault("storage.bucket", "standards")
	v.SetDefault("storage.use_ssl", false)

	// 向量数据库默认配置
	v.SetDefault("vectordb.type", "file")
	v.SetDefault("vectordb.path", "./data/vectordb")
	v.SetDefault("vectordb.collection", "standards")
	v.SetDefault("vectordb.dim", 1024)
	v.SetDefault("vectordb.distance", "cosine")

	// LLM默认配置
	v.SetDefault("llm.provider", "tongyi")
	v.SetDefault("llm.review_model", "qwen-plus")
	v.SetDefault("llm.report_model", "qwen-max")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.temperature", 0.7)

	// Embedding默认配置
	v.SetDefault("embed.provider", "tongyi")
	v.SetDefault("embed.model", "text-embedding-v3")
	v.SetDefault("embed.batch_size", 10)
	v.SetDefault("embed.dimensions", 1024)

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", 3600)

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.type", "redis")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 5)
	v.SetDefault("queue.retry_limit", 3)
	v.SetDefault("queue.retry_delay", 60)

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/standards.db")

	// 文档处理默认配置
	v.SetDefault("document.chunk_size", 1000)
	v.SetDefault("document.chunk_overlap", 200)

	// 结果输出默认配置
	v.SetDefault("results.dir", "./results")
}
