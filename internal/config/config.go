package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Mongo      MongoConfig `mapstructure:"mongo"`
	JWT        JWTConfig
	Tracing    TracingConfig `mapstructure:"tracing"`
	Judge0     Judge0Config
	Redis      RedisConfig
	RabbitMQ   RabbitMQConfig `mapstructure:"rabbitmq"`
	AI         AIConfig
	Assessment AssessmentConfig `mapstructure:"assessment"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Log        LogConfig        `mapstructure:"log"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

// AIConfig 兼容 OpenAI 的对话接口
type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled 是否配置了 AI 服务
func (c AIConfig) Enabled() bool {
	return c.BaseURL != "" && c.APIKey != ""
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string // mysql | mongo
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxPoolSize    uint64        `mapstructure:"max_pool_size"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type Judge0Config struct {
	APIKey        string `mapstructure:"api_key"`
	URL           string
	Host          string
	PollRetries   int           `mapstructure:"poll_retries"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// 单次请求的题目数量上限，HTTP 绑定校验与配置校验共用
const (
	MaxQuestionCount = 50
	MaxCodingCount   = 5
)

// AssessmentConfig 请假评估默认参数
type AssessmentConfig struct {
	PassThreshold     float64       `mapstructure:"pass_threshold"`
	QuestionCount     int           `mapstructure:"question_count"`
	DefaultDifficulty string        `mapstructure:"default_difficulty"`
	CodingLanguage    string        `mapstructure:"coding_language"`
	GenerationLockTTL time.Duration `mapstructure:"generation_lock_ttl"`
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.driver", "mysql")
	viper.SetDefault("database.charset", "utf8mb4")
	viper.SetDefault("database.parsetime", true)
	viper.SetDefault("mongo.database", "leave_assessment")
	viper.SetDefault("mongo.connect_timeout", 10*time.Second)
	viper.SetDefault("mongo.max_pool_size", 100)
	viper.SetDefault("jwt.expire_hours", 24)
	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.timeout", 30*time.Second)
	viper.SetDefault("judge0.url", "https://judge0-ce.p.rapidapi.com")
	viper.SetDefault("judge0.host", "judge0-ce.p.rapidapi.com")
	viper.SetDefault("judge0.poll_retries", 10)
	viper.SetDefault("judge0.poll_interval", time.Second)
	viper.SetDefault("judge0.rate_per_second", 5)
	viper.SetDefault("judge0.timeout", 15*time.Second)
	viper.SetDefault("rabbitmq.exchange", "leave.events")
	viper.SetDefault("assessment.pass_threshold", 60)
	viper.SetDefault("assessment.question_count", 12)
	viper.SetDefault("assessment.default_difficulty", "Medium")
	viper.SetDefault("assessment.coding_language", "python")
	viper.SetDefault("assessment.generation_lock_ttl", 30*time.Second)
	viper.SetDefault("rate_limit.max_requests", 100000)
	viper.SetDefault("rate_limit.window_minutes", 1)
	viper.SetDefault("log.file", "logs/app.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 5)
	viper.SetDefault("log.max_age_days", 30)
}

func LoadConfig(path string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load()

	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("LEAVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	// Database
	viper.BindEnv("database.driver", "DATABASE_DRIVER")
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")
	viper.BindEnv("mongo.uri", "MONGO_URI")
	viper.BindEnv("mongo.database", "MONGO_DB")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// RabbitMQ
	viper.BindEnv("rabbitmq.url", "RABBITMQ_URL")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// AI
	viper.BindEnv("ai.base_url", "AI_BASE_URL")
	viper.BindEnv("ai.api_key", "AI_API_KEY")
	viper.BindEnv("ai.model", "AI_MODEL")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Judge0
	viper.BindEnv("judge0.api_key", "JUDGE0_API_KEY")
	viper.BindEnv("judge0.url", "JUDGE0_API_URL")
	viper.BindEnv("judge0.host", "JUDGE0_API_HOST")

	// Assessment
	viper.BindEnv("assessment.pass_threshold", "ASSESSMENT_PASS_THRESHOLD")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验启动必需的配置
func (c *Config) Validate() error {
	// 生产环境校验 JWT Secret 强度
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	if c.Assessment.PassThreshold < 0 || c.Assessment.PassThreshold > 100 {
		return fmt.Errorf("assessment.pass_threshold must be within [0,100], got %v", c.Assessment.PassThreshold)
	}
	if c.Assessment.QuestionCount <= 0 || c.Assessment.QuestionCount > MaxQuestionCount {
		return fmt.Errorf("assessment.question_count must be within [1,%d], got %d", MaxQuestionCount, c.Assessment.QuestionCount)
	}
	if c.Judge0.PollRetries <= 0 {
		return fmt.Errorf("judge0.poll_retries must be positive, got %d", c.Judge0.PollRetries)
	}
	switch c.Database.Driver {
	case "mysql", "mongo":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	return nil
}
