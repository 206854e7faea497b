package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Email    EmailConfig    `yaml:"email"`
	Teams    TeamsConfig    `yaml:"teams"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `yaml:"port"`
	Name string `yaml:"name"`
}

// RedisConfig Redis 配置，启用后派发状态写入 Redis
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// OpenAIConfig 补全服务配置
type OpenAIConfig struct {
	APIKey       string        `yaml:"apiKey"`
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"baseUrl"`
	SystemPrompt string        `yaml:"systemPrompt"`
	Timeout      time.Duration `yaml:"timeout"`
}

// EmailConfig 邮件发送配置
type EmailConfig struct {
	Provider string     `yaml:"provider"` // smtp, ses
	Subject  string     `yaml:"subject"`
	SMTP     SMTPConfig `yaml:"smtp"`
	SES      SESConfig  `yaml:"ses"`
}

// SMTPConfig SMTP 配置
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// SESConfig AWS SES 配置
type SESConfig struct {
	Region string `yaml:"region"`
	From   string `yaml:"from"`
}

// TeamsConfig Microsoft Teams (Graph API) 配置
type TeamsConfig struct {
	TenantID         string `yaml:"tenantId"`
	ClientID         string `yaml:"clientId"`
	ClientSecret     string `yaml:"clientSecret"`
	DefaultTeamID    string `yaml:"defaultTeamId"`
	DefaultChannelID string `yaml:"defaultChannelId"`
	GraphBaseURL     string `yaml:"graphBaseUrl"`
	AuthorityURL     string `yaml:"authorityUrl"`
}

// DispatchConfig 后台派发配置
type DispatchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	StatusTTL time.Duration `yaml:"statusTtl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

const (
	EmailProviderSMTP = "smtp"
	EmailProviderSES  = "ses"
)

// LoadConfig 加载配置：YAML 文件（可选）→ .env → 环境变量 → 默认值
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// 没有配置文件时只使用环境变量
	default:
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// .env 不存在不算错误，已存在的环境变量不会被覆盖
	_ = godotenv.Load()

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyEnv 用环境变量覆盖配置，变量名沿用现有部署约定
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("环境变量 %s 不是整数: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	str("OPENAI_MODEL", &cfg.OpenAI.Model)
	str("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)

	str("EMAIL_PROVIDER", &cfg.Email.Provider)
	str("SMTP_HOST", &cfg.Email.SMTP.Host)
	str("SMTP_USER", &cfg.Email.SMTP.User)
	str("SMTP_PASSWORD", &cfg.Email.SMTP.Password)
	str("AWS_REGION", &cfg.Email.SES.Region)
	str("SES_FROM", &cfg.Email.SES.From)

	str("AZURE_TENANT_ID", &cfg.Teams.TenantID)
	str("AZURE_CLIENT_ID", &cfg.Teams.ClientID)
	str("AZURE_CLIENT_SECRET", &cfg.Teams.ClientSecret)
	str("TEAMS_DEFAULT_TEAM_ID", &cfg.Teams.DefaultTeamID)
	str("TEAMS_DEFAULT_CHANNEL_ID", &cfg.Teams.DefaultChannelID)

	str("LOG_LEVEL", &cfg.Log.Level)
	str("REDIS_HOST", &cfg.Redis.Host)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	if v, ok := lookup("REDIS_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("环境变量 REDIS_ENABLED 不是布尔值: %w", err)
		}
		cfg.Redis.Enabled = enabled
	}

	for key, dst := range map[string]*int{
		"SMTP_PORT":  &cfg.Email.SMTP.Port,
		"PORT":       &cfg.Server.Port,
		"REDIS_PORT": &cfg.Redis.Port,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	return nil
}

// ApplyDefaults 填充默认值
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.Name == "" {
		c.Server.Name = "opsinsight"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o"
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.SystemPrompt == "" {
		c.OpenAI.SystemPrompt = "OpsInsight assistant."
	}
	if c.OpenAI.Timeout == 0 {
		c.OpenAI.Timeout = 60 * time.Second
	}
	if c.Email.Provider == "" {
		c.Email.Provider = EmailProviderSMTP
	}
	if c.Email.Subject == "" {
		c.Email.Subject = "Message from OpsInsight assistant"
	}
	if c.Email.SMTP.Port == 0 {
		c.Email.SMTP.Port = 587
	}
	if c.Teams.GraphBaseURL == "" {
		c.Teams.GraphBaseURL = "https://graph.microsoft.com/v1.0"
	}
	if c.Teams.AuthorityURL == "" {
		c.Teams.AuthorityURL = "https://login.microsoftonline.com"
	}
	if c.Dispatch.Timeout == 0 {
		c.Dispatch.Timeout = 30 * time.Second
	}
	if c.Dispatch.StatusTTL == 0 {
		c.Dispatch.StatusTTL = 24 * time.Hour
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
