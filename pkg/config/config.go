package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const envPrefix = "STATUSDASH_"

// 轮询模式
const (
	PollModePoll   = "poll"   // 定时 GET /status
	PollModeStream = "stream" // 订阅后端 websocket 推送
)

// 会话存储类型
const (
	StoreJSON   = "json"
	StoreBadger = "badger"
)

// 展示适配器
const (
	UIAuto    = "auto"
	UITUI     = "tui"
	UIConsole = "console"
	UIWeb     = "web"
)

// BackendConfig 后端接口配置
type BackendConfig struct {
	BaseURL        string   `yaml:"base_url" json:"base_url"`
	StatusPath     string   `yaml:"status_path" json:"status_path"`
	LoginPath      string   `yaml:"login_path" json:"login_path"`
	StreamPath     string   `yaml:"stream_path" json:"stream_path"`
	RequestTimeout Duration `yaml:"request_timeout" json:"request_timeout"` // 单次请求超时，0 表示使用 transport 默认
	Proxy          string   `yaml:"proxy" json:"proxy"`                     // 例如 http://127.0.0.1:15236，为空不走代理
}

// PollConfig 轮询配置
type PollConfig struct {
	Interval     Duration `yaml:"interval" json:"interval"`           // 轮询周期，默认 2s
	Mode         string   `yaml:"mode" json:"mode"`                   // poll | stream
	DiscardStale bool     `yaml:"discard_stale" json:"discard_stale"` // 丢弃比已应用 tick 更旧的响应
}

// SessionConfig 登录门控配置
type SessionConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	Store         string `yaml:"store" json:"store"` // json | badger
	Dir           string `yaml:"dir" json:"dir"`
	EncryptionKey string `yaml:"encryption_key" json:"encryption_key"` // badger 加密密钥（32 字节 hex/base64），可选
	Email         string `yaml:"email" json:"email"`                   // 无交互界面时自动登录使用
	Password      string `yaml:"password" json:"-"`
}

// UIConfig 展示层配置
type UIConfig struct {
	Adapter       string `yaml:"adapter" json:"adapter"` // auto | tui | console | web
	WebAddr       string `yaml:"web_addr" json:"web_addr"`
	LoginAttempts int    `yaml:"login_attempts" json:"login_attempts"` // web 模式每个 IP 每分钟允许的登录次数
	NoneSentinel  string `yaml:"none_sentinel" json:"none_sentinel"`   // 表示“无持仓资产”的占位值
}

// MetricsConfig debug 服务配置（expvar + pprof）
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"` // 例如 127.0.0.1:6060，为空不启动
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Config 应用配置
type Config struct {
	Backend BackendConfig `yaml:"backend" json:"backend"`
	Poll    PollConfig    `yaml:"poll" json:"poll"`
	Session SessionConfig `yaml:"session" json:"session"`
	UI      UIConfig      `yaml:"ui" json:"ui"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8080",
			StatusPath:     "/status",
			LoginPath:      "/api/login",
			StreamPath:     "/ws",
			RequestTimeout: Duration{30 * time.Second},
		},
		Poll: PollConfig{
			Interval:     Duration{2 * time.Second},
			Mode:         PollModePoll,
			DiscardStale: true,
		},
		Session: SessionConfig{
			Enabled: false,
			Store:   StoreJSON,
			Dir:     "data/session",
		},
		UI: UIConfig{
			Adapter:       UIAuto,
			WebAddr:       ":8090",
			LoginAttempts: 5,
			NoneSentinel:  "Ninguno",
		},
		Log: LogConfig{
			Level:      "info",
			File:       "logs/statusdash.log",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Load 加载配置（优先级：环境变量 > 配置文件 > 默认值）
// filePath 为空时只使用默认值和环境变量
func Load(filePath string) (*Config, error) {
	cfg := Default()
	if filePath != "" {
		if err := loadConfigFile(filePath, cfg); err != nil {
			return nil, errors.Wrapf(err, "加载配置文件失败 %s", filePath)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", filepath.Ext(filePath))
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Backend.BaseURL = getEnv("BASE_URL", cfg.Backend.BaseURL)
	cfg.Backend.Proxy = getEnv("PROXY", cfg.Backend.Proxy)
	cfg.Backend.RequestTimeout.Duration = parseDurationEnv("REQUEST_TIMEOUT", cfg.Backend.RequestTimeout.Duration)

	cfg.Poll.Interval.Duration = parseDurationEnv("POLL_INTERVAL", cfg.Poll.Interval.Duration)
	cfg.Poll.Mode = getEnv("POLL_MODE", cfg.Poll.Mode)
	cfg.Poll.DiscardStale = parseBoolEnv("DISCARD_STALE", cfg.Poll.DiscardStale)

	cfg.Session.Enabled = parseBoolEnv("SESSION_ENABLED", cfg.Session.Enabled)
	cfg.Session.Store = getEnv("SESSION_STORE", cfg.Session.Store)
	cfg.Session.Dir = getEnv("SESSION_DIR", cfg.Session.Dir)
	cfg.Session.EncryptionKey = getEnv("SESSION_KEY", cfg.Session.EncryptionKey)
	cfg.Session.Email = getEnv("EMAIL", cfg.Session.Email)
	cfg.Session.Password = getEnv("PASSWORD", cfg.Session.Password)

	cfg.UI.Adapter = getEnv("UI", cfg.UI.Adapter)
	cfg.UI.WebAddr = getEnv("WEB_ADDR", cfg.UI.WebAddr)
	cfg.UI.NoneSentinel = getEnv("NONE_SENTINEL", cfg.UI.NoneSentinel)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.UI.LoginAttempts = parseIntEnv("LOGIN_ATTEMPTS", cfg.UI.LoginAttempts)
	cfg.Metrics.Addr = getEnv("METRICS_ADDR", cfg.Metrics.Addr)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
	cfg.Log.MaxSize = parseIntEnv("LOG_MAX_SIZE", cfg.Log.MaxSize)
}

// Validate 校验配置
func (c *Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.Backend.BaseURL))
	if err != nil {
		return errors.Wrap(err, "backend.base_url 无效")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.base_url 必须是 http/https 地址: %q", c.Backend.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("backend.base_url 缺少 host: %q", c.Backend.BaseURL)
	}
	if !strings.HasPrefix(c.Backend.StatusPath, "/") || !strings.HasPrefix(c.Backend.LoginPath, "/") {
		return fmt.Errorf("backend.status_path/login_path 必须以 / 开头")
	}
	if c.Backend.RequestTimeout.Duration < 0 {
		return fmt.Errorf("backend.request_timeout 不能为负数")
	}
	if c.Backend.Proxy != "" {
		if _, err := url.Parse(c.Backend.Proxy); err != nil {
			return errors.Wrap(err, "backend.proxy 无效")
		}
	}

	if c.Poll.Interval.Duration <= 0 {
		return fmt.Errorf("poll.interval 必须大于 0")
	}
	switch c.Poll.Mode {
	case PollModePoll:
	case PollModeStream:
		if !strings.HasPrefix(c.Backend.StreamPath, "/") {
			return fmt.Errorf("stream 模式下 backend.stream_path 必须以 / 开头")
		}
	default:
		return fmt.Errorf("poll.mode 只支持 poll/stream: %q", c.Poll.Mode)
	}

	if c.Session.Enabled {
		switch c.Session.Store {
		case StoreJSON, StoreBadger:
		default:
			return fmt.Errorf("session.store 只支持 json/badger: %q", c.Session.Store)
		}
		if strings.TrimSpace(c.Session.Dir) == "" {
			return fmt.Errorf("session.dir 不能为空")
		}
	}

	switch c.UI.Adapter {
	case UIAuto, UITUI, UIConsole, UIWeb:
	default:
		return fmt.Errorf("ui.adapter 只支持 auto/tui/console/web: %q", c.UI.Adapter)
	}
	if c.UI.Adapter == UIWeb && strings.TrimSpace(c.UI.WebAddr) == "" {
		return fmt.Errorf("web 模式需要 ui.web_addr")
	}
	if c.UI.LoginAttempts < 0 {
		return fmt.Errorf("ui.login_attempts 不能为负数")
	}
	if strings.TrimSpace(c.UI.NoneSentinel) == "" {
		return fmt.Errorf("ui.none_sentinel 不能为空")
	}
	return nil
}

// ProxyURL 返回代理地址（未配置返回空）
func (c *Config) ProxyURL() string {
	return strings.TrimSpace(c.Backend.Proxy)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(envPrefix + key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	parsed, err := parseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
