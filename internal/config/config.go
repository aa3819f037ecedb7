// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Corphon/Ravlo/internal/utils"
	"github.com/joho/godotenv"
)

const (
	// DefaultProvider 默认生成服务提供商
	DefaultProvider = "google"
	// DefaultModel 默认生成模型
	DefaultModel = "gemini-1.5-flash"
	// DefaultSiteURL 站点地图与分享图使用的站点地址
	DefaultSiteURL = "https://ravlo.ai"

	settingsFile = "config.json"
)

// Config 存储从环境变量读取的基础配置
type Config struct {
	Port          string
	DataDir       string
	LogDir        string
	DebugMode     bool
	LogLevel      string
	GeminiAPIKey  string
	GeminiModel   string
	SiteURL       string
	EncryptionKey string
}

// AppConfig 是持久化到设置文件的配置
type AppConfig struct {
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DataDir:       getEnvPath("DATA_DIR", "data"),
		LogDir:        getEnvPath("LOG_DIR", "logs"),
		DebugMode:     getEnvBool("DEBUG_MODE", false),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", DefaultModel),
		SiteURL:       getEnv("SITE_URL", DefaultSiteURL),
		EncryptionKey: getEnv("CONFIG_ENCRYPTION_KEY", ""),
	}

	if cfg.Port == "" {
		return nil, fmt.Errorf("端口不能为空")
	}

	if cfg.GeminiAPIKey == "" {
		// 只记录警告，不返回错误
		utils.GetLogger().Warn("未设置 GEMINI_API_KEY，需要通过 /api/llm/config 配置后才能生成内容", nil)
	}

	return cfg, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，并确保目录存在
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			utils.GetLogger().Warn("创建目录失败", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// Manager 管理持久化设置；API 密钥在配置了加密密钥时加密落盘
type Manager struct {
	mu      sync.RWMutex
	base    *Config
	file    string
	current *AppConfig
	logger  *utils.Logger
}

// NewManager 创建设置管理器并合并已保存的设置
func NewManager(base *Config, logger *utils.Logger) (*Manager, error) {
	if base == nil {
		return nil, fmt.Errorf("基础配置不能为空")
	}
	if logger == nil {
		logger = utils.GetLogger()
	}

	m := &Manager{
		base:   base,
		file:   filepath.Join(base.DataDir, settingsFile),
		logger: logger,
		current: &AppConfig{
			LLMProvider: DefaultProvider,
			LLMConfig: map[string]string{
				"api_key":       base.GeminiAPIKey,
				"default_model": base.GeminiModel,
			},
		},
	}

	if err := m.loadSaved(); err != nil {
		// 损坏的设置文件不阻止启动
		logger.Warn("读取设置文件失败，使用环境变量配置", map[string]interface{}{
			"file":  m.file,
			"error": err.Error(),
		})
	}

	if err := m.save(); err != nil {
		return nil, err
	}
	return m, nil
}

// Base 返回基础配置
func (m *Manager) Base() *Config {
	return m.base
}

// loadSaved 合并文件中的设置，文件中没有密钥时保留环境变量的密钥
func (m *Manager) loadSaved() error {
	data, err := os.ReadFile(m.file)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var saved AppConfig
	if err := json.Unmarshal(data, &saved); err != nil {
		return err
	}
	if saved.LLMProvider == "" {
		saved.LLMProvider = DefaultProvider
	}
	if saved.LLMConfig == nil {
		saved.LLMConfig = map[string]string{}
	}

	key := saved.LLMConfig["api_key"]
	if utils.IsEncrypted(key) {
		plain, err := utils.Decrypt(key, m.base.EncryptionKey)
		if err != nil {
			m.logger.Warn("无法解密已保存的 API 密钥，改用环境变量", map[string]interface{}{
				"error": err.Error(),
			})
			plain = ""
		}
		key = plain
	}
	if key == "" {
		key = m.base.GeminiAPIKey
	}
	saved.LLMConfig["api_key"] = key
	if saved.LLMConfig["default_model"] == "" {
		saved.LLMConfig["default_model"] = m.base.GeminiModel
	}

	m.current = &saved
	return nil
}

// Current 返回当前设置的副本
func (m *Manager) Current() *AppConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyConfig(m.current)
}

// UpdateLLMConfig 更新生成服务设置并保存
func (m *Manager) UpdateLLMConfig(provider string, settings map[string]string) error {
	if provider == "" {
		provider = DefaultProvider
	}

	m.mu.Lock()
	m.current = copyConfig(&AppConfig{LLMProvider: provider, LLMConfig: settings})
	m.mu.Unlock()

	return m.save()
}

// save 保存当前设置到文件
func (m *Manager) save() error {
	m.mu.RLock()
	onDisk := copyConfig(m.current)
	m.mu.RUnlock()

	if key := onDisk.LLMConfig["api_key"]; key != "" {
		if m.base.EncryptionKey != "" {
			sealed, err := utils.Encrypt(key, m.base.EncryptionKey)
			if err != nil {
				return fmt.Errorf("加密 API 密钥失败: %w", err)
			}
			onDisk.LLMConfig["api_key"] = sealed
		} else if key == m.base.GeminiAPIKey {
			// 来自环境变量的密钥不写入文件
			delete(onDisk.LLMConfig, "api_key")
		}
	}

	if err := os.MkdirAll(filepath.Dir(m.file), 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := json.MarshalIndent(onDisk, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(m.file, data, 0600)
}

func copyConfig(c *AppConfig) *AppConfig {
	out := &AppConfig{LLMProvider: c.LLMProvider, LLMConfig: make(map[string]string, len(c.LLMConfig))}
	for k, v := range c.LLMConfig {
		out.LLMConfig[k] = v
	}
	return out
}
