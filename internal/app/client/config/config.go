package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultLogLevel      = "info"
	defaultEnv           = "local"
	defaultConfigDir     = ".assessync"
	defaultDataFile      = "local.db"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env           string `mapstructure:"app_env"`
	ServerAddress string `mapstructure:"server_address"`
	LogLevel      string `mapstructure:"log_level"`
	ConfigDir     string `mapstructure:"config_dir"`
	DataPath      string `mapstructure:"data_path"`
	Token         string `mapstructure:"api_token"`
	EnableTLS     bool   `mapstructure:"enable_tls"`

	SyncInterval  time.Duration `mapstructure:"sync_interval"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	SettleDelay   time.Duration `mapstructure:"settle_delay"`
	CallTimeout   time.Duration `mapstructure:"call_timeout"`

	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
}

// Default возвращает конфигурацию со значениями по умолчанию без обращения
// к окружению.
func Default() *Config {
	return &Config{
		Env:            defaultEnv,
		ServerAddress:  defaultServerAddress,
		LogLevel:       defaultLogLevel,
		ConfigDir:      defaultConfigDir,
		DataPath:       filepath.Join(defaultConfigDir, defaultDataFile),
		SyncInterval:   30 * time.Second,
		ProbeInterval:  10 * time.Second,
		SettleDelay:    2 * time.Second,
		CallTimeout:    15 * time.Second,
		MaxRetries:     5,
		RetryBaseDelay: time.Second,
		RetryMaxDelay:  5 * time.Minute,
	}
}

// MustLoad загружает конфигурацию клиента
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return cfg
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	// Определяем путь к .env файлу (относительно места запуска)
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}

	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	viper.AutomaticEnv()

	d := Default()
	viper.SetDefault("APP_ENV", d.Env)
	viper.SetDefault("SERVER_ADDRESS", d.ServerAddress)
	viper.SetDefault("LOG_LEVEL", d.LogLevel)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)
	viper.SetDefault("ENABLE_TLS", false)
	viper.SetDefault("SYNC_INTERVAL", d.SyncInterval)
	viper.SetDefault("PROBE_INTERVAL", d.ProbeInterval)
	viper.SetDefault("SETTLE_DELAY", d.SettleDelay)
	viper.SetDefault("CALL_TIMEOUT", d.CallTimeout)
	viper.SetDefault("MAX_RETRIES", d.MaxRetries)
	viper.SetDefault("RETRY_BASE_DELAY", d.RetryBaseDelay)
	viper.SetDefault("RETRY_MAX_DELAY", d.RetryMaxDelay)

	// Вычисляем пути для хранения данных
	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "."
		}
		configDir = filepath.Join(homeDir, configDir)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории конфигурации: %w", err)
	}

	dataPath := viper.GetString("DATA_PATH")
	if dataPath == "" {
		dataPath = filepath.Join(configDir, defaultDataFile)
	}

	cfg := &Config{
		Env:            viper.GetString("APP_ENV"),
		ServerAddress:  viper.GetString("SERVER_ADDRESS"),
		LogLevel:       viper.GetString("LOG_LEVEL"),
		ConfigDir:      configDir,
		DataPath:       dataPath,
		Token:          viper.GetString("API_TOKEN"),
		EnableTLS:      viper.GetBool("ENABLE_TLS"),
		SyncInterval:   viper.GetDuration("SYNC_INTERVAL"),
		ProbeInterval:  viper.GetDuration("PROBE_INTERVAL"),
		SettleDelay:    viper.GetDuration("SETTLE_DELAY"),
		CallTimeout:    viper.GetDuration("CALL_TIMEOUT"),
		MaxRetries:     viper.GetInt("MAX_RETRIES"),
		RetryBaseDelay: viper.GetDuration("RETRY_BASE_DELAY"),
		RetryMaxDelay:  viper.GetDuration("RETRY_MAX_DELAY"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность значений.
func (c *Config) Validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address не может быть пустым")
	}
	if c.DataPath == "" {
		return fmt.Errorf("data_path не может быть пустым")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max_retries должен быть больше нуля")
	}
	if c.SyncInterval <= 0 || c.ProbeInterval <= 0 || c.CallTimeout <= 0 {
		return fmt.Errorf("интервалы и таймауты должны быть положительными")
	}
	if c.RetryBaseDelay > c.RetryMaxDelay {
		return fmt.Errorf("retry_base_delay больше retry_max_delay")
	}
	return nil
}

// BaseURL возвращает адрес сервера со схемой.
func (c *Config) BaseURL() string {
	scheme := "http://"
	if c.EnableTLS {
		scheme = "https://"
	}
	return scheme + c.ServerAddress
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == EnvProd
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == EnvLocal || c.Env == ""
}
