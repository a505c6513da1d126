package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath = "../../.env"

	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env    string
	DB     DB
	Server Server
	Logger Logger
}

type DB struct {
	DatabaseURI string `env:"DATABASE_URI"`
	Migrations  string `env:"MIGRATIONS_PATH"`
}

// InMemory сообщает, что адрес базы не задан и сервер работает без postgres.
func (d DB) InMemory() bool {
	return d.DatabaseURI == ""
}

type Server struct {
	RunAddress string `env:"RUN_ADDRESS"`
	// Token если задан, каждый запрос к /api/v1/{collection} обязан нести
	// заголовок Authorization: Bearer <Token>.
	Token string `env:"API_TOKEN"`
}

type Logger struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации сервера: %v", err))
	}
	return cfg
}

func Load() (*Config, error) {
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("ошибка загрузки .env: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetDefault("run_address", "localhost:8080")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("app_env", EnvLocal)
	viper.SetDefault("migrations_path", "migrations")

	cfg := &Config{
		Env: viper.GetString("app_env"),
		DB: DB{
			DatabaseURI: viper.GetString("database_uri"),
			Migrations:  viper.GetString("migrations_path"),
		},
		Server: Server{
			RunAddress: viper.GetString("run_address"),
			Token:      viper.GetString("api_token"),
		},
		Logger: Logger{LogLevel: viper.GetString("log_level")},
	}

	if cfg.Server.RunAddress == "" {
		return nil, fmt.Errorf("run_address не может быть пустым")
	}

	return cfg, nil
}
