// Package config loads settings from defaults, an optional YAML file, a
// .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"trivia-quiz/internal/opentdb"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

type Config struct {
	Quiz struct {
		Amount       int           `yaml:"amount"`
		Category     int           `yaml:"category"`
		Difficulty   string        `yaml:"difficulty"`
		Type         string        `yaml:"type"`
		Duration     time.Duration `yaml:"duration"`
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
	} `yaml:"quiz"`
	OpenTDB struct {
		URL string `yaml:"url"`
	} `yaml:"opentdb"`
	Storage struct {
		Driver     string `yaml:"driver"`
		SQLitePath string `yaml:"sqlite_path"`
		Redis      struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Key      string `yaml:"key"`
		} `yaml:"redis"`
	} `yaml:"storage"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.Quiz.Amount = 10
	cfg.Quiz.Category = 18
	cfg.Quiz.Difficulty = opentdb.DifficultyEasy
	cfg.Quiz.Type = opentdb.TypeMultiple
	cfg.Quiz.Duration = 10 * time.Minute
	cfg.Quiz.FetchTimeout = 15 * time.Second
	cfg.OpenTDB.URL = opentdb.DefaultURL
	cfg.Storage.Driver = DriverSQLite
	cfg.Storage.SQLitePath = "quiz.db"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Server.Addr = ":8080"
	return cfg
}

// Load builds the configuration. An empty path skips the YAML file; a
// missing .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error

	str := func(key string, dst *string) {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*dst = strings.TrimSpace(value)
		}
	}
	num := func(key string, dst *int) {
		value, ok := lookup(key)
		if !ok || strings.TrimSpace(value) == "" {
			return
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = parsed
	}
	dur := func(key string, dst *time.Duration) {
		value, ok := lookup(key)
		if !ok || strings.TrimSpace(value) == "" {
			return
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = parsed
	}

	num("QUIZ_AMOUNT", &c.Quiz.Amount)
	num("QUIZ_CATEGORY", &c.Quiz.Category)
	str("QUIZ_DIFFICULTY", &c.Quiz.Difficulty)
	str("QUIZ_TYPE", &c.Quiz.Type)
	dur("QUIZ_DURATION", &c.Quiz.Duration)
	dur("QUIZ_FETCH_TIMEOUT", &c.Quiz.FetchTimeout)
	str("OPENTDB_URL", &c.OpenTDB.URL)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("REDIS_ADDR", &c.Storage.Redis.Addr)
	str("REDIS_PASSWORD", &c.Storage.Redis.Password)
	num("REDIS_DB", &c.Storage.Redis.DB)
	str("REDIS_KEY", &c.Storage.Redis.Key)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("ADDR", &c.Server.Addr)

	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	if c.Quiz.Amount <= 0 {
		return fmt.Errorf("quiz amount must be positive, got %d", c.Quiz.Amount)
	}
	if c.Quiz.Duration <= 0 {
		return fmt.Errorf("quiz duration must be positive, got %s", c.Quiz.Duration)
	}
	if c.Quiz.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", c.Quiz.FetchTimeout)
	}
	if err := c.Params().Validate(); err != nil {
		return err
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite:
	case DriverRedis:
		if c.Storage.Redis.Addr == "" {
			return errors.New("redis storage needs REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Params is the question source request for one batch.
func (c *Config) Params() opentdb.Params {
	return opentdb.Params{
		Amount:     c.Quiz.Amount,
		Category:   c.Quiz.Category,
		Difficulty: c.Quiz.Difficulty,
		Type:       c.Quiz.Type,
	}
}
