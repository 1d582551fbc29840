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
)

const envPrefix = "SHEETHOOK_"

// Load builds a Config from defaults, .env files, an optional YAML file and
// SHEETHOOK_* environment variables, in that order. Environment always wins.
// The result is not validated.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFiles loads ENV_FILE when set, otherwise .env.local then .env.
// godotenv never overrides variables that are already set, so the first
// file to define a key wins.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if value, ok := EnvString(envPrefix + "WORKBOOK"); ok {
		cfg.WorkbookPath = value
	}
	if value, ok := EnvString(envPrefix + "SHEET_NAME"); ok {
		cfg.SheetName = value
	}
	if value, ok := EnvString(envPrefix + "SHEET_ID"); ok {
		cfg.SheetID = value
	}
	if value, ok := EnvString(envPrefix + "WEBHOOK_URL"); ok {
		cfg.WebhookURL = value
	}
	if value, ok := EnvString(envPrefix + "LISTEN_ADDR"); ok {
		cfg.ListenAddr = value
	}
	if value, ok := EnvString(envPrefix + "ARCHIVE_SCHEDULE"); ok {
		cfg.ArchiveSchedule = value
	}

	if value, ok, err := EnvDuration(envPrefix + "WEBHOOK_TIMEOUT"); err != nil {
		return err
	} else if ok {
		cfg.WebhookTimeout = value
	}
	if value, ok, err := EnvDuration(envPrefix + "ARCHIVE_RETENTION"); err != nil {
		return err
	} else if ok {
		cfg.ArchiveRetention = value
	}
	if value, ok, err := EnvInt(envPrefix + "VALIDATION_ROWS"); err != nil {
		return err
	} else if ok {
		cfg.ValidationRows = value
	}
	if value, ok, err := EnvBool(envPrefix + "WATCH"); err != nil {
		return err
	} else if ok {
		cfg.Watch = value
	}
	if value, ok, err := EnvBool(envPrefix + "VERBOSE"); err != nil {
		return err
	} else if ok {
		cfg.Verbose = value
	}
	return nil
}

// EnvString returns the trimmed value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer when it is set.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvBool parses key as a boolean when it is set.
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvDuration parses key as a time.Duration when it is set.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, true, nil
}
