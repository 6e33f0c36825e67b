package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	ImageDir       string `yaml:"image_dir"`
	SourceRoot     string `yaml:"source_root"`
	LogLevel       string `yaml:"log_level"`
	Output         string `yaml:"output"`
	MergeVersion   string `yaml:"merge_version"`
	MigrateVersion string `yaml:"migrate_version"`
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/qbank/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		ImageDir:       "question_images",
		SourceRoot:     "Textbook_LT",
		LogLevel:       "info",
		Output:         "table",
		MergeVersion:   "4.0-enhanced-with-images",
		MigrateVersion: "4.2-migrated",
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// YAML config is optional, so a missing or unreadable file is ignored
	_ = loadYAMLConfig(cfg)

	// Override with environment variables
	if imageDir := getEnvOrFile("QBANK_IMAGE_DIR", "QBANK_IMAGE_DIR_FILE"); imageDir != "" {
		cfg.ImageDir = imageDir
	}
	if sourceRoot := getEnvOrFile("QBANK_SOURCE_ROOT", "QBANK_SOURCE_ROOT_FILE"); sourceRoot != "" {
		cfg.SourceRoot = sourceRoot
	}
	if logLevel := os.Getenv("QBANK_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if output := os.Getenv("QBANK_OUTPUT"); output != "" {
		cfg.Output = output
	}
	if v := os.Getenv("QBANK_MERGE_VERSION"); v != "" {
		cfg.MergeVersion = v
	}
	if v := os.Getenv("QBANK_MIGRATE_VERSION"); v != "" {
		cfg.MigrateVersion = v
	}

	return cfg, nil
}

// loadYAMLConfig loads configuration from ~/.config/qbank/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "qbank", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, just check cwd
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Clean paths for reliable comparison
	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		// Stop if we've reached home directory
		if dir == homeDir {
			break
		}

		// Get parent directory
		parent := filepath.Dir(dir)

		// Stop if we've reached the filesystem root
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}
