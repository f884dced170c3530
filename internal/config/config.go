package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"veracity/internal/deception"
	"veracity/internal/extract"
)

// Config holds veracity configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Logging    LoggingConfig    `yaml:"logging"`
	Locale     string           `yaml:"locale"` // default report locale
}

type ServerConfig struct {
	Addr           string `yaml:"addr"` // HTTP listen address, e.g. ":8080"
	Mode           string `yaml:"mode"` // release | debug
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type ExtractionConfig struct {
	MaxChars int `yaml:"max_chars"` // transcript budget after cleanup
}

type ClassifierConfig struct {
	Provider       string  `yaml:"provider"` // "" | "http" | "openai"
	Endpoint       string  `yaml:"endpoint"`
	Model          string  `yaml:"model"`
	APIKeyEnv      string  `yaml:"api_key_env"` // e.g. "OPENAI_API_KEY"
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"` // 0 disables limiting
	RateBurst      int     `yaml:"rate_burst"`
}

type ArchiveConfig struct {
	Path string `yaml:"path"` // sqlite file; "" disables archiving
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// APIKey resolves the classifier credential through the configured
// environment variable so secrets never live in the YAML file.
func (c ClassifierConfig) APIKey() string {
	if strings.TrimSpace(c.APIKeyEnv) == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.APIKeyEnv))
}

func (c ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads configuration from a YAML file. If the file doesn't exist,
// it returns a default config and no error. Environment overrides are
// applied after the file so deployments can adjust without editing it.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			Mode:           "release",
			MaxUploadBytes: 8 << 20,
		},
		Extraction: ExtractionConfig{
			MaxChars: extract.DefaultMaxChars,
		},
		Classifier: ClassifierConfig{
			Provider:       "",
			TimeoutSeconds: 15,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Locale: string(deception.DefaultLocale),
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = ":8080"
	}
	if strings.TrimSpace(cfg.Server.Mode) == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 8 << 20
	}
	if cfg.Extraction.MaxChars == 0 {
		cfg.Extraction.MaxChars = extract.DefaultMaxChars
	}
	if cfg.Classifier.TimeoutSeconds == 0 {
		cfg.Classifier.TimeoutSeconds = 15
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if strings.TrimSpace(cfg.Locale) == "" {
		cfg.Locale = string(deception.DefaultLocale)
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Addr = getenv("VERACITY_ADDR", cfg.Server.Addr)
	cfg.Classifier.Provider = getenv("VERACITY_CLASSIFIER_PROVIDER", cfg.Classifier.Provider)
	cfg.Classifier.Endpoint = getenv("VERACITY_CLASSIFIER_ENDPOINT", cfg.Classifier.Endpoint)
	cfg.Classifier.Model = getenv("VERACITY_CLASSIFIER_MODEL", cfg.Classifier.Model)
	cfg.Archive.Path = getenv("VERACITY_ARCHIVE_PATH", cfg.Archive.Path)
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
