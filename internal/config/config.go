// Package config loads report pipeline settings from an optional YAML file
// and OTREPORT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "OTREPORT"

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Generation GenerationConfig `mapstructure:"generation"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Report     ReportConfig     `mapstructure:"report"`
	Store      StoreConfig      `mapstructure:"store"`
	Render     RenderConfig     `mapstructure:"render"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Server     ServerConfig     `mapstructure:"server"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type GenerationConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Model             string        `mapstructure:"model"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	FragmentMaxTokens int           `mapstructure:"fragment_max_tokens"`
	Temperature       float64       `mapstructure:"temperature"`
	Timeout           time.Duration `mapstructure:"timeout"`
	DetailFragments   bool          `mapstructure:"detail_fragments"`
}

type ExtractionConfig struct {
	MaxFileSizeMB int `mapstructure:"max_file_size_mb"`
	Concurrency   int `mapstructure:"concurrency"`
}

type ReportConfig struct {
	Title                string `mapstructure:"title"`
	Clinic               string `mapstructure:"clinic"`
	TherapistName        string `mapstructure:"therapist_name"`
	TherapistCredentials string `mapstructure:"therapist_credentials"`
	Disclaimer           string `mapstructure:"disclaimer"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type RenderConfig struct {
	ChromePath string        `mapstructure:"chrome_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	MaxUploadMB  int           `mapstructure:"max_upload_mb"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
	Insecure     bool   `mapstructure:"insecure"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("generation.enabled", true)
	v.SetDefault("generation.model", "claude-sonnet-4-20250514")
	v.SetDefault("generation.max_tokens", 2000)
	v.SetDefault("generation.fragment_max_tokens", 1500)
	v.SetDefault("generation.temperature", 0.3)
	v.SetDefault("generation.timeout", 90*time.Second)
	v.SetDefault("generation.detail_fragments", false)

	v.SetDefault("extraction.max_file_size_mb", 20)
	v.SetDefault("extraction.concurrency", 4)

	v.SetDefault("report.title", "Pediatric Occupational Therapy Evaluation")
	v.SetDefault("report.clinic", "")
	v.SetDefault("report.therapist_name", "")
	v.SetDefault("report.therapist_credentials", "OTR/L")
	v.SetDefault("report.disclaimer", "This report was prepared with automated scoring and drafting support and has been reviewed by the evaluating therapist.")

	v.SetDefault("store.path", "otreport.db")

	v.SetDefault("render.chrome_path", "")
	v.SetDefault("render.timeout", 30*time.Second)

	v.SetDefault("server.addr", ":8090")
	v.SetDefault("server.max_upload_mb", 64)
	v.SetDefault("server.write_timeout", 3*time.Minute)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "otreport")
	v.SetDefault("telemetry.insecure", true)
}

// Default returns the built-in configuration without reading files or env.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load reads path (when non-empty) and applies environment overrides such as
// OTREPORT_GENERATION_ENABLED=false.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Generation.MaxTokens <= 0 {
		errs = append(errs, errors.New("generation.max_tokens must be positive"))
	}
	if c.Generation.FragmentMaxTokens <= 0 {
		errs = append(errs, errors.New("generation.fragment_max_tokens must be positive"))
	}
	if c.Generation.Timeout <= 0 {
		errs = append(errs, errors.New("generation.timeout must be positive"))
	}
	if c.Extraction.Concurrency <= 0 {
		errs = append(errs, errors.New("extraction.concurrency must be positive"))
	}
	if c.Extraction.MaxFileSizeMB <= 0 {
		errs = append(errs, errors.New("extraction.max_file_size_mb must be positive"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
