package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all process-level configuration. Vendor extraction rules live
// in their own YAML file and are loaded separately per run.
type Config struct {
	Pipeline PipelineConfig
	OCR      OCRConfig
}

// PipelineConfig holds batch processing configuration.
type PipelineConfig struct {
	Workers      int
	MaxInputMB   int64
	ConfigPath   string
	TemplatePath string
}

// OCRConfig holds OCR-related configuration.
type OCRConfig struct {
	Pdftotext   string
	Pdfinfo     string
	Pdftoppm    string
	Tesseract   string
	DPI         int
	Language    string
	PageTimeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Workers:      getEnvAsInt("EXTRACTOR_WORKERS", 4),
			MaxInputMB:   int64(getEnvAsInt("EXTRACTOR_MAX_INPUT_MB", 20)),
			ConfigPath:   getEnv("EXTRACTOR_CONFIG_PATH", "config.yaml"),
			TemplatePath: getEnv("EXTRACTOR_TEMPLATE_PATH", ""),
		},
		OCR: OCRConfig{
			Pdftotext:   getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdfinfo:     getEnv("PDFINFO_BIN", "pdfinfo"),
			Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			DPI:         getEnvAsInt("OCR_DPI", 300),
			Language:    getEnv("OCR_LANG", "eng"),
			PageTimeout: getEnvAsDuration("OCR_PAGE_TIMEOUT", 60*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Pipeline.Workers <= 0 {
		return ConfigError("EXTRACTOR_WORKERS must be positive", ErrInvalidInput)
	}
	if c.Pipeline.MaxInputMB <= 0 {
		return ConfigError("EXTRACTOR_MAX_INPUT_MB must be positive", ErrInvalidInput)
	}
	if c.OCR.DPI <= 0 {
		return ConfigError("OCR_DPI must be positive", ErrInvalidInput)
	}
	return nil
}
