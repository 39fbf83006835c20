package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Index    IndexConfig
	Pipeline PipelineConfig

	// DepartmentsFile optionally overrides the built-in department registry.
	DepartmentsFile string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds the thin HTTP surface configuration
type ServerConfig struct {
	HTTPAddr  string
	UploadDir string
}

// OCRConfig holds recognition-engine configuration
type OCRConfig struct {
	Pdftoppm      string
	Tesseract     string
	TesseractLang string
	TessdataDir   string
	DPI           int
	MaxPages      int
	PageWorkers   int
}

// LLMConfig holds generative-backend configuration
type LLMConfig struct {
	BaseURL         string
	APIKey          string
	ClassifierModel string
	SummarizerModel string
	Temperature     float32
	Timeout         time.Duration
	MaxRetries      int
}

// IndexConfig holds semantic-index configuration
type IndexConfig struct {
	QdrantURL      string
	QdrantAPIKey   string
	Collection     string
	EmbedBaseURL   string
	EmbedAPIKey    string
	EmbedModel     string
	Dimension      int
	TopK           int
	ScoreThreshold float32
	Timeout        time.Duration
}

// PipelineConfig holds orchestrator configuration
type PipelineConfig struct {
	TopicWorkers   int
	QueueWorkers   int
	QueueSize      int
	ProcessTimeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
			UploadDir: getEnv("UPLOAD_DIR", "./upload"),
		},
		OCR: OCRConfig{
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 0),
			PageWorkers:   getEnvAsInt("OCR_PAGE_WORKERS", 1),
		},
		LLM: LLMConfig{
			BaseURL:         getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:          getEnv("LLM_API_KEY", os.Getenv("OPENAI_API_KEY")),
			ClassifierModel: getEnv("LLM_CLASSIFIER_MODEL", "gpt-4o-mini"),
			SummarizerModel: getEnv("LLM_SUMMARIZER_MODEL", "gpt-4o-mini"),
			Temperature:     getEnvAsFloat32("LLM_TEMPERATURE", 0.4),
			Timeout:         getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
			MaxRetries:      getEnvAsInt("LLM_MAX_RETRIES", 2),
		},
		Index: IndexConfig{
			QdrantURL:      getEnv("QDRANT_URL", "http://localhost:6333"),
			QdrantAPIKey:   getEnv("QDRANT_API_KEY", ""),
			Collection:     getEnv("QDRANT_COLLECTION", "summaries"),
			EmbedBaseURL:   getEnv("EMBED_BASE_URL", "https://api.openai.com/v1"),
			EmbedAPIKey:    getEnv("EMBED_API_KEY", os.Getenv("OPENAI_API_KEY")),
			EmbedModel:     getEnv("EMBED_MODEL", "text-embedding-3-small"),
			Dimension:      getEnvAsInt("EMBED_DIMENSION", 1536),
			TopK:           getEnvAsInt("INDEX_TOP_K", 5),
			ScoreThreshold: getEnvAsFloat32("INDEX_SCORE_THRESHOLD", 0.65),
			Timeout:        getEnvAsDuration("INDEX_TIMEOUT", 15*time.Second),
		},
		Pipeline: PipelineConfig{
			TopicWorkers:   getEnvAsInt("PIPELINE_TOPIC_WORKERS", 1),
			QueueWorkers:   getEnvAsInt("PIPELINE_QUEUE_WORKERS", 4),
			QueueSize:      getEnvAsInt("PIPELINE_QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("PIPELINE_PROCESS_TIMEOUT", 10*time.Minute),
		},
		DepartmentsFile: getEnv("DEPARTMENTS_FILE", ""),
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

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return E(KindValidation, "config.validate", "DB_URL is required", nil)
	}
	if c.LLM.APIKey == "" {
		return E(KindValidation, "config.validate", "LLM_API_KEY is required", nil)
	}
	if c.Server.HTTPAddr == "" {
		return E(KindValidation, "config.validate", "HTTP_ADDR is required", nil)
	}
	return nil
}
