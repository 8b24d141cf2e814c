package config

import (
	"os"
	"strconv"
	"time"
)

type Settings struct {
	Server   ServerConfig
	Scanner  ScannerConfig
	Scoring  ScoringConfig
	Cache    CacheConfig
	Batch    BatchConfig
	Crawl    CrawlConfig
	AI       AIConfig
	Database DatabaseConfig
	Colly    CollyConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type ScannerConfig struct {
	UserAgent           string
	Timeout             time.Duration
	MaxRetries          int
	BackoffFactor       time.Duration
	RequestsPerSecond   float64
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	MaxBodySize         int64
}

// ScoringConfig carries the per-category weights. They are data, not
// code: tuning the distribution never touches scoring logic.
type ScoringConfig struct {
	CookieConsent int
	PrivacyPolicy int
	CcpaNotice    int
	ContactInfo   int
	Trackers      int
}

type CacheConfig struct {
	TTL      time.Duration
	MaxItems int
}

type BatchConfig struct {
	Workers int
	Limit   int
}

type CrawlConfig struct {
	MaxCandidates int
	RulesPath     string
}

type AIConfig struct {
	APIKey          string
	Model           string
	MaxTokens       int
	Temperature     float64
	MaxPolicyLength int
}

type DatabaseConfig struct {
	Path string
}

type CollyConfig struct {
	Enabled     bool
	UserAgent   string
	Delay       time.Duration
	RandomDelay time.Duration
	Parallelism int
	DomainGlob  string
}

func Load() *Settings {
	return &Settings{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8081"),
			ReadTimeout:  getDurationEnv("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("WRITE_TIMEOUT", 30*time.Second),
		},
		Scanner: ScannerConfig{
			UserAgent:           getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"),
			Timeout:             getDurationEnv("REQUEST_TIMEOUT", 10*time.Second),
			MaxRetries:          getIntEnv("MAX_RETRIES", 3),
			BackoffFactor:       getDurationEnv("BACKOFF_FACTOR", 300*time.Millisecond),
			RequestsPerSecond:   getFloatEnv("REQUESTS_PER_SECOND", 5.0),
			MaxIdleConns:        getIntEnv("MAX_IDLE_CONNS", 200),
			MaxIdleConnsPerHost: getIntEnv("MAX_IDLE_CONNS_PER_HOST", 50),
			MaxConnsPerHost:     getIntEnv("MAX_CONNS_PER_HOST", 100),
			IdleConnTimeout:     getDurationEnv("IDLE_CONN_TIMEOUT", 30*time.Second),
			TLSHandshakeTimeout: getDurationEnv("TLS_HANDSHAKE_TIMEOUT", 10*time.Second),
			MaxBodySize:         getInt64Env("MAX_BODY_SIZE", 10<<20),
		},
		Scoring: ScoringConfig{
			CookieConsent: getIntEnv("SCORE_COOKIE_CONSENT", 25),
			PrivacyPolicy: getIntEnv("SCORE_PRIVACY_POLICY", 25),
			CcpaNotice:    getIntEnv("SCORE_CCPA_COMPLIANCE", 10),
			ContactInfo:   getIntEnv("SCORE_CONTACT_INFO", 20),
			Trackers:      getIntEnv("SCORE_TRACKERS_MAX", 20),
		},
		Cache: CacheConfig{
			TTL:      getDurationEnv("CACHE_TTL", 24*time.Hour),
			MaxItems: getIntEnv("CACHE_MAX_ITEMS", 256),
		},
		Batch: BatchConfig{
			Workers: getIntEnv("BATCH_WORKERS", 5),
			Limit:   getIntEnv("BATCH_SCAN_LIMIT", 10),
		},
		Crawl: CrawlConfig{
			MaxCandidates: getIntEnv("CRAWL_MAX_CANDIDATES", 3),
			RulesPath:     getEnv("SIGNAL_RULES_PATH", ""),
		},
		AI: AIConfig{
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			Model:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens:       getIntEnv("OPENAI_MAX_TOKENS", 1500),
			Temperature:     getFloatEnv("OPENAI_TEMPERATURE", 0.7),
			MaxPolicyLength: getIntEnv("MAX_POLICY_LENGTH", 8000),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", ""),
		},
		Colly: CollyConfig{
			Enabled:     getBoolEnv("COLLY_ENABLED", false),
			UserAgent:   getEnv("COLLY_USER_AGENT", "Mozilla/5.0 (compatible; ComplianceScanner/1.0)"),
			Delay:       getDurationEnv("COLLY_DELAY", 200*time.Millisecond),
			RandomDelay: getDurationEnv("COLLY_RANDOM_DELAY", 100*time.Millisecond),
			Parallelism: getIntEnv("COLLY_PARALLELISM", 5),
			DomainGlob:  getEnv("COLLY_DOMAIN_GLOB", "*"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
