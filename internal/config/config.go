package config

import (
	"os"
	"strconv"
)

// Config centralizes runtime settings for the API and the transform
// pipeline.
type Config struct {
	Port string

	AuthToken string

	DatabaseURL string

	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	CheckpointTTLHours int

	DetectorBaseURL      string
	DetectorAuthToken    string
	DetectorTimeoutMS    int
	DetectorMaxRetries   int
	DetectorDefaultScore float64
	DetectorThreshold    float64

	ScoreCacheTTLSeconds int
	ScoreCacheMaxEntries int

	MaxChunkWords         int
	MinChunkWords         int
	ChunkOverlapSentences int
	Parallelism           int
	ProgressIntervalWords int
	CheckpointEveryChunks int
	MemoryThresholdPct    int
	TailSentences         int

	JobTimeoutMinutes int

	RateLimitRPS   float64
	RateLimitBurst int

	CORSOrigins string
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AuthToken: getEnv("API_AUTH_TOKEN", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		CheckpointTTLHours: getEnvInt("CHECKPOINT_TTL_HOURS", 24),

		DetectorBaseURL:      getEnv("DETECTOR_BASE_URL", ""),
		DetectorAuthToken:    getEnv("DETECTOR_AUTH_TOKEN", ""),
		DetectorTimeoutMS:    getEnvInt("DETECTOR_TIMEOUT_MS", 10000),
		DetectorMaxRetries:   getEnvInt("DETECTOR_MAX_RETRIES", 2),
		DetectorDefaultScore: getEnvFloat("DETECTOR_DEFAULT_SCORE", 85),
		DetectorThreshold:    getEnvFloat("DETECTOR_PASS_THRESHOLD", 75),

		ScoreCacheTTLSeconds: getEnvInt("SCORE_CACHE_TTL_SECONDS", 900),
		ScoreCacheMaxEntries: getEnvInt("SCORE_CACHE_MAX_ENTRIES", 1000),

		MaxChunkWords:         getEnvInt("MAX_CHUNK_WORDS", 10000),
		MinChunkWords:         getEnvInt("MIN_CHUNK_WORDS", 1000),
		ChunkOverlapSentences: getEnvInt("CHUNK_OVERLAP_SENTENCES", 3),
		Parallelism:           getEnvInt("PARALLELISM", 3),
		ProgressIntervalWords: getEnvInt("PROGRESS_INTERVAL_WORDS", 10000),
		CheckpointEveryChunks: getEnvInt("CHECKPOINT_EVERY_CHUNKS", 10),
		MemoryThresholdPct:    getEnvInt("MEMORY_THRESHOLD_PCT", 80),
		TailSentences:         getEnvInt("CONTEXT_TAIL_SENTENCES", 3),

		JobTimeoutMinutes: getEnvInt("JOB_TIMEOUT_MINUTES", 30),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		CORSOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
