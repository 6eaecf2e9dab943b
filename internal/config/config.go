package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all agent configuration.
type Config struct {
	AgentPort string
	GinMode   string
	LogLevel  string
	LogFormat string

	// Session parameters handed over by the launcher screen.
	ExamBaseURL                 string
	ExamType                    string
	ExamDurationMinutes         int
	PhotosRequired              bool
	VideoRequired               bool
	SuspiciousActivityDetection bool
	LogoURL                     string

	RedisURL       string
	CandidateToken string
	HTTPTimeout    time.Duration

	PhotoEarlyInterval time.Duration
	PhotoEarlyWindow   time.Duration
	PhotoLateInterval  time.Duration
	VideoInterval      time.Duration
	VideoClipLength    time.Duration
	ModeSwitchTimeout  time.Duration
	CameraReadyTimeout time.Duration

	SpoolDir      string
	SyncWSURL     string
	LocationLat   float64
	LocationLon   float64
	LocationLabel string

	// AllowedOrigins controls CORS on the control API.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		AgentPort: getEnv("AGENT_PORT", "8765"),
		GinMode:   getEnv("GIN_MODE", "release"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "auto"),

		ExamBaseURL:                 strings.TrimRight(getEnv("EXAM_BASE_URL", "http://192.168.1.10:5000"), "/"),
		ExamType:                    strings.ToLower(getEnv("EXAM_TYPE", "theory")),
		ExamDurationMinutes:         getEnvInt("EXAM_DURATION_MINUTES", 30),
		PhotosRequired:              getEnvBool("PHOTOS_REQUIRED", true),
		VideoRequired:               getEnvBool("VIDEO_REQUIRED", false),
		SuspiciousActivityDetection: getEnvBool("SUSPICIOUS_ACTIVITY_DETECTION_REQUIRED", false),
		LogoURL:                     getEnv("LOGO_URL", ""),

		RedisURL:       getEnv("REDIS_URL", ""),
		CandidateToken: getEnv("CANDIDATE_TOKEN", ""),
		HTTPTimeout:    getEnvDuration("HTTP_TIMEOUT", 30*time.Second),

		PhotoEarlyInterval: getEnvDuration("PHOTO_EARLY_INTERVAL", 8*time.Second),
		PhotoEarlyWindow:   getEnvDuration("PHOTO_EARLY_WINDOW", 120*time.Second),
		PhotoLateInterval:  getEnvDuration("PHOTO_LATE_INTERVAL", 40*time.Second),
		VideoInterval:      getEnvDuration("VIDEO_INTERVAL", 100*time.Second),
		VideoClipLength:    getEnvDuration("VIDEO_CLIP_LENGTH", 10*time.Second),
		ModeSwitchTimeout:  getEnvDuration("MODE_SWITCH_TIMEOUT", 3*time.Second),
		CameraReadyTimeout: getEnvDuration("CAMERA_READY_TIMEOUT", 10*time.Second),

		SpoolDir:      getEnv("SPOOL_DIR", "./spool"),
		SyncWSURL:     getEnv("SYNC_WS_URL", ""),
		LocationLat:   getEnvFloat("LOCATION_LAT", 0),
		LocationLon:   getEnvFloat("LOCATION_LON", 0),
		LocationLabel: getEnv("LOCATION_LABEL", ""),

		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

// DurationSeconds is the exam length in whole seconds.
func (c *Config) DurationSeconds() int {
	return c.ExamDurationMinutes * 60
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// getEnvDuration accepts Go duration strings ("8s", "2m") or bare seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
