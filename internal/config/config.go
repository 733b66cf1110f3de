package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode

	Port string

	GCPProjectID string
	GCPLocation  string
	ModelName    string

	StorageBackend string // "memory" or "firestore"
	UseMockLLM     bool   // true = use mock even on GCP

	// CaptureProvider selects the device layer: "fake" (in-process, for demo
	// and tests) or "pulse" (PulseAudio microphone).
	CaptureProvider string

	// RemoteTimeout bounds every question/scoring call so fallbacks trigger
	// on a hung collaborator instead of stalling the turn.
	RemoteTimeout time.Duration

	// MaxQuestions is the default number of question/answer turns per session.
	MaxQuestions int

	AdminUsername string
	AdminPassword string
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Load reads all env vars and builds the config
func Load() *Config {
	modeStr := getEnv("INTERVU_MODE", "local")
	var mode Mode
	switch modeStr {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	cfg := &Config{
		Mode: mode,

		Port: getEnv("INTERVU_PORT", "8080"),

		GCPProjectID: getEnv("INTERVU_GCP_PROJECT", ""),
		GCPLocation:  getEnv("INTERVU_GCP_LOCATION", "us-central1"),
		ModelName:    getEnv("INTERVU_MODEL_NAME", "gemini-2.0-flash-001"),

		StorageBackend: getEnv("INTERVU_STORAGE_BACKEND", "memory"),
		UseMockLLM:     getBoolEnv("INTERVU_USE_MOCK_LLM", mode == ModeLocal),

		CaptureProvider: getEnv("INTERVU_CAPTURE_PROVIDER", "fake"),

		RemoteTimeout: time.Duration(getIntEnv("INTERVU_REMOTE_TIMEOUT_SEC", 30)) * time.Second,
		MaxQuestions:  getIntEnv("INTERVU_MAX_QUESTIONS", 5),

		AdminUsername: getEnv("INTERVU_ADMIN_USERNAME", ""),
		AdminPassword: getEnv("INTERVU_ADMIN_PASSWORD", ""),
	}

	// Minimal validation in GCP mode
	if cfg.Mode == ModeGCP && cfg.GCPProjectID == "" {
		log.Fatal("INTERVU_GCP_PROJECT must be set in gcp mode")
	}

	return cfg
}
