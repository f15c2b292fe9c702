// Package config loads runtime settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jwulff/incision/internal/daemon"
	"github.com/jwulff/incision/internal/db"
	"github.com/jwulff/incision/internal/timeline"
)

// Analyzer backends.
const (
	AnalyzerLocal  = "local"
	AnalyzerDaemon = "daemon"
)

// Repair estimators.
const (
	EstimatorRandom = "random"
	EstimatorLinear = "linear"
)

// Output sinks.
const (
	OutputSpeaker = "speaker"
	OutputNull    = "null"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// History
	DBPath string

	// Analysis
	Analyzer       string // local or daemon
	SocketPath     string
	AnalyzerSeed   uint64 // 0 picks a random seed
	CacheAlignment bool
	FitToAudio     bool

	// Repair model
	MinClarity      float64 // approve floor
	RepairEstimator string  // random or linear

	// Playback
	Output string        // speaker or null
	Frame  time.Duration // playhead sampling interval

	// EQ profile
	OllamaURL   string
	OllamaModel string

	// Logging
	LogFile string // empty discards TUI logs
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	fps := envInt("INCISION_FPS", 30)
	if fps <= 0 {
		fps = 30
	}
	return Config{
		DBPath: envStr("INCISION_DB", db.DefaultDBPath()),

		Analyzer:       envStr("INCISION_ANALYZER", AnalyzerLocal),
		SocketPath:     envStr("INCISION_SOCKET", daemon.SocketPath()),
		AnalyzerSeed:   uint64(envInt("INCISION_SEED", 0)),
		CacheAlignment: envBool("INCISION_CACHE_ALIGNMENT", false),
		FitToAudio:     envBool("INCISION_FIT_TO_AUDIO", true),

		MinClarity:      envFloat("INCISION_MIN_CLARITY", timeline.DefaultMinClarity),
		RepairEstimator: envStr("INCISION_REPAIR_ESTIMATOR", EstimatorRandom),

		Output: envStr("INCISION_OUTPUT", OutputSpeaker),
		Frame:  time.Second / time.Duration(fps),

		OllamaURL:   envStr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel: envStr("OLLAMA_MODEL", "qwen3:8b"),

		LogFile: envStr("INCISION_LOG", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
