package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string

	CoachAPIURL    string
	CoachWSURL     string
	CoachAPIToken  string
	AnalysisAPIURL string

	RedisURL    string
	DatabaseURL string

	MaxSessions   int
	SessionTTLSec int
	HistoryLimit  int

	CoachTimeout    time.Duration
	AnalysisTimeout time.Duration

	MessageOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:      ":8380",
		MaxSessions:     200,
		SessionTTLSec:   3600,
		HistoryLimit:    10,
		CoachTimeout:    20 * time.Second,
		AnalysisTimeout: 30 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}

	cfg.CoachAPIURL = strings.TrimSpace(os.Getenv("COACH_API_URL"))
	cfg.CoachWSURL = strings.TrimSpace(os.Getenv("COACH_WS_URL"))
	cfg.CoachAPIToken = strings.TrimSpace(os.Getenv("COACH_API_TOKEN"))
	cfg.AnalysisAPIURL = strings.TrimSpace(os.Getenv("ANALYSIS_API_URL"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("MAX_SESSIONS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSessions = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_TTL")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("COACH_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CoachTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("ANALYSIS_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AnalysisTimeout = time.Duration(n) * time.Millisecond
		}
	}

	cfg.MessageOverrideDir = strings.TrimSpace(os.Getenv("MSG_OVERRIDE_DIR"))

	if cfg.CoachAPIURL == "" {
		return nil, errors.New("COACH_API_URL is required")
	}

	return cfg, nil
}

// SessionTTL returns the session expiry as a duration.
func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSec) * time.Second
}
