// Package config provides pipeline orchestration configuration.
//
// This module contains ONLY configuration relevant to orchestration:
//   - Per-worker timeouts and concurrency bounds
//   - Retry budget and backoff
//   - Heartbeat and health-poll intervals
//
// Backend configuration (search index contents, synthesis templates) belongs
// to whoever constructs the backends, not here.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
)

// EngineConfig holds all orchestration tunables.
//
// Timeouts are expressed in seconds; use the accessor methods for
// time.Duration values.
type EngineConfig struct {
	// Per-worker request timeouts (seconds)
	AnalyzerTimeout    int `json:"analyzer_timeout"`
	RetrieverTimeout   int `json:"retriever_timeout"`
	SynthesizerTimeout int `json:"synthesizer_timeout"`
	CategorizerTimeout int `json:"categorizer_timeout"`

	// Per-worker concurrency bounds
	AnalyzerMaxConcurrent    int `json:"analyzer_max_concurrent"`
	RetrieverMaxConcurrent   int `json:"retriever_max_concurrent"`
	SynthesizerMaxConcurrent int `json:"synthesizer_max_concurrent"`
	CategorizerMaxConcurrent int `json:"categorizer_max_concurrent"`

	// InboxCapacity bounds every worker inbox.
	InboxCapacity int `json:"inbox_capacity"`

	// Retry Control
	MaxRetries    int `json:"max_retries"`
	BackoffUnitMS int `json:"backoff_unit_ms"` // wait 2^k units before retry pass k

	// Liveness (seconds)
	HeartbeatInterval  int `json:"heartbeat_interval"`
	HealthPollInterval int `json:"health_poll_interval"`

	// Retrieval
	MaxResults int `json:"max_results"`

	// Listen addresses
	GRPCAddr    string `json:"grpc_addr"`
	MetricsAddr string `json:"metrics_addr"`

	// Logging
	LogLevel string `json:"log_level"`
}

// DefaultEngineConfig returns an EngineConfig with default values.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		// Timeouts (seconds)
		AnalyzerTimeout:    30,
		RetrieverTimeout:   30,
		SynthesizerTimeout: 90,
		CategorizerTimeout: 60,

		// Concurrency
		AnalyzerMaxConcurrent:    10,
		RetrieverMaxConcurrent:   10,
		SynthesizerMaxConcurrent: 5,
		CategorizerMaxConcurrent: 5,
		InboxCapacity:            256,

		// Retry Control
		MaxRetries:    3,
		BackoffUnitMS: 1000,

		// Liveness
		HeartbeatInterval:  30,
		HealthPollInterval: 30,

		// Retrieval
		MaxResults: 10,

		// Addresses
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",

		// Logging
		LogLevel: "INFO",
	}
}

// FromEnv returns the default config with ANSWERHUB_* environment overrides
// applied. A .env file in the working directory is loaded first if present.
func FromEnv() *EngineConfig {
	_ = godotenv.Load()

	c := DefaultEngineConfig()

	envInt("ANSWERHUB_ANALYZER_TIMEOUT", &c.AnalyzerTimeout)
	envInt("ANSWERHUB_RETRIEVER_TIMEOUT", &c.RetrieverTimeout)
	envInt("ANSWERHUB_SYNTHESIZER_TIMEOUT", &c.SynthesizerTimeout)
	envInt("ANSWERHUB_CATEGORIZER_TIMEOUT", &c.CategorizerTimeout)

	envInt("ANSWERHUB_ANALYZER_MAX_CONCURRENT", &c.AnalyzerMaxConcurrent)
	envInt("ANSWERHUB_RETRIEVER_MAX_CONCURRENT", &c.RetrieverMaxConcurrent)
	envInt("ANSWERHUB_SYNTHESIZER_MAX_CONCURRENT", &c.SynthesizerMaxConcurrent)
	envInt("ANSWERHUB_CATEGORIZER_MAX_CONCURRENT", &c.CategorizerMaxConcurrent)
	envInt("ANSWERHUB_INBOX_CAPACITY", &c.InboxCapacity)

	envInt("ANSWERHUB_MAX_RETRIES", &c.MaxRetries)
	envInt("ANSWERHUB_BACKOFF_UNIT_MS", &c.BackoffUnitMS)

	envInt("ANSWERHUB_HEARTBEAT_INTERVAL", &c.HeartbeatInterval)
	envInt("ANSWERHUB_HEALTH_POLL_INTERVAL", &c.HealthPollInterval)

	envInt("ANSWERHUB_MAX_RESULTS", &c.MaxResults)

	envString("ANSWERHUB_GRPC_ADDR", &c.GRPCAddr)
	envString("ANSWERHUB_METRICS_ADDR", &c.MetricsAddr)
	envString("ANSWERHUB_LOG_LEVEL", &c.LogLevel)

	return c
}

func envInt(key string, dst *int) {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			*dst = v
		}
	}
}

func envString(key string, dst *string) {
	if raw := os.Getenv(key); raw != "" {
		*dst = raw
	}
}

// Validate checks invariants. Returns an error describing the first
// violation found.
func (c *EngineConfig) Validate() error {
	positives := map[string]int{
		"analyzer_timeout":           c.AnalyzerTimeout,
		"retriever_timeout":          c.RetrieverTimeout,
		"synthesizer_timeout":        c.SynthesizerTimeout,
		"categorizer_timeout":        c.CategorizerTimeout,
		"analyzer_max_concurrent":    c.AnalyzerMaxConcurrent,
		"retriever_max_concurrent":   c.RetrieverMaxConcurrent,
		"synthesizer_max_concurrent": c.SynthesizerMaxConcurrent,
		"categorizer_max_concurrent": c.CategorizerMaxConcurrent,
		"inbox_capacity":             c.InboxCapacity,
		"backoff_unit_ms":            c.BackoffUnitMS,
		"heartbeat_interval":         c.HeartbeatInterval,
		"health_poll_interval":       c.HealthPollInterval,
		"max_results":                c.MaxResults,
	}
	for name, v := range positives {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got %d", c.MaxRetries)
	}
	return nil
}

// WorkerTimeout returns the request timeout for a worker role.
func (c *EngineConfig) WorkerTimeout(role envelope.Role) time.Duration {
	seconds := c.RetrieverTimeout
	switch role {
	case envelope.RoleQueryAnalyzer:
		seconds = c.AnalyzerTimeout
	case envelope.RoleRetriever:
		seconds = c.RetrieverTimeout
	case envelope.RoleSynthesizer:
		seconds = c.SynthesizerTimeout
	case envelope.RoleCategorizer:
		seconds = c.CategorizerTimeout
	}
	return time.Duration(seconds) * time.Second
}

// WorkerMaxConcurrent returns the concurrency bound for a worker role.
func (c *EngineConfig) WorkerMaxConcurrent(role envelope.Role) int {
	switch role {
	case envelope.RoleQueryAnalyzer:
		return c.AnalyzerMaxConcurrent
	case envelope.RoleRetriever:
		return c.RetrieverMaxConcurrent
	case envelope.RoleSynthesizer:
		return c.SynthesizerMaxConcurrent
	case envelope.RoleCategorizer:
		return c.CategorizerMaxConcurrent
	default:
		return c.AnalyzerMaxConcurrent
	}
}

// BackoffUnit returns the retry backoff unit as a duration.
func (c *EngineConfig) BackoffUnit() time.Duration {
	return time.Duration(c.BackoffUnitMS) * time.Millisecond
}

// HeartbeatPeriod returns the heartbeat interval as a duration.
func (c *EngineConfig) HeartbeatPeriod() time.Duration {
	return time.Duration(c.HeartbeatInterval) * time.Second
}

// HealthPollPeriod returns the health poll interval as a duration.
func (c *EngineConfig) HealthPollPeriod() time.Duration {
	return time.Duration(c.HealthPollInterval) * time.Second
}
