// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all simulation and gateway settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
	"time"
)

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimConfig holds the fixed-tick simulation settings.
type SimConfig struct {
	TickRate    int     // Simulation ticks per second
	WorldWidth  float64 // World bounds in world units
	WorldHeight float64
	CellSize    float64 // Spatial grid cell size

	Gravity         float64 // Downward acceleration, units/s^2
	PlayerSpeed     float64 // Horizontal player speed, units/s
	PlayerJumpSpeed float64 // Initial jump velocity, units/s
	HostileSpeed    float64 // Hostile walk speed, units/s
	ProjectileSpeed float64 // Projectile speed, units/s
	ProjectileLife  float64 // Projectile lifetime in seconds

	BaseDamage int // Damage per projectile hit before multipliers

	PlayerHP  int
	HostileHP int
	BossHP    int
	MiniHP    int

	DebugChecks bool // Fail loudly on invariant violations instead of no-op
}

// DefaultSim returns the default simulation configuration.
func DefaultSim() SimConfig {
	return SimConfig{
		TickRate:        60,
		WorldWidth:      1280,
		WorldHeight:     720,
		CellSize:        80,
		Gravity:         1800,
		PlayerSpeed:     260,
		PlayerJumpSpeed: 620,
		HostileSpeed:    90,
		ProjectileSpeed: 700,
		ProjectileLife:  1.5,
		BaseDamage:      1,
		PlayerHP:        10,
		HostileHP:       3,
		BossHP:          30,
		MiniHP:          1,
	}
}

// SimFromEnv returns simulation configuration with environment overrides.
func SimFromEnv() SimConfig {
	cfg := DefaultSim()

	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if w := getEnvFloat("WORLD_WIDTH", 0); w > 0 {
		cfg.WorldWidth = w
	}
	if h := getEnvFloat("WORLD_HEIGHT", 0); h > 0 {
		cfg.WorldHeight = h
	}
	if cs := getEnvFloat("GRID_CELL_SIZE", 0); cs > 0 {
		cfg.CellSize = cs
	}
	if os.Getenv("DEBUG_CHECKS") == "true" {
		cfg.DebugChecks = true
	}

	return cfg
}

// =============================================================================
// QUEST CONFIGURATION
// =============================================================================

// QuestConfig holds side-quest tuning values.
type QuestConfig struct {
	Duration        time.Duration // Countdown once a quest turns Active
	ObjectiveRadius float64       // Win radius around the objective
	ChaserSpeed     float64       // Adversarial actor speed, units/s
	ChaserReach     float64       // Distance at which the chaser claims the objective
}

// DefaultQuest returns the default quest configuration.
func DefaultQuest() QuestConfig {
	return QuestConfig{
		Duration:        90 * time.Second,
		ObjectiveRadius: 48,
		ChaserSpeed:     120,
		ChaserReach:     24,
	}
}

// =============================================================================
// ARCADE CHALLENGE CONFIGURATION
// =============================================================================

// ArcadeConfig holds the timed challenge session settings.
type ArcadeConfig struct {
	Countdown    time.Duration // Fixed pre-session countdown
	Duration     time.Duration // Fixed active session length
	ComboWindow  time.Duration // Sliding window for combo chaining
	MinLive      int           // Minimum live hostiles maintained during Active
	RespawnDelay time.Duration // Per-entity delay before a respawn fills in

	// Combo thresholds and the damage multiplier each unlocks.
	ComboTiers []ComboTier

	BatchSize  int           // Eliminations per remote batch on commit
	BatchDelay time.Duration // Fixed delay between batches
}

// ComboTier maps a combo count threshold to a damage multiplier.
type ComboTier struct {
	Threshold  int
	Multiplier float64
}

// DefaultArcade returns the default arcade configuration.
func DefaultArcade() ArcadeConfig {
	return ArcadeConfig{
		Countdown:    3 * time.Second,
		Duration:     120 * time.Second,
		ComboWindow:  3 * time.Second,
		MinLive:      6,
		RespawnDelay: 2 * time.Second,
		ComboTiers: []ComboTier{
			{Threshold: 5, Multiplier: 1.5},
			{Threshold: 10, Multiplier: 2.0},
		},
		BatchSize:  10,
		BatchDelay: 500 * time.Millisecond,
	}
}

// ArcadeFromEnv returns arcade configuration with environment overrides.
func ArcadeFromEnv() ArcadeConfig {
	cfg := DefaultArcade()

	if n := getEnvInt("ARCADE_MIN_LIVE", 0); n > 0 {
		cfg.MinLive = n
	}
	if n := getEnvInt("ARCADE_BATCH_SIZE", 0); n > 0 {
		cfg.BatchSize = n
	}
	if d := getEnvDuration("ARCADE_DURATION", 0); d > 0 {
		cfg.Duration = d
	}

	return cfg
}

// =============================================================================
// RECORD FEED (REMOTE GATEWAY) CONFIGURATION
// =============================================================================

// FeedConfig holds settings for the remote record feed gateway.
type FeedConfig struct {
	BaseURL     string        // Feed API base URL
	Token       string        // Bearer token
	Timeout     time.Duration // Per-request HTTP timeout
	MaxAttempts int           // Attempts per action (transient retries)
	RetryBase   time.Duration // Base backoff between retries
	CallsPerSec float64       // Global pacing across all remote calls
}

// DefaultFeed returns the default feed configuration.
func DefaultFeed() FeedConfig {
	return FeedConfig{
		BaseURL:     "http://127.0.0.1:8480",
		Timeout:     10 * time.Second,
		MaxAttempts: 3,
		RetryBase:   250 * time.Millisecond,
		CallsPerSec: 20,
	}
}

// FeedFromEnv returns feed configuration with environment overrides.
func FeedFromEnv() FeedConfig {
	cfg := DefaultFeed()

	if v := os.Getenv("FEED_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("FEED_TOKEN"); v != "" {
		cfg.Token = v
	}
	if d := getEnvDuration("FEED_TIMEOUT", 0); d > 0 {
		cfg.Timeout = d
	}
	if n := getEnvInt("FEED_MAX_ATTEMPTS", 0); n > 0 {
		cfg.MaxAttempts = n
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{Port: 3000}
}

// ServerFromEnv returns server configuration with environment overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Sim    SimConfig
	Quest  QuestConfig
	Arcade ArcadeConfig
	Feed   FeedConfig
	Server ServerConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Sim:    SimFromEnv(),
		Quest:  DefaultQuest(),
		Arcade: ArcadeFromEnv(),
		Feed:   FeedFromEnv(),
		Server: ServerFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
