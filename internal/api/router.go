package api

import (
	"context"

	"zombie-sweep/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface defines the engine methods used by the API.
// This interface enables mocking for tests without spinning up the full
// tick loop. Keep this minimal - only include methods the API layer
// actually calls.
type EngineInterface interface {
	// Snapshot returns the latest lock-free render snapshot
	Snapshot() *game.GameSnapshot
	// Mode returns the current mode name
	Mode() string
	// EnterLevel loads a scope's records and starts its level
	EnterLevel(ctx context.Context, scope string) error
	// SetPlayerInput replaces the player control state
	SetPlayerInput(in game.PlayerInput)
	// Fire launches a projectile toward the given direction
	Fire(dirX, dirY float64) error
	// Pause suspends the simulation
	Pause() error
	// Resume returns to the interrupted mode
	Resume() error
	// ReturnToLobby leaves the current level or terminal screen
	ReturnToLobby() error
	// ConfirmQuest accepts a pending quest offer
	ConfirmQuest(questID string) error
	// Quests lists quest states
	Quests() []game.QuestSnapshot
	// StartArcade begins a timed challenge session
	StartArcade() error
	// CommitArcade flushes the deferred eliminations in batches
	CommitArcade() error
	// DiscardArcade drops the deferred queue without remote calls
	DiscardArcade() error
	// SaveToFile / RestoreFromFile persist the simulation as JSON
	SaveToFile(path string) error
	RestoreFromFile(path string) error
	// RecentEvents exposes the in-memory event ring
	RecentEvents(n int) []game.Event
}

// RouterConfig contains all dependencies needed to construct the HTTP
// router. Designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine: fakeEngine,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the simulation engine (required)
	Engine EngineInterface

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one is created from RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is only used when RateLimiter is nil.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins overrides the default allowed origins.
	CORSOrigins []string

	// SaveDir is where save files live. Defaults to the working directory.
	SaveDir string

	// DisableLogging disables the request logger (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler dependencies.
type routerHandlers struct {
	engine  EngineInterface
	saveDir string
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE - no goroutines, no listeners, no
// background workers. Safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Rate limiting before CORS to reject early.
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{
		engine:  cfg.Engine,
		saveDir: cfg.SaveDir,
	}
	if h.saveDir == "" {
		h.saveDir = "."
	}

	r.Route("/api", func(r chi.Router) {
		// Simulation state
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/events", h.handleGetEvents)

		// Scope and mode control
		r.Post("/scope/load", h.handleScopeLoad)
		r.Post("/pause", h.handlePause)
		r.Post("/resume", h.handleResume)
		r.Post("/lobby", h.handleReturnToLobby)

		// Player control
		r.Post("/input", h.handleInput)
		r.Post("/fire", h.handleFire)

		// Quests
		r.Get("/quests", h.handleGetQuests)
		r.Post("/quest/confirm", h.handleQuestConfirm)

		// Arcade challenge
		r.Post("/arcade/start", h.handleArcadeStart)
		r.Post("/arcade/commit", h.handleArcadeCommit)
		r.Post("/arcade/discard", h.handleArcadeDiscard)

		// Persistence
		r.Post("/save", h.handleSave)
		r.Post("/restore", h.handleRestore)
	})

	return r
}
