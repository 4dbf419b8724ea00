package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"zombie-sweep/internal/api"
	"zombie-sweep/internal/config"
	"zombie-sweep/internal/feed"
	"zombie-sweep/internal/game"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	} else {
		log.Println("✅ Loaded environment from .env")
	}

	log.Println("🧟 ================================")
	log.Println("🧟  ZOMBIE SWEEP - SIMULATION CORE")
	log.Println("🧟 ================================")

	// Centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()

	log.Printf("🎮 Config: %d Hz, %.0fx%.0f world, feed %s",
		appConfig.Sim.TickRate, appConfig.Sim.WorldWidth, appConfig.Sim.WorldHeight,
		appConfig.Feed.BaseURL)
	if appConfig.Feed.Token == "" {
		log.Println("⚠️ WARNING: FEED_TOKEN not set, feed calls will be unauthenticated")
	}

	// One completion queue shared between the gateway and the engine.
	completions := feed.NewCompletionQueue(feed.DefaultCompletionCapacity)
	gateway := feed.NewService(appConfig.Feed, completions)

	opts := []game.Option{
		game.WithTickObserver(api.RecordTick),
		game.WithStatsObserver(func(entities, queued int) {
			api.UpdateEntityCount(entities)
			api.UpdateCompletionDepth(queued)
		}),
		game.WithRemoteObserver(func(action string, ok bool) {
			outcome := "ok"
			if !ok {
				outcome = "failed"
			}
			api.RecordRemoteAction(action, outcome)
		}),
	}
	if path := os.Getenv("EVENT_LOG_PATH"); path != "" {
		opts = append(opts, game.WithEventLogPath(path))
	}
	if scopes := os.Getenv("CAMPAIGN_SCOPES"); scopes != "" {
		opts = append(opts, game.WithScopes(splitScopes(scopes)))
	}

	engine := game.NewEngine(appConfig, gateway, completions, opts...)
	engine.Start()
	defer engine.Stop()

	// Localhost-only pprof and Prometheus metrics.
	if err := api.StartDebugServer(api.DefaultObservabilityConfig()); err != nil {
		log.Printf("⚠️ Debug server failed: %v", err)
	}

	server := api.NewServer(engine)
	defer server.Stop()

	go func() {
		addr := ":" + strconv.Itoa(appConfig.Server.Port)
		if err := server.Start(addr); err != nil {
			log.Fatalf("❌ API server failed: %v", err)
		}
	}()

	// Block until shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("🛑 Received %s, shutting down", sig)
}

// splitScopes parses a comma-separated scope list.
func splitScopes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
