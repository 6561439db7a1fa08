// cmd/server/main.go
package main

import (
	"log"
	"log/slog"

	"consensusboard/internal/adjudicate"
	"consensusboard/internal/artifacts"
	"consensusboard/internal/assemble"
	"consensusboard/internal/config"
	"consensusboard/internal/dispatch"
	"consensusboard/internal/llm"
	"consensusboard/internal/server"
	"consensusboard/internal/specialist"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	chatProvider, err := llm.NewOpenAI(&cfg.Chat)
	if err != nil {
		log.Fatalf("failed to create chat provider: %v", err)
	}

	store := artifacts.NewStore(cfg.Artifacts.RunsDir)

	imaging := specialist.NewImaging(cfg.Imaging)
	acoustics := specialist.NewAcoustics(cfg.Acoustics)
	history := specialist.NewHistory(chatProvider, cfg.Chat.Model)

	dispatcher := dispatch.New(store, imaging, acoustics, history, cfg)

	board := assemble.NewBoard(
		store,
		dispatcher,
		adjudicate.Deterministic{},
		adjudicate.NewDelegated(chatProvider, cfg.Chat.Model),
		cfg.Pipeline.Adjudicator,
	)

	srv := server.New(*cfg, board)
	slog.Info("starting server", "host", cfg.Server.Host, "port", cfg.Server.Port)
	if err := srv.Run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
