package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/contract-guardian/internal/advisory"
	"github.com/a3tai/contract-guardian/internal/advisory/openai"
	"github.com/a3tai/contract-guardian/internal/analysis"
	"github.com/a3tai/contract-guardian/internal/config"
	"github.com/a3tai/contract-guardian/internal/extract"
	"github.com/a3tai/contract-guardian/internal/logger"
	"github.com/a3tai/contract-guardian/internal/mcp"
	"github.com/a3tai/contract-guardian/internal/rules"
)

var (
	version   = "dev"     // set by build flags
	buildTime = "unknown" // set by build flags
	gitCommit = "unknown" // set by build flags
)

// buildServices wires the extractor, rule catalog, and advisory client
func buildServices(cfg *config.Config, log *slog.Logger) (mcp.Services, error) {
	catalog, err := rules.Build(cfg.RulesFile)
	if err != nil {
		return mcp.Services{}, err
	}

	extractor := extract.NewExtractor(cfg.ExtractConfig(), log)

	// Noop does not implement Asker, so advice stays unavailable without a key
	advisor := openai.New(cfg.AdvisoryConfig(), log)
	asker, _ := advisor.(advisory.Asker)

	coordinator := analysis.NewCoordinator(extractor, catalog, advisor, cfg.AnalysisOptions(), log)
	return mcp.Services{Coordinator: coordinator, Asker: asker, Extractor: extractor}, nil
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	svc, err := buildServices(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build services: %w", err)
	}

	server, err := mcp.NewServer(cfg, svc, log)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	log.Debug("server.config", "config", cfg.String())
	return server.Run(ctx)
}

func main() {
	cfg, err := config.LoadFromFlags()
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion(os.Stdout)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if version != "dev" {
		cfg.Version = version
	}

	log := logger.Init(cfg.LoggerConfig())

	// In stdio mode the parent process owns our lifecycle; stdin closing ends Run
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server.fail", "error", err)
		stop()
		os.Exit(1)
	}
	log.Info("server.stopped")
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "Contract Guardian\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
