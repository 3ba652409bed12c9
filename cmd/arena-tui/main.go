package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/Garsondee/Tank-Arena/internal/config"
	"github.com/Garsondee/Tank-Arena/internal/game"
	"github.com/Garsondee/Tank-Arena/internal/spectate"
	"github.com/Garsondee/Tank-Arena/internal/tui"
	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"
)

func main() {
	var path string
	var logPath string
	flag.StringVar(&path, "config", config.DefaultPath, "settings file, created with defaults when missing")
	flag.StringVar(&logPath, "log", "", "write logs to this file; the terminal belongs to the arena")
	flag.Parse()

	var logOut io.Writer = io.Discard
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			log.Fatal("open log", "path", logPath, "err", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := log.NewWithOptions(logOut, log.Options{Prefix: "arena-tui", ReportTimestamp: true})

	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("ignoring .env", "err", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal("load config", "path", path, "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var publish func(game.Snapshot)
	if cfg.SpectateAddr != "" {
		hub := spectate.NewHub(logger)
		defer hub.Close()
		go func() {
			if err := hub.Serve(ctx, cfg.SpectateAddr); err != nil {
				logger.Error("spectate server", "err", err)
			}
		}()
		publish = func(s game.Snapshot) {
			if err := hub.Publish(s); err != nil {
				logger.Warn("publish", "err", err)
			}
		}
	}

	// The terminal view only spectates, so the player always runs on autopilot.
	cfg.Autopilot = true
	engine := game.NewEngine(cfg.EngineOptions(game.WithLogger(logger))...)

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatal("terminal", "err", err)
	}
	if err := screen.Init(); err != nil {
		log.Fatal("terminal init", "err", err)
	}
	defer screen.Fini()

	if err := tui.Run(ctx, screen, engine, publish); err != nil && ctx.Err() == nil {
		logger.Error("arena", "err", err)
		return
	}
	if engine.Ended() {
		// Hold the final board long enough to read the result.
		select {
		case <-ctx.Done():
		case <-time.After(3 * time.Second):
		}
	}
}
