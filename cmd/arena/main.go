package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/Garsondee/Tank-Arena/internal/client"
	"github.com/Garsondee/Tank-Arena/internal/config"
	"github.com/Garsondee/Tank-Arena/internal/spectate"
	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/ebiten/v2"
)

func main() {
	var path string
	var debug bool
	flag.StringVar(&path, "config", config.DefaultPath, "settings file, created with defaults when missing")
	flag.BoolVar(&debug, "debug", false, "log engine debug lines")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "arena", ReportTimestamp: true})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}

	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("ignoring .env", "err", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatal("load config", "path", path, "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var hub *spectate.Hub
	if cfg.SpectateAddr != "" {
		hub = spectate.NewHub(logger)
		defer hub.Close()
		go func() {
			if err := hub.Serve(ctx, cfg.SpectateAddr); err != nil {
				logger.Error("spectate server", "err", err)
			}
		}()
	}

	g := client.New(cfg, client.Options{Logger: logger, Hub: hub, ConfigPath: path})
	defer g.Close()

	go func() {
		if err := config.Watch(ctx, path, logger, g.SetConfig); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("config watch stopped", "err", err)
		}
	}()

	w, h := g.Size()
	ebiten.SetWindowTitle(client.Title(cfg))
	ebiten.SetWindowSize(int(float64(w)*cfg.WindowScale), int(float64(h)*cfg.WindowScale))
	ebiten.SetTPS(60)
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		logger.Error("game loop", "err", err)
	}
}
