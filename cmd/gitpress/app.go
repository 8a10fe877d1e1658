package main

import (
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/renderinc/gitpress/internal/config"
	"github.com/renderinc/gitpress/internal/content"
	"github.com/renderinc/gitpress/internal/gitrepo"
	"github.com/renderinc/gitpress/internal/storage"
	"github.com/renderinc/gitpress/internal/store"
	"github.com/renderinc/gitpress/internal/sync"
)

// app holds the components every command shares
type app struct {
	cfg     *config.Config
	mirror  *gitrepo.Mirror
	journal *storage.DB
	worker  *sync.Worker
	store   *store.Store
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg
}

func openJournal(cfg *config.Config) *storage.DB {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Error creating data directory: %v", err)
	}

	db, err := storage.Open(filepath.Join(cfg.DataDir, "gitpress.db"))
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	return db
}

func newApp() *app {
	cfg := loadConfig()
	journal := openJournal(cfg)

	loader, err := content.NewLoader(content.LoaderOptions{
		Scopes:   cfg.Scopes(),
		Location: cfg.Location(),
		Workers:  cfg.Settings.Workers,
	})
	if err != nil {
		log.Fatalf("Error creating loader: %v", err)
	}

	mirror, err := gitrepo.New(gitrepo.Options{
		URL:          cfg.Git.Repository,
		Branch:       cfg.Git.Branch,
		Username:     cfg.Git.User,
		Password:     cfg.Git.Password,
		Proxy:        cfg.Git.Proxy,
		Dir:          cfg.Git.WorkDir,
		FetchTimeout: cfg.Git.FetchTimeout,
	})
	if err != nil {
		log.Fatalf("Error preparing mirror: %v", err)
	}

	worker := sync.NewWorker(mirror, loader, sync.Options{
		Branch:   cfg.Git.Branch,
		Baseline: cfg.Baseline(),
		Journal:  journal,
		Logger:   slog.Default().With("component", "sync"),
	})

	return &app{
		cfg:     cfg,
		mirror:  mirror,
		journal: journal,
		worker:  worker,
		store:   store.New(worker, slog.Default().With("component", "store")),
	}
}

// Close waits for a running update before removing the work dir it uses
func (a *app) Close() {
	a.store.Close()
	if err := a.mirror.Close(); err != nil {
		slog.Warn("error removing work dir", "error", err)
	}
	a.journal.Close()
}
