package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gcli-nexus-go/internal/config"
	"gcli-nexus-go/internal/credential"
	gh "gcli-nexus-go/internal/handlers/gemini"
	"gcli-nexus-go/internal/logging"
	"gcli-nexus-go/internal/oauth"
	"gcli-nexus-go/internal/pool"
	srv "gcli-nexus-go/internal/server"
	"gcli-nexus-go/internal/storage"
	"gcli-nexus-go/internal/tracing"
	upgemini "gcli-nexus-go/internal/upstream/gemini"
	"gcli-nexus-go/internal/version"

	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if *debug {
		cfg.Security.Debug = true
	}
	if err := logging.Setup(cfg); err != nil {
		log.WithError(err).Fatal("failed to configure logging")
	}
	log.Infof("starting gcli-nexus %s (config: %s)", version.Version, *configPath)

	traceShutdown, err := tracing.Init(context.Background())
	if err != nil {
		log.WithError(err).Warn("failed to initialize tracing")
	}
	if traceShutdown != nil {
		defer func() {
			if err := traceShutdown(context.Background()); err != nil {
				log.WithError(err).Warn("failed to shutdown tracing")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := storage.Open(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open credential storage")
	}
	defer repo.Close()

	svc := pool.New(repo, oauth.NewRefresher())
	handle, err := svc.Start(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to start credential pool")
	}

	if dir := cfg.Storage.CredPath; dir != "" {
		creds, err := credential.LoadDir(dir)
		if err != nil {
			log.WithError(err).Warn("failed to scan credential directory")
		} else if len(creds) > 0 {
			if err := handle.SubmitCredentials(ctx, creds); err != nil {
				log.WithError(err).Warn("failed to import credentials")
			} else {
				log.Infof("imported %d credential file entries from %s", len(creds), dir)
			}
		}

		watcher := credential.NewWatcher(dir, func(batch []credential.GoogleCredential) {
			if err := handle.SubmitCredentials(ctx, batch); err != nil {
				log.WithError(err).Warn("failed to import watched credentials")
			}
		})
		if err := watcher.Start(ctx); err != nil {
			log.WithError(err).Warn("failed to watch credential directory")
		}
	}

	handler := gh.New(handle, upgemini.New(cfg))
	engine := srv.Build(cfg, handler)

	httpSrv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: engine}
	go func() {
		log.Infof("listening on %s", cfg.Server.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("http server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	cancel()
}
