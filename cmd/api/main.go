package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"mecone.com/internal/audit"
	"mecone.com/internal/auth"
	"mecone.com/internal/config"
	"mecone.com/internal/httpapi"
	"mecone.com/internal/obs"
)

var version = "1.0.0"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		db         *sql.DB
		store      auth.Store
		auditStore audit.Store
	)
	if cfg.DatabaseDSN != "" {
		db, err = sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = auth.NewPGStore(db)
		auditStore = audit.NewPGStore(db)
	} else {
		obs.Info("no MECONE_PG_DSN set, using in-memory store", nil)
		store = auth.NewMemStore()
		auditStore = audit.NewMemStore()
	}

	tokens, err := auth.NewTokenService(
		[]byte(cfg.AccessSecret),
		[]byte(cfg.RefreshSecret),
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	recorder := audit.NewRecorder(auditStore)
	svc := auth.NewService(store, recorder, tokens,
		auth.WithAPIAccessAudit(cfg.AuditAPIAccess),
	)

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 15*time.Second)
	if err := svc.EnsureSeedAdmin(seedCtx, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		cancelSeed()
		log.Fatalf("seed admin: %v", err)
	}
	cancelSeed()

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: db}, version)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting mecone-backoffice %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
