package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"vegaslounge.live/internal/account"
	"vegaslounge.live/internal/client"
	"vegaslounge.live/internal/config"
	"vegaslounge.live/internal/grant"
	"vegaslounge.live/internal/httpapi"
	"vegaslounge.live/internal/obs"
	"vegaslounge.live/internal/seed"
	"vegaslounge.live/internal/store"
	"vegaslounge.live/internal/store/pg"
	"vegaslounge.live/internal/wallet"
)

var version = "1.2.0"

func main() {
	_ = godotenv.Load()
	obs.Init()
	log := obs.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	var (
		st store.Store
		db *sql.DB
	)
	if cfg.PGDSN != "" {
		pgStore, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.WithError(err).Fatal("open db")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			cancel()
			log.WithError(err).Fatal("ensure schema")
		}
		cancel()
		st = pgStore
		db = pgStore.DB()
		defer pgStore.Close()
		log.Info("using postgres store")
	} else {
		st = store.NewMemory()
		log.Info("using in-memory store")
	}

	guestBalance, err := decimal.NewFromString(cfg.InitialGuestBalance)
	if err != nil {
		log.WithError(err).Fatal("parse INITIAL_BALANCE")
	}

	registry := client.NewRegistry(st, cfg.PasswordHashCost)
	engine := grant.NewEngine(st,
		grant.WithCodeTTL(cfg.AuthCodeTTL),
		grant.WithAccessTTL(cfg.AccessTokenTTL),
		grant.WithRefreshTTL(cfg.RefreshTokenTTL),
	)
	accounts := account.NewService(st,
		account.WithHashCost(cfg.PasswordHashCost),
		account.WithGuestTTL(cfg.GuestUserTTL),
		account.WithGuestBalance(guestBalance),
		account.WithGrantRevoker(engine),
	)
	ledger := wallet.NewLedger(st)

	seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := seed.Clients(seedCtx, registry, cfg.Clients()); err != nil {
		log.WithError(err).Error("seed clients")
	}
	if err := seed.Players(seedCtx, accounts); err != nil {
		log.WithError(err).Error("seed players")
	}
	cancel()

	api := httpapi.New(registry, engine, ledger, accounts, httpapi.Options{
		Version:            version,
		DefaultClientID:    cfg.DefaultClientID,
		SupportedLanguages: cfg.SupportedLanguages,
		SessionSecret:      cfg.SessionSecret,
		SessionTTL:         cfg.RefreshTokenTTL,
		SecureSession:      cfg.SecureSession,
		TrustProxy:         cfg.TrustProxy,
		RateBurst:          cfg.RateBurst,
		RatePerSec:         cfg.RatePerSec,
		DB:                 db,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.WithField("addr", srv.Addr).Infof("starting wallet-oauth %s", version)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Info("stopped")
}
