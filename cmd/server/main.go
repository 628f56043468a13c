package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dukaan/backend/internal/cache"
	"dukaan/backend/internal/config"
	"dukaan/backend/internal/httpapi"
	"dukaan/backend/internal/milestone"
	"dukaan/backend/internal/service"
	"dukaan/backend/internal/store"
	"dukaan/backend/internal/store/memory"
	pgstore "dukaan/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	thresholds, err := milestone.ParseThresholds(cfg.MilestoneThresholds)
	if err != nil {
		log.Fatalf("invalid MILESTONE_THRESHOLDS: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx, false); err != nil {
				log.Fatalf("auto migrate: %v", err)
			}
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	drafts, closeDrafts := buildDraftStore(ctx, cfg)
	if closeDrafts != nil {
		closers = append(closers, closeDrafts)
	}

	detector := milestone.NewDetector(repo, thresholds)
	svc := service.New(repo, drafts, detector, service.Options{
		Printer:    service.LogPrinter{},
		PrintDelay: cfg.PrintDelay,
		ShopName:   cfg.ShopName,
	})
	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.ManagerPIN, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("%s backend listening on %s", cfg.ShopName, cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func runMigrate(cfg config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()
	return pg.Migrate(ctx, true)
}

// buildDraftStore prefers Redis so drafts survive a restart. Without Redis
// drafts live in process memory.
func buildDraftStore(ctx context.Context, cfg config.Config) (cache.DraftStore, func() error) {
	if cfg.RedisAddr == "" {
		log.Println("drafts: in-memory")
		return cache.NewMemoryDraftStore(), nil
	}

	redisDrafts := cache.NewRedisDraftStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.DraftTTL)
	if err := redisDrafts.Ping(ctx); err != nil {
		log.Printf("redis unavailable (%v), keeping drafts in memory", err)
		_ = redisDrafts.Close()
		return cache.NewMemoryDraftStore(), nil
	}
	log.Println("drafts: redis")
	return redisDrafts, redisDrafts.Close
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs made of one repeated digit, straight
// runs such as 123456 or 987654, and a short list of common choices.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"121212": true, "112233": true, "123123": true, "101010": true, "786786": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame, ascending, descending := true, true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 0 {
			allSame = false
		}
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	switch {
	case allSame:
		return fmt.Errorf("all-same-digit PIN not allowed")
	case ascending || descending:
		return fmt.Errorf("sequential PIN not allowed")
	}
	return nil
}
