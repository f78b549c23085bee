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

	"github.com/Cupcake-Legend/landchain-chaincode/internal/api"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/config"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/ownership"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/keys"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/ledger"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := openSubstrate(ctx, cfg)
	if err != nil {
		log.Fatalf("substrate %s: %v", cfg.Substrate, err)
	}
	defer sub.Close()
	log.Printf("substrate %s ready", cfg.Substrate)

	if bs, ok := sub.(*ledger.BadgerSubstrate); ok {
		go ledger.NewMaintainer(bs, cfg.BadgerGCInterval).Run(ctx)
	}

	resolver, err := newResolver(cfg)
	if err != nil {
		log.Fatalf("key source %s: %v", cfg.KeySource, err)
	}
	log.Printf("resolving participant keys via %s", cfg.KeySource)

	hub := registry.NewHub()
	svc := registry.New(sub, ownership.NewValidator(resolver, cfg.VerifyConcurrency), hub)
	router := api.NewRouter(svc, hub, cfg)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	go func() {
		log.Printf("landchaind listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
	cancel() // stop background loops before the deferred substrate close
	log.Println("server stopped")
}

func openSubstrate(ctx context.Context, cfg config.Config) (ledger.Substrate, error) {
	switch cfg.Substrate {
	case "mem":
		return ledger.NewMemSubstrate(), nil
	case "badger":
		return ledger.NewBadgerSubstrate(cfg.BadgerDir, cfg.BadgerLowMemory)
	case "postgres":
		sub, err := ledger.NewPostgresSubstrate(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := sub.InitSchema(ctx); err != nil {
			sub.Close()
			return nil, err
		}
		log.Println("postgres schema ready")
		return sub, nil
	default:
		return nil, fmt.Errorf("unknown substrate %q (want mem, badger, or postgres)", cfg.Substrate)
	}
}

// newResolver builds the key-resolution chain. PEM material embedded in the
// request always answers first; the configured backend covers participants
// that submit a key id alone.
func newResolver(cfg config.Config) (keys.Resolver, error) {
	switch cfg.KeySource {
	case "embedded":
		return keys.Embedded{}, nil
	case "dir":
		if cfg.KeyringDir == "" {
			return nil, fmt.Errorf("LC_KEYRING_DIR is required for the dir key source")
		}
		return keys.Chain{keys.Embedded{}, keys.Dir{Root: cfg.KeyringDir}}, nil
	case "kms":
		kr, err := keys.NewKMS(cfg.KMSRegion, cfg.KMSEndpoint)
		if err != nil {
			return nil, err
		}
		chain := keys.Chain{keys.Embedded{}}
		if cfg.KeyringDir != "" {
			// Local keyring entries take precedence over KMS lookups.
			chain = append(chain, keys.Dir{Root: cfg.KeyringDir})
		}
		return append(chain, kr), nil
	default:
		return nil, fmt.Errorf("unknown key source %q (want embedded, dir, or kms)", cfg.KeySource)
	}
}
