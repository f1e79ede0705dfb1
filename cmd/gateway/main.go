package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/99004433/Multi-tenant-IAM/internal/auth"
	"github.com/99004433/Multi-tenant-IAM/internal/config"
	"github.com/99004433/Multi-tenant-IAM/internal/gateway"
	"github.com/99004433/Multi-tenant-IAM/internal/obs"
	"github.com/99004433/Multi-tenant-IAM/internal/policy"
	"github.com/99004433/Multi-tenant-IAM/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo("iam-gateway", version)

	cfg, err := config.GatewayFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	codec, err := auth.NewCodec(cfg.TokenSecret, auth.WithIssuer(cfg.TokenIssuer))
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}
	verifier, err := auth.NewVerifier(store)
	if err != nil {
		log.Fatalf("verifier: %v", err)
	}
	issuer, err := auth.NewIssuer(verifier, codec, store,
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
		auth.WithRefreshStore(store),
	)
	if err != nil {
		log.Fatalf("issuer: %v", err)
	}

	rules, err := policy.Parse(cfg.RoutePolicy)
	if err != nil {
		log.Fatalf("route policy: %v", err)
	}
	table, err := policy.New(rules)
	if err != nil {
		log.Fatalf("route policy: %v", err)
	}

	srv, err := gateway.New(gateway.Config{
		Issuer:        issuer,
		Codec:         codec,
		Policy:        table,
		DirectoryURL:  cfg.DirectoryURL,
		Version:       version,
		PublicPaths:   cfg.PublicPaths,
		RateBurst:     cfg.RateBurst,
		RatePerSecond: cfg.RatePerSecond,
	})
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting iam-gateway %s on %s", version, httpSrv.Addr)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}
