package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/99004433/Multi-tenant-IAM/internal/config"
	"github.com/99004433/Multi-tenant-IAM/internal/directory"
	"github.com/99004433/Multi-tenant-IAM/internal/httpapi"
	"github.com/99004433/Multi-tenant-IAM/internal/mail"
	"github.com/99004433/Multi-tenant-IAM/internal/obs"
	"github.com/99004433/Multi-tenant-IAM/internal/store/pg"
	"github.com/99004433/Multi-tenant-IAM/internal/sweep"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo("iam-directory", version)

	cfg, err := config.DirectoryFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	var sender mail.Sender = mail.LogSender{}
	if cfg.SMTPAddr != "" {
		smtp, err := mail.NewSMTPSender(mail.SMTPConfig{
			Addr:     cfg.SMTPAddr,
			From:     cfg.SMTPFrom,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		})
		if err != nil {
			log.Fatalf("smtp sender: %v", err)
		}
		sender = smtp
	}

	svc, err := directory.NewService(store, sender)
	if err != nil {
		log.Fatalf("directory service: %v", err)
	}

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: store.DB()}, version,
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSecond))

	sweeper, err := sweep.New(store,
		sweep.WithInterval(cfg.SweepInterval),
		sweep.WithThreshold(cfg.SweepThreshold),
		sweep.WithAdminNotice(sender, cfg.AdminEmail),
	)
	if err != nil {
		log.Fatalf("sweeper: %v", err)
	}
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sweeper.Run(sweepCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting iam-directory %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	stopSweep()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}
