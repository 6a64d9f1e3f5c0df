package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/mailer"
	"storefront/internal/metrics"
	"storefront/internal/payment"
	"storefront/internal/server"
	"storefront/internal/storage"
	"storefront/internal/token"
)

func main() {
	started := time.Now()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("[CONFIG] [FATAL] ", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatal("[DB] [FATAL] ", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Println("[DB] [WARN] disconnect:", err)
		}
	}()

	db := client.Database(cfg.DBName)
	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureIndexes(ctx, db); err != nil {
		log.Printf("[DB] [WARN] index setup: %v", err)
	}

	images, err := storage.NewS3Store(ctx, cfg.AWSRegion, cfg.AWSS3Bucket)
	if err != nil {
		log.Fatal("[STORAGE] [FATAL] ", err)
	}

	router := server.NewRouter(server.Deps{
		Config:   cfg,
		DB:       db,
		Issuer:   token.NewIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		Notifier: mailer.New(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailFromName, cfg.ClientURL),
		Images:   images,
		Payments: payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentKeyID, cfg.PaymentKeySecret),
		Metrics:  metrics.New(),
		Started:  started,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[HTTP] [INFO] listening on %s (%s)", srv.Addr, cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("[HTTP] [FATAL] ", err)
		}
	}()

	<-ctx.Done()
	log.Println("[HTTP] [INFO] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("[HTTP] [WARN] shutdown:", err)
	}
}
