package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GrainArc/SheetGeo/config"
	"github.com/GrainArc/SheetGeo/logger"
	"github.com/GrainArc/SheetGeo/models"
	"github.com/GrainArc/SheetGeo/routers"
	"github.com/GrainArc/SheetGeo/services"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := config.OpenDatabase(cfg.Database)
	if err != nil {
		log.Fatal("open database failed", "driver", cfg.Database.Driver, "error", err)
	}
	if err := models.Migrate(db); err != nil {
		log.Fatal("migration failed", "error", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	files, err := services.NewFileService(cfg.Storage.Root)
	if err != nil {
		log.Fatal("init storage failed", "root", cfg.Storage.Root, "error", err)
	}
	store := services.NewCachedStore(ctx, files, cfg.Storage.CacheEntries, time.Duration(cfg.Storage.CacheTTLSeconds)*time.Second)
	validator := services.NewFileValidator(cfg.Upload.MaxPDFMB<<20, cfg.Upload.MaxImageMB<<20, cfg.Upload.MaxCSVMB<<20)
	svc := services.New(db, log, store, services.NewPreviewRenderer(0), validator)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	engine := routers.NewEngine(svc, log, routers.Options{Debug: cfg.Debug, JWTSecret: cfg.Auth.JWTSecret, AllowOrigins: cfg.Server.AllowOrigins})
	if cfg.Debug {
		log.Warn("debug mode: authentication disabled")
	}

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: engine}
	go func() {
		log.Info("listening", "addr", cfg.Server.Addr, "db", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
	log.Info("server stopped")
}
