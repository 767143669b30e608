package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auftrag.chapter42.de/dispatch/internal/cache"
	"auftrag.chapter42.de/dispatch/internal/config"
	"auftrag.chapter42.de/dispatch/internal/data"
	"auftrag.chapter42.de/dispatch/internal/dispatch"
	"auftrag.chapter42.de/dispatch/internal/handlers"
	"auftrag.chapter42.de/dispatch/internal/logger"
	"auftrag.chapter42.de/dispatch/internal/persistence"
	"auftrag.chapter42.de/dispatch/internal/processor"
	"auftrag.chapter42.de/dispatch/internal/store"
	"github.com/duke-git/lancet/v2/slice"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Konfiguration laden
	warnings, err := config.InitConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Konfiguration fehlerhaft:", err)
		os.Exit(1)
	}
	cfg := config.Config

	// Logger initialisieren
	logger.InitLogger(cfg.Debug, cfg.Log)
	defer logger.Log.Sync()
	for _, w := range warnings {
		logger.Log.Warn(w)
	}

	// Datenbank
	st, err := store.Open(cfg.Database, cfg.Debug)
	if err != nil {
		logger.Log.Fatal("Datenbank nicht erreichbar:", zap.Error(err))
	}
	defer st.Close()
	if cfg.Database.AutoMigrate {
		if err := st.Migrate(); err != nil {
			logger.Log.Fatal("Migration fehlgeschlagen:", zap.Error(err))
		}
	}

	// Dashboard-Cache ist optional
	var statsCache dispatch.StatsCache
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	c, err := cache.New(ctx, cfg.Redis)
	cancel()
	switch {
	case err != nil:
		logger.Log.Warn("Dashboard-Cache deaktiviert:", zap.Error(err))
	case c != nil:
		statsCache = c
		defer c.Close()
	}

	// Webhook-Zustellung starten, liegengebliebene Zustellungen wieder einreihen
	dispatcher := processor.NewDispatcher(&cfg.Webhooks, &http.Client{Timeout: cfg.Webhooks.Timeout})
	restoreDeliveries(dispatcher, cfg.Webhooks.PersistFile)
	dispatcher.Start()

	svc := dispatch.NewService(st, dispatcher, statsCache)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           newRouter(cfg, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Goroutine für das Abfangen von Shutdown-Signalen
	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer close(done)
		<-quit
		logger.Log.Info("Server wird heruntergefahren...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Log.Error("Server-Shutdown fehlgeschlagen:", zap.Error(err))
		}
		shutdownDispatcher(ctx, dispatcher, cfg.Webhooks.PersistFile)

		logger.Log.Info("Server heruntergefahren.")
	}()

	// Server starten (blockierend)
	logger.Log.Info("Server startet...", zap.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logger.Log.Fatal("Fehler beim Starten des Servers:", zap.Error(err))
	}
	<-done
}

func newRouter(cfg *data.DispatchConfig, svc *dispatch.Service) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), logger.GinLogger(), cors.New(corsConfig(cfg.Cors)))
	handlers.RegisterRoutes(router, svc)
	return router
}

func corsConfig(cfg data.CorsConfig) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Admin-User"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || slice.Contain(cfg.AllowedOrigins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowedOrigins
	}
	return c
}

func restoreDeliveries(d *processor.Dispatcher, path string) {
	deliveries, err := persistence.RestorePendingDeliveries(path)
	if err != nil {
		logger.Log.Error("Offene Zustellungen konnten nicht geladen werden:", zap.Error(err))
		return
	}
	d.Restore(deliveries)
	if len(deliveries) > 0 {
		logger.Log.Info("Offene Zustellungen wiederhergestellt:", zap.Int("count", len(deliveries)))
	}
}

func shutdownDispatcher(ctx context.Context, d *processor.Dispatcher, path string) {
	d.Stop(ctx)
	pending := d.Pending()
	if err := persistence.SavePendingDeliveries(path, pending); err != nil {
		logger.Log.Error("Offene Zustellungen konnten nicht gesichert werden:", zap.Error(err))
		return
	}
	if len(pending) > 0 {
		logger.Log.Info("Offene Zustellungen gesichert:", zap.Int("count", len(pending)))
	}
}
