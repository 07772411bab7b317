package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"onechurch/config"
	"onechurch/database"
	"onechurch/handlers"
	"onechurch/logger"
	"onechurch/middleware"
	"onechurch/push"
	"onechurch/routes"
	"onechurch/store"
	"onechurch/store/memory"
	"onechurch/store/mongodb"
	"onechurch/upload"
	"onechurch/websocket"
)

func main() {
	storage := flag.String("storage", "mongo", "storage backend: mongo or memory")
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	logger.Info.Println("🚀 Starting OneChurch Backend Server...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error.Fatalf("❌ Failed to load config: %v", err)
	}
	if err := cfg.Validate(*storage == "mongo"); err != nil {
		logger.Error.Fatalf("❌ %v", err)
	}

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
		logger.Info.Println("⚙️ Running in RELEASE mode")
	} else {
		gin.SetMode(gin.DebugMode)
		logger.Info.Println("⚙️ Running in DEBUG mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	s, err := openStore(ctx, *storage, cfg)
	cancel()
	if err != nil {
		logger.Error.Fatalf("❌ Failed to open %s storage: %v", *storage, err)
	}

	// ===== WEBSOCKET =====
	logger.Info.Println("🔌 Initializing WebSocket hub...")
	hub := websocket.NewHub()
	go hub.Start()

	var events websocket.Broadcaster = hub
	relayCtx, stopRelay := context.WithCancel(context.Background())
	var relay *websocket.RedisRelay
	if cfg.RedisURL != "" {
		relay, err = websocket.NewRedisRelay(cfg.RedisURL, hub)
		if err != nil {
			logger.Error.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
		events = relay
		go func() {
			if err := relay.Run(relayCtx); err != nil && relayCtx.Err() == nil {
				logger.Error.Printf("Redis relay stopped: %v", err)
			}
		}()
		logger.Info.Println("✅ Redis relay enabled")
	}

	var uploader upload.Uploader = upload.Disabled{}
	if url := cfg.CloudinaryURL(); url != "" {
		cld, err := upload.NewCloudinary(url)
		if err != nil {
			logger.Error.Fatalf("❌ Cloudinary: %v", err)
		}
		uploader = cld
		logger.Info.Println("✅ Cloudinary uploads enabled")
	} else {
		logger.Warn.Println("⚠️ Cloudinary not configured, image uploads are disabled")
	}

	var notifier push.Notifier = push.Disabled{}
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		notifier = push.NewWebPush(s, cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subject)
		logger.Info.Println("✅ Web push enabled")
	} else {
		logger.Warn.Println("⚠️ VAPID keys not set, push notifications are disabled")
	}

	tokens := middleware.NewTokens(cfg)
	router := routes.SetupRouter(routes.Options{
		Config: cfg,
		Handler: handlers.New(handlers.Deps{
			Store:    s,
			Events:   events,
			Uploader: uploader,
			Notifier: notifier,
			Tokens:   tokens,
			Config:   cfg,
		}),
		Auth: middleware.NewAuthenticator(tokens, s),
		Hub:  hub,
	})
	logger.Info.Println("✅ WebSocket endpoint: /ws")

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info.Printf("🌐 Server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error.Fatalf("❌ Server error: %v", err)
		}
	}()

	// ===== GRACEFUL SHUTDOWN =====
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info.Println("🛑 Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("❌ Forced shutdown: %v", err)
	}
	stopRelay()
	if relay != nil {
		if err := relay.Close(); err != nil {
			logger.Warn.Printf("Redis close: %v", err)
		}
	}
	hub.Stop()
	if err := s.Close(shutdownCtx); err != nil {
		logger.Warn.Printf("Storage close: %v", err)
	}

	logger.Info.Println("👋 Server stopped gracefully")
}

func openStore(ctx context.Context, kind string, cfg *config.Config) (store.Store, error) {
	switch kind {
	case "memory":
		logger.Warn.Println("⚠️ Using in-memory storage, data is lost on restart")
		return memory.New(), nil
	case "mongo":
		client, err := database.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		return mongodb.New(ctx, client, cfg.Mongo.Database)
	}
	return nil, errors.Errorf("unknown storage %q", kind)
}
