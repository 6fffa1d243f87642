package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"socialgraph/backend/internal/api"
	"socialgraph/backend/internal/collab"
	"socialgraph/backend/internal/graphstore/stores"
	"socialgraph/backend/internal/social"
	"socialgraph/backend/pkg/config"
	"socialgraph/backend/pkg/logger"
)

// tokenTTL is the lifetime of tokens issued by the authenticator.
const tokenTTL = 24 * time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting social graph server...", zap.String("store", cfg.StoreBackend))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Graph store
	store, err := stores.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open graph store", zap.Error(err))
	}
	defer store.Close(context.Background())

	// Notifications
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, collab.NewWatermillLogger(log.Named("watermill")))
	defer pubsub.Close()
	notifier := collab.NewNotifier(pubsub, cfg.NotifyTopic, collab.BreakerConfig{})
	notes := log.Named("notifications")
	go func() {
		err := collab.ConsumeNotifications(ctx, pubsub, cfg.NotifyTopic, func(n collab.Notification) {
			notes.Info("Notification",
				zap.String("username", n.Username),
				zap.String("message", n.Message),
				zap.String("post_id", n.PostID),
				zap.String("comment_id", n.CommentID))
		})
		if err != nil {
			log.Error("Notification consumer stopped", zap.Error(err))
		}
	}()

	// Auth is optional in development; without a secret every request is anonymous
	var auth collab.Authenticator
	if cfg.JWTSecret != "" {
		jwtAuth, err := collab.NewJWTAuthenticator(cfg.JWTSecret, tokenTTL)
		if err != nil {
			log.Fatal("Failed to create authenticator", zap.Error(err))
		}
		auth = jwtAuth
	} else if cfg.IsProduction() {
		log.Fatal("JWT_SECRET is required in production")
	} else {
		log.Warn("JWT_SECRET not set; all requests are anonymous")
	}

	engine := social.NewEngine(store, social.OptionsFromConfig(cfg))
	handler := api.NewHandler(api.Deps{
		Engine:   engine,
		Auth:     auth,
		Notifier: notifier,
		Searcher: collab.NewMemorySearcher(),
		Logger:   log.Named("api"),
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(log, handler, notifier)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	<-ctx.Done()

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// newRouter wires middleware, operational endpoints and the API.
func newRouter(log *zap.Logger, handler *api.Handler, notifier *collab.Notifier) *gin.Engine {
	router := gin.New()
	router.Use(api.Logger(log))
	router.Use(gin.Recovery())
	router.Use(api.CORS())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"notifications": notifier.State(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.Register(router)
	return router
}
