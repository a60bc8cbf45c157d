package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/config"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/auth"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/db"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/handlers"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/hub"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/middleware"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/tracking"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/ws"
	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/logging"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := logging.GetSugaredLogger()
	defer logger.Sync()

	cfg := config.GetConfig()

	database, err := db.NewManager(cfg)
	if err != nil {
		logger.Fatal(err)
	}
	defer database.Close()

	eventHub := hub.NewHub(logger)

	var broadcaster hub.Broadcaster = eventHub
	var bridge *hub.Bridge
	if cfg.RedisURI != "" {
		opts, err := redis.ParseURL(cfg.RedisURI)
		if err != nil {
			logger.Fatalw("invalid redis uri", "error", err)
		}
		rdb := redis.NewClient(opts)
		if err = rdb.Ping(context.Background()).Err(); err != nil {
			logger.Fatalw("failed to ping redis", "error", err)
		}
		defer rdb.Close()

		bridge = hub.NewBridge(eventHub, rdb, logger)
		bridge.Start()
		broadcaster = bridge
	}

	h := handlers.Handler{
		Config:      cfg,
		Database:    database,
		Logger:      logger,
		Broadcaster: broadcaster,
		Tracker:     tracking.NewStore(),
		Estimator:   tracking.NewEstimator(cfg),
	}

	wsHandler := &ws.Handler{
		Hub:    eventHub,
		Logger: logger,
		Secret: cfg.JWTSecret,
	}

	r := initRouter(h, wsHandler, cfg.JWTSecret)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	go func() {
		logger.Infow("server listening", "address", cfg.RunAddress)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatalw("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("server shutdown", "error", err)
	}

	if bridge != nil {
		bridge.Stop()
	}
}

func initRouter(h handlers.Handler, wsHandler *ws.Handler, secret string) *chi.Mux {
	route := func(handler http.HandlerFunc, roles ...auth.Role) http.HandlerFunc {
		middlewares := []middleware.Middleware{
			middleware.WriteWithCompression,
			middleware.ReadWithCompression,
		}
		if len(roles) > 0 {
			middlewares = append(middlewares, middleware.RequireRole(roles...))
		}
		middlewares = append(middlewares, middleware.ValidateAuth(secret))

		return func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(handler, h.Logger, middlewares...).ServeHTTP(w, r)
		}
	}

	r := chi.NewRouter()
	r.Post(`/api/orders`, route(h.CreateOrder, auth.RoleCustomer))
	r.Get(`/api/orders`, route(h.ListOrders, auth.RoleAdmin, auth.RoleRestaurant))
	r.Get(`/api/orders/{uuid}`, route(h.GetOrder))
	r.Patch(`/api/orders/{uuid}/status`, route(h.UpdateStatus, auth.RoleAdmin, auth.RoleRestaurant, auth.RoleDriver))
	r.Patch(`/api/orders/{uuid}/driver`, route(h.AssignDriver, auth.RoleAdmin, auth.RoleRestaurant))
	r.Patch(`/api/orders/{uuid}/payment`, route(h.MarkPayment, auth.RoleAdmin, auth.RoleRestaurant))
	r.Post(`/api/orders/{uuid}/location`, route(h.UpdateLocation, auth.RoleDriver))
	r.Get(`/api/orders/{uuid}/tracking`, route(h.GetTracking))
	r.Get(`/ws`, wsHandler.Serve)
	return r
}
