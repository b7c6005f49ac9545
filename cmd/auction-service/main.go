package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisClient "github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"live-auction/internal/api/handlers"
	"live-auction/internal/api/middleware"
	"live-auction/internal/clock"
	"live-auction/internal/config"
	"live-auction/internal/domain"
	"live-auction/internal/infrastructure/leader"
	"live-auction/internal/infrastructure/memory"
	"live-auction/internal/infrastructure/redis"
	"live-auction/internal/infrastructure/sqlstore"
	"live-auction/internal/infrastructure/websocket"
	"live-auction/internal/metrics"
	"live-auction/internal/services"
	"live-auction/pkg/logger"
	"live-auction/pkg/utils"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Parse()

	// Load configuration
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewWithConfig(cfg.Log.Level, cfg.Log.Development)
	if zl, ok := log.(*logger.ZapLogger); ok {
		defer zl.Sync()
	}
	log.Info("Starting auction service", "config", cfg.GetConfigString())

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Storage
	store, db, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize storage", "error", err)
	}
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Failed to close database", "error", err)
			}
		}()
	}

	// Redis is only needed for the cross-instance bus and leader election
	var rdb *redisClient.Client
	if cfg.Events.Driver == config.EventsRedis {
		rdb = redisClient.NewClient(&redisClient.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal("Failed to connect to Redis", "error", err)
		}
		log.Info("Connected to Redis", "address", cfg.Redis.Address)
	}

	m := metrics.New()
	hub := websocket.NewHub(m, log)

	var (
		publisher      domain.EventPublisher = hub
		leaderElection domain.LeaderElection = leader.Local{}
	)
	if rdb != nil {
		publisher = redis.NewEventPublisher(rdb, cfg.Events.Channel)
		leaderElection = leader.NewRedisLeaderElection(rdb, cfg.Leader.Key, cfg.Leader.TTL, log)

		eventListener := services.NewEventListener(hub, log)
		subscriber := redis.NewEventSubscriber(rdb, cfg.Events.Channel, log)
		go func() {
			if err := eventListener.Start(ctx, subscriber); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Event listener stopped", "error", err)
			}
		}()
	}

	// Services
	locks := services.NewAuctionLocks()
	auctionManager := services.NewAuctionManager(store, locks, clock.System{}, publisher, m,
		cfg.Bidding.MinIncrement, log)
	bidService := services.NewBidService(auctionManager, cfg.Bidding.MaxBidderNameLength, log)

	scheduler := services.NewExpiryScheduler(cfg.Scheduler.Spec, auctionManager, leaderElection,
		cfg.Instance.ID, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", "error", err)
	}

	go campaignForLeadership(ctx, leaderElection, cfg.Instance.ID, log)

	// REST API
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Info("Request handled",
				"id", v.RequestID,
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"error", v.Error)
			return nil
		},
	}))

	auctionHandler := handlers.NewAuctionHandler(auctionManager, bidService, clock.System{}, log)
	auctionHandler.Register(e.Group("/api/v1"))

	wsHandler := websocket.NewHandler(auctionManager, bidService, hub, websocket.Options{
		SendBuffer:     cfg.WebSocket.SendBuffer,
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	}, log)

	// Setup routes
	router := mux.NewRouter()
	router.Use(middleware.CORSWithLogging(log))
	router.HandleFunc("/ws/auctions/{auctionID}", wsHandler.HandleConnection).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "ok",
			"service":   "auction-service",
			"instance":  cfg.Instance.ID,
			"storage":   cfg.Storage.Driver,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods(http.MethodGet)
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	router.PathPrefix("/api/").Handler(e)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	scheduler.Stop()
	stop()

	if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Auction service stopped")
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (domain.AuctionStore, *sql.DB, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Info("Using in-memory auction store")
		return memory.NewAuctionStore(), nil, nil
	}

	db, err := utils.OpenDatabase(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	dialect := sqlstore.MySQL
	if cfg.Storage.Driver == config.StorageSQLite {
		dialect = sqlstore.SQLite
	}
	store := sqlstore.New(db, dialect)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db, nil
}

// campaignForLeadership retries the lease until ctx is cancelled. The
// current leader keeps its lease alive through the election's heartbeat.
func campaignForLeadership(ctx context.Context, election domain.LeaderElection, instanceID string, log logger.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		became, err := election.BecomeLeader(ctx, instanceID)
		if err != nil {
			log.Error("Failed to attempt leadership", "error", err)
		} else if became {
			log.Info("Became auction leader", "instance_id", instanceID)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
