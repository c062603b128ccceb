package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"carbon-scribe/derivative-market/derivative-market-backend/internal/assets"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/audit"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/auth"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/config"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/events"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/ledger"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/market"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/registry"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/stats"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Logging.Level == "debug" {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	if cfg.Security.JWTSecret == "" {
		logger.Fatal("JWT secret is not configured")
	}

	owner := mustAddress(logger, "registry owner", cfg.Fees.Owner)
	ledgerID := mustAddress(logger, "ledger id", cfg.Ledger.ID)
	engineID := mustAddress(logger, "market engine id", cfg.Market.EngineID)
	feeRecipient := mustAddress(logger, "fee recipient", cfg.Fees.Recipient)

	initialOperators := make([]identity.Address, 0, len(cfg.Fees.Operators))
	for _, raw := range cfg.Fees.Operators {
		initialOperators = append(initialOperators, mustAddress(logger, "operator", raw))
	}

	// Registries and collaborator assets
	operators := registry.NewOperatorSet(owner, initialOperators...)
	approvals := registry.NewApprovalRegistry()
	fees, err := registry.NewFeeManager(operators, feeRecipient, cfg.Fees.RatePerMille)
	if err != nil {
		logger.Fatal("Invalid fee configuration", zap.Error(err))
	}

	backing := assets.NewSemiFungibleLedger("Carbon Voucher", "CVCH", operators, approvals)
	payment := assets.NewFungibleLedger("Settlement Dollar", "SUSD", operators, approvals)

	// Audit trail: postgres when configured, in-memory otherwise
	var recorder audit.Recorder
	if cfg.Database.Host != "" {
		db, err := gorm.Open(postgres.Open(cfg.Database.GetDatabaseURL()), &gorm.Config{})
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		recorder, err = audit.NewGormRecorder(db, logger)
		if err != nil {
			logger.Fatal("Failed to initialize audit trail", zap.Error(err))
		}
		logger.Info("Audit trail writing to postgres", zap.String("db", cfg.Database.DBName))
	} else {
		recorder = audit.NewMemoryRecorder()
		logger.Warn("No database configured, audit trail is in-memory only")
	}

	// Event feed
	hub := events.NewHub(logger)

	// Token ledger
	ledgerService := ledger.NewService(
		ledger.Config{
			ID:          ledgerID,
			Name:        cfg.Ledger.Name,
			Symbol:      cfg.Ledger.Symbol,
			UnitID:      cfg.Ledger.UnitID,
			BackingUnit: cfg.Ledger.BackingUnit,
			MinPrice:    cfg.Ledger.MinPrice,
		},
		ledger.NewMemoryBalanceStore(),
		ledger.NewNonceRegistry(),
		operators,
		fees,
		approvals,
		backing,
		recorder,
		logger,
	)
	ledgerHandler := ledger.NewHandler(ledgerService, logger)

	// Marketplace
	marketService := market.NewService(engineID, operators, fees, payment,
		market.NewMemoryStore(), hub, recorder, logger)
	marketService.RegisterLedger(ledgerService)
	marketHandler := market.NewHandler(marketService, logger)

	// Auth
	authService := auth.NewService([]byte(cfg.Security.JWTSecret), cfg.Security.TokenTTL, operators, logger)
	authHandler := auth.NewHandler(authService, logger)

	registryHandler := registry.NewHandler(operators, fees, approvals, logger)

	// Periodic market stats onto the event feed
	collector := stats.NewCollector(marketService, hub, logger)
	if err := collector.Start(cfg.Stats.Schedule); err != nil {
		logger.Fatal("Failed to start stats collector", zap.Error(err))
	}

	// Setup Router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register Routes
	api := router.Group("/api/v1")
	authed := api.Group("", authService.RequireAuth())
	operatorOnly := api.Group("", authService.RequireAuth(), authService.RequireOperator())
	{
		authHandler.RegisterRoutes(api)
		ledgerHandler.RegisterRoutes(api, operatorOnly)
		marketHandler.RegisterRoutes(api, authed, operatorOnly)
		registryHandler.RegisterRoutes(api, authed)
		api.GET("/events", hub.ServeWS)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("addr", srv.Addr),
		zap.String("ledger", ledgerID.Hex()),
		zap.String("engine", engineID.Hex()))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	collector.Stop()
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func mustAddress(logger *zap.Logger, name, raw string) identity.Address {
	addr, err := identity.ParseAddress(raw)
	if err != nil {
		logger.Fatal("Invalid address in configuration",
			zap.String("field", name),
			zap.Error(err))
	}
	return addr
}
