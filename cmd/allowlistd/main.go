package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/naffle-labs/allowlist-engine/api/routes"
	"github.com/naffle-labs/allowlist-engine/internal/config"
	"github.com/naffle-labs/allowlist-engine/internal/handlers"
	"github.com/naffle-labs/allowlist-engine/internal/ledger"
	"github.com/naffle-labs/allowlist-engine/internal/lock"
	"github.com/naffle-labs/allowlist-engine/internal/oracle"
	"github.com/naffle-labs/allowlist-engine/internal/repositories"
	mongorepo "github.com/naffle-labs/allowlist-engine/internal/repositories/mongodb"
	"github.com/naffle-labs/allowlist-engine/internal/scheduler"
	"github.com/naffle-labs/allowlist-engine/internal/services"
	"github.com/naffle-labs/allowlist-engine/internal/storage"
	"github.com/naffle-labs/allowlist-engine/pkg/mongodb"
)

func main() {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	mongoClient, err := mongodb.NewClient(connectCtx, cfg.MongoDB.URI)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			slog.Error("Error disconnecting from MongoDB", "error", err)
		}
	}()

	db := mongoClient.Database(cfg.MongoDB.Database)
	if err := mongorepo.EnsureTicketIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to create ticket indexes: %v", err)
	}
	if err := ledger.EnsureLedgerIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to create ledger indexes: %v", err)
	}

	// Repositories and collaborators
	var campaignRepo repositories.CampaignRepository = mongorepo.NewCampaignRepository(db)
	var ticketRepo repositories.TicketRepository = mongorepo.NewTicketRepository(db)
	var counterRepo repositories.TicketCounterRepository = mongorepo.NewTicketCounterRepository(db)
	var settlementRepo repositories.SettlementRepository = mongorepo.NewSettlementRepository(db)
	txRunner := mongorepo.NewSessionTxRunner(mongoClient.Raw())
	walletLedger := ledger.NewMongoLedger(db)
	lockManager := lock.NewManager(db)

	objectStorage, err := storage.NewGridFSStorage(db)
	if err != nil {
		log.Fatalf("Failed to initialise object storage: %v", err)
	}

	var oracleClient oracle.Client
	if cfg.Oracle.MockOracle {
		slog.Warn("Using mock randomness oracle")
		oracleClient = oracle.NewMockClient()
	} else {
		oracleClient = oracle.NewHTTPClient(cfg.Oracle.BaseURL, cfg.Oracle.APIKey)
	}

	// Services
	campaignService := services.NewCampaignService(campaignRepo, ticketRepo, counterRepo, walletLedger, txRunner)
	settlementService := services.NewSettlementService(campaignRepo, settlementRepo, walletLedger, objectStorage, txRunner)
	drawService := services.NewDrawService(campaignRepo, ticketRepo, settlementService, oracleClient)

	// Background schedulers
	sched := scheduler.New(drawService, lockManager, cfg.Scheduler.TickInterval, cfg.Scheduler.LockTTL)
	go sched.Run(ctx)

	// HTTP surface
	handlerDeps := routes.HandlerDependencies{
		CampaignHandler: handlers.NewCampaignHandler(campaignService),
		DrawHandler:     handlers.NewDrawHandler(drawService),
	}
	router := routes.SetupRouter(cfg, handlerDeps)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		slog.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("Server exiting")
}
