package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/epigraph-ai/epigraph-backend/internal/data/graph"
	"github.com/epigraph-ai/epigraph-backend/internal/data/repos/vocab"
	"github.com/epigraph-ai/epigraph-backend/internal/db"
	"github.com/epigraph-ai/epigraph-backend/internal/http/handlers"
	"github.com/epigraph-ai/epigraph-backend/internal/jobs/worker"
	"github.com/epigraph-ai/epigraph-backend/internal/platform/envutil"
	"github.com/epigraph-ai/epigraph-backend/internal/platform/logger"
	"github.com/epigraph-ai/epigraph-backend/internal/platform/neo4jdb"
	"github.com/epigraph-ai/epigraph-backend/internal/platform/openai"
	"github.com/epigraph-ai/epigraph-backend/internal/server"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/classifier"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/embedding"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/normalizer"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/resolver"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/seeds"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/validator"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Neo4j (optional: without it validation reports insufficient data)
	neo4jClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Warn("Neo4j init failed; grounding validation degraded", "error", err)
	}
	if neo4jClient != nil {
		defer neo4jClient.Close(ctx)
	}

	// Embeddings
	log.Info("Setting up embedding provider from main...")
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}
	var embedder embedding.Provider = openaiClient
	if rdb, err := embedding.NewRedisFromEnv(log); err != nil {
		log.Warn("Redis init failed; embedding cache disabled", "error", err)
	} else if rdb != nil {
		embedder = embedding.NewCached(log, openaiClient, rdb, 0)
	}

	// Repos
	log.Info("Setting up repos from main...")
	typeRepo := vocab.NewVocabularyTypeRepo(thePG, log)
	prototypeRepo := vocab.NewRolePrototypeRepo(thePG, log)

	// Seed set
	seedsPath := envutil.GetEnv("SEEDS_PATH", "config/seeds.yaml", log)
	seedSet, err := seeds.Load(seedsPath)
	if err != nil {
		log.Error("Could not load seed set", "path", seedsPath, "error", err)
		os.Exit(1)
	}
	bootstrapCtx, bootstrapCancel := context.WithTimeout(ctx, 2*time.Minute)
	err = seeds.Bootstrap(bootstrapCtx, seedSet, seeds.BootstrapDeps{
		Log:        log,
		Types:      typeRepo,
		Prototypes: prototypeRepo,
		Embedder:   embedder,
	})
	bootstrapCancel()
	if err != nil {
		log.Error("Seed bootstrap failed", "error", err)
		os.Exit(1)
	}

	// Engine
	log.Info("Setting up vocabulary engine from main...")
	normCfg := normalizer.DefaultConfig()
	normCfg.ApproxThreshold = envutil.GetEnvAsFloat("NORMALIZER_APPROX_THRESHOLD", normCfg.ApproxThreshold, log)
	typeResolver := resolver.New(log, typeRepo, embedder, normCfg)
	categoryClassifier := classifier.New(log, typeRepo, seedSet, embedder)
	groundingValidator := validator.New(log, typeRepo, prototypeRepo, graph.HistogramSource{
		Client: neo4jClient,
		Log:    log,
	})

	// Maintenance worker
	maintenanceWorker := worker.New(log, categoryClassifier, groundingValidator)
	maintenanceWorker.Start(ctx)

	// Handlers + router
	vocabularyHandler := handlers.NewVocabularyHandler(log, typeRepo, typeResolver)
	maintenanceHandler := handlers.NewMaintenanceHandler(log, categoryClassifier, groundingValidator)

	router := server.NewRouter(server.RouterConfig{
		VocabularyHandler:  vocabularyHandler,
		MaintenanceHandler: maintenanceHandler,
	})

	port := envutil.GetEnv("PORT", "8080", log)
	log.Info("Starting server...", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
