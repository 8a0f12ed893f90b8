package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cardspark/spendmatch/internal/api/handlers"
	"github.com/cardspark/spendmatch/internal/api/middleware"
	"github.com/cardspark/spendmatch/internal/docstore"
	"github.com/cardspark/spendmatch/internal/extract"
	infra "github.com/cardspark/spendmatch/internal/infra/bigquery"
	"github.com/cardspark/spendmatch/internal/jobs/inmemory"
	"github.com/cardspark/spendmatch/internal/logger"
	"github.com/cardspark/spendmatch/internal/pipeline"
	"github.com/cardspark/spendmatch/internal/recommend"
)

func main() {
	var (
		port    = flag.String("port", "8080", "HTTP server port")
		workers = flag.Int("workers", 4, "concurrent ingestion workers")
	)
	flag.Parse()

	// .env is optional; deployed environments set real env vars
	_ = godotenv.Load()

	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	store, err := infra.NewStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery store")
	}
	defer store.Close()

	docStore, err := docstore.NewGCSStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create document store")
	}
	defer docStore.Close()

	extractor, err := extract.NewClient(ctx, extract.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extraction client")
	}

	// Recommendations degrade to deterministic copy without the
	// enricher.
	var enricher recommend.Enricher
	if ge, err := recommend.NewGeminiEnricher(ctx, recommend.DefaultEnrichModel, recommend.DefaultEnrichTimeout); err != nil {
		log.Warn().Err(err).Msg("Enrichment unavailable, using fallback copy")
	} else {
		enricher = ge
	}
	composer := recommend.NewComposer(store, enricher, recommend.DefaultTopK)

	// Job infrastructure and the in-process ingestion worker.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, *workers, jobStore)

	ingestor := pipeline.NewIngestor(pipeline.Deps{
		Fetcher:   docStore,
		Extractor: extractor,
		Ledger:    store,
		Documents: store,
		Runs:      store,
		Profiles:  store,
	})

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	go func() {
		log.Info().Int("workers", *workers).Msg("Starting ingestion workers")
		if err := jobQueue.Start(workerCtx, ingestor.JobHandler()); err != nil {
			log.Error().Err(err).Msg("Ingestion workers stopped with error")
		}
	}()

	statementsHandler := handlers.NewStatementsHandler(store, docStore, jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)
	profilesHandler := handlers.NewProfilesHandler(store, log)
	recommendationsHandler := handlers.NewRecommendationsHandler(store, store, composer, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/statements", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			statementsHandler.UploadStatement(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			profilesHandler.GetProfile(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/profile/declared", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut || r.Method == http.MethodPost {
			profilesHandler.PutDeclaredProfile(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/recommendations", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			recommendationsHandler.ComputeRecommendations(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/recommendations/latest", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			recommendationsHandler.GetLatestRecommendations(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(log)(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
