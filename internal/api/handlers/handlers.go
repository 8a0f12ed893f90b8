// Package handlers holds the HTTP endpoints: statement upload and
// ingestion enqueueing, job status, declared spend profiles and
// recommendation snapshots.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cardspark/spendmatch/internal/api/middleware"
	"github.com/cardspark/spendmatch/internal/docstore"
	"github.com/cardspark/spendmatch/internal/domain"
	infra "github.com/cardspark/spendmatch/internal/infra/bigquery"
	"github.com/cardspark/spendmatch/internal/jobs"
	"github.com/cardspark/spendmatch/internal/profile"
	"github.com/cardspark/spendmatch/internal/recommend"
	"github.com/cardspark/spendmatch/internal/scoring"
)

// maxStatementBytes bounds uploaded statement text. Real statements
// are well under this.
const maxStatementBytes = 4 << 20

// StatementsHandler handles statement upload and ingestion endpoints.
type StatementsHandler struct {
	documents infra.DocumentRepository
	store     docstore.DocumentStore
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(documents infra.DocumentRepository, store docstore.DocumentStore, publisher jobs.Publisher, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		documents: documents,
		store:     store,
		publisher: publisher,
		log:       log,
	}
}

// UploadStatement handles POST /api/statements.
//
// It stores the statement text in GCS, records the document row and
// enqueues an ingestion job. Re-uploads of identical text for the same
// user short-circuit against the stored checksum without touching the
// model.
func (h *StatementsHandler) UploadStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		UserID        string `json:"user_id"`
		Text          string `json:"text"`
		StatementKind string `json:"statement_kind"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxStatementBytes)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.Text == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id and text are required")
		return
	}

	text := []byte(req.Text)
	checksum := docstore.Checksum(text)

	existing, err := h.documents.FindDocumentByChecksum(ctx, req.UserID, checksum)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to check document checksum")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to process statement")
		return
	}
	if existing != nil && existing.Status != infra.DocumentStatusFailed {
		h.log.Info().
			Str("user_id", req.UserID).
			Str("document_id", existing.DocumentID).
			Msg("duplicate statement upload short-circuited")
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"document_id": existing.DocumentID,
			"status":      existing.Status,
			"duplicate":   true,
		})
		return
	}

	documentID := uuid.NewString()
	gcsURI, err := h.store.PutStatement(ctx, req.UserID, documentID, text)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to store statement text")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store statement")
		return
	}

	kind := req.StatementKind
	if kind == "" {
		kind = "BANK_STATEMENT"
	}
	doc := &infra.DocumentRow{
		DocumentID:     documentID,
		UserID:         req.UserID,
		GCSURI:         gcsURI,
		ChecksumSHA256: checksum,
		StatementKind:  kind,
		Status:         infra.DocumentStatusPending,
		UploadTS:       time.Now().UTC(),
	}
	if err := h.documents.InsertDocument(ctx, doc); err != nil {
		h.log.Error().Err(err).Msg("Failed to insert document row")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save document metadata")
		return
	}

	job := &jobs.IngestStatementJob{
		UserID:     req.UserID,
		DocumentID: documentID,
		BatchID:    uuid.NewString(),
		GCSURI:     gcsURI,
	}
	if err := h.publisher.PublishIngestStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue ingestion job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Ingestion queue unavailable")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("document_id", documentID).
		Str("user_id", req.UserID).
		Msg("Ingestion job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":      job.JobID,
		"document_id": documentID,
		"batch_id":    job.BatchID,
		"status":      string(job.Status),
	})
}

// JobsHandler handles job status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID:     query.Get("user_id"),
		DocumentID: query.Get("document_id"),
		Status:     jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// ProfilesHandler handles feature profile endpoints.
type ProfilesHandler struct {
	profiles infra.ProfileRepository
	log      zerolog.Logger
}

// NewProfilesHandler creates a new profiles handler.
func NewProfilesHandler(profiles infra.ProfileRepository, log zerolog.Logger) *ProfilesHandler {
	return &ProfilesHandler{
		profiles: profiles,
		log:      log,
	}
}

// PutDeclaredProfile handles PUT /api/profile/declared.
//
// Users without statements declare a category split that must sum to
// 100 percent; the resulting profile carries low confidence downstream.
func (h *ProfilesHandler) PutDeclaredProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		UserID       string                      `json:"user_id"`
		Split        map[domain.Category]float64 `json:"split"`
		MonthlySpend float64                     `json:"monthly_spend"`
		Preferences  domain.UserPreferences      `json:"preferences"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	prof, err := profile.FromDeclaredSplit(req.UserID, req.Split, req.MonthlySpend, req.Preferences)
	if err != nil {
		// Covers InvalidSpendSplitError and unknown categories alike.
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.profiles.UpsertProfile(ctx, prof); err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to upsert profile")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save profile")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, prof)
}

// GetProfile handles GET /api/profile?user_id=...
func (h *ProfilesHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	prof, err := h.profiles.GetProfile(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get profile")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	if prof == nil {
		middleware.WriteError(w, http.StatusNotFound, "No profile for user")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, prof)
}

// RecommendationsHandler handles recommendation endpoints.
type RecommendationsHandler struct {
	profiles  infra.ProfileRepository
	snapshots infra.SnapshotRepository
	composer  *recommend.Composer
	log       zerolog.Logger
}

// NewRecommendationsHandler creates a new recommendations handler.
func NewRecommendationsHandler(profiles infra.ProfileRepository, snapshots infra.SnapshotRepository, composer *recommend.Composer, log zerolog.Logger) *RecommendationsHandler {
	return &RecommendationsHandler{
		profiles:  profiles,
		snapshots: snapshots,
		composer:  composer,
		log:       log,
	}
}

// ComputeRecommendations handles POST /api/recommendations.
func (h *RecommendationsHandler) ComputeRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		UserID  string          `json:"user_id"`
		Weights scoring.Weights `json:"weights,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	prof, err := h.profiles.GetProfile(ctx, req.UserID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to get profile")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	if prof == nil {
		middleware.WriteError(w, http.StatusNotFound, "No profile for user; upload a statement or declare a spend split first")
		return
	}

	snapshot, err := h.composer.Compose(ctx, prof, req.Weights)
	if err != nil {
		var invalidWeights *scoring.InvalidWeightVectorError
		if errors.As(err, &invalidWeights) {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to compose recommendations")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute recommendations")
		return
	}

	if err := h.snapshots.InsertSnapshot(ctx, snapshot); err != nil {
		h.log.Error().Err(err).Str("snapshot_id", snapshot.SnapshotID).Msg("Failed to persist snapshot")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save recommendations")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, snapshot)
}

// GetLatestRecommendations handles GET /api/recommendations/latest?user_id=...
func (h *RecommendationsHandler) GetLatestRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	snapshot, err := h.snapshots.GetLatestSnapshot(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get latest snapshot")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load recommendations")
		return
	}
	if snapshot == nil {
		middleware.WriteError(w, http.StatusNotFound, "No recommendations for user")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, snapshot)
}
