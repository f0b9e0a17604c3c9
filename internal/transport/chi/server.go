// Package chi exposes the ingestion and retrieval API over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/calder-labs/ragserve/internal/domain"
	healthuc "github.com/calder-labs/ragserve/internal/usecase/health"
	ingestuc "github.com/calder-labs/ragserve/internal/usecase/ingest"
	resetuc "github.com/calder-labs/ragserve/internal/usecase/reset"
	retrieveuc "github.com/calder-labs/ragserve/internal/usecase/retrieve"
)

const defaultMaxUploadBytes = 32 << 20 // 32 MiB

// extractor converts uploaded files to plain text.
type extractor interface {
	Supported(filename string) bool
	Text(filename string, data []byte) (string, error)
}

// Server holds the HTTP handlers.
type Server struct {
	ingest         *ingestuc.Service
	retrieve       *retrieveuc.Service
	reset          *resetuc.Service
	health         *healthuc.Service
	extract        extractor
	collection     string
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	ingest *ingestuc.Service,
	retrieve *retrieveuc.Service,
	reset *resetuc.Service,
	health *healthuc.Service,
	extract extractor,
	collection string,
	logger *zap.Logger,
) *Server {
	return &Server{
		ingest:         ingest,
		retrieve:       retrieve,
		reset:          reset,
		health:         health,
		extract:        extract,
		collection:     collection,
		maxUploadBytes: defaultMaxUploadBytes,
		logger:         logger,
	}
}

// WithMaxUploadBytes overrides the multipart upload size limit.
func (s *Server) WithMaxUploadBytes(n int64) *Server {
	if n > 0 {
		s.maxUploadBytes = n
	}
	return s
}

// Routes mounts all endpoints on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/api/upload", s.handleUpload)
	r.Post("/api/query", s.handleQuery)
	r.Delete("/api/reset", s.handleReset)
	r.Get("/api/stats", s.handleStats)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// --- DTOs ---

type uploadResponse struct {
	UploadID   string `json:"upload_id"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	DurationMS int64  `json:"duration_ms"`
}

type queryRequest struct {
	Question string  `json:"question"`
	TopK     int     `json:"top_k"`
	MinScore float64 `json:"min_score"`
}

type queryResult struct {
	ChunkID       string  `json:"chunk_id"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
	DocumentID    string  `json:"document_id"`
	Filename      string  `json:"filename"`
	SequenceIndex int     `json:"sequence_index"`
	StartOffset   int     `json:"start_offset"`
	EndOffset     int     `json:"end_offset"`
}

type queryResponse struct {
	Results []queryResult `json:"results"`
}

type resetResponse struct {
	ChunksRemoved int `json:"chunks_removed"`
}

type statsResponse struct {
	Collection string `json:"collection"`
	ChunkCount int    `json:"chunk_count"`
	VectorDim  int    `json:"vector_dim,omitempty"`
	Model      string `json:"model,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// --- Handlers ---

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request: "+err.Error(), "")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field", "")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "missing filename", "")
		return
	}
	if !s.extract.Supported(header.Filename) {
		writeError(w, http.StatusBadRequest, "unsupported file format", "")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload: "+err.Error(), "")
		return
	}

	text, err := s.extract.Text(header.Filename, data)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	doc := domain.NewDocument(header.Filename, mimeType, text, time.Now().UTC())

	report, err := s.ingest.Ingest(r.Context(), doc)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		UploadID:   report.UploadID,
		DocumentID: report.DocumentID,
		Filename:   report.Filename,
		ChunkCount: report.ChunkCount,
		DurationMS: report.Duration.Milliseconds(),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "")
		return
	}

	records, err := s.retrieve.Retrieve(r.Context(), retrieveuc.Query{
		Text:     req.Question,
		TopK:     req.TopK,
		MinScore: req.MinScore,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	results := make([]queryResult, len(records))
	for i, rec := range records {
		results[i] = queryResult{
			ChunkID:       rec.ID,
			Text:          rec.Text,
			Score:         rec.Score,
			DocumentID:    rec.Metadata.DocumentID,
			Filename:      rec.Metadata.Filename,
			SequenceIndex: rec.Metadata.SequenceIndex,
			StartOffset:   rec.Metadata.StartOffset,
			EndOffset:     rec.Metadata.EndOffset,
		}
	}

	writeJSON(w, http.StatusOK, queryResponse{Results: results})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	removed, err := s.reset.Reset(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{ChunksRemoved: removed})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reset.Stats(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Collection: s.collection,
		ChunkCount: stats.ChunkCount,
		VectorDim:  stats.VectorDim,
		Model:      stats.Model,
		CreatedAt:  stats.CreatedAt,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// --- Error mapping ---

// writeDomainError maps the error taxonomy onto HTTP statuses: caller
// mistakes are 400, embedding provider trouble is 502, store trouble is 503.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	stage := domain.StageOf(err)

	switch {
	case errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrEmptyDocument),
		errors.Is(err, domain.ErrExtractionFailed),
		errors.Is(err, domain.ErrInvalidChunking):
		writeError(w, http.StatusBadRequest, err.Error(), stage)

	case errors.Is(err, domain.ErrEmbeddingRejected),
		errors.Is(err, domain.ErrEmbeddingUnavailable):
		writeError(w, http.StatusBadGateway, err.Error(), stage)

	case errors.Is(err, domain.ErrStoreWriteFailed),
		errors.Is(err, domain.ErrStoreQueryFailed),
		errors.Is(err, domain.ErrResetFailed):
		writeError(w, http.StatusServiceUnavailable, err.Error(), stage)

	case errors.Is(err, domain.ErrRetrievalFailed):
		// validation failures carry no stage; anything staged was caught above
		writeError(w, http.StatusBadRequest, err.Error(), stage)

	default:
		s.logger.Error("Unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg, stage string) {
	writeJSON(w, status, errorResponse{Error: msg, Stage: stage})
}
