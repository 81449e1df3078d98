package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/apierr"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/auth"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/config"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/metrics"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/patient"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/session"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/transcription"
)

// HTTPServer exposes the clinical recording API plus monitoring endpoints
type HTTPServer struct {
	server        *http.Server
	logger        *slog.Logger
	config        *config.Config
	sessions      *session.Store
	patients      *patient.Store
	orchestrator  *session.Orchestrator
	auth          *auth.Service
	transcription *transcription.Client
	metrics       *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates the API server and wires all routes
func NewHTTPServer(cfg *config.Config, logger *slog.Logger, sessions *session.Store,
	patients *patient.Store, orchestrator *session.Orchestrator, authSvc *auth.Service,
	transcriptionClient *transcription.Client, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:        logger,
		config:        cfg,
		sessions:      sessions,
		patients:      patients,
		orchestrator:  orchestrator,
		auth:          authSvc,
		transcription: transcriptionClient,
		metrics:       m,
		startTime:     time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.GetReadTimeout(),
		WriteTimeout: cfg.HTTP.GetWriteTimeout(),
		IdleTimeout:  cfg.HTTP.GetIdleTimeout(),
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Authentication
	mux.HandleFunc("/auth/login", h.withMetrics("/auth/login", h.handleLogin))

	// Recording sessions
	mux.HandleFunc("/sessions", h.withMetrics("/sessions", h.requireAuth(h.handleSessions)))
	mux.HandleFunc("/sessions/", h.withMetrics("/sessions/{id}", h.requireAuth(h.handleSessionAction)))

	// Patient records
	mux.HandleFunc("/patients", h.withMetrics("/patients", h.requireAuth(h.handlePatients)))
	mux.HandleFunc("/patients/", h.withMetrics("/patients/{id}", h.requireAuth(h.handlePatientDetail)))

	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// requireAuth wraps a handler with bearer token verification. The verified
// owner id travels on the request context.
func (h *HTTPServer) requireAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.FromAuthorizationHeader(r.Header.Get("Authorization"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		claims, err := h.auth.Verify(token)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		handler(w, r.WithContext(auth.WithOwner(r.Context(), claims.UserID)))
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// Handler returns the server's HTTP handler.
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierr.HTTPStatus(err)
	if status >= 500 {
		h.logger.Error("Request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decode parses a JSON request body into v.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apierr.Validation("invalid request body: %v", err)
	}
	return nil
}

// owner returns the authenticated owner id; requireAuth guarantees it is set.
func owner(r *http.Request) string {
	ownerID, _ := auth.OwnerFrom(r.Context())
	return ownerID
}

// handleLogin implements POST /auth/login
func (h *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	token, err := h.auth.Issue(req.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("User logged in", slog.String("user_id", req.Email))

	h.writeJSON(w, http.StatusOK, map[string]string{
		"token":  token,
		"userId": req.Email,
	})
}

// handleSessions implements POST /sessions and GET /sessions
func (h *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateSession(w, r)
	case http.MethodGet:
		h.handleListSessions(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatientID string `json:"patientId"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	s, err := h.orchestrator.Begin(r.Context(), req.PatientID, owner(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, s)
}

func (h *HTTPServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ownerID := owner(r)

	var sessions []session.Session
	if patientID := r.URL.Query().Get("patientId"); patientID != "" {
		sessions = h.sessions.ListByPatient(patientID, ownerID)
	} else {
		sessions = h.sessions.ListByOwner(ownerID)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"total":    len(sessions),
		"sessions": sessions,
	})
}

// handleSessionAction dispatches /sessions/{id}/upload-url and
// /sessions/{id}/chunk-uploaded
func (h *HTTPServer) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := r.URL.Path[len("/sessions/"):]
	sessionID, action, ok := strings.Cut(rest, "/")
	if !ok || sessionID == "" {
		http.NotFound(w, r)
		return
	}

	switch action {
	case "upload-url":
		h.handleUploadURL(w, r, sessionID)
	case "chunk-uploaded":
		h.handleChunkUploaded(w, r, sessionID)
	default:
		http.NotFound(w, r)
	}
}

func (h *HTTPServer) handleUploadURL(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req struct {
		ChunkNumber *int   `json:"chunkNumber"`
		MimeType    string `json:"mimeType"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ChunkNumber == nil {
		h.writeError(w, r, apierr.Validation("missing chunkNumber"))
		return
	}

	url, blobPath, err := h.orchestrator.AuthorizeChunkUpload(r.Context(),
		sessionID, owner(r), *req.ChunkNumber, req.MimeType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"uploadURL":   url,
		"blobPath":    blobPath,
		"sessionId":   sessionID,
		"chunkNumber": *req.ChunkNumber,
	})
}

func (h *HTTPServer) handleChunkUploaded(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req struct {
		BlobPath string `json:"blobPath"`
		IsLast   bool   `json:"isLast"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.orchestrator.ChunkUploaded(r.Context(), sessionID, owner(r),
		req.BlobPath, req.IsLast)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"message":    res.Message,
		"transcript": res.Transcript,
		"isFinal":    res.Final,
	})
}

// handlePatients implements POST /patients and GET /patients
func (h *HTTPServer) handlePatients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreatePatient(w, r)
	case http.MethodGet:
		patients := h.patients.ListByOwner(owner(r))
		h.writeJSON(w, http.StatusOK, map[string]any{
			"total":    len(patients),
			"patients": patients,
		})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPServer) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.patients.Create(owner(r), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("Patient created",
		slog.String("patient_id", p.ID),
		slog.String("user_id", p.OwnerID),
	)

	h.writeJSON(w, http.StatusCreated, p)
}

// handlePatientDetail dispatches GET /patients/{id} and
// POST /patients/{id}/transcripts
func (h *HTTPServer) handlePatientDetail(w http.ResponseWriter, r *http.Request) {
	rest := r.URL.Path[len("/patients/"):]
	patientID, action, hasAction := strings.Cut(rest, "/")
	if patientID == "" {
		http.NotFound(w, r)
		return
	}

	switch {
	case !hasAction && r.Method == http.MethodGet:
		p, err := h.patients.Get(patientID, owner(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, p)
	case hasAction && action == "transcripts" && r.Method == http.MethodPost:
		h.handleSaveTranscript(w, r, patientID)
	case !hasAction || action == "transcripts":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

func (h *HTTPServer) handleSaveTranscript(w http.ResponseWriter, r *http.Request, patientID string) {
	var req struct {
		SessionID string `json:"sessionId"`
		Content   string `json:"content"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.patients.SaveTranscript(patientID, owner(r), req.SessionID, req.Content)
	if err != nil {
		if apierr.KindOf(err) == apierr.KindConflict {
			h.metrics.TranscriptConflicts.Inc()
		}
		h.writeError(w, r, err)
		return
	}

	h.metrics.TranscriptsSaved.Inc()

	h.logger.Info("Transcript saved to patient record",
		slog.String("patient_id", patientID),
		slog.String("session_id", req.SessionID),
	)

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Transcript saved.",
		"patient": p,
	})
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	counts := h.sessions.GetCounts()
	transcriptionStats := h.transcription.GetStats()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "ai-scribe-copilot",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"sessions": map[string]interface{}{
				"status":     "running",
				"recording":  counts.Recording,
				"finalizing": counts.Finalizing,
				"completed":  counts.Completed,
			},
			"transcription": map[string]interface{}{
				"status":          "running",
				"total_requests":  transcriptionStats.TotalRequests,
				"success_rate":    transcriptionStats.SuccessRate,
				"active_requests": transcriptionStats.ActiveRequests,
			},
			"storage": map[string]interface{}{
				"status": "running",
				"bucket": h.config.Storage.Bucket,
			},
		},
	}

	h.writeJSON(w, http.StatusOK, health)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	counts := h.sessions.GetCounts()
	uptime := time.Since(h.startTime)

	stats := map[string]interface{}{
		"uptime":    uptime.String(),
		"timestamp": time.Now().UTC(),
		"sessions": map[string]interface{}{
			"recording":  counts.Recording,
			"finalizing": counts.Finalizing,
			"completed":  counts.Completed,
		},
		"transcription": h.transcription.GetStats(),
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "AI Scribe Copilot Backend",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                                 "API documentation",
			"POST /auth/login":                      "Obtain an access token",
			"POST /sessions":                        "Start a recording session",
			"GET /sessions":                         "List sessions, optionally by ?patientId=",
			"POST /sessions/{id}/upload-url":        "Authorize a chunk upload",
			"POST /sessions/{id}/chunk-uploaded":    "Notify a completed chunk upload",
			"POST /patients":                        "Create a patient record",
			"GET /patients":                         "List patient records",
			"GET /patients/{id}":                    "Get a patient record",
			"POST /patients/{id}/transcripts":       "Save a transcript to a patient record",
			"GET /health":                           "Service health check",
			"GET /stats":                            "Get service statistics",
			"GET /metrics":                          "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	h.writeJSON(w, http.StatusOK, apiDoc)
}
