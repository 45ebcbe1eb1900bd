// Package api exposes the HTTP surface over the interview core: résumé
// upload plus the start/message/end session endpoints. It owns the mapping
// from core errors to status codes; the core never shapes HTTP responses.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/fabfab/resume-interviewer/index"
	"github.com/fabfab/resume-interviewer/ingestion"
	"github.com/fabfab/resume-interviewer/interview"
	"github.com/fabfab/resume-interviewer/persona"
	"github.com/fabfab/resume-interviewer/resume"
	"github.com/fabfab/resume-interviewer/session"
)

const (
	version        = "1.0.0"
	maxUploadBytes = 10 << 20
	maxBodyBytes   = 1 << 20
)

// Server routes requests to the session registry and résumé store.
type Server struct {
	registry *session.Registry
	resumes  *resume.Store
	logger   *log.Logger
	handler  http.Handler
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

type uploadResponse struct {
	ResumeID   string `json:"resume_id"`
	Filename   string `json:"filename"`
	FileSize   int64  `json:"file_size"`
	ChunkCount int    `json:"chunk_count"`
	UploadedAt string `json:"uploaded_at"`
}

type startRequest struct {
	ResumeID string `json:"resume_id"`
	Style    string `json:"interview_style"`
}

type startResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Style     string `json:"interview_style"`
	StartedAt string `json:"started_at"`
}

type messageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type messageResponse struct {
	Response     string `json:"response"`
	SessionID    string `json:"session_id"`
	MessageCount int    `json:"message_count"`
	Timestamp    string `json:"timestamp"`
}

type endRequest struct {
	SessionID string `json:"session_id"`
}

type endResponse struct {
	SessionID string `json:"session_id"`
	EndedAt   string `json:"ended_at"`
}

// New constructs a Server over the given registry and résumé store.
func New(registry *session.Registry, resumes *resume.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{registry: registry, resumes: resumes, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/upload-resume", s.handleUpload)
	mux.HandleFunc("/api/interview/start", s.handleStart)
	mux.HandleFunc("/api/interview/message", s.handleMessage)
	mux.HandleFunc("/api/interview/end", s.handleEnd)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   version,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "File too large", "resume files are capped at 10MB")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "No file provided", "attach the resume under the 'file' field")
		return
	}
	defer file.Close()

	if ingestion.DetectFormat(header.Filename) == ingestion.FormatUnknown {
		s.writeError(w, http.StatusBadRequest, "Invalid file format", "supported resume formats: pdf, md, txt")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Upload failed", fmt.Sprintf("read upload: %v", err))
		return
	}

	chunks, err := ingestion.Ingest(ingestion.Document{Name: header.Filename, Data: data})
	if err != nil {
		if errors.Is(err, ingestion.ErrNoExtractableText) || errors.Is(err, ingestion.ErrUnsupportedFormat) {
			s.writeError(w, http.StatusBadRequest, "Failed to load resume", err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Upload failed", err.Error())
		return
	}

	rec, err := s.resumes.Put(header.Filename, data, chunks)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Upload failed", err.Error())
		return
	}

	s.logger.Printf("resume %s uploaded (%s, %d bytes, %d chunks)", rec.ID, rec.Filename, rec.Size, len(chunks))
	s.writeJSON(w, http.StatusOK, uploadResponse{
		ResumeID:   rec.ID,
		Filename:   rec.Filename,
		FileSize:   rec.Size,
		ChunkCount: len(chunks),
		UploadedAt: rec.UploadedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Bad request", err.Error())
		return
	}
	if strings.TrimSpace(req.ResumeID) == "" {
		s.writeError(w, http.StatusBadRequest, "Missing resume_id", "provide the id returned by the upload endpoint")
		return
	}

	rec, ok := s.resumes.Get(req.ResumeID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "Resume not found", "the resume does not exist or has expired")
		return
	}

	style := persona.Normalize(req.Style)

	sess, err := s.registry.Create(r.Context(), rec.ID, rec.Chunks, style)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrCapacityExceeded):
			s.writeError(w, http.StatusServiceUnavailable, "Too many sessions", "the server is busy, retry shortly")
		case errors.Is(err, index.ErrEmbeddingUnavailable):
			s.writeError(w, http.StatusBadGateway, "Embedding provider unavailable", err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, "Failed to start interview", err.Error())
		}
		return
	}

	opening, err := sess.Open(r.Context())
	if err != nil {
		// The session still starts; the canned line stands in for the
		// interviewer's greeting.
		s.logger.Printf("opening turn failed for session %s: %v", sess.ID, err)
		opening = interview.CannedOpening
	}

	s.writeJSON(w, http.StatusOK, startResponse{
		SessionID: sess.ID,
		Message:   opening,
		Style:     style,
		StartedAt: sess.CreatedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Bad request", err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		s.writeError(w, http.StatusBadRequest, "Missing session_id", "provide the id returned by the start endpoint")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		s.writeError(w, http.StatusBadRequest, "Missing message", "provide a non-empty message")
		return
	}

	sess, err := s.registry.Get(req.SessionID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Session not found", "the session does not exist or has expired")
		return
	}

	reply, count, err := sess.Send(r.Context(), message)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionBusy):
			s.writeError(w, http.StatusConflict, "Session busy", "a previous turn is still in flight, retry shortly")
		case errors.Is(err, interview.ErrSessionClosed):
			s.writeError(w, http.StatusNotFound, "Session not found", "the session has ended")
		case errors.Is(err, interview.ErrModelInvocation), errors.Is(err, index.ErrEmbeddingUnavailable):
			s.writeError(w, http.StatusBadGateway, "Failed to get response", err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, "Send message failed", err.Error())
		}
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{
		Response:     reply,
		SessionID:    sess.ID,
		MessageCount: count,
		Timestamp:    time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req endRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Bad request", err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		s.writeError(w, http.StatusBadRequest, "Missing session_id", "provide the id returned by the start endpoint")
		return
	}

	if !s.registry.End(req.SessionID) {
		s.writeError(w, http.StatusNotFound, "Session not found", "the session does not exist or has expired")
		return
	}

	s.writeJSON(w, http.StatusOK, endResponse{
		SessionID: req.SessionID,
		EndedAt:   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "use "+allowed)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, title, detail string) {
	s.writeJSON(w, status, errorResponse{Error: title, Message: detail})
}

func decodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("request body contains more than one JSON value")
	}
	return nil
}
