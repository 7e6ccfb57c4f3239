package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/smarthire/internal/interview"
	"github.com/pavelanni/smarthire/internal/model"
	"github.com/pavelanni/smarthire/internal/resume"
	"github.com/pavelanni/smarthire/internal/store"
)

const (
	maxResumeBytes = 10 << 20
	maxBodyBytes   = 1 << 20
)

// Evaluator scores ad-hoc question/answer pairs.
type Evaluator interface {
	Evaluate(ctx context.Context, pairs []model.QA) (model.ScoreResult, string, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc       *interview.Service
	evaluator Evaluator
	pdf       resume.TextExtractor
}

// New creates a new Handler. A nil pdf extractor rejects PDF uploads.
func New(svc *interview.Service, ev Evaluator, pdf resume.TextExtractor) *Handler {
	return &Handler{svc: svc, evaluator: ev, pdf: pdf}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/candidates", h.handleListCandidates)
		r.Post("/candidates", h.handleCreateCandidate)
		r.Get("/candidates/{id}", h.handleGetCandidate)
		r.Delete("/candidates/{id}", h.handleDeleteCandidate)
		r.Post("/candidates/{id}/resume", h.handleUploadResume)
		r.Get("/candidates/{id}/interviews", h.handleCandidateInterviews)

		r.Post("/interviews", h.handleStartInterview)
		r.Get("/interviews/{id}", h.handleGetInterview)
		r.Put("/interviews/{id}/answers/{index}", h.handleSaveAnswer)
		r.Post("/interviews/{id}/submit", h.handleSubmit)

		r.Post("/evaluate", h.handleEvaluate)
		r.Get("/stats", h.handleStats)
		r.Get("/export", h.handleExport)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createCandidateRequest struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Skills     []string `json:"skills"`
	ResumeText string   `json:"resume_text"`
}

func (h *Handler) handleCreateCandidate(w http.ResponseWriter, r *http.Request) {
	var req createCandidateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.RegisterCandidate(r.Context(), req.Name, req.Email, req.Skills, req.ResumeText)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Candidates(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Candidate{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Candidate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleDeleteCandidate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCandidate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxResumeBytes)
	file, header, err := r.FormFile("resume")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: multipart field \"resume\" is required", model.ErrInvalidInput))
		return
	}
	defer file.Close()

	name := strings.ToLower(header.Filename)
	isPDF := strings.HasSuffix(name, ".pdf")
	if !isPDF && !strings.HasSuffix(name, ".txt") {
		writeError(w, r, fmt.Errorf("%w: upload a PDF or plain-text résumé", model.ErrInvalidInput))
		return
	}
	if isPDF && h.pdf == nil {
		writeError(w, r, fmt.Errorf("%w: PDF extraction is not available", model.ErrInvalidInput))
		return
	}

	text, err := resume.ForName(name, h.pdf).ExtractText(r.Context(), file, header.Filename)
	if err != nil {
		slog.Warn("résumé extraction failed", "file", header.Filename, "error", err)
		writeError(w, r, fmt.Errorf("%w: %w", model.ErrInvalidInput, err))
		return
	}

	c, err := h.svc.AttachResume(r.Context(), chi.URLParam(r, "id"), text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleCandidateInterviews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.svc.Candidate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.svc.Interviews(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Interview{}
	}
	writeJSON(w, http.StatusOK, list)
}

type startInterviewRequest struct {
	CandidateID string `json:"candidate_id"`
	Type        string `json:"type"`
	Count       int    `json:"count"`
}

func (h *Handler) handleStartInterview(w http.ResponseWriter, r *http.Request) {
	var req startInterviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.CandidateID) == "" {
		writeError(w, r, fmt.Errorf("%w: candidate_id is required", model.ErrInvalidInput))
		return
	}
	iv, err := h.svc.Start(r.Context(), req.CandidateID, model.InterviewType(req.Type), req.Count)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, iv)
}

func (h *Handler) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	iv, err := h.svc.Interview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (h *Handler) handleSaveAnswer(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid question index", model.ErrInvalidInput))
		return
	}
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.SaveAnswer(r.Context(), chi.URLParam(r, "id"), index, req.Answer); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitRequest struct {
	Answers map[int]string `json:"answers"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	iv, err := h.svc.Submit(r.Context(), chi.URLParam(r, "id"), req.Answers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

type evaluateResponse struct {
	Scores   model.ScoreResult `json:"scores"`
	Feedback string            `json:"feedback"`
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var pairs []model.QA
	if err := decodeJSON(w, r, &pairs); err != nil {
		writeError(w, r, err)
		return
	}
	scores, feedback, err := h.evaluator.Evaluate(r.Context(), pairs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluateResponse{Scores: scores, Feedback: feedback})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context(), r.URL.Query().Get("candidate_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := interview.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=smarthire_results.%s", format))
	if err := h.svc.Export(r.Context(), w, format); err != nil {
		// Headers are already sent; the body is truncated.
		slog.Error("export failed", "format", format, "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", model.ErrInvalidInput, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, interview.ErrAlreadySubmitted),
		errors.Is(err, interview.ErrDuplicateEmail),
		errors.Is(err, interview.ErrNoSkills),
		errors.Is(err, interview.ErrNoQuestions):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
