package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quiz-contest-service/internal/app"
	"quiz-contest-service/internal/auth"
	"quiz-contest-service/internal/domain"
)

// Handler exposes the contest service over plain JSON endpoints.
type Handler struct {
	submissions *app.SubmissionService
	results     *app.ResultsService
	verifier    *auth.TokenVerifier
}

func NewHandler(submissions *app.SubmissionService, results *app.ResultsService, verifier *auth.TokenVerifier) *Handler {
	return &Handler{submissions: submissions, results: results, verifier: verifier}
}

// Register mounts all REST routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /contests/{slug}", h.getCatalog)
	mux.HandleFunc("POST /contests/{slug}/submissions", h.postSubmission)
	mux.HandleFunc("GET /contests/{slug}/attempts/me", h.getOwnAttempt)
	mux.HandleFunc("GET /contests/{slug}/leaderboard", h.getLeaderboard)
	mux.HandleFunc("GET /contests/{slug}/stats", h.getStats)
}

func (h *Handler) getCatalog(w http.ResponseWriter, r *http.Request) {
	contest, err := h.results.Catalog(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contest)
}

func (h *Handler) postSubmission(w http.ResponseWriter, r *http.Request) {
	var payload app.SubmissionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, domain.ErrInvalidSubmission)
		return
	}
	eval, err := h.submissions.Submit(r.Context(), h.verifier.UserID(r), r.PathValue("slug"), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, eval)
}

func (h *Handler) getOwnAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.results.UserAttempt(r.Context(), h.verifier.UserID(r), r.PathValue("slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.results.Leaderboard(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.results.ContestStats(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrContestNotFound), errors.Is(err, domain.ErrAttemptNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateSubmission):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidSubmission):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
