package poker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rfontan/pointly/go/internal/models"
)

// PokerApp defines what the service layer needs from the poker application.
type PokerApp interface {
	GetSession(ctx context.Context, projectID, callerID uuid.UUID) (models.Session, error)
	AddIssue(ctx context.Context, projectID, callerID uuid.UUID, title, description string) (models.Issue, error)
	CastVote(ctx context.Context, projectID, issueID, callerID uuid.UUID, value string) error
	RevealVotes(ctx context.Context, projectID, issueID, callerID uuid.UUID) (models.Issue, models.VoteSummary, error)
	RequestRevote(ctx context.Context, projectID, issueID, callerID uuid.UUID) error
	DeleteIssue(ctx context.Context, projectID, issueID, callerID uuid.UUID) error
	ValidateIssue(ctx context.Context, projectID, issueID, callerID uuid.UUID, req ValidateIssueRequest) error
}

// Service exposes the poker operations as the JSON request/response surface.
// Every operation is acknowledged to the initiating caller here; the matching
// room broadcast is fire-and-forget and handled inside the app.
type Service struct {
	app PokerApp
}

// NewService creates a new poker HTTP service.
func NewService(app PokerApp) *Service {
	return &Service{app: app}
}

// RegisterRoutes registers the poker REST routes with an HTTP mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/projects/{projectID}/poker", s.handleGetSession)
	mux.HandleFunc("POST /api/projects/{projectID}/poker/issues", s.handleAddIssue)
	mux.HandleFunc("POST /api/projects/{projectID}/poker/issues/{issueID}/vote", s.handleCastVote)
	mux.HandleFunc("POST /api/projects/{projectID}/poker/issues/{issueID}/reveal", s.handleReveal)
	mux.HandleFunc("POST /api/projects/{projectID}/poker/issues/{issueID}/revote", s.handleRevote)
	mux.HandleFunc("DELETE /api/projects/{projectID}/poker/issues/{issueID}", s.handleDeleteIssue)
	mux.HandleFunc("POST /api/projects/{projectID}/poker/issues/{issueID}/validate", s.handleValidateIssue)
	log.Info().Msg("poker routes registered")
}

type addIssueRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type castVoteRequest struct {
	Vote string `json:"vote"`
}

type revealResponse struct {
	Issue   models.Issue       `json:"issue"`
	Summary models.VoteSummary `json:"summary"`
}

func (s *Service) handleGetSession(w http.ResponseWriter, r *http.Request) {
	projectID, callerID, ok := s.projectCaller(w, r)
	if !ok {
		return
	}

	session, err := s.app.GetSession(r.Context(), projectID, callerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Service) handleAddIssue(w http.ResponseWriter, r *http.Request) {
	projectID, callerID, ok := s.projectCaller(w, r)
	if !ok {
		return
	}

	var req addIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	issue, err := s.app.AddIssue(r.Context(), projectID, callerID, req.Title, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (s *Service) handleCastVote(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, callerID, ok := s.issueCaller(w, r)
	if !ok {
		return
	}

	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.app.CastVote(r.Context(), projectID, issueID, callerID, req.Vote); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleReveal(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, callerID, ok := s.issueCaller(w, r)
	if !ok {
		return
	}

	issue, summary, err := s.app.RevealVotes(r.Context(), projectID, issueID, callerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, revealResponse{Issue: issue, Summary: summary})
}

func (s *Service) handleRevote(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, callerID, ok := s.issueCaller(w, r)
	if !ok {
		return
	}

	if err := s.app.RequestRevote(r.Context(), projectID, issueID, callerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleDeleteIssue(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, callerID, ok := s.issueCaller(w, r)
	if !ok {
		return
	}

	if err := s.app.DeleteIssue(r.Context(), projectID, issueID, callerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleValidateIssue(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, callerID, ok := s.issueCaller(w, r)
	if !ok {
		return
	}

	var req ValidateIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FinalEstimate == "" {
		http.Error(w, "final_estimate is required", http.StatusBadRequest)
		return
	}

	if err := s.app.ValidateIssue(r.Context(), projectID, issueID, callerID, req); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// projectCaller extracts the project ID path segment and the caller identity.
func (s *Service) projectCaller(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	projectID, err := uuid.Parse(r.PathValue("projectID"))
	if err != nil {
		http.Error(w, "invalid project ID", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	callerID, ok := CallerID(r)
	if !ok {
		http.Error(w, "caller identity is required", http.StatusUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	return projectID, callerID, true
}

func (s *Service) issueCaller(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, uuid.UUID, bool) {
	projectID, callerID, ok := s.projectCaller(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, uuid.Nil, false
	}
	issueID, err := uuid.Parse(r.PathValue("issueID"))
	if err != nil {
		http.Error(w, "invalid issue ID", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, uuid.Nil, false
	}
	return projectID, issueID, callerID, true
}

// CallerID resolves the authenticated caller from the request. Authentication
// is handled upstream; in production the identity arrives via the X-User-ID
// header set by the auth middleware, with a user_id query parameter accepted
// for development tooling.
func CallerID(r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		raw = r.URL.Query().Get("user_id")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrInvalidVote):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Error().Err(err).Msg("poker operation failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
