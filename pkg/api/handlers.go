package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odvcencio/uplift/pkg/config"
	"github.com/odvcencio/uplift/pkg/experiment"
	"github.com/odvcencio/uplift/pkg/logging"
	"github.com/odvcencio/uplift/pkg/telemetry"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type createExperimentRequest struct {
	RepoURL string `json:"repoUrl"`
	Goal    string `json:"goal"`
}

func (s *Server) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	var req createExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.RepoURL = strings.TrimSpace(req.RepoURL)
	req.Goal = strings.TrimSpace(req.Goal)
	if req.RepoURL == "" || req.Goal == "" {
		writeError(w, http.StatusBadRequest, "repoUrl and goal are required")
		return
	}

	exp, err := s.submitter.SubmitExperiment(r.Context(), req.RepoURL, req.Goal)
	if err != nil {
		s.logger.Error(logging.CategoryAPI, "experiment_submit", err.Error(), nil)
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, exp)
}

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	experiments, err := s.store.ListExperiments(s.listLimit(r))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, experiments)
}

func (s *Server) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := s.store.GetExperiment(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleGetVariant(w http.ResponseWriter, r *http.Request) {
	variant, err := s.store.GetVariant(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, variant)
}

func (s *Server) handleListVariants(w http.ResponseWriter, r *http.Request) {
	variants, err := s.store.ListVariantsByExperiment(chi.URLParam(r, "experimentID"))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, variants)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.store.GetAgent(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleListAgentsByVariant(w http.ResponseWriter, r *http.Request) {
	agents, err := s.store.ListAgentsByVariant(chi.URLParam(r, "variantID"))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *Server) handleListAgentsByExperiment(w http.ResponseWriter, r *http.Request) {
	agents, err := s.store.ListAgentsByExperiment(chi.URLParam(r, "experimentID"))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *Server) handleGetCodeAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.store.GetCodeAgent(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleListCodeAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.store.ListCodeAgentsByExperiment(chi.URLParam(r, "experimentID"))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

// handleCodeAgentResults is the callback contract for the remote runner. It
// accepts any subset of fields; absent fields leave the record untouched.
func (s *Server) handleCodeAgentResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var update experiment.CodeAgentUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	agent, err := s.store.ApplyCodeAgentUpdate(id, update)
	if err != nil {
		s.logger.Error(logging.CategoryAPI, "code_agent_results", err.Error(), map[string]any{
			"code_agent_id": id,
		})
		writeError(w, statusForError(err), err.Error())
		return
	}

	s.hub.Publish(telemetry.Event{
		Type:         telemetry.EventCodeAgentReported,
		ExperimentID: agent.ExperimentID,
		VariantID:    agent.VariantID,
		Data:         map[string]any{"codeAgentId": agent.ID, "status": string(agent.Status)},
	})
	s.logger.Info(logging.CategoryCodeAgent, "results_reported", id, map[string]any{
		"status": string(agent.Status),
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) listLimit(r *http.Request) int {
	limit := s.cfg.ListLimit
	if limit <= 0 {
		limit = config.DefaultListLimit
	}
	maxLimit := s.cfg.MaxListLimit
	if maxLimit <= 0 {
		maxLimit = config.DefaultMaxListLimit
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
