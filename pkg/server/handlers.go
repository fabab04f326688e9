package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/saint0x/gitfix/pkg/auth"
	"github.com/saint0x/gitfix/pkg/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type verifyTokenRequest struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
}

type verifyTokenResponse struct {
	JWTToken  string    `json:"jwtToken"`
	User      auth.User `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// handleVerifyToken exchanges a GitHub user token for an API token
func (s *Server) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req verifyTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	token := req.AccessToken
	if token == "" {
		token = req.Token
	}
	if token == "" {
		writeError(w, http.StatusBadRequest, "Access token is required")
		return
	}

	logger := log.FromContext(r.Context(), s.logger)
	gh, err := s.deps.SourceControl.VerifyUser(r.Context(), token)
	if err != nil {
		logger.Warning("GitHub token verification failed: %v", err)
		writeError(w, http.StatusUnauthorized, "Invalid GitHub token")
		return
	}

	user := auth.User{ID: gh.ID, Login: gh.Login, Email: gh.Email}
	jwtToken, expiresAt, err := s.deps.Tokens.Issue(user)
	if err != nil {
		s.fail(w, r, "Failed to verify token", err, http.StatusInternalServerError)
		return
	}

	logger.Success("Issued token for %s", user.Login)
	writeJSON(w, http.StatusOK, verifyTokenResponse{
		JWTToken:  jwtToken,
		User:      user,
		ExpiresAt: expiresAt.UTC(),
	})
}

func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	id, ok := parseInstallationID(r.PathValue("installationId"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid installationId")
		return
	}
	inst, err := s.deps.SourceControl.ForInstallation(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Failed to fetch repos", err, http.StatusInternalServerError)
		return
	}
	repos, err := inst.ListRepos(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to fetch repos", err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

func (s *Server) handleListBranches(w http.ResponseWriter, r *http.Request) {
	id, ok := parseInstallationID(r.URL.Query().Get("installationId"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid installationId")
		return
	}
	inst, err := s.deps.SourceControl.ForInstallation(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Failed to fetch branches", err, http.StatusInternalServerError)
		return
	}
	branches, err := inst.GetBranches(r.Context(), r.PathValue("owner"), r.PathValue("repo"))
	if err != nil {
		s.fail(w, r, "Failed to fetch branches", err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, branches)
}

type treeRequest struct {
	Branch         string      `json:"branch"`
	InstallationID json.Number `json:"installationId"`
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	var req treeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id, ok := parseInstallationID(req.InstallationID.String())
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid installationId")
		return
	}
	if strings.TrimSpace(req.Branch) == "" {
		writeError(w, http.StatusBadRequest, "Branch is required")
		return
	}

	inst, err := s.deps.SourceControl.ForInstallation(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Failed to fetch tree", err, http.StatusInternalServerError)
		return
	}
	tree, err := inst.GetTree(r.Context(), r.PathValue("owner"), r.PathValue("repo"), req.Branch)
	if err != nil {
		s.fail(w, r, "Failed to fetch tree", err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleGetActiveChanges(w http.ResponseWriter, r *http.Request) {
	changes, err := s.deps.Ledger.GetActiveChanges(r.Context(), r.PathValue("threadId"))
	if err != nil {
		s.fail(w, r, "Failed to read active changes", err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

// handlePutActiveChanges replaces the thread's ledger with the client's
// snapshot.
func (s *Server) handlePutActiveChanges(w http.ResponseWriter, r *http.Request) {
	var changes map[string]string
	if err := decodeJSON(w, r, &changes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	threadID := r.PathValue("threadId")
	if err := s.deps.Ledger.SetActiveChanges(r.Context(), threadID, changes); err != nil {
		s.fail(w, r, "Failed to write active changes", err, http.StatusInternalServerError)
		return
	}
	if changes == nil {
		changes = map[string]string{}
	}
	writeJSON(w, http.StatusOK, changes)
}

func (s *Server) handleGetPRLinks(w http.ResponseWriter, r *http.Request) {
	links, err := s.deps.Links.Links(r.Context(), r.PathValue("threadId"))
	if err != nil {
		s.fail(w, r, "Failed to read PR links", err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// handleDeleteThread tears down all per-thread state
func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("threadId")
	if err := s.deps.Ledger.ClearActiveChanges(r.Context(), threadID); err != nil {
		s.fail(w, r, "Failed to delete thread", err, http.StatusInternalServerError)
		return
	}
	if err := s.deps.Links.ClearThread(r.Context(), threadID); err != nil {
		s.fail(w, r, "Failed to delete thread", err, http.StatusInternalServerError)
		return
	}
	log.FromContext(r.Context(), s.logger).Info("Deleted thread %s", threadID)
	w.WriteHeader(http.StatusNoContent)
}
