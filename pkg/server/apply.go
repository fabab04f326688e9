package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/saint0x/gitfix/pkg/log"
	"github.com/saint0x/gitfix/pkg/publish"
)

// publishTimeout bounds a shared publish once it no longer follows the
// request context
const publishTimeout = 2 * time.Minute

type applyFile struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	NewContent string `json:"newContent"`
}

type applyRequest struct {
	ThreadID string      `json:"threadId"`
	TurnID   string      `json:"turnId"`
	Owner    string      `json:"owner"`
	Repo     string      `json:"repo"`
	Base     string      `json:"base"`
	Head     string      `json:"head"`
	Files    []applyFile `json:"files"`
}

type applyResponse struct {
	PullRequestURL string `json:"pullRequestUrl"`
	Number         int    `json:"number,omitempty"`
	Branch         string `json:"branch,omitempty"`
	Existing       bool   `json:"existing,omitempty"`
}

// handleApplyFix publishes accepted file contents as a pull request. A turn
// that already produced a pull request gets the recorded link back.
func (s *Server) handleApplyFix(w http.ResponseWriter, r *http.Request) {
	id, ok := parseInstallationID(r.Header.Get("x-installation-id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "x-installation-id header is required")
		return
	}

	var req applyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Base == "" {
		writeError(w, http.StatusBadRequest, "base is required")
		return
	}

	ctx := r.Context()
	logger := log.FromContext(ctx, s.logger)
	tracked := req.ThreadID != "" && req.TurnID != ""

	if tracked {
		url, ok, err := s.deps.Links.GetLink(ctx, req.ThreadID, req.TurnID)
		if err != nil {
			s.fail(w, r, "Failed to apply fix", err, http.StatusInternalServerError)
			return
		}
		if ok {
			publishes.WithLabelValues("existing").Inc()
			logger.PR("Turn %s already has %s", req.TurnID, url)
			writeJSON(w, http.StatusOK, applyResponse{PullRequestURL: url, Existing: true})
			return
		}
	}

	inst, err := s.deps.SourceControl.ForInstallation(ctx, id)
	if err != nil {
		s.fail(w, r, "Failed to apply fix", err, http.StatusBadGateway)
		return
	}

	files := make([]publish.File, len(req.Files))
	for i, f := range req.Files {
		content := f.Content
		if content == "" {
			content = f.NewContent
		}
		files[i] = publish.File{Path: f.Path, Content: content}
	}
	commit := publish.CommitRequest{
		Owner:      req.Owner,
		Repo:       req.Repo,
		BaseBranch: req.Base,
		HeadBranch: req.Head,
		Files:      files,
	}

	var v any
	if tracked {
		// concurrent requests for one turn share a single publish, which
		// outlives the request that started it
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		v, err, _ = s.publish.Do(req.ThreadID+"\x00"+req.TurnID, func() (any, error) {
			return s.publishTurn(pctx, logger, inst, req.ThreadID, req.TurnID, commit)
		})
	} else {
		v, err = s.deps.Publisher.Publish(ctx, inst, commit)
	}
	if err != nil {
		publishes.WithLabelValues("failed").Inc()
		s.fail(w, r, "Failed to apply fix", err, http.StatusBadGateway)
		return
	}

	var resp applyResponse
	switch res := v.(type) {
	case applyResponse:
		resp = res
	case *publish.Result:
		resp = applyResponse{PullRequestURL: res.PullRequestURL, Number: res.Number, Branch: res.Branch}
	}
	if resp.Existing {
		publishes.WithLabelValues("existing").Inc()
	} else {
		publishes.WithLabelValues("created").Inc()
		if u := userFrom(ctx); u != nil {
			logger.PR("Opened %s for %s", resp.PullRequestURL, u.Login)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// publishTurn publishes once per turn. The link is recorded before the
// shared call returns, so a later request for the same turn finds it.
func (s *Server) publishTurn(ctx context.Context, logger *log.Logger, inst Installation, threadID, turnID string, commit publish.CommitRequest) (applyResponse, error) {
	url, ok, err := s.deps.Links.GetLink(ctx, threadID, turnID)
	if err != nil {
		return applyResponse{}, fmt.Errorf("failed to read PR link: %w", err)
	}
	if ok {
		return applyResponse{PullRequestURL: url, Existing: true}, nil
	}

	res, err := s.deps.Publisher.Publish(ctx, inst, commit)
	if err != nil {
		return applyResponse{}, err
	}
	if err := s.deps.Links.SetLink(ctx, threadID, turnID, res.PullRequestURL); err != nil {
		logger.Warning("Failed to record PR link for turn %s: %v", turnID, err)
	}
	return applyResponse{
		PullRequestURL: res.PullRequestURL,
		Number:         res.Number,
		Branch:         res.Branch,
	}, nil
}
