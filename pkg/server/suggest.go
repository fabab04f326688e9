package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/saint0x/gitfix/pkg/ai"
	"github.com/saint0x/gitfix/pkg/fix"
	"github.com/saint0x/gitfix/pkg/log"
)

type suggestRequest struct {
	ThreadID      string              `json:"threadId"`
	TurnID        string              `json:"turnId"`
	Owner         string              `json:"owner"`
	Repo          string              `json:"repo"`
	UserPrompt    string              `json:"userPrompt"`
	Files         []fix.FileReference `json:"files"`
	Messages      []ai.Message        `json:"messages"`
	ActiveChanges map[string]string   `json:"activeChanges"`
	ChangeBasis   ai.ChangeBasis      `json:"changeBasis"`
}

// history keeps the user and assistant messages with content
func history(messages []ai.Message) []ai.Message {
	out := make([]ai.Message, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		switch m.Role {
		case ai.RoleUser, ai.RoleAssistant:
			out = append(out, m)
		}
	}
	return out
}

// eventStream writes server-sent events
type eventStream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newEventStream(w http.ResponseWriter) *eventStream {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return &eventStream{w: w, rc: http.NewResponseController(w)}
}

func (e *eventStream) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return e.rc.Flush()
}

type toolInvocation struct {
	ToolName string       `json:"toolName"`
	State    string       `json:"state"`
	Result   fix.Proposal `json:"result"`
}

// handleSuggestFix runs one chat turn and streams the outcome
func (s *Server) handleSuggestFix(w http.ResponseWriter, r *http.Request) {
	id, ok := parseInstallationID(r.Header.Get("x-installation-id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "x-installation-id header is required")
		return
	}

	var req suggestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Owner == "" || req.Repo == "" {
		writeError(w, http.StatusBadRequest, "owner and repo are required")
		return
	}
	if strings.TrimSpace(req.UserPrompt) == "" {
		writeError(w, http.StatusBadRequest, "userPrompt is required")
		return
	}
	if req.ChangeBasis != "" && !req.ChangeBasis.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("changeBasis must be %q or %q", ai.BasisIncremental, ai.BasisNew))
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = uuid.NewString()
	}

	ctx := r.Context()
	logger := log.FromContext(ctx, s.logger).With("thread", req.ThreadID)

	inst, err := s.deps.SourceControl.ForInstallation(ctx, id)
	if err != nil {
		s.fail(w, r, "Failed to suggest fix", err, http.StatusBadGateway)
		return
	}

	if req.ActiveChanges != nil {
		if err := s.deps.Ledger.SetActiveChanges(ctx, req.ThreadID, req.ActiveChanges); err != nil {
			s.fail(w, r, "Failed to suggest fix", err, http.StatusInternalServerError)
			return
		}
	}

	stream := newEventStream(w)
	send := func(event string, data any) {
		if err := stream.send(event, data); err != nil {
			logger.Debug("Dropped %s event: %v", event, err)
		}
	}
	send("start", map[string]string{"threadId": req.ThreadID, "turnId": req.TurnID})

	outcome, err := s.deps.Assistant.Run(ctx, inst, fix.Turn{
		ThreadID:   req.ThreadID,
		Owner:      req.Owner,
		Repo:       req.Repo,
		UserPrompt: req.UserPrompt,
		Files:      req.Files,
		History:    history(req.Messages),
		Basis:      req.ChangeBasis,
		Progress: func(stage fix.Stage) {
			send("status", map[string]fix.Stage{"stage": stage})
		},
	})
	if err != nil {
		proposals.WithLabelValues("error").Inc()
		logger.Error("Failed to suggest fix: %v", err)
		send("error", errorResponse{Error: err.Error()})
		send("finish", map[string]string{"threadId": req.ThreadID})
		return
	}

	switch p := outcome.Proposal.(type) {
	case fix.TextResponse:
		proposals.WithLabelValues("text").Inc()
		if outcome.Tool == "" {
			send("text", map[string]string{"body": p.Body})
		} else {
			send("tool-invocation", toolInvocation{ToolName: outcome.Tool, State: "result", Result: p})
		}
	case fix.DiffProposal:
		proposals.WithLabelValues("diff").Inc()
		logger.Diff("Streaming diff for %d file(s)", len(p.Files))
		send("tool-invocation", toolInvocation{ToolName: outcome.Tool, State: "result", Result: p})
	default:
		proposals.WithLabelValues("error").Inc()
		send("error", errorResponse{Error: fmt.Sprintf("unexpected proposal %T", outcome.Proposal)})
	}
	send("finish", map[string]string{"threadId": req.ThreadID})
}
