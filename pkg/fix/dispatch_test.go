package fix

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/saint0x/gitfix/pkg/ai"
	"github.com/saint0x/gitfix/pkg/ledger"
	"github.com/saint0x/gitfix/pkg/log"
)

type mockPlanner struct {
	cmd      ai.Command
	err      error
	requests []ai.PlanRequest
}

func (m *mockPlanner) Plan(_ context.Context, req ai.PlanRequest) (ai.Command, error) {
	m.requests = append(m.requests, req)
	return m.cmd, m.err
}

func setupDispatcher(t *testing.T, cmd ai.Command, decision ai.Decision) (*Dispatcher, *mockPlanner, *mockClassifier, ledger.Store) {
	t.Helper()
	e, classifier, store := setupEngine(t, decision)
	planner := &mockPlanner{cmd: cmd}
	d, err := NewDispatcher(log.New(false), planner, e)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	return d, planner, classifier, store
}

func TestRunReply(t *testing.T) {
	d, _, classifier, _ := setupDispatcher(t, ai.ReplyCommand{Text: "hello"}, nil)
	blobs := &mockBlobs{}

	got, err := d.Run(context.Background(), blobs, Turn{ThreadID: "t", Owner: "o", Repo: "r", UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := &Outcome{Proposal: TextResponse{Body: "hello"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}
	if len(classifier.requests) != 0 || len(blobs.calls) != 0 {
		t.Error("Reply should not fetch or classify")
	}
}

func TestRunResolve(t *testing.T) {
	files := []FileReference{{Path: "a.ts", BlobID: "sa"}, {Path: "b.ts", BlobID: "sb"}}

	tests := []struct {
		name       string
		cmd        ai.ResolveCommand
		turnBasis  ai.ChangeBasis
		wantPaths  []string
		wantModify bool
	}{
		{
			name:      "no paths means all files",
			cmd:       ai.ResolveCommand{Query: "fix", Basis: ai.BasisNew},
			wantPaths: []string{"a.ts", "b.ts"},
		},
		{
			name:       "planner basis is used",
			cmd:        ai.ResolveCommand{Query: "fix", Paths: []string{"a.ts"}, Basis: ai.BasisIncremental},
			wantPaths:  []string{"a.ts"},
			wantModify: true,
		},
		{
			name:      "client basis overrides planner",
			cmd:       ai.ResolveCommand{Query: "fix", Paths: []string{"a.ts", "a.ts"}, Basis: ai.BasisIncremental},
			turnBasis: ai.BasisNew,
			wantPaths: []string{"a.ts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, planner, classifier, store := setupDispatcher(t, tt.cmd, ai.TextDecision{Body: "ok"})
			ctx := context.Background()
			_ = store.SetActiveChanges(ctx, "t", map[string]string{"a.ts": "prev"})

			var stages []Stage
			got, err := d.Run(ctx, &mockBlobs{content: map[string]string{"sa": "a", "sb": "b"}}, Turn{
				ThreadID: "t", Owner: "o", Repo: "r",
				UserPrompt: "please fix",
				Files:      files,
				Basis:      tt.turnBasis,
				Progress:   func(s Stage) { stages = append(stages, s) },
			})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got.Tool != ai.ToolFetchFilesAndResolveQuery {
				t.Errorf("Tool = %q", got.Tool)
			}

			if diff := cmp.Diff([]string{"a.ts"}, planner.requests[0].ActivePaths); diff != "" {
				t.Errorf("ActivePaths mismatch (-want +got):\n%s", diff)
			}

			req := classifier.requests[0]
			if req.Instruction != "fix" {
				t.Errorf("Instruction = %q, want planner query", req.Instruction)
			}
			var paths []string
			modified := false
			for _, f := range req.Files {
				paths = append(paths, f.Path)
				modified = modified || f.Modified != nil
			}
			if diff := cmp.Diff(tt.wantPaths, paths); diff != "" {
				t.Errorf("Paths mismatch (-want +got):\n%s", diff)
			}
			if modified != tt.wantModify {
				t.Errorf("Modified basis sent = %v, want %v", modified, tt.wantModify)
			}
			if diff := cmp.Diff([]Stage{StagePlanning, StageFetching, StageResolving}, stages); diff != "" {
				t.Errorf("Stages mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunErrors(t *testing.T) {
	planErr := errors.New("provider down")
	tests := []struct {
		name    string
		cmd     ai.Command
		planErr error
		basis   ai.ChangeBasis
		wantErr error
	}{
		{name: "plan failure", planErr: planErr, wantErr: planErr},
		{name: "unknown path", cmd: ai.ResolveCommand{Paths: []string{"z.ts"}, Basis: ai.BasisNew}, wantErr: ErrUnknownFile},
		{name: "bad client basis", cmd: ai.ReplyCommand{Text: "x"}, basis: "both", wantErr: ErrInvalidRequest},
		{name: "nil command", wantErr: ai.ErrContractViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, planner, _, _ := setupDispatcher(t, tt.cmd, ai.TextDecision{Body: "ok"})
			planner.err = tt.planErr

			_, err := d.Run(context.Background(), &mockBlobs{}, Turn{
				ThreadID: "t", Owner: "o", Repo: "r",
				Files: []FileReference{{Path: "a.ts", BlobID: "s"}},
				Basis: tt.basis,
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
