// Package fix resolves a user's instruction against repository files into
// either a text answer or a set of proposed file contents, and tracks the
// latest proposal per thread in the ledger.
package fix

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"golang.org/x/sync/errgroup"

	"github.com/saint0x/gitfix/pkg/ai"
	"github.com/saint0x/gitfix/pkg/ledger"
	"github.com/saint0x/gitfix/pkg/log"
)

var (
	// ErrInvalidRequest is returned for malformed resolve input.
	ErrInvalidRequest = errors.New("invalid resolve request")
	// ErrUnknownFile is returned when a file is requested that the turn did
	// not reference.
	ErrUnknownFile = errors.New("file is not referenced")
)

// BlobSource reads original file content by blob id
type BlobSource interface {
	GetBlobContent(ctx context.Context, owner, repo, sha string) (string, error)
}

// Classifier turns an instruction plus file contents into a decision
type Classifier interface {
	Classify(ctx context.Context, req ai.ClassifyRequest) (ai.Decision, error)
}

// Stage names a step of a turn, reported through a progress callback
type Stage string

const (
	StagePlanning  Stage = "planning"
	StageFetching  Stage = "fetching"
	StageResolving Stage = "resolving"
)

// Request is one fetch-and-resolve call
type Request struct {
	ThreadID    string
	Owner       string
	Repo        string
	Instruction string
	Files       []FileReference
	Basis       ai.ChangeBasis
	History     []ai.Message
	// Progress, when set, is called as the request moves between stages.
	Progress func(Stage)
}

func (r Request) report(s Stage) {
	if r.Progress != nil {
		r.Progress(s)
	}
}

var _ ledger.Store = (*Engine)(nil)

// Engine implements fetchFilesAndResolveQuery. It is also the ledger
// writers outside a resolve go through.
type Engine struct {
	logger     *log.Logger
	classifier Classifier
	ledger     ledger.Store
	locks      *threadLocks
}

// NewEngine creates a new Engine
func NewEngine(logger *log.Logger, classifier Classifier, store ledger.Store) (*Engine, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if store == nil {
		return nil, errors.New("ledger is required")
	}
	return &Engine{
		logger:     logger,
		classifier: classifier,
		ledger:     store,
		locks:      newThreadLocks(),
	}, nil
}

// Resolve fetches every referenced file, picks the edit basis per file and
// asks the classifier for one decision. A diff is written to the ledger
// only after the classifier has answered.
func (e *Engine) Resolve(ctx context.Context, blobs BlobSource, req Request) (Proposal, error) {
	if req.ThreadID == "" {
		return nil, ledger.ErrInvalidThread
	}
	if req.Owner == "" || req.Repo == "" {
		return nil, fmt.Errorf("%w: owner and repo are required", ErrInvalidRequest)
	}
	if blobs == nil {
		return nil, errors.New("blob source is required")
	}
	basis := req.Basis
	if basis == "" {
		basis = ai.BasisNew
	}
	if !basis.Valid() {
		return nil, fmt.Errorf("%w: change basis %q", ErrInvalidRequest, req.Basis)
	}

	if err := validateRefs(req.Files); err != nil {
		return nil, err
	}

	req.report(StageFetching)
	originals, err := fetchAll(ctx, blobs, req.Owner, req.Repo, req.Files)
	if err != nil {
		return nil, err
	}

	active, err := e.ledger.GetActiveChanges(ctx, req.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("failed to read active changes: %w", err)
	}

	files := make([]ai.ClassifyFile, len(req.Files))
	editBasis := make(map[string]string, len(req.Files))
	for i, ref := range req.Files {
		files[i] = ai.ClassifyFile{Path: ref.Path, Original: originals[i]}
		editBasis[ref.Path] = originals[i]
		if basis != ai.BasisIncremental {
			continue
		}
		if modified, ok := active[ref.Path]; ok {
			files[i].Modified = &modified
			editBasis[ref.Path] = modified
		}
	}

	req.report(StageResolving)
	e.logger.Step("Resolving %d file(s) for thread %s (%s)", len(files), req.ThreadID, basis)
	decision, err := e.classifier.Classify(ctx, ai.ClassifyRequest{
		Instruction: req.Instruction,
		History:     req.History,
		Files:       files,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve query: %w", err)
	}

	switch d := decision.(type) {
	case ai.TextDecision:
		return TextResponse{Body: d.Body}, nil
	case ai.DiffDecision:
		proposal := DiffProposal{Files: make([]FileChange, 0, len(d.Edits))}
		touched := make(map[string]string, len(d.Edits))
		for _, edit := range d.Edits {
			before := editBasis[edit.Path]
			proposal.Files = append(proposal.Files, FileChange{
				Path:            edit.Path,
				OriginalContent: before,
				NewContent:      edit.NewContent,
				Preview:         Preview(edit.Path, before, edit.NewContent),
			})
			touched[edit.Path] = edit.NewContent
		}
		if err := e.upsert(ctx, req.ThreadID, touched); err != nil {
			return nil, err
		}
		e.logger.Diff("Proposed changes to %d file(s)", len(proposal.Files))
		return proposal, nil
	default:
		return nil, fmt.Errorf("%w: unexpected decision %T", ai.ErrContractViolation, decision)
	}
}

// upsert overwrites the touched paths in the thread's ledger, leaving
// other paths as they were.
func (e *Engine) upsert(ctx context.Context, threadID string, touched map[string]string) error {
	unlock := e.locks.lock(threadID)
	defer unlock()

	current, err := e.ledger.GetActiveChanges(ctx, threadID)
	if err != nil {
		return fmt.Errorf("failed to read active changes: %w", err)
	}
	merged := make(map[string]string, len(current)+len(touched))
	maps.Copy(merged, current)
	maps.Copy(merged, touched)
	if err := e.ledger.SetActiveChanges(ctx, threadID, merged); err != nil {
		return fmt.Errorf("failed to write active changes: %w", err)
	}
	return nil
}

// SetActiveChanges replaces the thread's ledger under the same lock that
// guards a resolve's merge, so a client snapshot never interleaves with it.
func (e *Engine) SetActiveChanges(ctx context.Context, threadID string, changes map[string]string) error {
	unlock := e.locks.lock(threadID)
	defer unlock()
	return e.ledger.SetActiveChanges(ctx, threadID, changes)
}

func (e *Engine) GetActiveChanges(ctx context.Context, threadID string) (map[string]string, error) {
	return e.ledger.GetActiveChanges(ctx, threadID)
}

func (e *Engine) ClearActiveChanges(ctx context.Context, threadID string) error {
	unlock := e.locks.lock(threadID)
	defer unlock()
	return e.ledger.ClearActiveChanges(ctx, threadID)
}

func validateRefs(refs []FileReference) error {
	seen := make(map[string]bool, len(refs))
	for i, ref := range refs {
		if ref.Path == "" || ref.BlobID == "" {
			return fmt.Errorf("%w: file reference %d needs a path and a blob id", ErrInvalidRequest, i)
		}
		if seen[ref.Path] {
			return fmt.Errorf("%w: file %s is referenced twice", ErrInvalidRequest, ref.Path)
		}
		seen[ref.Path] = true
	}
	return nil
}

// fetchAll reads every file concurrently; the first failure cancels the rest
func fetchAll(ctx context.Context, blobs BlobSource, owner, repo string, refs []FileReference) ([]string, error) {
	contents := make([]string, len(refs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, ref := range refs {
		g.Go(func() error {
			content, err := blobs.GetBlobContent(ctx, owner, repo, ref.BlobID)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", ref.Path, err)
			}
			contents[i] = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return contents, nil
}
