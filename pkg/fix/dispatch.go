package fix

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/saint0x/gitfix/pkg/ai"
	"github.com/saint0x/gitfix/pkg/ledger"
	"github.com/saint0x/gitfix/pkg/log"
)

// Planner decides whether a turn needs the resolve tool
type Planner interface {
	Plan(ctx context.Context, req ai.PlanRequest) (ai.Command, error)
}

// Resolver is the tool the planner can invoke
type Resolver interface {
	Resolve(ctx context.Context, blobs BlobSource, req Request) (Proposal, error)
}

// Turn is one user message with the files referenced in the thread
type Turn struct {
	ThreadID   string
	Owner      string
	Repo       string
	UserPrompt string
	Files      []FileReference
	History    []ai.Message
	// Basis overrides the planner's change basis when set.
	Basis    ai.ChangeBasis
	Progress func(Stage)
}

// Outcome is the answer to a turn. Tool is empty when the planner replied
// directly and ai.ToolFetchFilesAndResolveQuery otherwise.
type Outcome struct {
	Tool     string
	Proposal Proposal
}

// Dispatcher routes a planned Command to its handler
type Dispatcher struct {
	logger   *log.Logger
	planner  Planner
	resolver Resolver
	ledger   ledger.Store
}

// NewDispatcher creates a new Dispatcher. The engine doubles as the source
// of the thread's active paths.
func NewDispatcher(logger *log.Logger, planner Planner, engine *Engine) (*Dispatcher, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if planner == nil {
		return nil, errors.New("planner is required")
	}
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	return &Dispatcher{
		logger:   logger,
		planner:  planner,
		resolver: engine,
		ledger:   engine.ledger,
	}, nil
}

// Run plans the turn and executes the resulting command.
func (d *Dispatcher) Run(ctx context.Context, blobs BlobSource, turn Turn) (*Outcome, error) {
	if turn.Basis != "" && !turn.Basis.Valid() {
		return nil, fmt.Errorf("%w: change basis %q", ErrInvalidRequest, turn.Basis)
	}
	if turn.Progress != nil {
		turn.Progress(StagePlanning)
	}

	active, err := d.ledger.GetActiveChanges(ctx, turn.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("failed to read active changes: %w", err)
	}
	paths := make([]string, len(turn.Files))
	for i, f := range turn.Files {
		paths[i] = f.Path
	}
	activePaths := make([]string, 0, len(active))
	for p := range active {
		activePaths = append(activePaths, p)
	}
	slices.Sort(activePaths)

	cmd, err := d.planner.Plan(ctx, ai.PlanRequest{
		History:     turn.History,
		UserPrompt:  turn.UserPrompt,
		Files:       paths,
		ActivePaths: activePaths,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to plan turn: %w", err)
	}

	switch c := cmd.(type) {
	case ai.ReplyCommand:
		d.logger.Debug("Planner replied directly for thread %s", turn.ThreadID)
		return &Outcome{Proposal: TextResponse{Body: c.Text}}, nil
	case ai.ResolveCommand:
		files, err := selectFiles(turn.Files, c.Paths)
		if err != nil {
			return nil, err
		}
		basis := turn.Basis
		if basis == "" {
			basis = c.Basis
		}
		proposal, err := d.resolver.Resolve(ctx, blobs, Request{
			ThreadID:    turn.ThreadID,
			Owner:       turn.Owner,
			Repo:        turn.Repo,
			Instruction: c.Query,
			Files:       files,
			Basis:       basis,
			History:     turn.History,
			Progress:    turn.Progress,
		})
		if err != nil {
			return nil, err
		}
		return &Outcome{Tool: ai.ToolFetchFilesAndResolveQuery, Proposal: proposal}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected command %T", ai.ErrContractViolation, cmd)
	}
}

// selectFiles narrows the referenced files to the named paths; no names
// means every referenced file.
func selectFiles(refs []FileReference, paths []string) ([]FileReference, error) {
	if len(paths) == 0 {
		return refs, nil
	}
	byPath := make(map[string]FileReference, len(refs))
	for _, r := range refs {
		byPath[r.Path] = r
	}
	out := make([]FileReference, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		ref, ok := byPath[p]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFile, p)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, ref)
	}
	return out, nil
}
