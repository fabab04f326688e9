package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/saint0x/gitfix/pkg/log"
)

// Generator turns conversation state into structured model decisions
type Generator struct {
	logger    *log.Logger
	completer Completer
	retry     RetryConfig
	metrics   *usageMetrics
}

// Option configures a Generator
type Option func(*Generator)

// WithRetryConfig overrides the default retry policy
func WithRetryConfig(cfg RetryConfig) Option {
	return func(g *Generator) { g.retry = cfg }
}

// New creates a new Generator instance
func New(logger *log.Logger, completer Completer, opts ...Option) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if completer == nil {
		return nil, errors.New("completer is required")
	}

	g := &Generator{
		logger:    logger,
		completer: completer,
		retry:     DefaultRetryConfig(),
		metrics:   newUsageMetrics(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}
	return g, nil
}

// complete performs one schema-constrained call and decodes the result into T
func complete[T any](ctx context.Context, g *Generator, name, description, system string, messages []Message) (T, error) {
	var zero T
	req := &Request{
		System:            system,
		Messages:          messages,
		SchemaName:        name,
		SchemaDescription: description,
		Schema:            ReflectType[T](),
	}

	resp, err := retryWithBackoff(ctx, g.retry, name, isRetryable, func() (*Response, error) {
		return g.completer.Complete(ctx, req)
	})
	var usage Usage
	if resp != nil {
		usage = resp.Usage
	}
	g.metrics.record(ctx, g.completer, name, usage, err)
	if err != nil {
		return zero, fmt.Errorf("failed to complete %s: %w", name, err)
	}

	g.logger.Debug("%s used %d prompt / %d completion tokens", name, usage.PromptTokens, usage.CompletionTokens)
	return decodeStrict[T](resp.Content)
}

// PlanRequest is the state the planner decides on
type PlanRequest struct {
	History    []Message
	UserPrompt string
	// Files are the paths the user referenced in this thread.
	Files []string
	// ActivePaths are paths with a previously proposed change.
	ActivePaths []string
}

// Plan asks the model whether to reply directly or to resolve the query
// against files.
func (g *Generator) Plan(ctx context.Context, req PlanRequest) (Command, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "User prompt: %s\n\n", req.UserPrompt)
	if len(req.Files) > 0 {
		b.WriteString("Referenced files:\n")
		for _, p := range req.Files {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	} else {
		b.WriteString("No files are referenced.\n")
	}
	if len(req.ActivePaths) > 0 {
		b.WriteString("\nFiles with a change proposed earlier in this conversation:\n")
		for _, p := range req.ActivePaths {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	messages := append(append([]Message{}, req.History...), Message{Role: RoleUser, Content: b.String()})
	res, err := complete[planResult](ctx, g, "plan", "Decide how to handle the user's message", planSystemPrompt, messages)
	if err != nil {
		return nil, err
	}

	switch res.Action {
	case "reply":
		if strings.TrimSpace(res.Reply) == "" {
			return nil, fmt.Errorf("%w: empty reply", ErrContractViolation)
		}
		return ReplyCommand{Text: res.Reply}, nil
	case ToolFetchFilesAndResolveQuery:
		basis := ChangeBasis(res.ChangeBasis)
		if basis == "" {
			basis = BasisNew
		}
		if !basis.Valid() {
			return nil, fmt.Errorf("%w: change basis %q", ErrContractViolation, res.ChangeBasis)
		}
		query := res.Query
		if strings.TrimSpace(query) == "" {
			query = req.UserPrompt
		}
		g.logger.Step("Planner invoked %s (%s) for %d file(s)", ToolFetchFilesAndResolveQuery, basis, len(res.Paths))
		return ResolveCommand{Query: query, Paths: res.Paths, Basis: basis}, nil
	default:
		return nil, fmt.Errorf("%w: action %q", ErrContractViolation, res.Action)
	}
}

// ClassifyFile is one file presented to the classifier
type ClassifyFile struct {
	Path     string
	Original string
	// Modified is the previously proposed content, set only when it is the
	// edit basis.
	Modified *string
}

// ClassifyRequest is a resolve query against a set of files
type ClassifyRequest struct {
	Instruction string
	History     []Message
	Files       []ClassifyFile
}

func buildClassifyPrompt(req ClassifyRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n", req.Instruction)
	for _, f := range req.Files {
		fmt.Fprintf(&b, "\n---\nFile: %s\n\nORIGINAL_CONTENT:\n%s\n", f.Path, f.Original)
		if f.Modified != nil {
			fmt.Fprintf(&b, "\nPREVIOUSLY_MODIFIED_CONTENT:\n%s\n", *f.Modified)
		}
	}
	if len(req.Files) > 0 {
		b.WriteString("---\n")
	}
	return b.String()
}

// Classify resolves the instruction and returns either a text answer or a
// set of full-file edits.
func (g *Generator) Classify(ctx context.Context, req ClassifyRequest) (Decision, error) {
	known := make(map[string]bool, len(req.Files))
	for _, f := range req.Files {
		known[f.Path] = true
	}

	messages := append(append([]Message{}, req.History...), Message{Role: RoleUser, Content: buildClassifyPrompt(req)})
	res, err := complete[classifyResult](ctx, g, "resolve", "Answer as text or as a diff of full file contents", classifySystemPrompt, messages)
	if err != nil {
		return nil, err
	}

	switch res.Kind {
	case "text":
		if strings.TrimSpace(res.Body) == "" {
			return nil, fmt.Errorf("%w: empty text body", ErrContractViolation)
		}
		return TextDecision{Body: res.Body}, nil
	case "diff":
		if len(res.Files) == 0 {
			return nil, fmt.Errorf("%w: diff without files", ErrContractViolation)
		}
		seen := make(map[string]bool, len(res.Files))
		edits := make([]Edit, 0, len(res.Files))
		for _, f := range res.Files {
			if !known[f.Path] {
				return nil, fmt.Errorf("%w: diff names unknown path %q", ErrContractViolation, f.Path)
			}
			if seen[f.Path] {
				return nil, fmt.Errorf("%w: diff names %q twice", ErrContractViolation, f.Path)
			}
			seen[f.Path] = true
			edits = append(edits, Edit{Path: f.Path, NewContent: f.NewContent})
		}
		return DiffDecision{Edits: edits}, nil
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrContractViolation, res.Kind)
	}
}

// GenerateCommitMessage produces a conventional-commit title, commit message
// and PR description from the changed paths.
func (g *Generator) GenerateCommitMessage(ctx context.Context, paths []string) (*PRContent, error) {
	if len(paths) == 0 {
		return nil, errors.New("no changed paths")
	}

	var b strings.Builder
	b.WriteString("Changed files:\n")
	for _, p := range paths {
		fmt.Fprintf(&b, "- %s\n", p)
	}

	pr, err := complete[PRContent](ctx, g, "commit_message", "Commit and pull request text", commitSystemPrompt, []Message{{Role: RoleUser, Content: b.String()}})
	if err != nil {
		return nil, err
	}

	pr.Title = strings.TrimSpace(strings.SplitN(pr.Title, "\n", 2)[0])
	if pr.Title == "" {
		return nil, fmt.Errorf("%w: empty title", ErrContractViolation)
	}
	if strings.TrimSpace(pr.CommitMessage) == "" {
		pr.CommitMessage = pr.Title
	}
	return &pr, nil
}
