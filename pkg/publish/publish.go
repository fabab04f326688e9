// Package publish turns an accepted set of file contents into one commit on
// a new branch and one pull request.
package publish

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/saint0x/gitfix/pkg/ai"
	"github.com/saint0x/gitfix/pkg/github"
	"github.com/saint0x/gitfix/pkg/log"
)

// ErrInvalidRequest is returned before any gateway call for malformed input.
var ErrInvalidRequest = errors.New("invalid commit request")

// Gateway is the subset of the source control gateway a publish needs
type Gateway interface {
	GetBranchHeadSHA(ctx context.Context, owner, repo, branch string) (string, error)
	GetCommitTreeSHA(ctx context.Context, owner, repo, commitSHA string) (string, error)
	CreateBlob(ctx context.Context, owner, repo, content string) (string, error)
	CreateTree(ctx context.Context, owner, repo, baseTree string, files []github.TreeFile) (string, error)
	CreateCommit(ctx context.Context, owner, repo, message, treeSHA, parentSHA string) (string, error)
	CreateBranch(ctx context.Context, owner, repo, branch, sha string) error
	CreatePullRequest(ctx context.Context, owner, repo, title, body, head, base string) (*github.PullRequest, error)
}

// CommitMessageGenerator writes the commit and pull request text
type CommitMessageGenerator interface {
	GenerateCommitMessage(ctx context.Context, paths []string) (*ai.PRContent, error)
}

// File is the full new content of one path
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// CommitRequest is one atomic publish. It is built per call and never
// retained.
type CommitRequest struct {
	Owner      string
	Repo       string
	BaseBranch string
	// HeadBranch is generated when empty.
	HeadBranch string
	Files      []File
}

// Result describes the opened pull request
type Result struct {
	PullRequestURL string `json:"pullRequestUrl"`
	Number         int    `json:"number"`
	Branch         string `json:"branch"`
	CommitSHA      string `json:"commitSha"`
}

// Pipeline runs the publish steps in order
type Pipeline struct {
	logger       *log.Logger
	messages     CommitMessageGenerator
	branchPrefix string
	now          func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithBranchPrefix sets the prefix of generated head branches
func WithBranchPrefix(prefix string) Option {
	return func(p *Pipeline) { p.branchPrefix = prefix }
}

// WithClock replaces the clock used to name generated branches
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a new Pipeline
func New(logger *log.Logger, messages CommitMessageGenerator, opts ...Option) (*Pipeline, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if messages == nil {
		return nil, errors.New("commit message generator is required")
	}
	p := &Pipeline{
		logger:       logger,
		messages:     messages,
		branchPrefix: "gitfix/",
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (req CommitRequest) validate() error {
	var errs []error
	if req.Owner == "" {
		errs = append(errs, errors.New("owner is required"))
	}
	if req.Repo == "" {
		errs = append(errs, errors.New("repo is required"))
	}
	if req.BaseBranch == "" {
		errs = append(errs, errors.New("base branch is required"))
	}
	if len(req.Files) == 0 {
		errs = append(errs, errors.New("at least one file is required"))
	}
	seen := make(map[string]bool, len(req.Files))
	for i, f := range req.Files {
		if f.Path == "" {
			errs = append(errs, fmt.Errorf("file %d has no path", i))
			continue
		}
		if seen[f.Path] {
			errs = append(errs, fmt.Errorf("file %s appears twice", f.Path))
		}
		seen[f.Path] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, errors.Join(errs...))
	}
	return nil
}

// Publish commits the files on top of the base branch, creates the head
// branch and opens a pull request. A failed step stops the pipeline; objects
// created by earlier steps are left in place.
func (p *Pipeline) Publish(ctx context.Context, gw Gateway, req CommitRequest) (*Result, error) {
	if gw == nil {
		return nil, errors.New("gateway is required")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	head := req.HeadBranch
	if head == "" {
		head = p.branchPrefix + strconv.FormatInt(p.now().UnixMilli(), 10)
	}
	owner, repo := req.Owner, req.Repo

	p.logger.Step("Publishing %d file(s) to %s/%s", len(req.Files), owner, repo)

	baseSHA, err := gw.GetBranchHeadSHA(ctx, owner, repo, req.BaseBranch)
	if err != nil {
		return nil, err
	}
	p.logger.Branch("Base %s at %s", req.BaseBranch, baseSHA)

	baseTree, err := gw.GetCommitTreeSHA(ctx, owner, repo, baseSHA)
	if err != nil {
		return nil, err
	}

	entries := make([]github.TreeFile, 0, len(req.Files))
	paths := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		sha, err := gw.CreateBlob(ctx, owner, repo, f.Content)
		if err != nil {
			return nil, err
		}
		entries = append(entries, github.TreeFile{Path: f.Path, BlobSHA: sha})
		paths = append(paths, f.Path)
	}

	treeSHA, err := gw.CreateTree(ctx, owner, repo, baseTree, entries)
	if err != nil {
		return nil, err
	}

	content, err := p.messages.GenerateCommitMessage(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("failed to generate commit message: %w", err)
	}

	commitSHA, err := gw.CreateCommit(ctx, owner, repo, content.CommitMessage, treeSHA, baseSHA)
	if err != nil {
		return nil, err
	}
	p.logger.Git("Created commit %s", commitSHA)

	if err := gw.CreateBranch(ctx, owner, repo, head, commitSHA); err != nil {
		return nil, err
	}
	p.logger.Branch("Created branch %s", head)

	pr, err := gw.CreatePullRequest(ctx, owner, repo, content.Title, content.Description, head, req.BaseBranch)
	if err != nil {
		return nil, err
	}
	p.logger.Success("Created PR #%d", pr.Number)
	p.logger.PR("URL: %s", pr.URL)

	return &Result{
		PullRequestURL: pr.URL,
		Number:         pr.Number,
		Branch:         head,
		CommitSHA:      commitSHA,
	}, nil
}
