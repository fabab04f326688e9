package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v75/github"
	"github.com/saint0x/gitfix/pkg/log"
)

// ErrNotFound is returned when GitHub answers 404 for the requested object.
var ErrNotFound = errors.New("not found")

// Client is an installation-scoped GitHub gateway
type Client struct {
	client *github.Client
	logger *log.Logger
	labels []string
}

// TreeFile is one path to layer onto a base tree
type TreeFile struct {
	Path    string
	BlobSHA string
}

// PullRequest is the subset of a created pull request callers need
type PullRequest struct {
	Number int
	URL    string
}

// User identifies the owner of a user access token
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// NewFromClient wraps an existing go-github client
func NewFromClient(logger *log.Logger, gh *github.Client, labels []string) *Client {
	return &Client{
		client: gh,
		logger: logger,
		labels: labels,
	}
}

// wrap adds operation context and maps 404s to ErrNotFound
func wrap(op string, resp *github.Response, err error) error {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("failed to %s: %w: %v", op, ErrNotFound, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// GetBlobContent fetches a blob's raw content by sha
func (c *Client) GetBlobContent(ctx context.Context, owner, repo, sha string) (string, error) {
	data, resp, err := c.client.Git.GetBlobRaw(ctx, owner, repo, sha)
	if err != nil {
		return "", wrap("get blob "+sha, resp, err)
	}
	return string(data), nil
}

// GetBranchHeadSHA resolves a branch name to the commit it points at
func (c *Client) GetBranchHeadSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	ref, resp, err := c.client.Git.GetRef(ctx, owner, repo, "heads/"+strings.TrimPrefix(branch, "refs/heads/"))
	if err != nil {
		return "", wrap("get branch "+branch, resp, err)
	}
	sha := ref.GetObject().GetSHA()
	if sha == "" {
		return "", fmt.Errorf("branch %s has no commit", branch)
	}
	return sha, nil
}

// GetCommitTreeSHA returns the tree sha of a commit
func (c *Client) GetCommitTreeSHA(ctx context.Context, owner, repo, commitSHA string) (string, error) {
	commit, resp, err := c.client.Git.GetCommit(ctx, owner, repo, commitSHA)
	if err != nil {
		return "", wrap("get commit "+commitSHA, resp, err)
	}
	return commit.GetTree().GetSHA(), nil
}

// CreateBlob stores full file content and returns the blob sha
func (c *Client) CreateBlob(ctx context.Context, owner, repo, content string) (string, error) {
	blob, resp, err := c.client.Git.CreateBlob(ctx, owner, repo, github.Blob{
		Content:  github.Ptr(content),
		Encoding: github.Ptr("utf-8"),
	})
	if err != nil {
		return "", wrap("create blob", resp, err)
	}
	return blob.GetSHA(), nil
}

// CreateTree layers files onto baseTree and returns the new tree sha
func (c *Client) CreateTree(ctx context.Context, owner, repo, baseTree string, files []TreeFile) (string, error) {
	entries := make([]*github.TreeEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, &github.TreeEntry{
			Path: github.Ptr(f.Path),
			Mode: github.Ptr("100644"),
			Type: github.Ptr("blob"),
			SHA:  github.Ptr(f.BlobSHA),
		})
	}

	tree, resp, err := c.client.Git.CreateTree(ctx, owner, repo, baseTree, entries)
	if err != nil {
		return "", wrap("create tree", resp, err)
	}
	return tree.GetSHA(), nil
}

// CreateCommit creates a non-merge commit with a single parent
func (c *Client) CreateCommit(ctx context.Context, owner, repo, message, treeSHA, parentSHA string) (string, error) {
	commit, resp, err := c.client.Git.CreateCommit(ctx, owner, repo, github.Commit{
		Message: github.Ptr(message),
		Tree:    &github.Tree{SHA: github.Ptr(treeSHA)},
		Parents: []*github.Commit{{SHA: github.Ptr(parentSHA)}},
	}, nil)
	if err != nil {
		return "", wrap("create commit", resp, err)
	}
	return commit.GetSHA(), nil
}

// CreateBranch points a new heads/<branch> ref at sha
func (c *Client) CreateBranch(ctx context.Context, owner, repo, branch, sha string) error {
	_, resp, err := c.client.Git.CreateRef(ctx, owner, repo, github.CreateRef{
		Ref: "refs/heads/" + branch,
		SHA: sha,
	})
	if err != nil {
		return wrap("create branch "+branch, resp, err)
	}
	return nil
}

// CreatePullRequest opens a pull request and applies the configured labels
func (c *Client) CreatePullRequest(ctx context.Context, owner, repo, title, body, head, base string) (*PullRequest, error) {
	pr, resp, err := c.client.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
		Head:  github.Ptr(head),
		Base:  github.Ptr(base),
	})
	if err != nil {
		return nil, wrap("create PR", resp, err)
	}

	if len(c.labels) > 0 {
		// The PR exists at this point; a label failure is not a publish failure.
		if _, _, err := c.client.Issues.AddLabelsToIssue(ctx, owner, repo, pr.GetNumber(), c.labels); err != nil {
			c.logger.Warning("Failed to add labels to PR #%d: %v", pr.GetNumber(), err)
		}
	}

	return &PullRequest{Number: pr.GetNumber(), URL: pr.GetHTMLURL()}, nil
}

// GetBranches gets all branches for a repository
func (c *Client) GetBranches(ctx context.Context, owner, repo string) ([]*github.Branch, error) {
	var allBranches []*github.Branch
	opts := &github.BranchListOptions{
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	for {
		branches, resp, err := c.client.Repositories.ListBranches(ctx, owner, repo, opts)
		if err != nil {
			return nil, wrap("list branches", resp, err)
		}

		allBranches = append(allBranches, branches...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allBranches, nil
}

// GetTree fetches the recursive file tree at the head of branch
func (c *Client) GetTree(ctx context.Context, owner, repo, branch string) (*github.Tree, error) {
	b, resp, err := c.client.Repositories.GetBranch(ctx, owner, repo, branch, 1)
	if err != nil {
		return nil, wrap("get branch "+branch, resp, err)
	}

	sha := b.GetCommit().GetSHA()
	tree, resp, err := c.client.Git.GetTree(ctx, owner, repo, sha, true)
	if err != nil {
		return nil, wrap("get tree "+sha, resp, err)
	}
	return tree, nil
}

// ListRepos lists every repository the installation can access
func (c *Client) ListRepos(ctx context.Context) ([]*github.Repository, error) {
	var all []*github.Repository
	opts := &github.ListOptions{PerPage: 100}

	for {
		repos, resp, err := c.client.Apps.ListRepos(ctx, opts)
		if err != nil {
			return nil, wrap("list installation repositories", resp, err)
		}

		all = append(all, repos.Repositories...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// CurrentUser returns the user owning the client's token
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	u, resp, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return nil, wrap("get user", resp, err)
	}
	return &User{
		ID:    u.GetID(),
		Login: u.GetLogin(),
		Name:  u.GetName(),
		Email: u.GetEmail(),
	}, nil
}
