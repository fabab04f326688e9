package fix

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// FileReference points at a file in the repository by its blob id
type FileReference struct {
	Path   string `json:"path"`
	BlobID string `json:"blobId"`
}

// UnmarshalJSON accepts tree entries, which carry the blob id as "sha".
func (f *FileReference) UnmarshalJSON(data []byte) error {
	var raw struct {
		Path   string `json:"path"`
		BlobID string `json:"blobId"`
		SHA    string `json:"sha"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Path = raw.Path
	f.BlobID = raw.BlobID
	if f.BlobID == "" {
		f.BlobID = raw.SHA
	}
	return nil
}

// Proposal is the result of resolving one turn: a TextResponse or a
// DiffProposal, never both.
type Proposal interface {
	isProposal()
}

// TextResponse answers the user without changing files
type TextResponse struct {
	Body string
}

// DiffProposal carries the full new content of every changed file
type DiffProposal struct {
	Files []FileChange
}

// FileChange is one proposed file. OriginalContent is the edit basis the
// model saw, which is the ledger content on an incremental turn.
type FileChange struct {
	Path            string `json:"path"`
	OriginalContent string `json:"originalContent"`
	NewContent      string `json:"newContent"`
	Preview         string `json:"preview,omitempty"`
}

func (TextResponse) isProposal() {}
func (DiffProposal) isProposal() {}

func (t TextResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
		Body string `json:"body"`
	}{Kind: "text", Body: t.Body})
}

func (d DiffProposal) MarshalJSON() ([]byte, error) {
	files := d.Files
	if files == nil {
		files = []FileChange{}
	}
	return json.Marshal(struct {
		Kind  string       `json:"kind"`
		Files []FileChange `json:"files"`
	}{Kind: "diff", Files: files})
}

// DecodeProposal parses the wire form of a Proposal.
func DecodeProposal(data []byte) (Proposal, error) {
	var raw struct {
		Kind  string       `json:"kind"`
		Body  string       `json:"body"`
		Files []FileChange `json:"files"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode proposal: %w", err)
	}
	switch raw.Kind {
	case "text":
		return TextResponse{Body: raw.Body}, nil
	case "diff":
		if len(raw.Files) == 0 {
			return nil, errors.New("diff proposal has no files")
		}
		return DiffProposal{Files: raw.Files}, nil
	default:
		return nil, fmt.Errorf("unknown proposal kind %q", raw.Kind)
	}
}

// Preview renders a unified diff of one file for display.
func Preview(path, before, after string) string {
	if before == after {
		return ""
	}
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return out
}
