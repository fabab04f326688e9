package ai

import (
	"context"
	"errors"

	"github.com/invopop/jsonschema"
)

// ErrContractViolation is returned when the model answers with a shape that
// matches none of the allowed variants.
var ErrContractViolation = errors.New("completion provider returned an unrecognized result")

// Role of a conversation message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn sent to the model
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChangeBasis selects which content a proposal is generated against
type ChangeBasis string

const (
	// BasisIncremental edits the previously proposed content when one exists.
	BasisIncremental ChangeBasis = "incremental"
	// BasisNew always edits the original repository content.
	BasisNew ChangeBasis = "new"
)

// Valid reports whether b is a known basis
func (b ChangeBasis) Valid() bool {
	return b == BasisIncremental || b == BasisNew
}

// PRContent represents generated commit and PR text
type PRContent struct {
	Title         string `json:"title" jsonschema:"required,description=Conventional commit style title such as fix(api): handle empty body"`
	CommitMessage string `json:"commitMessage" jsonschema:"required,description=Full commit message: the title line then a blank line then a short body"`
	Description   string `json:"description" jsonschema:"required,description=Markdown pull request description"`
}

// Request is a single structured completion call
type Request struct {
	System   string
	Messages []Message

	// SchemaName names the structured output (used as tool / format name).
	SchemaName        string
	SchemaDescription string
	Schema            *jsonschema.Schema
}

// Usage reports token consumption of one call
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

// Response holds the raw JSON produced for the requested schema
type Response struct {
	Content string
	Usage   Usage
}

// Completer is a hosted model able to answer with JSON matching a schema
type Completer interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Provider() string
	Model() string
}
