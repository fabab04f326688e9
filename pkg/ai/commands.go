package ai

// ToolFetchFilesAndResolveQuery is the single capability the planner can invoke.
const ToolFetchFilesAndResolveQuery = "fetchFilesAndResolveQuery"

// Command is the planner's decision for a turn. Implementations are
// ReplyCommand and ResolveCommand; switch over them exhaustively.
type Command interface {
	isCommand()
}

// ReplyCommand answers the user directly without reading files.
type ReplyCommand struct {
	Text string
}

// ResolveCommand invokes fetchFilesAndResolveQuery.
type ResolveCommand struct {
	Query string
	// Paths restricts the referenced files to fetch; empty means all of them.
	Paths []string
	Basis ChangeBasis
}

func (ReplyCommand) isCommand()   {}
func (ResolveCommand) isCommand() {}

// Decision is the classified answer to a resolve request. Implementations
// are TextDecision and DiffDecision.
type Decision interface {
	isDecision()
}

// TextDecision is a plain-text answer.
type TextDecision struct {
	Body string
}

// DiffDecision proposes full replacement content for one or more files.
type DiffDecision struct {
	Edits []Edit
}

// Edit is the proposed full content of one file
type Edit struct {
	Path       string
	NewContent string
}

func (TextDecision) isDecision() {}
func (DiffDecision) isDecision() {}

// planResult is the wire shape of a Command
type planResult struct {
	Action      string   `json:"action" jsonschema:"required,enum=reply,enum=fetchFilesAndResolveQuery,description=reply to answer directly or fetchFilesAndResolveQuery to read and change files"`
	Reply       string   `json:"reply" jsonschema:"required,description=Answer text when action is reply otherwise empty"`
	Query       string   `json:"query" jsonschema:"required,description=Self-contained instruction for the file change when action is fetchFilesAndResolveQuery"`
	Paths       []string `json:"paths" jsonschema:"required,description=Referenced file paths needed for the query"`
	ChangeBasis string   `json:"changeBasis" jsonschema:"required,enum=incremental,enum=new,description=incremental to build on the previously proposed change or new to start from the repository content"`
}

// classifyResult is the wire shape of a Decision
type classifyResult struct {
	Kind  string       `json:"kind" jsonschema:"required,enum=text,enum=diff"`
	Body  string       `json:"body" jsonschema:"required,description=Answer text when kind is text otherwise empty"`
	Files []editResult `json:"files" jsonschema:"required,description=Changed files when kind is diff otherwise empty"`
}

type editResult struct {
	Path       string `json:"path" jsonschema:"required"`
	NewContent string `json:"newContent" jsonschema:"required,description=The complete new file content"`
}
