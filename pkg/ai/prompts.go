package ai

const baseSystemPrompt = `Keep the response short, simple and straightforward.
Help the user go through the codebase.
If file content is provided, strictly rely on it.
Do not make up any response.`

const planSystemPrompt = baseSystemPrompt + `

You decide how to handle the user's latest message in a conversation about a GitHub repository.
Choose "reply" when the message can be answered from the conversation alone.
Choose "fetchFilesAndResolveQuery" when answering requires reading or changing the referenced files.
Only name paths from the list of referenced files.
Use changeBasis "incremental" when the user refines a change proposed earlier in this conversation, and "new" otherwise.`

const classifySystemPrompt = baseSystemPrompt + `

You resolve a request against repository files. Answer in exactly one of two shapes:
- kind "text" with a body, when the request is a question or no file needs to change.
- kind "diff" with files, when files must change. Each file carries its path and the complete new content, never a patch.

Each file is given as ORIGINAL_CONTENT (the repository version). When a file also has
PREVIOUSLY_MODIFIED_CONTENT, that is the version proposed earlier in this conversation:
apply the request on top of it and return the full result.
Only return paths that were provided.`

const commitSystemPrompt = `You write commit metadata for an automated change.
Use conventional commits: type(scope): summary, under 72 characters, imperative mood.
The commitMessage starts with the title line, then a blank line, then a short body.
The description is a short markdown summary for the pull request listing the changed files.`
