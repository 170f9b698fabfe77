package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type PartType string

const (
	PartText PartType = "text"
	PartFile PartType = "file"
)

// FileRef is an attachment inlined as a data URL.
type FileRef struct {
	Filename string
	FileData string
}

type Part struct {
	Type PartType
	Text string
	File *FileRef
}

// Message is one role-tagged turn. Parts, when set, replace Content.
type Message struct {
	Role    string
	Content string
	Parts   []Part
}

// Params are the sampling settings sent with every completion.
type Params struct {
	Temperature float32
	MaxTokens   int
}

type Provider interface {
	Chat(ctx context.Context, messages []Message, params Params) (string, error)
}

// TextPart and FilePart build message parts.
func TextPart(text string) Part { return Part{Type: PartText, Text: text} }

func FilePart(filename, dataURL string) Part {
	return Part{Type: PartFile, File: &FileRef{Filename: filename, FileData: dataURL}}
}
