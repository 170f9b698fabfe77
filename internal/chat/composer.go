package chat

import (
	"github.com/suPer8Hu/career-chat/internal/ai"
	"github.com/suPer8Hu/career-chat/internal/session"
)

const SystemPrompt = "You are a professional career advisor that reads uploaded documents like resumes and gives detailed, personalized guidance."

// Sampling settings used for every completion.
const (
	Temperature = 0.7
	MaxTokens   = 500
)

// DefaultParams returns the sampling settings sent with every turn.
func DefaultParams() ai.Params {
	return ai.Params{Temperature: Temperature, MaxTokens: MaxTokens}
}

// Compose builds the completion request for one turn: the fixed system
// instruction, then a single user message whose first part is the text.
// A new file wins over the cached one; the bool reports whether the cached
// file was attached.
func Compose(message string, newFile, cached *session.CachedFile) ([]ai.Message, bool) {
	parts := []ai.Part{ai.TextPart(message)}
	usingSaved := false

	switch {
	case newFile != nil:
		parts = append(parts, ai.FilePart(newFile.Name, newFile.DataURL))
	case cached != nil:
		parts = append(parts, ai.FilePart(cached.Name, cached.DataURL))
		usingSaved = true
	}

	return []ai.Message{
		{Role: ai.RoleSystem, Content: SystemPrompt},
		{Role: ai.RoleUser, Parts: parts},
	}, usingSaved
}
