package store

import (
	"time"

	"github.com/tmc/langchaingo/llms"
)

// Message is one transcript row. A query and its answer share a RequestID.
type Message struct {
	ID        string               `json:"id"`
	RequestID string               `json:"request_id"`
	ChatID    string               `json:"chat_id"`
	Role      llms.ChatMessageType `json:"role"`
	Content   string               `json:"content"`
	Tool      string               `json:"tool,omitempty"`
	Rule      string               `json:"rule,omitempty"`
	Success   bool                 `json:"success"`
	CreatedAt time.Time            `json:"created_at"`
}

// Conversation converts transcript rows to langchaingo message content, oldest
// first, so a history can be replayed to any langchaingo model.
func Conversation(msgs []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llms.MessageContent{
			Role:  m.Role,
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}
	return out
}

func parseRole(role string) llms.ChatMessageType {
	switch role {
	case string(llms.ChatMessageTypeAI):
		return llms.ChatMessageTypeAI
	case string(llms.ChatMessageTypeSystem):
		return llms.ChatMessageTypeSystem
	default:
		return llms.ChatMessageTypeHuman
	}
}
