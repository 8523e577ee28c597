package extract

import "github.com/ppiankov/callfacts/internal/llm"

// SystemPrompt opens every conversation
const SystemPrompt = "You are a helpful assistant who focuses on processing a sequence of call logs and extracting facts"

// Conversation is the role-tagged history sent with every completion call.
// It belongs to a single submission and is never stored.
type Conversation struct {
	messages []llm.Message
}

// NewConversation returns a history holding only the system message
func NewConversation() *Conversation {
	return &Conversation{
		messages: []llm.Message{{Role: llm.RoleSystem, Content: SystemPrompt}},
	}
}

// Append adds a message to the end of the history
func (c *Conversation) Append(role, content string) {
	c.messages = append(c.messages, llm.Message{Role: role, Content: content})
}

// Messages returns a copy of the history in order
func (c *Conversation) Messages() []llm.Message {
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages
func (c *Conversation) Len() int {
	return len(c.messages)
}
