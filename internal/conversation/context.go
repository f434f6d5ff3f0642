package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the ordered conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Context is the ordered turn history handed to the language model.
// The first turn is always the system prompt; memory annotations follow it,
// then live turns in observation order.
type Context struct {
	mu    sync.Mutex
	turns []Turn
}

// MemoryItem is one prior-conversation entry supplied at session start.
type MemoryItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Build assembles the initial context from the system prompt plus an optional
// memory payload. Malformed memory items are skipped individually; a payload
// that is not a list yields an empty memory set. Build never fails.
func Build(systemPrompt string, rawMemory json.RawMessage) *Context {
	ctx := &Context{turns: []Turn{{Role: RoleSystem, Content: systemPrompt}}}

	if len(rawMemory) == 0 {
		return ctx
	}

	var items []MemoryItem
	if err := json.Unmarshal(rawMemory, &items); err != nil {
		return ctx
	}
	for _, item := range items {
		if strings.TrimSpace(item.Role) == "" || strings.TrimSpace(item.Content) == "" {
			continue
		}
		ctx.turns = append(ctx.turns, Turn{
			Role:    RoleSystem,
			Content: fmt.Sprintf("Previous conversation: %s: %s", item.Role, item.Content),
		})
	}
	return ctx
}

// AppendUser records a live user turn.
func (c *Context) AppendUser(text string) {
	c.append(Turn{Role: RoleUser, Content: text})
}

// AppendAssistant records a live assistant turn.
func (c *Context) AppendAssistant(text string) {
	c.append(Turn{Role: RoleAssistant, Content: text})
}

// AppendToolResult records a tool outcome as model-visible assistant output.
func (c *Context) AppendToolResult(toolName, payload string) {
	c.append(Turn{
		Role:    RoleAssistant,
		Content: fmt.Sprintf("[tool:%s] %s", toolName, payload),
	})
}

func (c *Context) append(t Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, t)
}

// Len reports the current number of turns.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Snapshot returns the turns in insertion order. The returned slice is a copy
// so callers can hand it to the language model without holding any lock.
func (c *Context) Snapshot() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}
