// Package session models and parses Claude Code JSONL session records.
package session

import (
	"encoding/json"
	"strings"
	"time"
)

// Record is a single line in a session log file.
type Record struct {
	Type       string   `json:"type"`
	Subtype    string   `json:"subtype,omitempty"`
	UUID       string   `json:"uuid"`
	ParentUUID string   `json:"parentUuid,omitempty"`
	SessionID  string   `json:"sessionId,omitempty"`
	Timestamp  string   `json:"timestamp,omitempty"`
	Cwd        string   `json:"cwd,omitempty"`
	Version    string   `json:"version,omitempty"`
	Message    *Message `json:"message,omitempty"`
}

// Message is the message envelope carried by user and assistant records.
type Message struct {
	ID      string  `json:"id,omitempty"`
	Role    string  `json:"role,omitempty"`
	Model   string  `json:"model,omitempty"`
	Content Content `json:"content"`
}

// Content is the message payload: either a plain string or an ordered
// list of typed blocks. Which form arrived is preserved in Plain.
type Content struct {
	Plain  bool
	Text   string
	Blocks []ContentBlock
}

// ContentBlock is one typed block inside a structured content payload.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// Content block type values.
const (
	BlockText       = "text"
	BlockThinking   = "thinking"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// UnmarshalJSON accepts both content forms found in session logs.
func (c *Content) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		c.Plain = true
		c.Text = s
		c.Blocks = nil
		return nil
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return err
	}
	c.Plain = false
	c.Text = ""
	c.Blocks = blocks
	return nil
}

// MarshalJSON writes the content back in the form it arrived in.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.Plain {
		return json.Marshal(c.Text)
	}
	return json.Marshal(c.Blocks)
}

// Time parses the record's RFC3339 timestamp. Zero time if absent or bad.
func (r *Record) Time() time.Time {
	if r.Timestamp == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// EpochMS returns the record timestamp in epoch milliseconds, 0 if absent.
func (r *Record) EpochMS() int64 {
	ts := r.Time()
	if ts.IsZero() {
		return 0
	}
	return ts.UnixMilli()
}

// IsUser reports whether this is a user record.
func (r *Record) IsUser() bool { return r.Type == "user" }

// IsAssistant reports whether this is an assistant record.
func (r *Record) IsAssistant() bool { return r.Type == "assistant" }

// IsUserInput reports whether this record is a direct human input: a user
// record whose content is a plain string. Structured user records carry
// tool results, not input.
func (r *Record) IsUserInput() bool {
	return r.IsUser() && r.Message != nil && r.Message.Content.Plain
}

// UserText returns the plain input text for user-input records.
func (r *Record) UserText() string {
	if r.Message == nil {
		return ""
	}
	return r.Message.Content.Text
}

// ToolResults returns the tool_result blocks of a user record, in array order.
func (r *Record) ToolResults() []ContentBlock {
	if !r.IsUser() || r.Message == nil || r.Message.Content.Plain {
		return nil
	}
	var out []ContentBlock
	for _, b := range r.Message.Content.Blocks {
		if b.Type == BlockToolResult {
			out = append(out, b)
		}
	}
	return out
}

// AssistantText joins the non-empty text blocks of an assistant record.
func (r *Record) AssistantText() string {
	if !r.IsAssistant() || r.Message == nil {
		return ""
	}
	var parts []string
	for _, b := range r.Message.Content.Blocks {
		if b.Type == BlockText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// HasText reports whether an assistant record carries a non-empty text block.
func (r *Record) HasText() bool {
	if !r.IsAssistant() || r.Message == nil {
		return false
	}
	for _, b := range r.Message.Content.Blocks {
		if b.Type == BlockText && b.Text != "" {
			return true
		}
	}
	return false
}
