// Package llm provides the model gateway: a uniform chat-completion call
// over a generic OpenAI-compatible HTTP backend and the Gemini vendor SDK,
// selected per request by the shape of the configured credential.
package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrConfigurationMissing is returned before any network call when no
// credential is configured. Callers treat it as fatal to the whole adjudication.
var ErrConfigurationMissing = errors.New("llm: configuration missing: no model provider API key is set")

// UpstreamError is a non-2xx response from a backend.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm: %s: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Gateway completes a chat conversation and returns the raw assistant text.
type Gateway interface {
	Complete(ctx context.Context, model string, messages []Message, temperature float64) (string, error)
}

// Role is a chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Part types.
const (
	PartText  = "text"
	PartImage = "image"
)

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type     string
	Text     string
	MIMEType string
	Data     []byte
}

// TextPart returns a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImagePart returns an inline image content part.
func ImagePart(mimeType string, data []byte) ContentPart {
	return ContentPart{Type: PartImage, MIMEType: mimeType, Data: data}
}

// DataURL renders the part's bytes as a base64 data URL.
func (p ContentPart) DataURL() string {
	return "data:" + p.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

type wireImageURL struct {
	URL string `json:"url"`
}

type wirePart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *wireImageURL `json:"image_url,omitempty"`
}

// MarshalJSON encodes the part in the OpenAI chat wire form.
func (p ContentPart) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case PartText:
		return json.Marshal(wirePart{Type: "text", Text: p.Text})
	case PartImage:
		return json.Marshal(wirePart{Type: "image_url", ImageURL: &wireImageURL{URL: p.DataURL()}})
	default:
		return nil, fmt.Errorf("llm: unsupported content part type %q", p.Type)
	}
}

// Message is one chat message. Content is used when Parts is empty.
type Message struct {
	Role    Role
	Content string
	Parts   []ContentPart
}

// SystemMessage returns a plain-text system message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage returns a user message with text followed by any extra parts.
// Without extra parts the message is sent as plain string content.
func UserMessage(text string, parts ...ContentPart) Message {
	if len(parts) == 0 {
		return Message{Role: RoleUser, Content: text}
	}
	all := make([]ContentPart, 0, len(parts)+1)
	all = append(all, TextPart(text))
	all = append(all, parts...)
	return Message{Role: RoleUser, Parts: all}
}

// Text returns the message's string content or its first text part.
func (m Message) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	for _, p := range m.Parts {
		if p.Type == PartText {
			return p.Text
		}
	}
	return ""
}

// MarshalJSON encodes string content when there are no parts, else an array.
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Parts) == 0 {
		return json.Marshal(struct {
			Role    Role   `json:"role"`
			Content string `json:"content"`
		}{m.Role, m.Content})
	}
	return json.Marshal(struct {
		Role    Role          `json:"role"`
		Content []ContentPart `json:"content"`
	}{m.Role, m.Parts})
}
