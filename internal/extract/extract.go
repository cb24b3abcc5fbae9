// Package extract recovers JSON objects from free-form model output.
//
// Models frequently wrap the object they were asked for in markdown fences
// or surround it with prose. Object strips fences and parses; if that fails
// it retries on the span between the first '{' and the last '}'. When both
// attempts fail the error from the first attempt is reported, since it
// describes the text the model actually produced.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotObject is returned when the text parses as JSON but is not an object.
var ErrNotObject = errors.New("extract: top-level JSON value is not an object")

// ParseError reports model output that could not be recovered as a JSON object.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("extract: unparseable model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Object returns the JSON object embedded in text.
func Object(text string) (json.RawMessage, error) {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	obj, firstErr := parseObject(cleaned)
	if firstErr == nil {
		return obj, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if obj, err := parseObject(text[start : end+1]); err == nil {
			return obj, nil
		}
	}
	return nil, &ParseError{Err: firstErr}
}

// Decode extracts the JSON object from text and unmarshals it into v.
func Decode(text string, v any) error {
	obj, err := Object(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(obj, v); err != nil {
		return &ParseError{Err: err}
	}
	return nil
}

func parseObject(s string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || raw[0] != '{' {
		return nil, ErrNotObject
	}
	return bytes.Clone(raw), nil
}

var refusalPhrases = []string{
	"unable to",
	"i cannot",
	"i can't",
	"i am unable",
	"i'm unable",
	"i won't",
}

// IsRefusal reports whether text reads like a model declining the task.
func IsRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range refusalPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
