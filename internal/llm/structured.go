package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// StripFences removes a surrounding ```json (or bare ```) fence that chat
// models like to wrap JSON answers in. Text without a fence is returned
// trimmed but otherwise unchanged.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the info string ("json", "JSON", ...).
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseStructured decodes a model answer into dst. Fences are stripped
// first. Any failure is reported as *ErrInvalidResponse so callers can
// apply their conservative fallback.
func ParseStructured(raw []byte, dst any) error {
	body := []byte(StripFences(string(raw)))
	if len(body) == 0 {
		return &ErrInvalidResponse{Content: raw, Err: errors.New("empty response")}
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(dst); err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// normalizeContent turns a raw provider answer into a Response body. With a
// schema the text is unfenced and validated; without one it is passed
// through.
func normalizeContent(schema *Schema, text string) (json.RawMessage, error) {
	if schema == nil {
		return json.RawMessage(text), nil
	}
	content := json.RawMessage(StripFences(text))
	if err := validateResponse(schema, content); err != nil {
		return nil, err
	}
	return content, nil
}
