package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// formatResponse renders "<message>\n\n<pretty JSON>", or only the JSON when
// message is empty.
func formatResponse(message string, data any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return "", fmt.Errorf("tool: format response: %w", err)
	}
	body := bytes.TrimRight(buf.Bytes(), "\n")
	if message == "" {
		return string(body), nil
	}
	return message + "\n\n" + string(body), nil
}

// htmlToMobiledoc wraps markup in a mobiledoc document with a single html card.
func htmlToMobiledoc(html string) (string, error) {
	doc := map[string]any{
		"version": "0.3.1",
		"atoms":   []any{},
		"cards": []any{
			[]any{"html", map[string]any{"cardName": "html", "html": html}},
		},
		"markups":  []any{},
		"sections": []any{[]any{10, 0}},
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("tool: encode mobiledoc: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
