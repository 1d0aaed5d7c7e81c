package scanning

import (
	"encoding/json"
	"strings"
)

type transcript struct {
	Lines []string `json:"lines"`
}

// parseTranscriptJSON turns a vision model reply into newline separated card text.
// Replies that are not the requested JSON are used as plain text.
func parseTranscriptJSON(reply string) (string, error) {
	text := strings.TrimSpace(reply)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if text == "" {
		return "", ErrNoText
	}

	startIdx := strings.Index(text, "{")
	endIdx := strings.LastIndex(text, "}")
	if startIdx == -1 || endIdx < startIdx {
		return text, nil
	}

	var t transcript
	if err := json.Unmarshal([]byte(text[startIdx:endIdx+1]), &t); err != nil {
		return text, nil
	}

	lines := make([]string, 0, len(t.Lines))
	for _, line := range t.Lines {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", ErrNoText
	}

	return strings.Join(lines, "\n"), nil
}
