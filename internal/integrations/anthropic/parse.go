package anthropic

import (
	"encoding/json"
	"strings"

	"vision-concierge/internal/domain"
	"vision-concierge/internal/signtext"
)

// suggestionsPayload is the JSON shape the model is prompted to emit when
// proposing message candidates.
type suggestionsPayload struct {
	Suggestions []struct {
		Lines []string `json:"lines"`
	} `json:"suggestions"`
}

const maxSuggestions = 3

// ParseReply classifies raw model output. It first looks for an embedded
// JSON object carrying message suggestions, then for a 案N-marked plain-text
// listing; anything else is returned verbatim as free text. Suggestions that
// break the sign format are dropped rather than repaired, so a reply only
// counts as structured when at least one candidate is displayable.
func ParseReply(text string) domain.GeneratedReply {
	if s := parseJSONSuggestions(text); len(s) > 0 {
		return domain.GeneratedReply{Suggestions: s}
	}
	if s := parseMarkedSuggestions(text); len(s) > 0 {
		return domain.GeneratedReply{Suggestions: s}
	}
	return domain.GeneratedReply{Text: strings.TrimSpace(text)}
}

func parseJSONSuggestions(text string) [][]string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil
	}
	var payload suggestionsPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil
	}
	out := make([][]string, 0, len(payload.Suggestions))
	for _, s := range payload.Suggestions {
		if lines := normalizeCandidate(s.Lines); lines != nil {
			out = append(out, lines)
		}
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

// parseMarkedSuggestions recovers candidates from plain text where each one
// is introduced by a 案N marker, e.g.
//
//	案1
//	花子へ
//	誕生日
//	...
func parseMarkedSuggestions(text string) [][]string {
	if !strings.Contains(text, "案1") {
		return nil
	}
	var out [][]string
	var current []string
	flush := func() {
		if lines := normalizeCandidate(current); lines != nil && len(out) < maxSuggestions {
			out = append(out, lines)
		}
		current = nil
	}
	collecting := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.Trim(raw, "`"))
		switch {
		case strings.HasPrefix(line, "案"):
			flush()
			collecting = true
		case line == "":
			flush()
			collecting = false
		case collecting:
			current = append(current, line)
		}
	}
	flush()
	return out
}

// normalizeCandidate accepts a candidate only when it fits the sign exactly:
// five non-empty lines, each within the per-line width, total within budget.
func normalizeCandidate(lines []string) []string {
	cleaned := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		cleaned = append(cleaned, l)
	}
	if len(cleaned) != signtext.MaxLines {
		return nil
	}
	if res := signtext.ValidateLines(cleaned); !res.OK {
		return nil
	}
	return cleaned
}
