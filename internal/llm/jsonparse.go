package llm

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ParseMode records how a JSON payload was recovered from generated text.
type ParseMode int

const (
	// ParseClean means the text (after removing code fences) was valid JSON.
	ParseClean ParseMode = iota
	// ParseBracketScan means the payload was cut out of surrounding prose.
	ParseBracketScan
)

func (m ParseMode) String() string {
	if m == ParseBracketScan {
		return "bracket_scan"
	}
	return "clean"
}

// DecodeArray decodes a JSON array from generated text into v.
func DecodeArray(text string, v any) (ParseMode, error) {
	return decode(text, '[', ']', v)
}

// DecodeObject decodes a JSON object from generated text into v.
func DecodeObject(text string, v any) (ParseMode, error) {
	return decode(text, '{', '}', v)
}

func decode(text string, open, closing byte, v any) (ParseMode, error) {
	text = StripFences(text)
	if text == "" {
		return ParseClean, eris.New("llm: empty response")
	}
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return ParseClean, nil
	}

	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, closing)
	if start < 0 || end <= start {
		return ParseBracketScan, eris.Errorf("llm: no JSON %c...%c found in response", open, closing)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return ParseBracketScan, eris.Wrap(err, "llm: parse json")
	}
	return ParseBracketScan, nil
}

// StripFences removes a markdown code fence (``` or ```json) wrapping text.
// Backticks inside the payload are kept.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(text, "```"); ok {
		// Skip the info string, e.g. "json".
		if i := strings.IndexAny(rest, "\n[{"); i >= 0 {
			text = rest[i:]
		} else {
			text = ""
		}
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// Truncate shortens s to at most n bytes for logging, keeping rune
// boundaries intact.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
