package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pavelanni/sequencer/internal/model"
)

// excerptLen is how much of an undecodable reply an UnwrapError keeps.
const excerptLen = 500

// UnwrapError reports a reply that holds no decodable JSON array.
type UnwrapError struct {
	Err     error
	Excerpt string
}

func (e *UnwrapError) Error() string {
	return fmt.Sprintf("parse LLM response: %v (content: %s...)", e.Err, e.Excerpt)
}

func (e *UnwrapError) Unwrap() error {
	return e.Err
}

// UnwrapArray extracts the JSON array embedded in a free-text reply: the
// span from the first '[' to the last ']', or the whole trimmed text when
// no such span exists. On failure it returns an empty, non-nil slice and an
// *UnwrapError.
func UnwrapArray(text string) ([]json.RawMessage, error) {
	text = strings.TrimSpace(text)

	candidate := text
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start != -1 && end > start {
		candidate = text[start : end+1]
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &items); err != nil {
		return []json.RawMessage{}, &UnwrapError{Err: err, Excerpt: head(text, excerptLen)}
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, nil
}

// DecodeScreens unwraps a reply and decodes each array element as a screen.
// Elements that are not objects are skipped; the returned count says how many.
func DecodeScreens(text string) ([]model.Screen, int, error) {
	items, err := UnwrapArray(text)
	if err != nil {
		return []model.Screen{}, 0, err
	}
	screens := make([]model.Screen, 0, len(items))
	skipped := 0
	for _, item := range items {
		var s model.Screen
		if err := json.Unmarshal(item, &s); err != nil {
			skipped++
			continue
		}
		screens = append(screens, s)
	}
	return screens, skipped, nil
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
