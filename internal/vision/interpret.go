package vision

import (
	"encoding/json"
	"regexp"
	"strings"

	apperrors "github.com/gradecart/gradecart/internal/errors"
)

// The model reply is free text that may or may not fence its JSON. Try the
// fenced form first, then fall back to brace matching.
var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// locateJSON finds the JSON object embedded in a free-text reply
func locateJSON(text string) (string, bool) {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// Interpret parses a raw model reply into an ExtractionResult.
//
// Three negative outcomes are kept distinct: a reply with no parseable JSON
// is ErrUnreadableReply, a parsed error object is ErrNotSupplyList, and a
// valid result with zero supply items is ErrNoItemsFound. Only the first is
// a technical failure.
func Interpret(raw string) (*ExtractionResult, error) {
	blob, ok := locateJSON(raw)
	if !ok {
		return nil, apperrors.New(apperrors.ErrUnreadableReply.Code, "no JSON object in extraction reply")
	}

	var payload struct {
		Error string `json:"error"`
		ExtractionResult
	}
	if err := json.Unmarshal([]byte(blob), &payload); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnreadableReply.Code, "extraction reply JSON invalid")
	}

	if payload.Error != "" {
		return nil, apperrors.New(apperrors.ErrNotSupplyList.Code, payload.Error)
	}

	result := payload.ExtractionResult
	if !result.HasItems() {
		return nil, apperrors.New(apperrors.ErrNoItemsFound.Code,
			"no supply items were found in this image")
	}

	return &result, nil
}
