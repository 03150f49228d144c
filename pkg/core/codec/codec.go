// Package codec decodes the generation vendor's free-form text output into a
// structured tutor turn. The vendor is asked for a single JSON object but is
// only probabilistically compliant: output arrives bare, wrapped in markdown
// code fences, or embedded in surrounding prose. Decode therefore runs in two
// tiers: a direct parse, then fence stripping plus brace extraction.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fluently/lingua/pkg/core/types"
)

// ErrNoStructureFound is returned when no parseable JSON object exists
// anywhere in the vendor output.
var ErrNoStructureFound = errors.New("no JSON structure found in tutor output")

// Decode parses raw vendor text into a structured turn. Absent optional
// fields are tolerated and default to empty/false; only the overall object
// shape is validated.
func Decode(raw string) (*types.StructuredTurn, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("decode tutor turn: %w", ErrNoStructureFound)
	}

	var st types.StructuredTurn
	if err := json.Unmarshal([]byte(trimmed), &st); err == nil {
		return &st, nil
	}

	candidate := extractObject(trimmed)
	if candidate == "" {
		return nil, fmt.Errorf("decode tutor turn: %w", ErrNoStructureFound)
	}
	if err := json.Unmarshal([]byte(candidate), &st); err != nil {
		return nil, fmt.Errorf("decode tutor turn: %w", ErrNoStructureFound)
	}
	return &st, nil
}

// Encode renders a structured turn back to its canonical JSON form. Used for
// round-trip tests and history serialization.
func Encode(st *types.StructuredTurn) (string, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("encode tutor turn: %w", err)
	}
	return string(raw), nil
}

// extractObject strips code-fence markers and slices from the first opening
// brace to the last closing brace, inclusive. Returns "" when no such pair
// exists.
func extractObject(text string) string {
	text = stripFences(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// stripFences removes markdown code-fence delimiter lines, keeping the fenced
// body and any surrounding prose intact.
func stripFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}

	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
