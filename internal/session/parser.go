package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSkip marks a line the caller should drop without failing the read:
// blank lines and record types the relay does not consume.
var ErrSkip = errors.New("session: skippable line")

var typeKey = []byte(`"type"`)

// ParseLine decodes one JSONL line into a Record.
//
// Lines whose top-level "type" is not user, assistant, or system are
// rejected with ErrSkip before the full unmarshal; session logs carry
// progress and summary entries that would otherwise dominate parse cost.
func ParseLine(line []byte) (Record, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Record{}, ErrSkip
	}

	switch recordType(line) {
	case "user", "assistant", "system":
	default:
		return Record{}, ErrSkip
	}

	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, fmt.Errorf("session: decoding record: %w", err)
	}
	return rec, nil
}

// recordType scans for the top-level "type" field without a full parse.
// Brace depth and string boundaries are tracked so nested "type" keys
// (content blocks carry one too) are ignored.
func recordType(line []byte) string {
	depth := 0
	for i := 0; i < len(line); {
		switch line[i] {
		case '{':
			depth++
			i++
		case '}':
			depth--
			i++
		case '"':
			if depth == 1 && bytes.HasPrefix(line[i:], typeKey) {
				if v, ok := keyValue(line, i+len(typeKey)); ok {
					return v
				}
			}
			i = skipString(line, i)
		default:
			i++
		}
	}
	return ""
}

// keyValue reads the short string value following a key at pos.
// ok is false when the match was a value rather than a key.
func keyValue(line []byte, pos int) (string, bool) {
	i := skipSpaces(line, pos)
	if i >= len(line) || line[i] != ':' {
		return "", false
	}
	i = skipSpaces(line, i+1)
	if i >= len(line) || line[i] != '"' {
		return "", true
	}
	i++
	end := bytes.IndexByte(line[i:], '"')
	if end < 0 || end > 20 {
		return "", true
	}
	return string(line[i : i+end]), true
}

func skipString(line []byte, i int) int {
	i++ // opening quote
	for i < len(line) {
		switch line[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1
		default:
			i++
		}
	}
	return i
}

func skipSpaces(line []byte, i int) int {
	for i < len(line) && line[i] == ' ' {
		i++
	}
	return i
}
