package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnrecognizedFormat = errors.New("format: content is neither valid JSON nor valid JSON Lines")
	ErrSchemaValidation   = errors.New("format: schema validation failed")
	ErrUnknownFormat      = errors.New("format: unknown format")
)

// ParseRecords splits raw into one raw JSON value per record.
//
// The whole document is tried as JSON first: an array yields its elements,
// an object yields itself. Otherwise every non-blank line must be a JSON
// value on its own.
func ParseRecords(raw []byte) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []json.RawMessage{}, nil
	}

	if json.Valid(raw) {
		switch raw[0] {
		case '[':
			var records []json.RawMessage
			if err := json.Unmarshal(raw, &records); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
			}
			return records, nil
		case '{':
			return []json.RawMessage{json.RawMessage(raw)}, nil
		default:
			return nil, fmt.Errorf("%w: top-level value must be an array or an object", ErrUnrecognizedFormat)
		}
	}

	var records []json.RawMessage
	for i, line := range bytes.Split(raw, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return nil, fmt.Errorf("%w: line %d", ErrUnrecognizedFormat, i+1)
		}
		records = append(records, json.RawMessage(bytes.Clone(line)))
	}
	return records, nil
}
