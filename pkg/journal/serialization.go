package journal

import (
	"encoding/json"
	"fmt"
)

// MarshalEntry serializes an Entry to JSON bytes.
func MarshalEntry(e *Entry) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("cannot marshal nil entry")
	}
	if e.ID == "" {
		return nil, fmt.Errorf("cannot marshal entry without ID")
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry to JSON: %w", err)
	}
	return data, nil
}

// UnmarshalEntry deserializes an Entry from JSON bytes.
func UnmarshalEntry(data []byte) (*Entry, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to entry: %w", err)
	}
	return &e, nil
}
