package domain

import (
	"encoding/json"
	"fmt"
)

// Project is a published item on the upstream platform. Projects are fetched
// fresh each reconciliation cycle and never persisted beyond their ids.
// The upstream API returns an open-ended JSON object; only id and title are
// required, everything else is kept in Extra untouched.
type Project struct {
	ID    string
	Title string
	Extra map[string]json.RawMessage
}

// UnmarshalJSON decodes a project record, normalizing the id to a string.
// The upstream emits numeric ids today, but the id is opaque to us, so both
// JSON numbers and strings are accepted.
func (p *Project) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	idRaw, ok := raw["id"]
	if !ok {
		return fmt.Errorf("project record has no id")
	}
	id, err := decodeItemID(idRaw)
	if err != nil {
		return fmt.Errorf("project id: %w", err)
	}
	p.ID = id
	delete(raw, "id")

	if titleRaw, ok := raw["title"]; ok {
		if err := json.Unmarshal(titleRaw, &p.Title); err != nil {
			return fmt.Errorf("project title: %w", err)
		}
		delete(raw, "title")
	}

	p.Extra = raw
	return nil
}

func decodeItemID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", fmt.Errorf("empty id")
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("id is neither string nor number: %s", raw)
	}
	return n.String(), nil
}
