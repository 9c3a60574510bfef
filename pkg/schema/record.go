package schema

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Record is a stored observation: envelope columns plus the typed data.
// Source and SourceID are those of the encounter the record belongs to.
type Record struct {
	ID          int64     `json:"id"`
	Domain      Domain    `json:"-"`
	EncounterID int64     `json:"encounter"`
	ObsType     string    `json:"obstype"`
	Source      string    `json:"source"`
	SourceID    string    `json:"source_id"`
	Data        Data      `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MarshalJSON flattens Data next to the envelope keys.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Data)+7)
	for k, v := range r.Data {
		out[k] = v
	}
	out["id"] = r.ID
	out["encounter"] = r.EncounterID
	out["obstype"] = r.ObsType
	out["source"] = r.source()
	out["source_id"] = r.SourceID
	out["created_at"] = r.CreatedAt
	out["updated_at"] = r.UpdatedAt
	return json.Marshal(out)
}

// source renders Source the way the owning encounter does. Area
// encounters carry a numeric source.
func (r Record) source() any {
	if r.Domain == DomainOccurrence {
		if n, err := strconv.ParseInt(r.Source, 10, 64); err == nil {
			return n
		}
	}
	return r.Source
}

// Canonical returns a stable encoding of d. Maps encode with sorted
// keys, so equal data always yields equal bytes.
func (d Data) Canonical() (string, error) {
	if d == nil {
		d = Data{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseData decodes stored canonical JSON. Whole numbers come back as
// int64 so that round-tripped data compares equal to freshly decoded data.
func ParseData(s string) (Data, error) {
	var raw map[string]any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	out := make(Data, len(raw))
	for k, v := range raw {
		out[k] = normalize(v)
	}
	return out, nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return v
}
