package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
)

// Document is the companion JSON stored next to every audio object.
type Document struct {
	Publisher Value `json:"publisher,omitzero"`
	Duration  Value `json:"duration,omitzero"`
	BPM       Value `json:"bpm,omitzero"`
	Key       Value `json:"key,omitzero"`
	Genre     Value `json:"genre,omitzero"`
}

// Value holds a metadata field as the raw JSON it was written with. Older
// uploads store numbers as strings and vice versa, so nothing is coerced until
// display time.
type Value struct {
	raw json.RawMessage
}

func String(s string) Value {
	if s == "" {
		return Value{}
	}
	b, _ := json.Marshal(s)
	return Value{raw: b}
}

func Number(f float64) Value {
	if f == 0 {
		return Value{}
	}
	return Value{raw: json.RawMessage(strconv.FormatFloat(f, 'f', -1, 64))}
}

func (v Value) IsZero() bool {
	return len(v.raw) == 0
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsZero() {
		return []byte("null"), nil
	}
	return v.raw, nil
}

func (v *Value) UnmarshalJSON(b []byte) error {
	v.raw = append(v.raw[:0], b...)
	return nil
}

// Display renders the value for a view. ok is false for values that count as
// absent: null, false, "", 0 and missing fields.
func (v Value) Display() (s string, ok bool) {
	raw := bytes.TrimSpace(v.raw)
	if len(raw) == 0 {
		return "", false
	}

	switch raw[0] {
	case 'n': // null
		return "", false
	case 't':
		return "true", true
	case 'f':
		return "", false
	case '"':
		var str string
		if err := json.Unmarshal(raw, &str); err != nil || str == "" {
			return "", false
		}
		return str, true
	case '[', '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", false
		}
		return buf.String(), true
	default:
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil || f == 0 {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
}

// Or returns the displayed value or fallback when it is absent.
func (v Value) Or(fallback string) string {
	if s, ok := v.Display(); ok {
		return s
	}
	return fallback
}

var ErrNotObject = errors.New("metadata: document is not a JSON object")

// maxDocumentSize caps how much of a metadata object is read.
const maxDocumentSize = 1 << 20

// Decode parses a metadata document, ignoring unknown fields.
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDocumentSize))
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, ErrNotObject
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
