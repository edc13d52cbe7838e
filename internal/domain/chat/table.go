package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Field is one cell of a table row, in the order the backend sent it.
type Field struct {
	Key   string
	Value any
}

// Row is a JSON object decoded with its key order kept.
type Row []Field

// Get returns the value stored under key.
func (r Row) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func (r *Row) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	row, err := decodeRow(dec)
	if err != nil {
		return err
	}
	*r = row
	return nil
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var errNotObject = errors.New("table row is not a JSON object")

func decodeRow(dec *json.Decoder) (Row, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}
	row := Row{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		row = append(row, Field{Key: key, Value: v})
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return row, nil
}

// Table is the list of filtered rows returned with a reply.
type Table []Row

// Columns returns the union of row keys in first-seen order.
func (t Table) Columns() []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range t {
		for _, f := range r {
			if !seen[f.Key] {
				seen[f.Key] = true
				cols = append(cols, f.Key)
			}
		}
	}
	return cols
}

func (t Table) Clone() Table {
	if t == nil {
		return nil
	}
	out := make(Table, len(t))
	for i, r := range t {
		out[i] = append(Row(nil), r...)
	}
	return out
}

// ParseTable decodes a JSON array of objects. Entries that are not objects
// are skipped; anything that is not an array yields an empty table.
func ParseTable(raw json.RawMessage) Table {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var t Table
	for _, item := range items {
		var r Row
		if err := json.Unmarshal(item, &r); err != nil {
			continue
		}
		t = append(t, r)
	}
	return t
}

// ParseChart decodes the trend series field by field, so a bad "demand"
// array does not hide good "prices".
func ParseChart(raw json.RawMessage) Chart {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Chart{}
	}
	return Chart{
		Years:  parseSeries(fields["years"]),
		Prices: parseSeries(fields["prices"]),
		Demand: parseSeries(fields["demand"]),
	}
}

func parseSeries(raw json.RawMessage) []json.Number {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil
	}
	out := make([]json.Number, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case json.Number:
			out = append(out, v)
		case string:
			out = append(out, json.Number(v))
		default:
			// null or nested values leave a gap
			out = append(out, "")
		}
	}
	return out
}
