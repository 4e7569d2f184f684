package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

var timeType = reflect.TypeOf(time.Time{})

// Normalize converts data into plain JSON values. Every backend stores the
// normalized form, so readers see the same shapes regardless of driver.
func Normalize(data map[string]any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return Unmarshal(raw)
}

func Unmarshal(raw []byte) (map[string]any, error) {
	out := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

// Merge shallow-merges fields into base. base is not modified.
func Merge(base, fields map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(fields))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// ToTime converts the timestamp representations a store may return into
// time.Time: time values, RFC 3339 strings, {seconds,nanos} objects in
// either naming, and unix milliseconds.
func ToTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	case float64:
		return time.UnixMilli(int64(t)).UTC(), true
	case int64:
		return time.UnixMilli(t).UTC(), true
	case int:
		return time.UnixMilli(int64(t)).UTC(), true
	case json.Number:
		ms, err := t.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	case map[string]any:
		sec, okS := number(t["seconds"])
		if !okS {
			sec, okS = number(t["_seconds"])
		}
		if !okS {
			return time.Time{}, false
		}
		nanos, okN := number(t["nanos"])
		if !okN {
			nanos, _ = number(t["_nanoseconds"])
		}
		return time.Unix(int64(sec), int64(nanos)).UTC(), true
	}
	return time.Time{}, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func timestampHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if to != timeType || from == timeType {
			return data, nil
		}
		if t, ok := ToTime(data); ok {
			return t, nil
		}
		return data, nil
	}
}

// Decode maps a document onto a model struct through its json tags.
// The document id is exposed as the "id" field.
func Decode(doc Document, out any) error {
	input := Merge(doc.Data, map[string]any{"id": doc.ID})
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       timestampHook(),
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("decode %s: %w", doc.Path, err)
	}
	return nil
}

// SortDocs orders docs by the given field, then by id. Timestamp fields
// compare chronologically whatever their stored representation.
func SortDocs(docs []Document, orderBy string, descending bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		c := 0
		if orderBy != "" {
			c = compareValues(docs[i].Data[orderBy], docs[j].Data[orderBy])
		}
		if c == 0 {
			c = compareStrings(docs[i].ID, docs[j].ID)
		}
		if descending {
			return c > 0
		}
		return c < 0
	})
}

func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if ta, ok := ToTime(a); ok {
		if tb, ok := ToTime(b); ok {
			return ta.Compare(tb)
		}
	}
	if na, ok := number(a); ok {
		if nb, ok := number(b); ok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			}
			return 0
		}
	}
	return compareStrings(fmt.Sprint(a), fmt.Sprint(b))
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
