package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

type serverTimestamp struct{}

// ServerTimestamp is replaced with the store's clock when it appears in written data.
var ServerTimestamp = serverTimestamp{}

// resolveTimestamps returns a copy of v with every ServerTimestamp replaced by now.
func resolveTimestamps(v any, now time.Time) any {
	switch value := v.(type) {
	case serverTimestamp:
		return now.UTC()
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, inner := range value {
			out[k] = resolveTimestamps(inner, now)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, inner := range value {
			out[i] = resolveTimestamps(inner, now)
		}
		return out
	default:
		return v
	}
}

// prepare resolves timestamps and normalizes data into its JSON form so every
// store holds identical value types (json.Number, string, bool, []any, map).
func prepare(data map[string]any, now time.Time) (map[string]any, error) {
	if data == nil {
		data = map[string]any{}
	}
	resolved, _ := resolveTimestamps(data, now).(map[string]any)
	raw, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return decodeData(raw)
}

func decodeData(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func copyValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, inner := range value {
			out[k] = copyValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, inner := range value {
			out[i] = copyValue(inner)
		}
		return out
	default:
		return v
	}
}

func copyData(data map[string]any) map[string]any {
	out, _ := copyValue(data).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

func cloneDocument(doc Document) Document {
	doc.Data = copyData(doc.Data)
	return doc
}

// mergeData deep-merges src into a copy of dst; nested maps merge, everything else overwrites.
func mergeData(dst, src map[string]any) map[string]any {
	out := copyData(dst)
	for k, v := range src {
		incoming, isMap := v.(map[string]any)
		existing, wasMap := out[k].(map[string]any)
		if isMap && wasMap {
			out[k] = mergeData(existing, incoming)
			continue
		}
		out[k] = copyValue(v)
	}
	return out
}

// applyPatch sets dotted field paths on a copy of data, creating intermediate maps.
func applyPatch(data, patch map[string]any) map[string]any {
	out := copyData(data)
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, path := range keys {
		segments := strings.Split(path, ".")
		node := out
		for _, segment := range segments[:len(segments)-1] {
			next, ok := node[segment].(map[string]any)
			if !ok {
				next = map[string]any{}
				node[segment] = next
			}
			node = next
		}
		node[segments[len(segments)-1]] = copyValue(patch[path])
	}
	return out
}

func fieldValue(data map[string]any, path string) (any, bool) {
	var current any = data
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func normalizeFilters(filters []Filter) ([]Filter, error) {
	out := make([]Filter, len(filters))
	for i, f := range filters {
		switch f.Op {
		case OpEqual, OpArrayContains:
		default:
			return nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		v, err := normalizeValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
		}
		out[i] = Filter{Field: f.Field, Op: f.Op, Value: v}
	}
	return out, nil
}

func matches(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fieldValue(data, f.Field)
		if !ok {
			return false
		}
		switch f.Op {
		case OpEqual:
			if !reflect.DeepEqual(v, f.Value) {
				return false
			}
		case OpArrayContains:
			items, isArray := v.([]any)
			if !isArray {
				return false
			}
			found := false
			for _, item := range items {
				if reflect.DeepEqual(item, f.Value) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if an, ok := a.(json.Number); ok {
		if bn, ok := b.(json.Number); ok {
			af, _ := an.Float64()
			bf, _ := bn.Float64()
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// finish sorts and limits documents that already passed the filters.
func finish(docs []Document, q Query) []Document {
	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			av, _ := fieldValue(docs[i].Data, q.OrderBy)
			bv, _ := fieldValue(docs[j].Data, q.OrderBy)
			c := compareValues(av, bv)
			if c == 0 {
				c = strings.Compare(docs[i].ID, docs[j].ID)
			}
			if q.Direction == Descending {
				return c > 0
			}
			return c < 0
		})
	} else {
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

func sameSnapshot(a *Snapshot, b Snapshot) bool {
	if a == nil || a.Err != nil || b.Err != nil || len(a.Docs) != len(b.Docs) {
		return false
	}
	for i := range a.Docs {
		if a.Docs[i].Path != b.Docs[i].Path || !reflect.DeepEqual(a.Docs[i].Data, b.Docs[i].Data) {
			return false
		}
	}
	return true
}
