package remote

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// recordIDTag is the CBOR tag SurrealDB assigns to record IDs. Values
// decoded without the surrealcbor codec surface as raw cbor.Tag.
const recordIDTag = 8

// normalizeDoc converts a document received from the server into plain
// JSON-style values: record IDs become their string id part under the
// collection's key field, datetimes become RFC 3339 strings, and nested
// containers are walked recursively.
func normalizeDoc(keyField string, doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "id" && keyField != "id" {
			// The server always returns the record under "id"; expose
			// it under the collection's own key field instead.
			k = keyField
		}
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch tv := v.(type) {
	case surrealmodels.RecordID:
		return fmt.Sprint(tv.ID)
	case *surrealmodels.RecordID:
		if tv == nil {
			return nil
		}
		return fmt.Sprint(tv.ID)
	case surrealmodels.CustomDateTime:
		return tv.Time.UTC().Format(time.RFC3339Nano)
	case *surrealmodels.CustomDateTime:
		if tv == nil {
			return nil
		}
		return tv.Time.UTC().Format(time.RFC3339Nano)
	case time.Time:
		return tv.UTC().Format(time.RFC3339Nano)
	case cbor.Tag:
		return normalizeTag(tv)
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, inner := range tv {
			out[k] = normalizeValue(inner)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(tv))
		for k, inner := range tv {
			out[fmt.Sprint(k)] = normalizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, inner := range tv {
			out[i] = normalizeValue(inner)
		}
		return out
	default:
		return v
	}
}

// normalizeTag unwraps CBOR tags that reach us undecoded. Record IDs
// (tag 8) carry a [table, id] pair; only the id part is kept. Unknown
// tags degrade to their content.
func normalizeTag(t cbor.Tag) any {
	if t.Number == recordIDTag {
		if pair, ok := t.Content.([]any); ok && len(pair) == 2 {
			return fmt.Sprint(pair[1])
		}
	}
	return normalizeValue(t.Content)
}
