package remote

import (
	"fmt"
	"strings"

	"github.com/unimart/unimart/pkg/store"
)

// surrealOps maps filter operators onto their SurrealQL spellings.
var surrealOps = map[store.Op]string{
	store.OpEqual:        "=",
	store.OpNotEqual:     "!=",
	store.OpLess:         "<",
	store.OpLessEqual:    "<=",
	store.OpGreater:      ">",
	store.OpGreaterEqual: ">=",
	store.OpContains:     "CONTAINS",
	store.OpIn:           "IN",
}

// buildSelect renders f as a parameterized SELECT over collection. The
// returned bool reports whether every predicate was pushed down; when it
// is false the caller must re-apply the filter to the fetched rows.
//
// User-provided values only ever travel through $-parameters. Field
// names are interpolated, so anything that is not a plain identifier
// forces the client-side fallback instead of entering the query text.
func buildSelect(collection, keyField string, f *store.Filter) (string, map[string]any, bool) {
	vars := map[string]any{"tb": collection}

	preds := f.Predicates()
	if len(preds) == 0 {
		return "SELECT * FROM type::table($tb)", vars, true
	}

	clauses := make([]string, 0, len(preds))
	for i, p := range preds {
		op, ok := surrealOps[p.Op]
		if !ok || !isIdentifier(p.Field) {
			return "SELECT * FROM type::table($tb)", map[string]any{"tb": collection}, false
		}
		param := fmt.Sprintf("p%d", i)
		field := p.Field
		if field == keyField {
			// Record IDs compare as strings on their id part.
			field = "record::id(id)"
		}
		clauses = append(clauses, fmt.Sprintf("%s %s $%s", field, op, param))
		vars[param] = p.Value
	}

	query := "SELECT * FROM type::table($tb) WHERE " + strings.Join(clauses, " AND ")
	return query, vars, true
}

func isIdentifier(field string) bool {
	if field == "" {
		return false
	}
	for i, r := range field {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
