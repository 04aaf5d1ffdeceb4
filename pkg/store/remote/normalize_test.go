package remote

import (
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/unimart/unimart/pkg/models"
)

func TestNormalizeDocRecordID(t *testing.T) {
	doc := map[string]any{
		"id":          surrealmodels.NewRecordID("products", "p-1"),
		"productName": "lamp",
		"price":       10.5,
	}
	out := normalizeDoc(models.FieldID, doc)
	assert.Equal(t, "p-1", out["id"])
	assert.Equal(t, "lamp", out["productName"])
}

func TestNormalizeDocRenamesIDToKeyField(t *testing.T) {
	doc := map[string]any{
		"id":    surrealmodels.NewRecordID("users", "uid-1"),
		"email": "alice@uni.edu",
	}
	out := normalizeDoc(models.FieldUID, doc)
	assert.Equal(t, "uid-1", out["uid"])
	assert.NotContains(t, out, "id")
}

func TestNormalizeDocDatetime(t *testing.T) {
	ts := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	doc := map[string]any{
		"id":        surrealmodels.NewRecordID("products", "p-1"),
		"createdAt": surrealmodels.CustomDateTime{Time: ts},
	}
	out := normalizeDoc(models.FieldID, doc)
	assert.Equal(t, "2026-02-01T09:30:00Z", out["createdAt"])
}

func TestNormalizeDocNestedContainers(t *testing.T) {
	doc := map[string]any{
		"id": surrealmodels.NewRecordID("conversations", "c-1"),
		"participants": []any{
			"alice@uni.edu",
			"bob@uni.edu",
		},
		"meta": map[string]any{
			"pinnedBy": surrealmodels.NewRecordID("users", "uid-1"),
		},
	}
	out := normalizeDoc(models.FieldID, doc)
	assert.Equal(t, []any{"alice@uni.edu", "bob@uni.edu"}, out["participants"])
	meta := out["meta"].(map[string]any)
	assert.Equal(t, "uid-1", meta["pinnedBy"])
}

func TestNormalizeRawCBORTags(t *testing.T) {
	doc := map[string]any{
		"id": cbor.Tag{Number: recordIDTag, Content: []any{"products", "p-9"}},
	}
	out := normalizeDoc(models.FieldID, doc)
	assert.Equal(t, "p-9", out["id"])
}

func TestNormalizeUnknownTagDegradesToContent(t *testing.T) {
	doc := map[string]any{
		"blob": cbor.Tag{Number: 999, Content: "payload"},
	}
	out := normalizeDoc(models.FieldID, doc)
	assert.Equal(t, "payload", out["blob"])
}

func TestNormalizePlainValuesPassThrough(t *testing.T) {
	doc := map[string]any{
		"id":    "p-1",
		"price": 10.0,
		"sold":  false,
	}
	out := normalizeDoc(models.FieldID, doc)
	assert.Equal(t, doc, out)
}
