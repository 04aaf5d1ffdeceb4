package models

// Collection names form a fixed closed set. Backends reject anything
// outside it rather than creating collections on demand.
const (
	CollectionProducts       = "products"
	CollectionSavedItems     = "savedItems"
	CollectionPurchasedItems = "purchasedItems"
	CollectionOffers         = "offers"
	CollectionUsers          = "users"
	CollectionConversations  = "conversations"
	CollectionMessages       = "messages"
)

// Collection describes one named record set: its wire name and the field
// that holds the record key.
type Collection struct {
	Name string
	Key  string
}

var (
	Products       = Collection{Name: CollectionProducts, Key: FieldID}
	SavedItems     = Collection{Name: CollectionSavedItems, Key: FieldID}
	PurchasedItems = Collection{Name: CollectionPurchasedItems, Key: FieldID}
	Offers         = Collection{Name: CollectionOffers, Key: FieldID}
	Users          = Collection{Name: CollectionUsers, Key: FieldUID}
	Conversations  = Collection{Name: CollectionConversations, Key: FieldID}
	Messages       = Collection{Name: CollectionMessages, Key: FieldID}
)

// Collections lists every known collection in declaration order. The
// local schema is derived from this set.
var Collections = []Collection{
	Products,
	SavedItems,
	PurchasedItems,
	Offers,
	Users,
	Conversations,
	Messages,
}

// KeyField returns the key field name for a collection, or "" when the
// collection name is not part of the closed set.
func KeyField(collection string) string {
	for _, c := range Collections {
		if c.Name == collection {
			return c.Key
		}
	}
	return ""
}
