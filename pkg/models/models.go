// Package models defines the typed records stored by the unimart data
// layer and the collection descriptors shared by every backend.
//
// Records are strongly typed on the application side and travel through
// the store as open documents (map[string]any). [Encode] and [Decode]
// convert between the two via their JSON field tags, so the wire shape is
// identical regardless of which backend holds the record.
//
// Every record carries an opaque string key: `id` for most collections,
// `uid` for users. In remote-enabled mode the key is assigned by the
// server on add; in local-only mode the store generates a UUID.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role is the account role of a user.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

// Record is implemented by every typed record. Key returns the record's
// opaque key within its collection; SetKey is called after a backend
// assigns one.
type Record interface {
	Key() string
	SetKey(string)
}

// Product is a marketplace listing. Created by its seller, mutated by the
// seller until sold, never deleted by the data layer.
type Product struct {
	ID           string     `json:"id,omitempty"`
	ProductName  string     `json:"productName"`
	Price        float64    `json:"price"`
	Category     string     `json:"category"`
	ImageURL     string     `json:"imageURL,omitempty"`
	Description  string     `json:"description,omitempty"`
	Seller       string     `json:"seller"`
	Sold         bool       `json:"sold"`
	CreatedAt    time.Time  `json:"createdAt"`
	BuyerEmail   string     `json:"buyerEmail,omitempty"`
	PurchaseDate *time.Time `json:"purchaseDate,omitempty"`
}

func (p *Product) Key() string { return p.ID }
func (p *Product) SetKey(id string) { p.ID = id }

// SavedItem is a buyer's bookmark of a product, with the product fields
// denormalized at save time. The referenced product may have been sold or
// changed since; readers tolerate stale copies.
type SavedItem struct {
	ID          string    `json:"id,omitempty"`
	BuyerEmail  string    `json:"buyerEmail"`
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName"`
	Price       float64   `json:"price"`
	Category    string    `json:"category,omitempty"`
	ImageURL    string    `json:"imageURL,omitempty"`
	Description string    `json:"description,omitempty"`
	Seller      string    `json:"seller,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (s *SavedItem) Key() string { return s.ID }
func (s *SavedItem) SetKey(id string) { s.ID = id }

// PurchasedItem mirrors a product at the moment it was marked sold.
// Immutable once written.
type PurchasedItem struct {
	ID           string    `json:"id,omitempty"`
	ProductID    string    `json:"productId"`
	ProductName  string    `json:"productName"`
	Price        float64   `json:"price"`
	Category     string    `json:"category,omitempty"`
	ImageURL     string    `json:"imageURL,omitempty"`
	Description  string    `json:"description,omitempty"`
	Seller       string    `json:"seller"`
	BuyerEmail   string    `json:"buyerEmail"`
	CreatedAt    time.Time `json:"createdAt"`
	PurchaseDate time.Time `json:"purchaseDate"`
}

func (p *PurchasedItem) Key() string { return p.ID }
func (p *PurchasedItem) SetKey(id string) { p.ID = id }

// Offer is reserved for a future bidding flow. The collection exists in
// every backend schema but no public flow writes it yet.
type Offer struct {
	ID         string    `json:"id,omitempty"`
	ProductID  string    `json:"productId"`
	BuyerEmail string    `json:"buyerEmail"`
	Amount     float64   `json:"amount"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (o *Offer) Key() string { return o.ID }
func (o *Offer) SetKey(id string) { o.ID = id }

// User is an account record, keyed by uid rather than id.
type User struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) Key() string { return u.UID }
func (u *User) SetKey(id string) { u.UID = id }

// Conversation is a two-party chat thread. Participants is always a set
// of exactly two principals; lastMessage tracks the most recent text.
type Conversation struct {
	ID           string   `json:"id,omitempty"`
	Participants []string `json:"participants"`
	LastMessage  string   `json:"lastMessage,omitempty"`
}

func (c *Conversation) Key() string { return c.ID }
func (c *Conversation) SetKey(id string) { c.ID = id }

// Message is a single append-only chat message.
type Message struct {
	ID             string    `json:"id,omitempty"`
	ConversationID string    `json:"conversationId"`
	Sender         string    `json:"sender"`
	Recipient      string    `json:"recipient"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
}

func (m *Message) Key() string { return m.ID }
func (m *Message) SetKey(id string) { m.ID = id }

// Encode converts a typed record into the open document form the
// backends store. The caller keeps ownership of rec.
func Encode(rec Record) (map[string]any, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return doc, nil
}

// Decode converts a document back into a typed record.
func Decode[T any](doc map[string]any) (*T, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}
