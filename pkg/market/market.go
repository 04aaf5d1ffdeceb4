// Package market implements the marketplace flows on top of the data
// layer: listings, saved items, purchases, and conversations. Every
// function is a thin composition of store operations; rendering,
// routing, and session handling live elsewhere.
package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/unimart/unimart/pkg/auth"
	"github.com/unimart/unimart/pkg/blob"
	"github.com/unimart/unimart/pkg/logger"
	"github.com/unimart/unimart/pkg/models"
	"github.com/unimart/unimart/pkg/store"
)

// ErrAlreadySold is returned when a flow requires an unsold listing.
var ErrAlreadySold = errors.New("listing already sold")

// Market wires the flows to a backend, an identity provider, and a blob
// store for listing images.
type Market struct {
	store store.Backend
	auth  auth.Provider
	blobs blob.Store
	log   logger.Logger
	now   func() time.Time
}

// Option configures a Market.
type Option func(*Market)

// WithLogger sets the flow logger.
func WithLogger(log logger.Logger) Option {
	return func(m *Market) { m.log = log }
}

// WithBlobStore sets the store used for listing images. Without one,
// listings keep whatever image URL the caller supplied.
func WithBlobStore(b blob.Store) Option {
	return func(m *Market) { m.blobs = b }
}

// WithClock overrides the time source. Tests use it to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Market) { m.now = now }
}

// New builds a Market over the given backend and identity provider.
func New(b store.Backend, provider auth.Provider, opts ...Option) *Market {
	m := &Market{
		store: b,
		auth:  provider,
		log:   logger.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterUser stores an account record keyed by uid. Registering the
// same uid twice returns store.ErrDuplicateID.
func (m *Market) RegisterUser(ctx context.Context, uid, email string, role models.Role) (*models.User, error) {
	user := &models.User{
		UID:       uid,
		Email:     email,
		Role:      role,
		CreatedAt: m.now().UTC(),
	}
	if _, err := store.Add(ctx, m.store, models.Users, user); err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}
	return user, nil
}

// UserByUID fetches an account record.
func (m *Market) UserByUID(ctx context.Context, uid string) (*models.User, error) {
	return store.GetByKey[models.User](ctx, m.store, models.Users, uid)
}

// CreateListing stores a new product for the signed-in seller. When an
// image is supplied it is uploaded first and its URL stored on the
// listing. The product's key, seller, and creation time are filled in.
func (m *Market) CreateListing(ctx context.Context, p *models.Product, image []byte, contentType string) (*models.Product, error) {
	principal, err := m.auth.CurrentPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}

	p.Seller = principal.Email
	p.Sold = false
	p.BuyerEmail = ""
	p.PurchaseDate = nil
	p.CreatedAt = m.now().UTC()

	if len(image) > 0 && m.blobs != nil {
		url, err := m.blobs.Put(ctx, contentType, image)
		if err != nil {
			return nil, fmt.Errorf("upload listing image: %w", err)
		}
		p.ImageURL = url
	}

	if _, err := store.Add(ctx, m.store, models.Products, p); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	return p, nil
}

// BrowseListings returns unsold products, optionally restricted to a
// category and a price ceiling.
func (m *Market) BrowseListings(ctx context.Context, category string, maxPrice float64) ([]*models.Product, error) {
	f := store.NewFilter().Where(models.FieldSold, store.OpEqual, false)
	if category != "" {
		f = f.Where(models.FieldCategory, store.OpEqual, category)
	}
	if maxPrice > 0 {
		f = f.Where(models.FieldPrice, store.OpLessEqual, maxPrice)
	}
	return store.Get[models.Product](ctx, m.store, models.Products, f)
}

// MyListings returns every product the seller has listed, sold or not.
func (m *Market) MyListings(ctx context.Context, sellerEmail string) ([]*models.Product, error) {
	f := store.NewFilter().Where(models.FieldSeller, store.OpEqual, sellerEmail)
	return store.Get[models.Product](ctx, m.store, models.Products, f)
}

// Listing fetches a single product by key.
func (m *Market) Listing(ctx context.Context, id string) (*models.Product, error) {
	return store.GetByKey[models.Product](ctx, m.store, models.Products, id)
}

// SaveItem bookmarks a product for the buyer, denormalizing the product
// fields at save time. Saving the same product twice is a no-op.
func (m *Market) SaveItem(ctx context.Context, buyerEmail, productID string) (*models.SavedItem, error) {
	existing, err := m.savedItem(ctx, buyerEmail, productID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	p, err := m.Listing(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("save item: %w", err)
	}

	item := &models.SavedItem{
		BuyerEmail:  buyerEmail,
		ProductID:   p.ID,
		ProductName: p.ProductName,
		Price:       p.Price,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		Description: p.Description,
		Seller:      p.Seller,
		CreatedAt:   m.now().UTC(),
	}
	if _, err := store.Add(ctx, m.store, models.SavedItems, item); err != nil {
		return nil, fmt.Errorf("save item: %w", err)
	}
	return item, nil
}

// UnsaveItem removes the buyer's bookmark of a product. Removing a
// bookmark that does not exist is not an error.
func (m *Market) UnsaveItem(ctx context.Context, buyerEmail, productID string) error {
	item, err := m.savedItem(ctx, buyerEmail, productID)
	if err != nil {
		return err
	}
	if item == nil {
		return nil
	}
	if err := store.Delete(ctx, m.store, models.SavedItems, item.ID); err != nil {
		return fmt.Errorf("unsave item: %w", err)
	}
	return nil
}

// SavedItems returns the buyer's bookmarks.
func (m *Market) SavedItems(ctx context.Context, buyerEmail string) ([]*models.SavedItem, error) {
	f := store.NewFilter().Where(models.FieldBuyerEmail, store.OpEqual, buyerEmail)
	return store.Get[models.SavedItem](ctx, m.store, models.SavedItems, f)
}

func (m *Market) savedItem(ctx context.Context, buyerEmail, productID string) (*models.SavedItem, error) {
	f := store.NewFilter().
		Where(models.FieldBuyerEmail, store.OpEqual, buyerEmail).
		Where(models.FieldProductID, store.OpEqual, productID)
	items, err := store.Get[models.SavedItem](ctx, m.store, models.SavedItems, f)
	if err != nil {
		return nil, fmt.Errorf("lookup saved item: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// MarkSold finalizes a sale: the product is stamped sold with the buyer
// and purchase time, and an immutable purchase record is written. The
// purchase record is the buyer's receipt; it never changes even if the
// product record is edited later.
func (m *Market) MarkSold(ctx context.Context, productID, buyerEmail string) (*models.PurchasedItem, error) {
	p, err := m.Listing(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("mark sold: %w", err)
	}
	if p.Sold {
		return nil, fmt.Errorf("mark sold %s: %w", productID, ErrAlreadySold)
	}

	soldAt := m.now().UTC()
	patch := map[string]any{
		models.FieldSold:         true,
		models.FieldBuyerEmail:   buyerEmail,
		models.FieldPurchaseDate: soldAt.Format(time.RFC3339Nano),
	}
	if err := store.Update(ctx, m.store, models.Products, productID, patch); err != nil {
		return nil, fmt.Errorf("mark sold: %w", err)
	}

	purchase := &models.PurchasedItem{
		ProductID:    p.ID,
		ProductName:  p.ProductName,
		Price:        p.Price,
		Category:     p.Category,
		ImageURL:     p.ImageURL,
		Description:  p.Description,
		Seller:       p.Seller,
		BuyerEmail:   buyerEmail,
		CreatedAt:    p.CreatedAt,
		PurchaseDate: soldAt,
	}
	if _, err := store.Add(ctx, m.store, models.PurchasedItems, purchase); err != nil {
		return nil, fmt.Errorf("record purchase: %w", err)
	}
	return purchase, nil
}

// Purchases returns the buyer's purchase history.
func (m *Market) Purchases(ctx context.Context, buyerEmail string) ([]*models.PurchasedItem, error) {
	f := store.NewFilter().Where(models.FieldBuyerEmail, store.OpEqual, buyerEmail)
	return store.Get[models.PurchasedItem](ctx, m.store, models.PurchasedItems, f)
}

// EnsureConversation returns the conversation between the two
// principals, creating it on first contact. The participant pair is
// order-insensitive.
func (m *Market) EnsureConversation(ctx context.Context, a, b string) (*models.Conversation, error) {
	f := store.NewFilter().Where(models.FieldParticipants, store.OpContains, a)
	convs, err := store.Get[models.Conversation](ctx, m.store, models.Conversations, f)
	if err != nil {
		return nil, fmt.Errorf("lookup conversation: %w", err)
	}
	for _, c := range convs {
		if len(c.Participants) == 2 && hasParticipant(c, b) {
			return c, nil
		}
	}

	conv := &models.Conversation{Participants: []string{a, b}}
	if _, err := store.Add(ctx, m.store, models.Conversations, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// SendMessage appends a message to the conversation and refreshes its
// last-message preview.
func (m *Market) SendMessage(ctx context.Context, conversationID, sender, recipient, text string) (*models.Message, error) {
	msg := &models.Message{
		ConversationID: conversationID,
		Sender:         sender,
		Recipient:      recipient,
		Text:           text,
		Timestamp:      m.now().UTC(),
	}
	if _, err := store.Add(ctx, m.store, models.Messages, msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	patch := map[string]any{models.FieldLastMessage: text}
	if err := store.Update(ctx, m.store, models.Conversations, conversationID, patch); err != nil {
		m.log.Warn("failed to update conversation preview", "conversation", conversationID, "error", err)
	}
	return msg, nil
}

// Messages returns the conversation's messages in send order.
func (m *Market) Messages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	f := store.NewFilter().Where(models.FieldConversationID, store.OpEqual, conversationID)
	msgs, err := store.Get[models.Message](ctx, m.store, models.Messages, f)
	if err != nil {
		return nil, err
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })
	return msgs, nil
}

func hasParticipant(c *models.Conversation, who string) bool {
	for _, p := range c.Participants {
		if p == who {
			return true
		}
	}
	return false
}
