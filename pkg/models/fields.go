package models

// Field names are the stable wire contract shared by both backends.
// Documents use these names verbatim; filters reference them.
const (
	FieldID             = "id"
	FieldUID            = "uid"
	FieldEmail          = "email"
	FieldRole           = "role"
	FieldCreatedAt      = "createdAt"
	FieldSold           = "sold"
	FieldBuyerEmail     = "buyerEmail"
	FieldProductID      = "productId"
	FieldProductName    = "productName"
	FieldPrice          = "price"
	FieldImageURL       = "imageURL"
	FieldDescription    = "description"
	FieldCategory       = "category"
	FieldSeller         = "seller"
	FieldParticipants   = "participants"
	FieldConversationID = "conversationId"
	FieldSender         = "sender"
	FieldRecipient      = "recipient"
	FieldText           = "text"
	FieldTimestamp      = "timestamp"
	FieldLastMessage    = "lastMessage"
	FieldPurchaseDate   = "purchaseDate"
)
