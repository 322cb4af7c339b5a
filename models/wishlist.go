package models

import "time"

// WishlistItem is stored in DynamoDB keyed by (user_id, product_id).
type WishlistItem struct {
	UserID    string    `dynamodbav:"user_id" json:"user_id"`
	ProductID string    `dynamodbav:"product_id" json:"product_id"`
	AddedAt   time.Time `dynamodbav:"added_at" json:"added_at"`
}

// WishlistEntry pairs a saved product with when it was saved.
type WishlistEntry struct {
	Product Product   `json:"product"`
	AddedAt time.Time `json:"added_at"`
}
