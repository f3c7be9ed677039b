package catalog

import (
	"context"
	"errors"
)

var (
	// ErrListingNotFound is returned when a listing id resolves to nothing.
	ErrListingNotFound = errors.New("catalog: listing not found")
	// ErrUserNotFound is returned when a user id resolves to nothing.
	ErrUserNotFound = errors.New("catalog: user not found")
)

// ListingSummary is the slice of listing data the chat surface needs. The
// catalog itself lives outside this service.
type ListingSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	SellerID     string `json:"sellerId"`
	PriceCents   int64  `json:"priceCents"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// UserSummary identifies the other party in a conversation list entry.
type UserSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// ListingDirectory resolves listing ids against the marketplace catalog.
type ListingDirectory interface {
	ListingByID(ctx context.Context, id string) (ListingSummary, error)
}

// UserDirectory resolves user ids against the account service.
type UserDirectory interface {
	UserByID(ctx context.Context, id string) (UserSummary, error)
}
