package user

import "context"

// Address is a structured shipping address saved on a user profile or
// captured on an order.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Repository provides access to user profile data.
type Repository interface {
	// Address returns the user's saved shipping address, or nil when none is
	// stored. A stored address that fails to parse is treated as absent, not
	// as an error.
	Address(ctx context.Context, userID int64) (*Address, error)

	// SaveAddress persists addr as the user's shipping address, replacing any
	// previous value.
	SaveAddress(ctx context.Context, userID int64, addr Address) error
}
