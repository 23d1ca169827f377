package auth

import "context"

// APIKeyInfo holds the identity data for a validated API key.
type APIKeyInfo struct {
	ID      string
	UserID  int64
	KeyHash string
	Name    string
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
