package infra

import "context"

// CatalogClientInterface is the inventory surface of the external catalog
// store. Reads must be fresh: inventory is never served from a cache.
type CatalogClientInterface interface {
	// GetInventory returns current counts for exactly the requested ids.
	// Ids unknown to the catalog are absent from the result, not an error.
	GetInventory(ctx context.Context, productIDs []string) (map[string]int64, error)
	// SetInventory writes a single product's count. Writes are independent;
	// there is no multi-product transaction.
	SetInventory(ctx context.Context, productID string, count int64) error
}

// IdentityClientInterface resolves a bearer token to the identity
// provider's view of the caller.
type IdentityClientInterface interface {
	ResolveUser(ctx context.Context, token string) (*AuthUser, error)
}

var _ CatalogClientInterface = (*CatalogClient)(nil)
var _ IdentityClientInterface = (*IdentityClient)(nil)
