package models

// Asset represents a single registry entry: one minted token, its custody and
// its sale state. While ForSale is true the registry's escrow identity holds
// the token on behalf of the seller.
type Asset struct {
	ID          int64  `json:"token_id" db:"id"`
	Creator     string `json:"creator" db:"creator"`
	Owner       string `json:"owner" db:"owner"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	TokenURI    string `json:"token_uri" db:"token_uri"`
	ForSale     bool   `json:"for_sale" db:"for_sale"`
	Price       int64  `json:"price" db:"price"` // in sats; zero unless listed
}

// AssetListResponse represents the response for listing assets
type AssetListResponse struct {
	Assets     []Asset `json:"assets"`
	TotalCount int     `json:"total_count"`
}

// AssetParams represents the parameters for filtering assets
type AssetParams struct {
	Owner   string `json:"owner"`
	ForSale *bool  `json:"for_sale"`
}

// MintRequest represents a request to mint a new asset
type MintRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	TokenURI    string `json:"token_uri"`
}

// ListRequest represents a request to put an asset up for sale
type ListRequest struct {
	Price int64 `json:"price"`
}

// BuyRequest represents a request to buy a listed asset
type BuyRequest struct {
	Payment int64 `json:"payment"`
}

// BalanceResponse represents the credited sale proceeds of an address
type BalanceResponse struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

// EventType identifies a registry state transition
type EventType string

const (
	EventMinted   EventType = "asset_minted"
	EventListed   EventType = "asset_listed"
	EventDelisted EventType = "asset_delisted"
	EventSold     EventType = "asset_sold"
)

// Event represents a registry state transition pushed to feed subscribers
type Event struct {
	Type   EventType `json:"type"`
	Asset  Asset     `json:"asset"`
	Actor  string    `json:"actor"`
	Amount int64     `json:"amount,omitempty"` // payment amount on sale events
}
