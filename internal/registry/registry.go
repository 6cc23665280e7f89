// Package registry implements the ownership-and-escrow ledger backing the
// bazaar marketplace. It tracks every minted asset, its custodian and its sale
// state, and serializes all mutations behind a single lock so that concurrent
// callers observe the ledger as if operations ran one at a time.
package registry

import (
	"sort"
	"sync"

	"github.com/cruzzer/bazaar-api/internal/models"
)

// EscrowAddress is the reserved custodian identity holding listed assets.
// It is never a valid caller identity.
const EscrowAddress = "bazaar:escrow"

// Registry is the in-process ledger. All exported methods are safe for
// concurrent use; mutations are applied atomically under one mutex, so either
// every effect of an operation is visible or none is.
type Registry struct {
	mu       sync.RWMutex
	assets   map[int64]*models.Asset
	sellers  map[int64]string // listing owner while the asset sits in escrow
	balances map[string]int64 // credited sale proceeds per address
	nextID   int64
}

// Snapshot is the complete persistable state of the registry. No field is
// derivable from the others: assets carry custody and sale state, sellers
// record who escrow is held for, balances record credited proceeds, and
// NextID preserves id monotonicity across restarts.
type Snapshot struct {
	NextID   int64
	Assets   []models.Asset
	Sellers  map[int64]string
	Balances map[string]int64
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		assets:   make(map[int64]*models.Asset),
		sellers:  make(map[int64]string),
		balances: make(map[string]int64),
	}
}

// Restore replaces the registry state with the given snapshot. It is meant to
// be called once at startup, before the registry is shared.
func (r *Registry) Restore(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.assets = make(map[int64]*models.Asset, len(snap.Assets))
	for _, a := range snap.Assets {
		a := a
		r.assets[a.ID] = &a
	}

	r.sellers = make(map[int64]string, len(snap.Sellers))
	for id, seller := range snap.Sellers {
		r.sellers[id] = seller
	}

	r.balances = make(map[string]int64, len(snap.Balances))
	for addr, amount := range snap.Balances {
		r.balances[addr] = amount
	}

	r.nextID = snap.NextID
}

// Snapshot returns a deep copy of the full registry state.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		NextID:   r.nextID,
		Assets:   make([]models.Asset, 0, len(r.assets)),
		Sellers:  make(map[int64]string, len(r.sellers)),
		Balances: make(map[string]int64, len(r.balances)),
	}
	for _, a := range r.assets {
		snap.Assets = append(snap.Assets, *a)
	}
	sort.Slice(snap.Assets, func(i, j int) bool { return snap.Assets[i].ID < snap.Assets[j].ID })
	for id, seller := range r.sellers {
		snap.Sellers[id] = seller
	}
	for addr, amount := range r.balances {
		snap.Balances[addr] = amount
	}
	return snap
}

// Mint creates a new unlisted asset owned by its creator and assigns the next
// id. Ids are monotonic and never reused.
func (r *Registry) Mint(creator, name, description, tokenURI string) (models.Asset, error) {
	return r.MintWith(creator, name, description, tokenURI, nil)
}

// MintWith is Mint with a persist hook that runs while the registry lock is
// still held, so durable writes commit in the same order the ledger applies
// them. If persist fails the mint is rolled back and the id is not consumed.
func (r *Registry) MintWith(creator, name, description, tokenURI string, persist func(asset models.Asset, nextID int64) error) (models.Asset, error) {
	if tokenURI == "" {
		return models.Asset{}, ErrInvalidTokenURI
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a := &models.Asset{
		ID:          r.nextID,
		Creator:     creator,
		Owner:       creator,
		Name:        name,
		Description: description,
		TokenURI:    tokenURI,
	}
	r.assets[a.ID] = a
	r.nextID++

	if persist != nil {
		if err := persist(*a, r.nextID); err != nil {
			delete(r.assets, a.ID)
			r.nextID--
			return models.Asset{}, err
		}
	}

	return *a, nil
}

// List puts an asset up for sale at the given price. Custody moves from the
// caller to the escrow identity until the asset is delisted or bought.
func (r *Registry) List(caller string, id, price int64) (models.Asset, error) {
	return r.ListWith(caller, id, price, nil)
}

// ListWith is List with a persist hook run under the registry lock. If
// persist fails the listing is rolled back and custody stays with the caller.
func (r *Registry) ListWith(caller string, id, price int64, persist func(asset models.Asset, seller string) error) (models.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return models.Asset{}, ErrNotFound
	}
	if a.ForSale {
		return models.Asset{}, ErrAlreadyListed
	}
	if a.Owner != caller {
		return models.Asset{}, ErrNotOwner
	}
	if price <= 0 {
		return models.Asset{}, ErrInvalidPrice
	}

	r.sellers[id] = caller
	a.Owner = EscrowAddress
	a.ForSale = true
	a.Price = price

	if persist != nil {
		if err := persist(*a, caller); err != nil {
			delete(r.sellers, id)
			a.Owner = caller
			a.ForSale = false
			a.Price = 0
			return models.Asset{}, err
		}
	}

	return *a, nil
}

// Delist takes a listed asset off sale and returns custody to the seller.
// Only the party escrow is held for may delist.
func (r *Registry) Delist(caller string, id int64) (models.Asset, error) {
	return r.DelistWith(caller, id, nil)
}

// DelistWith is Delist with a persist hook run under the registry lock. If
// persist fails the asset stays listed at its original price.
func (r *Registry) DelistWith(caller string, id int64, persist func(asset models.Asset) error) (models.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return models.Asset{}, ErrNotFound
	}
	if !a.ForSale {
		return models.Asset{}, ErrNotListed
	}
	if r.sellers[id] != caller {
		return models.Asset{}, ErrNotOwner
	}

	price := a.Price
	delete(r.sellers, id)
	a.Owner = caller
	a.ForSale = false
	a.Price = 0

	if persist != nil {
		if err := persist(*a); err != nil {
			r.sellers[id] = caller
			a.Owner = EscrowAddress
			a.ForSale = true
			a.Price = price
			return models.Asset{}, err
		}
	}

	return *a, nil
}

// Sale is the receipt of a completed Buy. Seller and SellerBalance are
// captured under the registry lock so the persistence layer can record the
// payout without re-reading mutable state.
type Sale struct {
	Asset         models.Asset
	Seller        string
	Payment       int64
	SellerBalance int64
}

// Buy transfers a listed asset to the caller against an exact payment of the
// listed price, crediting the proceeds to the seller. The payment transfer,
// the custody transfer and the sale-state reset happen as one step under the
// registry lock. A seller buying back their own listing is permitted and
// degenerates to a delist that pays the price to themselves.
func (r *Registry) Buy(caller string, id, payment int64) (Sale, error) {
	return r.BuyWith(caller, id, payment, nil)
}

// BuyWith is Buy with a persist hook run under the registry lock. If persist
// fails the payment is returned, escrow is restored and the listing stands.
func (r *Registry) BuyWith(caller string, id, payment int64, persist func(sale Sale) error) (Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return Sale{}, ErrNotFound
	}
	if !a.ForSale {
		return Sale{}, ErrNotListed
	}
	if payment != a.Price {
		return Sale{}, ErrWrongPayment
	}

	seller := r.sellers[id]
	delete(r.sellers, id)
	r.balances[seller] += payment
	a.Owner = caller
	a.ForSale = false
	a.Price = 0

	sale := Sale{
		Asset:         *a,
		Seller:        seller,
		Payment:       payment,
		SellerBalance: r.balances[seller],
	}

	if persist != nil {
		if err := persist(sale); err != nil {
			r.sellers[id] = seller
			r.balances[seller] -= payment
			a.Owner = EscrowAddress
			a.ForSale = true
			a.Price = payment
			return Sale{}, err
		}
	}

	return sale, nil
}

// Asset returns a copy of the asset with the given id.
func (r *Registry) Asset(id int64) (models.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assets[id]
	if !ok {
		return models.Asset{}, ErrNotFound
	}
	return *a, nil
}

// Assets returns a consistent snapshot of all assets in mint order.
func (r *Registry) Assets() []models.Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Asset, 0, len(r.assets))
	for _, a := range r.assets {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Seller returns the address escrow is held for while the asset is listed.
func (r *Registry) Seller(id int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seller, ok := r.sellers[id]
	return seller, ok
}

// Balance returns the sale proceeds credited to an address so far.
func (r *Registry) Balance(address string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.balances[address]
}

// Count returns the number of minted assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.assets)
}
