package services

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cruzzer/bazaar-api/internal/models"
	"github.com/cruzzer/bazaar-api/internal/registry"
)

// RegistryStore persists applied ledger mutations. Each call covers one
// operation and is expected to be transactional.
type RegistryStore interface {
	SaveMint(asset models.Asset, nextID int64) error
	SaveListing(asset models.Asset, seller string) error
	SaveDelisting(asset models.Asset) error
	SaveSale(asset models.Asset, seller string, sellerBalance int64) error
}

// EventSink receives registry events after a mutation has been applied and
// persisted.
type EventSink interface {
	Publish(event models.Event)
}

// RegistryService drives the asset registry: it applies operations to the
// in-memory ledger, writes them through to the store, and pushes the
// resulting events to the feed. The ledger itself is the authority; the store
// is a durability journal whose rows mirror the ledger exactly. Write-throughs
// run inside the registry's serialization point, so journal commits happen in
// ledger order and a failed commit rolls the mutation back.
type RegistryService struct {
	registry *registry.Registry
	store    RegistryStore
	events   EventSink
	logger   *zap.Logger
}

// NewRegistryService creates a new RegistryService. store and events may be
// nil, which disables persistence and the event feed respectively.
func NewRegistryService(reg *registry.Registry, store RegistryStore, events EventSink, logger *zap.Logger) *RegistryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryService{
		registry: reg,
		store:    store,
		events:   events,
		logger:   logger,
	}
}

// Mint creates a new asset owned by the caller.
func (s *RegistryService) Mint(caller string, req models.MintRequest) (models.Asset, error) {
	var persist func(models.Asset, int64) error
	if s.store != nil {
		persist = func(asset models.Asset, nextID int64) error {
			if err := s.store.SaveMint(asset, nextID); err != nil {
				s.logger.Error("failed to persist mint",
					zap.Int64("token_id", asset.ID), zap.Error(err))
				return fmt.Errorf("failed to persist mint: %w", err)
			}
			return nil
		}
	}

	asset, err := s.registry.MintWith(caller, req.Name, req.Description, req.TokenURI, persist)
	if err != nil {
		return models.Asset{}, err
	}

	s.logger.Info("asset minted",
		zap.Int64("token_id", asset.ID), zap.String("creator", caller))
	s.publish(models.Event{Type: models.EventMinted, Asset: asset, Actor: caller})

	return asset, nil
}

// List puts the caller's asset up for sale.
func (s *RegistryService) List(caller string, id, price int64) (models.Asset, error) {
	var persist func(models.Asset, string) error
	if s.store != nil {
		persist = func(asset models.Asset, seller string) error {
			if err := s.store.SaveListing(asset, seller); err != nil {
				s.logger.Error("failed to persist listing",
					zap.Int64("token_id", id), zap.Error(err))
				return fmt.Errorf("failed to persist listing: %w", err)
			}
			return nil
		}
	}

	asset, err := s.registry.ListWith(caller, id, price, persist)
	if err != nil {
		return models.Asset{}, err
	}

	s.logger.Info("asset listed",
		zap.Int64("token_id", id), zap.String("seller", caller), zap.Int64("price", price))
	s.publish(models.Event{Type: models.EventListed, Asset: asset, Actor: caller})

	return asset, nil
}

// Delist takes the caller's listed asset off sale.
func (s *RegistryService) Delist(caller string, id int64) (models.Asset, error) {
	var persist func(models.Asset) error
	if s.store != nil {
		persist = func(asset models.Asset) error {
			if err := s.store.SaveDelisting(asset); err != nil {
				s.logger.Error("failed to persist delisting",
					zap.Int64("token_id", id), zap.Error(err))
				return fmt.Errorf("failed to persist delisting: %w", err)
			}
			return nil
		}
	}

	asset, err := s.registry.DelistWith(caller, id, persist)
	if err != nil {
		return models.Asset{}, err
	}

	s.logger.Info("asset delisted",
		zap.Int64("token_id", id), zap.String("owner", caller))
	s.publish(models.Event{Type: models.EventDelisted, Asset: asset, Actor: caller})

	return asset, nil
}

// Buy transfers a listed asset to the caller against exact payment.
func (s *RegistryService) Buy(caller string, id, payment int64) (models.Asset, error) {
	var persist func(registry.Sale) error
	if s.store != nil {
		persist = func(sale registry.Sale) error {
			if err := s.store.SaveSale(sale.Asset, sale.Seller, sale.SellerBalance); err != nil {
				s.logger.Error("failed to persist sale",
					zap.Int64("token_id", id), zap.Error(err))
				return fmt.Errorf("failed to persist sale: %w", err)
			}
			return nil
		}
	}

	sale, err := s.registry.BuyWith(caller, id, payment, persist)
	if err != nil {
		return models.Asset{}, err
	}

	s.logger.Info("asset sold",
		zap.Int64("token_id", id),
		zap.String("buyer", caller),
		zap.String("seller", sale.Seller),
		zap.Int64("payment", sale.Payment))
	s.publish(models.Event{
		Type:   models.EventSold,
		Asset:  sale.Asset,
		Actor:  caller,
		Amount: sale.Payment,
	})

	return sale.Asset, nil
}

// Assets returns all assets in mint order, optionally filtered.
func (s *RegistryService) Assets(params models.AssetParams) *models.AssetListResponse {
	all := s.registry.Assets()

	assets := make([]models.Asset, 0, len(all))
	for _, a := range all {
		if params.Owner != "" && a.Owner != params.Owner {
			continue
		}
		if params.ForSale != nil && a.ForSale != *params.ForSale {
			continue
		}
		assets = append(assets, a)
	}

	return &models.AssetListResponse{
		Assets:     assets,
		TotalCount: len(assets),
	}
}

// Asset returns a single asset by id.
func (s *RegistryService) Asset(id int64) (models.Asset, error) {
	return s.registry.Asset(id)
}

// Balance returns the sale proceeds credited to an address.
func (s *RegistryService) Balance(address string) int64 {
	return s.registry.Balance(address)
}

func (s *RegistryService) publish(event models.Event) {
	if s.events != nil {
		s.events.Publish(event)
	}
}
