package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cruzzer/bazaar-api/internal/models"
	"github.com/cruzzer/bazaar-api/internal/registry"
)

// schema mirrors the registry snapshot exactly: the asset table, who escrow is
// held for while an asset is listed, credited sale proceeds, and the next-id
// counter. None of it is derivable from the rest.
const schema = `
CREATE TABLE IF NOT EXISTS assets(
  id BIGINT PRIMARY KEY,
  creator VARCHAR(128) NOT NULL,
  owner VARCHAR(128) NOT NULL,
  name TEXT NOT NULL,
  description TEXT NOT NULL,
  token_uri TEXT NOT NULL,
  for_sale BOOLEAN NOT NULL DEFAULT FALSE,
  price BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS escrow(
  asset_id BIGINT PRIMARY KEY REFERENCES assets(id),
  seller VARCHAR(128) NOT NULL
);

CREATE TABLE IF NOT EXISTS balances(
  address VARCHAR(128) PRIMARY KEY,
  amount BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS registry_state(
  id SMALLINT PRIMARY KEY DEFAULT 1,
  next_id BIGINT NOT NULL DEFAULT 0,
  CONSTRAINT registry_state_single_row CHECK (id = 1)
);
`

// RegistryRepository persists the asset registry. Every mutating operation of
// the ledger maps to one transactional write-through here, and the full state
// is reloaded as a snapshot at startup.
type RegistryRepository struct {
	db *Database
}

// NewRegistryRepository creates a new RegistryRepository
func NewRegistryRepository(db *Database) *RegistryRepository {
	return &RegistryRepository{
		db: db,
	}
}

// EnsureSchema creates the registry tables if they do not exist yet.
func (r *RegistryRepository) EnsureSchema() error {
	if _, err := r.db.DB().Exec(schema); err != nil {
		return fmt.Errorf("failed to ensure registry schema: %w", err)
	}

	query := `INSERT INTO registry_state (id, next_id) VALUES (1, 0)
			  ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.DB().Exec(query); err != nil {
		return fmt.Errorf("failed to seed registry state: %w", err)
	}

	return nil
}

// LoadSnapshot reads the complete registry state from the database.
func (r *RegistryRepository) LoadSnapshot() (registry.Snapshot, error) {
	snap := registry.Snapshot{
		Sellers:  make(map[int64]string),
		Balances: make(map[string]int64),
	}

	query := `SELECT id, creator, owner, name, description, token_uri, for_sale, price
			  FROM assets ORDER BY id ASC`
	if err := r.db.DB().Select(&snap.Assets, query); err != nil {
		return registry.Snapshot{}, fmt.Errorf("failed to load assets: %w", err)
	}

	rows := []struct {
		AssetID int64  `db:"asset_id"`
		Seller  string `db:"seller"`
	}{}
	if err := r.db.DB().Select(&rows, `SELECT asset_id, seller FROM escrow`); err != nil {
		return registry.Snapshot{}, fmt.Errorf("failed to load escrow entries: %w", err)
	}
	for _, row := range rows {
		snap.Sellers[row.AssetID] = row.Seller
	}

	balances := []struct {
		Address string `db:"address"`
		Amount  int64  `db:"amount"`
	}{}
	if err := r.db.DB().Select(&balances, `SELECT address, amount FROM balances`); err != nil {
		return registry.Snapshot{}, fmt.Errorf("failed to load balances: %w", err)
	}
	for _, b := range balances {
		snap.Balances[b.Address] = b.Amount
	}

	if err := r.db.DB().Get(&snap.NextID, `SELECT next_id FROM registry_state WHERE id = 1`); err != nil {
		return registry.Snapshot{}, fmt.Errorf("failed to load next id: %w", err)
	}

	return snap, nil
}

// SaveMint stores a freshly minted asset and advances the id counter. The
// counter only ever moves forward so a replayed write can never hand out an
// already-used id after a restart.
func (r *RegistryRepository) SaveMint(asset models.Asset, nextID int64) error {
	return r.db.Transaction(func(tx *sqlx.Tx) error {
		if err := upsertAsset(tx, asset); err != nil {
			return err
		}
		_, err := tx.Exec(`UPDATE registry_state SET next_id = GREATEST(next_id, $1) WHERE id = 1`, nextID)
		return err
	})
}

// SaveListing stores a listed asset together with its escrow entry.
func (r *RegistryRepository) SaveListing(asset models.Asset, seller string) error {
	return r.db.Transaction(func(tx *sqlx.Tx) error {
		if err := upsertAsset(tx, asset); err != nil {
			return err
		}
		query := `INSERT INTO escrow (asset_id, seller) VALUES ($1, $2)
				  ON CONFLICT (asset_id) DO UPDATE SET seller = $2`
		_, err := tx.Exec(query, asset.ID, seller)
		return err
	})
}

// SaveDelisting stores a delisted asset and releases its escrow entry.
func (r *RegistryRepository) SaveDelisting(asset models.Asset) error {
	return r.db.Transaction(func(tx *sqlx.Tx) error {
		if err := upsertAsset(tx, asset); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM escrow WHERE asset_id = $1`, asset.ID)
		return err
	})
}

// SaveSale stores a sold asset, releases its escrow entry and records the
// seller's updated balance. The balance is written as an absolute value so
// replays of the same write-through stay idempotent.
func (r *RegistryRepository) SaveSale(asset models.Asset, seller string, sellerBalance int64) error {
	return r.db.Transaction(func(tx *sqlx.Tx) error {
		if err := upsertAsset(tx, asset); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM escrow WHERE asset_id = $1`, asset.ID); err != nil {
			return err
		}
		query := `INSERT INTO balances (address, amount) VALUES ($1, $2)
				  ON CONFLICT (address) DO UPDATE SET amount = $2`
		_, err := tx.Exec(query, seller, sellerBalance)
		return err
	})
}

func upsertAsset(tx *sqlx.Tx, asset models.Asset) error {
	query := `INSERT INTO assets (id, creator, owner, name, description, token_uri, for_sale, price)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT (id) DO UPDATE SET
			  owner = $3, for_sale = $7, price = $8`
	_, err := tx.Exec(query,
		asset.ID, asset.Creator, asset.Owner, asset.Name,
		asset.Description, asset.TokenURI, asset.ForSale, asset.Price)
	return err
}
